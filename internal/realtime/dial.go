package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
)

// Dial connects to a feed served by Handler and returns its events. The
// channel closes when ctx ends or the connection drops, which is what
// optimistic.Reconciler.Run expects of a feed.
func Dial(ctx context.Context, url, token string, log logger.Logger) (<-chan domain.RealtimeEvent, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	c, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("dial %s: unauthorized", url)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	out := make(chan domain.RealtimeEvent)
	go func() {
		defer close(out)
		defer func() { _ = c.CloseNow() }()

		for {
			var ev domain.RealtimeEvent
			if err := wsjson.Read(ctx, c, &ev); err != nil {
				if ctx.Err() == nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure && !errors.Is(err, context.Canceled) {
					log.Warn("realtime feed lost", logger.String("url", url), logger.Error(err))
				}
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				_ = c.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}()
	return out, nil
}
