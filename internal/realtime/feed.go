// Package realtime carries an owner's document changes over a websocket.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/MrSnakeDoc/stash/internal/auth"
	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
)

// DefaultPingInterval keeps idle connections alive through proxies.
const DefaultPingInterval = 30 * time.Second

// Source is where the feed reads changes from. store.DocumentStore
// implements it.
type Source interface {
	Subscribe(ctx context.Context, ownerID string) (<-chan domain.RealtimeEvent, error)
}

type Options struct {
	// OriginPatterns are the extra origins allowed to connect, as accepted
	// by websocket.AcceptOptions.
	OriginPatterns []string
	PingInterval   time.Duration
	WriteTimeout   time.Duration
}

// Handler streams the signed-in owner's events as JSON messages. It needs
// a session in the request context.
func Handler(src Source, opts Options, log logger.Logger) http.HandlerFunc {
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: opts.OriginPatterns})
		if err != nil {
			log.Warn("websocket accept failed", logger.Error(err))
			return
		}
		defer func() { _ = c.CloseNow() }()

		// the client only listens, CloseRead ends ctx when it goes away
		ctx := c.CloseRead(r.Context())

		events, err := src.Subscribe(ctx, sess.UserID)
		if err != nil {
			log.Error("realtime subscribe failed", logger.String("owner_id", sess.UserID), logger.Error(err))
			_ = c.Close(websocket.StatusInternalError, "subscription failed")
			return
		}

		log.Debug("realtime feed opened", logger.String("owner_id", sess.UserID))
		err = pump(ctx, c, events, opts)
		switch {
		case err == nil:
			_ = c.Close(websocket.StatusNormalClosure, "")
		case errors.Is(err, context.Canceled), websocket.CloseStatus(err) != -1:
			// client went away
		default:
			log.Warn("realtime feed closed with error", logger.String("owner_id", sess.UserID), logger.Error(err))
		}
	}
}

// pump forwards events until the feed or the connection ends. A closed
// feed returns nil.
func pump(ctx context.Context, c *websocket.Conn, events <-chan domain.RealtimeEvent, opts Options) error {
	ticker := time.NewTicker(opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			wctx, cancel := context.WithTimeout(ctx, opts.WriteTimeout)
			err := wsjson.Write(wctx, c, ev)
			cancel()
			if err != nil {
				return fmt.Errorf("write event: %w", err)
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, opts.WriteTimeout)
			err := c.Ping(pctx)
			cancel()
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}
