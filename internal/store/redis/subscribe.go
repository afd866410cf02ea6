package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
)

// eventBuffer is how many decoded events may wait for a slow consumer.
const eventBuffer = 64

// Subscribe streams the owner's realtime events until ctx ends. The
// subscription is confirmed before Subscribe returns, so writes made after
// it are never missed.
func (s *Store) Subscribe(ctx context.Context, ownerID string) (<-chan domain.RealtimeEvent, error) {
	channel := EventsChannel(ownerID)
	sub := s.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	out := make(chan domain.RealtimeEvent, eventBuffer)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev domain.RealtimeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					s.log.Warn("dropping malformed realtime event",
						logger.String("channel", channel),
						logger.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	s.log.Debug("realtime subscription opened", logger.String("owner_id", ownerID))
	return out, nil
}
