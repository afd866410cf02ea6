// Package redis implements the document store on Redis: JSON documents,
// per-owner sorted-set indexes and a pub/sub channel per owner for
// realtime events.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/store"
)

// maxTxRetries bounds optimistic transactions that keep losing a race.
const maxTxRetries = 8

// Store handles Redis operations for bookmarks and collections
type Store struct {
	client *redis.Client
	log    logger.Logger
	now    func() time.Time
}

var _ store.DocumentStore = (*Store)(nil)

// NewStore creates a new Redis store
func NewStore(client *redis.Client, log logger.Logger) *Store {
	return &Store{
		client: client,
		log:    log,
		now:    time.Now,
	}
}

// Ping checks that Redis answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// publish emits an event on the owner's channel. Delivery is best effort,
// a failure is logged and never fails the write that caused it.
func (s *Store) publish(ctx context.Context, ownerID string, ev domain.RealtimeEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.log.Error("failed to marshal realtime event", logger.Error(err))
		return
	}
	if err := s.client.Publish(ctx, EventsChannel(ownerID), data).Err(); err != nil {
		s.log.Warn("failed to publish realtime event",
			logger.String("owner_id", ownerID),
			logger.String("type", string(ev.Type)),
			logger.Error(err))
	}
}

// getJSON loads and decodes the document at key.
func getJSON[T any](ctx context.Context, c redis.Cmdable, key string) (T, error) {
	var out T
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return out, store.ErrNotFound
		}
		return out, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return out, nil
}

// watchRetry runs fn in a WATCH transaction on keys and retries when
// another client modified them first.
func (s *Store) watchRetry(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("transaction on %v kept conflicting: %w", keys, redis.TxFailedErr)
}
