package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/store"
)

// CreateCollection stores a new collection and assigns its server id
func (s *Store) CreateCollection(ctx context.Context, ownerID string, c domain.Collection) (domain.Collection, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return domain.Collection{}, &domain.ValidationError{Kind: domain.KindMissingField, Field: "name", Message: "Collection name is required"}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return domain.Collection{}, fmt.Errorf("failed to generate collection id: %w", err)
	}

	c = c.WithDefaults()
	c.ID = id.String()
	c.OwnerID = ownerID
	c.CreatedAt = s.now().UTC()

	data, err := json.Marshal(c)
	if err != nil {
		return domain.Collection{}, fmt.Errorf("failed to marshal collection: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, CollectionKey(c.ID), data, 0)
		pipe.ZAdd(ctx, OwnerCollectionsKey(ownerID), redis.Z{Score: float64(c.CreatedAt.UnixMilli()), Member: c.ID})
		return nil
	})
	if err != nil {
		return domain.Collection{}, fmt.Errorf("failed to save collection: %w", err)
	}
	return c, nil
}

func (s *Store) getCollection(ctx context.Context, c redis.Cmdable, ownerID, id string) (domain.Collection, error) {
	col, err := getJSON[domain.Collection](ctx, c, CollectionKey(id))
	if err != nil {
		return domain.Collection{}, err
	}
	if col.OwnerID != ownerID {
		return domain.Collection{}, store.ErrNotFound
	}
	return col, nil
}

// ListCollections retrieves the owner's collections, oldest first
func (s *Store) ListCollections(ctx context.Context, ownerID string) ([]domain.Collection, error) {
	ids, err := s.client.ZRange(ctx, OwnerCollectionsKey(ownerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get collection IDs: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Collection{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = CollectionKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get collections: %w", err)
	}

	collections := make([]domain.Collection, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var c domain.Collection
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			s.log.Warn("skipping unreadable collection", logger.String("collection_id", ids[i]), logger.Error(err))
			continue
		}
		if c.OwnerID != ownerID {
			continue
		}
		collections = append(collections, c)
	}
	return collections, nil
}

// DeleteCollection removes a collection and unfiles its bookmarks. The
// collection goes first so concurrent moves into it fail.
func (s *Store) DeleteCollection(ctx context.Context, ownerID, id string) error {
	key := CollectionKey(id)
	err := s.watchRetry(ctx, func(tx *redis.Tx) error {
		if _, err := s.getCollection(ctx, tx, ownerID, id); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, OwnerCollectionsKey(ownerID), id)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return err
	}

	bookmarks, err := s.ListBookmarks(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to list collection members: %w", err)
	}

	unfiled := 0
	for _, b := range bookmarks {
		if b.CollectionID == nil || *b.CollectionID != id {
			continue
		}
		updated, err := s.updateBookmark(ctx, ownerID, b.ID, func(_ *redis.Tx, b *domain.Bookmark) error {
			if b.CollectionID != nil && *b.CollectionID == id {
				b.CollectionID = nil
			}
			return nil
		}, BookmarkKey(b.ID))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return fmt.Errorf("failed to unfile bookmark %s: %w", b.ID, err)
		}
		unfiled++
		s.publish(ctx, ownerID, domain.RealtimeEvent{
			Type:   domain.EventUpdate,
			Record: updated,
			Fields: []string{domain.FieldCollectionID},
		})
	}

	s.log.Debug("collection deleted",
		logger.String("collection_id", id),
		logger.Int("unfiled", unfiled))
	return nil
}
