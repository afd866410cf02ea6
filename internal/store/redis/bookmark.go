package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/store"
)

// CreateBookmark stores a new bookmark and assigns its server id
func (s *Store) CreateBookmark(ctx context.Context, ownerID string, draft domain.Bookmark) (domain.Bookmark, error) {
	normalized, err := domain.NormalizeURL(draft.URL)
	if err != nil {
		return domain.Bookmark{}, err
	}
	if draft.CollectionID != nil {
		if _, err := s.getCollection(ctx, s.client, ownerID, *draft.CollectionID); err != nil {
			return domain.Bookmark{}, fmt.Errorf("collection %s: %w", *draft.CollectionID, err)
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to generate bookmark id: %w", err)
	}

	b := draft.Clone()
	b.ID = id.String()
	b.OwnerID = ownerID
	b.URL = strings.TrimSpace(b.URL)
	b.Title = strings.TrimSpace(b.Title)
	if b.Title == "" {
		b.Title = b.URL
	}
	b.NormalizedURL = normalized
	b.CreatedAt = s.now().UTC()

	data, err := json.Marshal(b)
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to marshal bookmark: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, BookmarkKey(b.ID), data, 0)
		pipe.ZAdd(ctx, OwnerBookmarksKey(ownerID), redis.Z{Score: float64(b.CreatedAt.UnixMilli()), Member: b.ID})
		return nil
	})
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to save bookmark: %w", err)
	}

	s.publish(ctx, ownerID, domain.RealtimeEvent{Type: domain.EventInsert, Record: b})
	return b, nil
}

// GetBookmark retrieves one of the owner's bookmarks by ID
func (s *Store) GetBookmark(ctx context.Context, ownerID, id string) (domain.Bookmark, error) {
	return s.getBookmark(ctx, s.client, ownerID, id)
}

func (s *Store) getBookmark(ctx context.Context, c redis.Cmdable, ownerID, id string) (domain.Bookmark, error) {
	b, err := getJSON[domain.Bookmark](ctx, c, BookmarkKey(id))
	if err != nil {
		return domain.Bookmark{}, err
	}
	if b.OwnerID != ownerID {
		return domain.Bookmark{}, store.ErrNotFound
	}
	return b, nil
}

// ListBookmarks retrieves the owner's bookmarks, newest first
func (s *Store) ListBookmarks(ctx context.Context, ownerID string) ([]domain.Bookmark, error) {
	ids, err := s.client.ZRevRange(ctx, OwnerBookmarksKey(ownerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmark IDs: %w", err)
	}
	if len(ids) == 0 {
		return []domain.Bookmark{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = BookmarkKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmarks: %w", err)
	}

	bookmarks := make([]domain.Bookmark, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a document, skip it
			continue
		}
		var b domain.Bookmark
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			s.log.Warn("skipping unreadable bookmark", logger.String("bookmark_id", ids[i]), logger.Error(err))
			continue
		}
		if b.OwnerID != ownerID {
			continue
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, nil
}

// DeleteBookmark removes one of the owner's bookmarks
func (s *Store) DeleteBookmark(ctx context.Context, ownerID, id string) error {
	key := BookmarkKey(id)
	var deleted domain.Bookmark

	err := s.watchRetry(ctx, func(tx *redis.Tx) error {
		b, err := s.getBookmark(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, OwnerBookmarksKey(ownerID), id)
			return nil
		})
		deleted = b
		return err
	}, key)
	if err != nil {
		return err
	}

	s.publish(ctx, ownerID, domain.RealtimeEvent{Type: domain.EventDelete, Record: deleted})
	return nil
}

// MoveBookmark files a bookmark under collectionID, or unfiles it when nil
func (s *Store) MoveBookmark(ctx context.Context, ownerID, id string, collectionID *string) error {
	keys := []string{BookmarkKey(id)}
	if collectionID != nil {
		keys = append(keys, CollectionKey(*collectionID))
	}

	b, err := s.updateBookmark(ctx, ownerID, id, func(tx *redis.Tx, b *domain.Bookmark) error {
		if collectionID != nil {
			if _, err := s.getCollection(ctx, tx, ownerID, *collectionID); err != nil {
				return fmt.Errorf("collection %s: %w", *collectionID, err)
			}
			v := *collectionID
			b.CollectionID = &v
			return nil
		}
		b.CollectionID = nil
		return nil
	}, keys...)
	if err != nil {
		return err
	}

	s.publish(ctx, ownerID, domain.RealtimeEvent{
		Type:   domain.EventUpdate,
		Record: b,
		Fields: []string{domain.FieldCollectionID},
	})
	return nil
}

// UpdateSummary sets the summary of an existing bookmark. The write is
// guarded by WATCH so a bookmark deleted meanwhile is never recreated.
func (s *Store) UpdateSummary(ctx context.Context, ownerID, id, summary string) error {
	b, err := s.updateBookmark(ctx, ownerID, id, func(_ *redis.Tx, b *domain.Bookmark) error {
		v := summary
		b.Summary = &v
		return nil
	}, BookmarkKey(id))
	if err != nil {
		return err
	}

	s.publish(ctx, ownerID, domain.RealtimeEvent{
		Type:   domain.EventUpdate,
		Record: b,
		Fields: []string{domain.FieldSummary},
	})
	return nil
}

// updateBookmark applies mutate to a stored bookmark inside a WATCH
// transaction on keys, which must include the bookmark key.
func (s *Store) updateBookmark(ctx context.Context, ownerID, id string, mutate func(*redis.Tx, *domain.Bookmark) error, keys ...string) (domain.Bookmark, error) {
	key := BookmarkKey(id)
	var updated domain.Bookmark

	err := s.watchRetry(ctx, func(tx *redis.Tx) error {
		b, err := s.getBookmark(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		if err := mutate(tx, &b); err != nil {
			return err
		}
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("failed to marshal bookmark: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		updated = b
		return err
	}, keys...)
	return updated, err
}
