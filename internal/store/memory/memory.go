// Package memory is an in-process document store, used by the tests of
// every package that needs a DocumentStore.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/store"
)

// subscriberBuffer is how many events may wait for a slow subscriber
// before further events for it are dropped.
const subscriberBuffer = 64

// Store keeps every owner's documents in maps guarded by one lock.
type Store struct {
	mu          sync.RWMutex
	bookmarks   map[string]domain.Bookmark   // ID -> Bookmark
	collections map[string]domain.Collection // ID -> Collection

	subMu sync.Mutex
	subs  map[string]map[chan domain.RealtimeEvent]struct{} // owner -> subscribers

	now func() time.Time
}

var _ store.DocumentStore = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		bookmarks:   make(map[string]domain.Bookmark),
		collections: make(map[string]domain.Collection),
		subs:        make(map[string]map[chan domain.RealtimeEvent]struct{}),
		now:         time.Now,
	}
}

func (s *Store) Ping(context.Context) error { return nil }

// ─────────────────────────────────────────────────────────────────
// Bookmark methods
// ─────────────────────────────────────────────────────────────────

// CreateBookmark stores a new bookmark and assigns its server id
func (s *Store) CreateBookmark(_ context.Context, ownerID string, draft domain.Bookmark) (domain.Bookmark, error) {
	normalized, err := domain.NormalizeURL(draft.URL)
	if err != nil {
		return domain.Bookmark{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to generate bookmark id: %w", err)
	}

	s.mu.Lock()
	if draft.CollectionID != nil {
		if _, ok := s.ownedCollection(ownerID, *draft.CollectionID); !ok {
			s.mu.Unlock()
			return domain.Bookmark{}, fmt.Errorf("collection %s: %w", *draft.CollectionID, store.ErrNotFound)
		}
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
	s.bookmarks[b.ID] = b
	s.broadcast(ownerID, domain.RealtimeEvent{Type: domain.EventInsert, Record: b.Clone()})
	s.mu.Unlock()
	return b.Clone(), nil
}

// GetBookmark retrieves one of the owner's bookmarks by ID
func (s *Store) GetBookmark(_ context.Context, ownerID, id string) (domain.Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.ownedBookmark(ownerID, id)
	if !ok {
		return domain.Bookmark{}, store.ErrNotFound
	}
	return b.Clone(), nil
}

// ListBookmarks returns the owner's bookmarks, newest first
func (s *Store) ListBookmarks(_ context.Context, ownerID string) ([]domain.Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bookmarks := make([]domain.Bookmark, 0)
	for _, b := range s.bookmarks {
		if b.OwnerID == ownerID {
			bookmarks = append(bookmarks, b.Clone())
		}
	}
	sort.Slice(bookmarks, func(i, j int) bool {
		if !bookmarks[i].CreatedAt.Equal(bookmarks[j].CreatedAt) {
			return bookmarks[i].CreatedAt.After(bookmarks[j].CreatedAt)
		}
		return bookmarks[i].ID > bookmarks[j].ID
	})
	return bookmarks, nil
}

// DeleteBookmark removes one of the owner's bookmarks
func (s *Store) DeleteBookmark(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	b, ok := s.ownedBookmark(ownerID, id)
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(s.bookmarks, id)
	s.broadcast(ownerID, domain.RealtimeEvent{Type: domain.EventDelete, Record: b.Clone()})
	s.mu.Unlock()
	return nil
}

// MoveBookmark files a bookmark under collectionID, or unfiles it when nil
func (s *Store) MoveBookmark(_ context.Context, ownerID, id string, collectionID *string) error {
	s.mu.Lock()
	b, ok := s.ownedBookmark(ownerID, id)
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	if collectionID != nil {
		if _, ok := s.ownedCollection(ownerID, *collectionID); !ok {
			s.mu.Unlock()
			return fmt.Errorf("collection %s: %w", *collectionID, store.ErrNotFound)
		}
		v := *collectionID
		b.CollectionID = &v
	} else {
		b.CollectionID = nil
	}
	s.bookmarks[id] = b
	s.broadcast(ownerID, domain.RealtimeEvent{
		Type:   domain.EventUpdate,
		Record: b.Clone(),
		Fields: []string{domain.FieldCollectionID},
	})
	s.mu.Unlock()
	return nil
}

// UpdateSummary sets the summary of an existing bookmark
func (s *Store) UpdateSummary(_ context.Context, ownerID, id, summary string) error {
	s.mu.Lock()
	b, ok := s.ownedBookmark(ownerID, id)
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	v := summary
	b.Summary = &v
	s.bookmarks[id] = b
	s.broadcast(ownerID, domain.RealtimeEvent{
		Type:   domain.EventUpdate,
		Record: b.Clone(),
		Fields: []string{domain.FieldSummary},
	})
	s.mu.Unlock()
	return nil
}

// ─────────────────────────────────────────────────────────────────
// Collection methods
// ─────────────────────────────────────────────────────────────────

// CreateCollection stores a new collection and assigns its server id
func (s *Store) CreateCollection(_ context.Context, ownerID string, c domain.Collection) (domain.Collection, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return domain.Collection{}, &domain.ValidationError{Kind: domain.KindMissingField, Field: "name", Message: "Collection name is required"}
	}
	id, err := uuid.NewV7()
	if err != nil {
		return domain.Collection{}, fmt.Errorf("failed to generate collection id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c = c.WithDefaults()
	c.ID = id.String()
	c.OwnerID = ownerID
	c.CreatedAt = s.now().UTC()
	s.collections[c.ID] = c
	return c, nil
}

// ListCollections returns the owner's collections, oldest first
func (s *Store) ListCollections(_ context.Context, ownerID string) ([]domain.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	collections := make([]domain.Collection, 0)
	for _, c := range s.collections {
		if c.OwnerID == ownerID {
			collections = append(collections, c)
		}
	}
	sort.Slice(collections, func(i, j int) bool {
		if !collections[i].CreatedAt.Equal(collections[j].CreatedAt) {
			return collections[i].CreatedAt.Before(collections[j].CreatedAt)
		}
		return collections[i].ID < collections[j].ID
	})
	return collections, nil
}

// DeleteCollection removes a collection and unfiles its bookmarks
func (s *Store) DeleteCollection(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	if _, ok := s.ownedCollection(ownerID, id); !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(s.collections, id)

	var unfiled []domain.Bookmark
	for bid, b := range s.bookmarks {
		if b.OwnerID != ownerID || b.CollectionID == nil || *b.CollectionID != id {
			continue
		}
		b.CollectionID = nil
		s.bookmarks[bid] = b
		unfiled = append(unfiled, b.Clone())
	}
	for _, b := range unfiled {
		s.broadcast(ownerID, domain.RealtimeEvent{
			Type:   domain.EventUpdate,
			Record: b,
			Fields: []string{domain.FieldCollectionID},
		})
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) ownedBookmark(ownerID, id string) (domain.Bookmark, bool) {
	b, ok := s.bookmarks[id]
	if !ok || b.OwnerID != ownerID {
		return domain.Bookmark{}, false
	}
	return b, true
}

func (s *Store) ownedCollection(ownerID, id string) (domain.Collection, bool) {
	c, ok := s.collections[id]
	if !ok || c.OwnerID != ownerID {
		return domain.Collection{}, false
	}
	return c, true
}

// ─────────────────────────────────────────────────────────────────
// Realtime
// ─────────────────────────────────────────────────────────────────

// Subscribe streams the owner's changes until ctx ends.
func (s *Store) Subscribe(ctx context.Context, ownerID string) (<-chan domain.RealtimeEvent, error) {
	ch := make(chan domain.RealtimeEvent, subscriberBuffer)

	s.subMu.Lock()
	if s.subs[ownerID] == nil {
		s.subs[ownerID] = make(map[chan domain.RealtimeEvent]struct{})
	}
	s.subs[ownerID][ch] = struct{}{}
	s.subMu.Unlock()

	go func() {
		<-ctx.Done()
		s.subMu.Lock()
		delete(s.subs[ownerID], ch)
		if len(s.subs[ownerID]) == 0 {
			delete(s.subs, ownerID)
		}
		close(ch)
		s.subMu.Unlock()
	}()
	return ch, nil
}

// broadcast delivers ev to the owner's subscribers. Callers hold mu so
// events go out in write order. A full subscriber misses the event.
func (s *Store) broadcast(ownerID string, ev domain.RealtimeEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for ch := range s.subs[ownerID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
