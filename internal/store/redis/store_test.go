package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/store"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), Protocol: 2})
	t.Cleanup(func() { _ = client.Close() })

	s := NewStore(client, logger.NewNop())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return s, mr
}

func strp(s string) *string { return &s }

func TestCreateAndListBookmarks(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateBookmark(ctx, "u1", domain.Bookmark{Title: " Go ", URL: "https://GO.dev:443/doc"})
	require.NoError(t, err)
	second, err := s.CreateBookmark(ctx, "u1", domain.Bookmark{URL: "https://example.com"})
	require.NoError(t, err)
	_, err = s.CreateBookmark(ctx, "u2", domain.Bookmark{Title: "other", URL: "https://other.example"})
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.False(t, domain.IsTempID(first.ID))
	assert.Equal(t, "u1", first.OwnerID)
	assert.Equal(t, "Go", first.Title)
	assert.Equal(t, "https://go.dev/doc", first.NormalizedURL)
	assert.Equal(t, "https://example.com", second.Title)

	list, err := s.ListBookmarks(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")
	assert.Equal(t, first.ID, list[1].ID)
}

func TestCreateBookmarkRejectsInvalidURL(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.CreateBookmark(context.Background(), "u1", domain.Bookmark{Title: "x", URL: "nope"})

	verr, ok := domain.IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindInvalidURL, verr.Kind)
}

func TestBookmarksAreScopedToOwner(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	b, err := s.CreateBookmark(ctx, "u1", domain.Bookmark{Title: "Go", URL: "https://go.dev"})
	require.NoError(t, err)

	_, err = s.GetBookmark(ctx, "u2", b.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteBookmark(ctx, "u2", b.ID), store.ErrNotFound)
	assert.ErrorIs(t, s.UpdateSummary(ctx, "u2", b.ID, "x"), store.ErrNotFound)

	got, err := s.GetBookmark(ctx, "u1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
}

func TestDeleteBookmark(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	b, err := s.CreateBookmark(ctx, "u1", domain.Bookmark{Title: "Go", URL: "https://go.dev"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteBookmark(ctx, "u1", b.ID))
	assert.False(t, mr.Exists(BookmarkKey(b.ID)))

	list, err := s.ListBookmarks(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, s.DeleteBookmark(ctx, "u1", b.ID), store.ErrNotFound)
}

func TestUpdateSummaryNeverRecreatesDeletedBookmark(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	b, err := s.CreateBookmark(ctx, "u1", domain.Bookmark{Title: "Go", URL: "https://go.dev"})
	require.NoError(t, err)
	require.NoError(t, s.UpdateSummary(ctx, "u1", b.ID, "Go is fun."))

	got, err := s.GetBookmark(ctx, "u1", b.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "Go is fun.", *got.Summary)

	require.NoError(t, s.DeleteBookmark(ctx, "u1", b.ID))
	assert.ErrorIs(t, s.UpdateSummary(ctx, "u1", b.ID, "late"), store.ErrNotFound)
	assert.False(t, mr.Exists(BookmarkKey(b.ID)))
}

func TestMoveBookmark(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	col, err := s.CreateCollection(ctx, "u1", domain.Collection{Name: "Reading"})
	require.NoError(t, err)
	b, err := s.CreateBookmark(ctx, "u1", domain.Bookmark{Title: "Go", URL: "https://go.dev"})
	require.NoError(t, err)

	require.NoError(t, s.MoveBookmark(ctx, "u1", b.ID, &col.ID))
	got, err := s.GetBookmark(ctx, "u1", b.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CollectionID)
	assert.Equal(t, col.ID, *got.CollectionID)

	require.NoError(t, s.MoveBookmark(ctx, "u1", b.ID, nil))
	got, err = s.GetBookmark(ctx, "u1", b.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CollectionID)

	assert.ErrorIs(t, s.MoveBookmark(ctx, "u1", b.ID, strp("missing")), store.ErrNotFound)
}

func TestCollections(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateCollection(ctx, "u1", domain.Collection{Name: "  "})
	_, isValidation := domain.IsValidation(err)
	assert.True(t, isValidation)

	a, err := s.CreateCollection(ctx, "u1", domain.Collection{Name: "A"})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultCollectionColor, a.Color)
	assert.Equal(t, domain.DefaultCollectionIcon, a.Icon)
	b, err := s.CreateCollection(ctx, "u1", domain.Collection{Name: "B", Color: "#10b981", Icon: "📚"})
	require.NoError(t, err)

	list, err := s.ListCollections(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID, "oldest first")
	assert.Equal(t, "#10b981", list[1].Color)

	others, err := s.ListCollections(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, others)
	assert.ErrorIs(t, s.DeleteCollection(ctx, "u2", b.ID), store.ErrNotFound)
}

func TestDeleteCollectionUnfilesMembers(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	col, err := s.CreateCollection(ctx, "u1", domain.Collection{Name: "Reading"})
	require.NoError(t, err)
	filed, err := s.CreateBookmark(ctx, "u1", domain.Bookmark{Title: "Go", URL: "https://go.dev", CollectionID: &col.ID})
	require.NoError(t, err)
	loose, err := s.CreateBookmark(ctx, "u1", domain.Bookmark{Title: "Rust", URL: "https://rust-lang.org"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteCollection(ctx, "u1", col.ID))

	cols, err := s.ListCollections(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, cols)

	for _, id := range []string{filed.ID, loose.ID} {
		got, err := s.GetBookmark(ctx, "u1", id)
		require.NoError(t, err, "bookmarks survive their collection")
		assert.Nil(t, got.CollectionID)
	}
}

func TestSubscribeReceivesChanges(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := s.Subscribe(ctx, "u1")
	require.NoError(t, err)

	b, err := s.CreateBookmark(ctx, "u1", domain.Bookmark{Title: "Go", URL: "https://go.dev"})
	require.NoError(t, err)
	_, err = s.CreateBookmark(ctx, "u2", domain.Bookmark{Title: "Other", URL: "https://other.example"})
	require.NoError(t, err)
	require.NoError(t, s.UpdateSummary(ctx, "u1", b.ID, "Summary."))
	require.NoError(t, s.DeleteBookmark(ctx, "u1", b.ID))

	next := func() domain.RealtimeEvent {
		t.Helper()
		select {
		case ev := <-events:
			return ev
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
			return domain.RealtimeEvent{}
		}
	}

	ev := next()
	assert.Equal(t, domain.EventInsert, ev.Type)
	assert.Equal(t, b.ID, ev.Record.ID)

	ev = next()
	assert.Equal(t, domain.EventUpdate, ev.Type)
	assert.Equal(t, []string{domain.FieldSummary}, ev.Fields)
	require.NotNil(t, ev.Record.Summary)

	ev = next()
	assert.Equal(t, domain.EventDelete, ev.Type)
	assert.Equal(t, b.ID, ev.Record.ID)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPing(t *testing.T) {
	s, _ := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}
