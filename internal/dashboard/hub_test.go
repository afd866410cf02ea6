package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/stash/internal/auth"
	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/store/memory"
	"github.com/MrSnakeDoc/stash/internal/summarize"
)

func newTestHub(idle time.Duration) *Hub {
	docs := memory.New()
	return NewHub(HubConfig{
		Docs:          docs,
		Auth:          newFakeAuth("tok", "u1"),
		Cache:         summarize.NewCache(docs, &fakeGenerator{text: "s"}, logger.NewNop()),
		Log:           logger.NewNop(),
		IdleTTL:       idle,
		SweepInterval: time.Millisecond,
	})
}

func TestHubSharesSessionPerOwner(t *testing.T) {
	h := newTestHub(time.Hour)
	defer h.Close()

	var wg sync.WaitGroup
	got := make([]*Session, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := h.Acquire(context.Background(), auth.Session{Token: "tok", UserID: "u1"})
			if err == nil {
				got[i] = s
			}
		}(i)
	}
	wg.Wait()

	require.NotNil(t, got[0])
	for _, s := range got {
		assert.Same(t, got[0], s)
	}
	assert.Equal(t, 1, h.Len())

	other, err := h.Acquire(context.Background(), auth.Session{Token: "tok2", UserID: "u2"})
	require.NoError(t, err)
	assert.NotSame(t, got[0], other)
	assert.Equal(t, 2, h.Len())
}

func TestHubReleaseAndClose(t *testing.T) {
	h := newTestHub(time.Hour)

	s1, err := h.Acquire(context.Background(), auth.Session{Token: "tok", UserID: "u1"})
	require.NoError(t, err)
	h.Release("u1")
	assert.Equal(t, 0, h.Len())

	s2, err := h.Acquire(context.Background(), auth.Session{Token: "tok", UserID: "u1"})
	require.NoError(t, err)
	assert.NotSame(t, s1, s2)

	h.Close()
	_, err = h.Acquire(context.Background(), auth.Session{Token: "tok", UserID: "u1"})
	assert.Error(t, err)
}

func TestHubClosesIdleSessions(t *testing.T) {
	h := newTestHub(10 * time.Millisecond)
	defer h.Close()

	_, err := h.Acquire(context.Background(), auth.Session{Token: "tok", UserID: "u1"})
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	_, err = h.Acquire(context.Background(), auth.Session{Token: "tok2", UserID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, 1, h.Len())
}

func TestHubSignOut(t *testing.T) {
	h := newTestHub(time.Hour)
	defer h.Close()
	ctx := context.Background()

	sess := auth.Session{Token: "tok", UserID: "u1"}
	_, err := h.Acquire(ctx, sess)
	require.NoError(t, err)

	require.NoError(t, h.SignOut(ctx, sess))
	assert.Equal(t, 0, h.Len())
	_, err = h.cfg.Auth.CurrentSession(ctx, "tok")
	assert.ErrorIs(t, err, auth.ErrNoSession)
}

// slowDocs holds ListBookmarks until gate closes.
type slowDocs struct {
	*memory.Store
	entered chan struct{}
	gate    chan struct{}
}

func (d *slowDocs) ListBookmarks(ctx context.Context, owner string) ([]domain.Bookmark, error) {
	d.entered <- struct{}{}
	select {
	case <-d.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return d.Store.ListBookmarks(ctx, owner)
}

func TestHubOpenOutlivesFirstCaller(t *testing.T) {
	docs := &slowDocs{Store: memory.New(), entered: make(chan struct{}, 1), gate: make(chan struct{})}
	h := NewHub(HubConfig{
		Docs:  docs,
		Auth:  newFakeAuth("tok", "u1"),
		Cache: summarize.NewCache(docs, &fakeGenerator{text: "s"}, logger.NewNop()),
		Log:   logger.NewNop(),
	})
	defer h.Close()
	sess := auth.Session{Token: "tok", UserID: "u1"}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := h.Acquire(ctx, sess)
		first <- err
	}()
	<-docs.entered

	second := make(chan error, 1)
	var got *Session
	go func() {
		s, err := h.Acquire(context.Background(), sess)
		got = s
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(docs.gate)
	require.NoError(t, <-second)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.OwnerID())
	assert.Equal(t, 1, h.Len())
}
