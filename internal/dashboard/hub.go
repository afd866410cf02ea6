package dashboard

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/stash/internal/auth"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/store"
	"github.com/MrSnakeDoc/stash/internal/summarize"
)

type HubConfig struct {
	Docs  store.DocumentStore
	Auth  auth.Provider
	Cache *summarize.Cache
	Log   logger.Logger

	IdleTTL       time.Duration
	SweepInterval time.Duration
	OpenTimeout   time.Duration // bounds loading a library, whoever asked first
}

type hubEntry struct {
	sess     *Session
	lastSeen time.Time
}

// Hub keeps one live Session per owner for the HTTP API, so that every
// request of a user goes through the same optimistic view and feed.
// Sessions unused for IdleTTL are closed.
type Hub struct {
	cfg HubConfig

	mu        sync.Mutex
	sessions  map[string]*hubEntry
	lastSweep time.Time
	closed    bool

	opening singleflight.Group
}

func NewHub(cfg HubConfig) *Hub {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 10 * time.Second
	}
	return &Hub{
		cfg:       cfg,
		sessions:  make(map[string]*hubEntry),
		lastSweep: time.Now(),
	}
}

// Acquire returns the owner's session, opening it on first use. sess must
// come from the auth provider.
func (h *Hub) Acquire(ctx context.Context, sess auth.Session) (*Session, error) {
	now := time.Now()
	h.sweepMaybe(now)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, context.Canceled
	}
	if e, ok := h.sessions[sess.UserID]; ok {
		e.lastSeen = now
		h.mu.Unlock()
		return e.sess, nil
	}
	h.mu.Unlock()

	// the open is shared by every caller waiting on it, so it must not end
	// with the first caller's request
	ch := h.opening.DoChan(sess.UserID, func() (interface{}, error) {
		octx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.cfg.OpenTimeout)
		defer cancel()

		s, err := open(octx, sess, Config{
			Token: sess.Token,
			Docs:  h.cfg.Docs,
			Auth:  h.cfg.Auth,
			Cache: h.cfg.Cache,
			Log:   h.cfg.Log,
		})
		if err != nil {
			return nil, err
		}

		h.mu.Lock()
		defer h.mu.Unlock()
		if h.closed {
			s.Close()
			return nil, context.Canceled
		}
		h.sessions[sess.UserID] = &hubEntry{sess: s, lastSeen: time.Now()}
		return s, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Session), nil
	}
}

// Release closes the owner's session if one is open.
func (h *Hub) Release(ownerID string) {
	h.mu.Lock()
	e, ok := h.sessions[ownerID]
	delete(h.sessions, ownerID)
	h.mu.Unlock()
	if ok {
		e.sess.Close()
	}
}

// SignOut ends sess with the auth provider and closes the owner's
// session.
func (h *Hub) SignOut(ctx context.Context, sess auth.Session) error {
	h.Release(sess.UserID)
	return h.cfg.Auth.SignOut(ctx, sess.Token)
}

// Len is the number of open sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close closes every session. Acquire fails afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	entries := h.sessions
	h.sessions = make(map[string]*hubEntry)
	h.mu.Unlock()

	for _, e := range entries {
		e.sess.Close()
	}
}

func (h *Hub) sweepMaybe(now time.Time) {
	h.mu.Lock()
	if now.Sub(h.lastSweep) < h.cfg.SweepInterval {
		h.mu.Unlock()
		return
	}
	h.lastSweep = now
	var idle []*hubEntry
	for owner, e := range h.sessions {
		if now.Sub(e.lastSeen) > h.cfg.IdleTTL {
			idle = append(idle, e)
			delete(h.sessions, owner)
		}
	}
	h.mu.Unlock()

	for _, e := range idle {
		h.cfg.Log.Debug("closing idle dashboard session", logger.String("owner_id", e.sess.OwnerID()))
		e.sess.Close()
	}
}
