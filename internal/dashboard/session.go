// Package dashboard ties the optimistic view, the realtime feed and the
// summary cache to one owner's document store.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/stash/internal/auth"
	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/optimistic"
	"github.com/MrSnakeDoc/stash/internal/store"
	"github.com/MrSnakeDoc/stash/internal/summarize"
)

// Config wires a Session.
type Config struct {
	Token string
	Docs  store.DocumentStore
	Auth  auth.Provider
	Cache *summarize.Cache
	Log   logger.Logger
}

// Session is one signed-in owner's live library. Local actions apply to the
// view immediately, are persisted, then confirmed or rolled back. Changes
// made elsewhere arrive through the document store's feed.
type Session struct {
	auth   auth.Session
	docs   store.DocumentStore
	prov   auth.Provider
	cache  *summarize.Cache
	log    logger.Logger
	store  *optimistic.Store
	dupes  *optimistic.DuplicateDetector
	drag   *optimistic.Reassigner
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
}

// Open checks the session token, loads the owner's library and starts
// following its changes. Without a live session it returns
// auth.ErrNoSession and the caller sends the user back to the entry page.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	sess, err := cfg.Auth.CurrentSession(ctx, cfg.Token)
	if err != nil {
		return nil, err
	}
	return open(ctx, sess, cfg)
}

func open(ctx context.Context, sess auth.Session, cfg Config) (*Session, error) {
	owner := sess.UserID
	log := cfg.Log.Named("dashboard").With(logger.String("owner_id", owner))

	// subscribe before listing so nothing written in between is missed
	liveCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	feed, err := cfg.Docs.Subscribe(liveCtx, owner)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe to changes: %w", err)
	}

	bookmarks, err := cfg.Docs.ListBookmarks(ctx, owner)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	collections, err := cfg.Docs.ListCollections(ctx, owner)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("list collections: %w", err)
	}

	st := optimistic.NewStore()
	st.Reset(bookmarks, collections)

	s := &Session{
		auth:   sess,
		docs:   cfg.Docs,
		prov:   cfg.Auth,
		cache:  cfg.Cache,
		log:    log,
		store:  st,
		dupes:  optimistic.NewDuplicateDetector(st),
		drag:   optimistic.NewReassigner(st, store.Owned{Store: cfg.Docs, OwnerID: owner}, log),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	rec := optimistic.NewReconciler(st, owner, log, func(id string) {
		s.cache.Forget(owner, id)
	})
	go func() {
		defer close(s.done)
		if err := rec.Run(liveCtx, feed); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("realtime reconciler stopped", logger.Error(err))
		}
	}()

	log.Info("dashboard session opened",
		logger.Int("bookmarks", len(bookmarks)),
		logger.Int("collections", len(collections)))
	return s, nil
}

// OwnerID is the signed-in user.
func (s *Session) OwnerID() string { return s.auth.UserID }

// View returns the current library snapshot.
func (s *Session) View() optimistic.View { return s.store.View() }

// Subscribe registers fn for every view change.
func (s *Session) Subscribe(fn func(optimistic.View)) (cancel func()) {
	return s.store.Subscribe(fn)
}

// Bookmark returns a visible bookmark by server or temporary id.
func (s *Session) Bookmark(id string) (domain.Bookmark, bool) { return s.store.Bookmark(id) }

// Drag returns the drag-and-drop reassigner of this session.
func (s *Session) Drag() *optimistic.Reassigner { return s.drag }

// CheckDuplicate reports an already saved bookmark with the same
// normalized URL. It never blocks saving.
func (s *Session) CheckDuplicate(rawURL string) (domain.Bookmark, bool) {
	return s.dupes.Check(rawURL)
}

// Filter applies f to the visible bookmarks.
func (s *Session) Filter(f domain.Filter) []domain.Bookmark {
	return f.Apply(s.store.Bookmarks())
}

// Search ranks the visible bookmarks for the command palette.
func (s *Session) Search(query string) []domain.Bookmark {
	return domain.PaletteResults(query, s.store.Bookmarks())
}

// AddBookmark shows the bookmark at once under a temporary id, stores it,
// then swaps in the stored copy. On failure the temporary entry goes away
// and the error is returned.
func (s *Session) AddBookmark(ctx context.Context, title, rawURL string, collectionID *string) (domain.Bookmark, error) {
	normalized, err := domain.NormalizeURL(rawURL)
	if err != nil {
		return domain.Bookmark{}, err
	}
	if collectionID != nil && strings.TrimSpace(*collectionID) == "" {
		collectionID = nil
	}

	draft := domain.Bookmark{
		OwnerID:       s.OwnerID(),
		Title:         strings.TrimSpace(title),
		URL:           strings.TrimSpace(rawURL),
		NormalizedURL: normalized,
		CollectionID:  collectionID,
	}
	if draft.Title == "" {
		draft.Title = draft.URL
	}

	tempID, _, err := s.store.Create(draft)
	if err != nil {
		return domain.Bookmark{}, err
	}

	saved, err := s.docs.CreateBookmark(ctx, s.OwnerID(), draft)
	if err != nil {
		if _, rerr := s.store.Reject(tempID); rerr != nil {
			s.log.Error("failed to roll back create", logger.String("temp_id", tempID), logger.Error(rerr))
		}
		return domain.Bookmark{}, fmt.Errorf("save bookmark: %w", err)
	}

	if _, err := s.store.Confirm(tempID, &saved); err != nil {
		s.log.Warn("create confirmed for unknown mutation", logger.String("temp_id", tempID), logger.Error(err))
	}
	if err := s.cache.Rekey(ctx, s.OwnerID(), tempID, saved.ID); err != nil {
		s.log.Warn("failed to carry summary over to stored bookmark",
			logger.String("bookmark_id", saved.ID), logger.Error(err))
	}
	return saved, nil
}

// DeleteBookmark removes the bookmark from the view at once. A summary
// still being generated for it is discarded. If the store refuses, the
// bookmark comes back where it was.
func (s *Session) DeleteBookmark(ctx context.Context, id string) error {
	localID, _, err := s.store.Delete(id)
	if err != nil {
		return err
	}
	s.cache.Forget(s.OwnerID(), localID)

	err = s.docs.DeleteBookmark(ctx, s.OwnerID(), localID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		if _, rerr := s.store.Reject(localID); rerr != nil {
			s.log.Error("failed to roll back delete", logger.String("bookmark_id", localID), logger.Error(rerr))
		}
		s.cache.Restore(s.OwnerID(), localID)
		return fmt.Errorf("delete bookmark: %w", err)
	}

	if _, err := s.store.Confirm(localID, nil); err != nil {
		s.log.Debug("delete already settled", logger.String("bookmark_id", localID))
	}
	return nil
}

// MoveBookmark files the bookmark under collectionID, nil to unfile.
func (s *Session) MoveBookmark(ctx context.Context, id string, collectionID *string) error {
	if collectionID != nil && strings.TrimSpace(*collectionID) == "" {
		collectionID = nil
	}
	localID, _, err := s.store.Move(id, collectionID)
	if err != nil {
		return err
	}

	if err := s.docs.MoveBookmark(ctx, s.OwnerID(), localID, collectionID); err != nil {
		if _, rerr := s.store.Reject(localID); rerr != nil {
			s.log.Error("failed to roll back move", logger.String("bookmark_id", localID), logger.Error(rerr))
		}
		return fmt.Errorf("move bookmark: %w", err)
	}

	if _, err := s.store.Confirm(localID, nil); err != nil {
		s.log.Debug("move already settled", logger.String("bookmark_id", localID))
	}
	return nil
}

// Summarize returns the bookmark's summary, generating it on first use.
// A bookmark that already carries one is answered without any call.
func (s *Session) Summarize(ctx context.Context, id string) (summarize.Result, error) {
	b, ok := s.store.Bookmark(id)
	if !ok {
		return summarize.Result{}, optimistic.ErrUnknownBookmark
	}
	if b.Summary != nil && strings.TrimSpace(*b.Summary) != "" {
		return summarize.Result{
			Status: summarize.StatusOK,
			Text:   *b.Summary,
			Origin: summarize.OriginCache,
			Cached: true,
		}, nil
	}

	res := s.cache.Summarize(ctx, summarize.Query{
		OwnerID:    s.OwnerID(),
		BookmarkID: b.ID,
		Input:      summarize.Input{URL: b.URL, Title: b.Title},
	})
	if res.OK() {
		s.store.SetSummary(b.ID, res.Text)
	}
	return res, nil
}

// CreateCollection stores a collection and adds it to the view.
func (s *Session) CreateCollection(ctx context.Context, c domain.Collection) (domain.Collection, error) {
	saved, err := s.docs.CreateCollection(ctx, s.OwnerID(), c)
	if err != nil {
		return domain.Collection{}, err
	}
	s.store.AddCollection(saved)
	return saved, nil
}

// DeleteCollection deletes a collection. Its bookmarks stay, unfiled.
func (s *Session) DeleteCollection(ctx context.Context, id string) error {
	if err := s.docs.DeleteCollection(ctx, s.OwnerID(), id); err != nil {
		return err
	}
	s.store.RemoveCollection(id)
	return nil
}

// SignOut ends the auth session and closes this one.
func (s *Session) SignOut(ctx context.Context) error {
	err := s.prov.SignOut(ctx, s.auth.Token)
	s.Close()
	return err
}

// Close stops following changes and waits for the reconciler to exit.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		select {
		case <-s.done:
		case <-time.After(5 * time.Second):
			s.log.Warn("reconciler did not stop in time")
		}
	})
}
