package summarize

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/store"
)

// SummaryStore is the slice of the document store the cache needs.
type SummaryStore interface {
	GetBookmark(ctx context.Context, ownerID, id string) (domain.Bookmark, error)
	UpdateSummary(ctx context.Context, ownerID, id, summary string) error
}

// Generator produces a summary. *Chain implements it.
type Generator interface {
	Summarize(ctx context.Context, in Input) Result
}

// Entry is a cached summary.
type Entry struct {
	BookmarkID string
	Text       string
	Origin     Origin
}

// Query asks for the summary of one bookmark.
type Query struct {
	OwnerID    string
	BookmarkID string // optional; without it nothing is cached
	Input      Input
}

type entry struct {
	text      string
	persisted bool
}

// flight is one running generation. Its key names the singleflight call
// and stays fixed when the bookmark is rekeyed.
type flight struct {
	key string
}

// Cache serves summaries per bookmark: memory first, then the summary
// persisted on the bookmark, then the generator. Only successful
// generations are kept, and they are written through to the document
// store. Concurrent requests for the same bookmark share one generation.
// Entries are never invalidated.
type Cache struct {
	store SummaryStore
	gen   Generator
	log   logger.Logger

	mu        sync.Mutex
	entries   map[string]entry    // owner/id -> summary
	aliases   map[string]string   // owner/tempID -> owner/serverID
	forgotten map[string]struct{} // deleted bookmarks
	flights   map[string]*flight  // owner/id -> running generation

	group singleflight.Group
}

func NewCache(st SummaryStore, gen Generator, log logger.Logger) *Cache {
	return &Cache{
		store:     st,
		gen:       gen,
		log:       log,
		entries:   make(map[string]entry),
		aliases:   make(map[string]string),
		forgotten: make(map[string]struct{}),
		flights:   make(map[string]*flight),
	}
}

func cacheKey(ownerID, id string) string { return ownerID + "/" + id }

// Summarize returns the summary for q. Cached answers carry Cached=true
// and cost no network call. If ctx ends first the caller gets a timeout
// result while the shared generation keeps going for the next caller.
func (c *Cache) Summarize(ctx context.Context, q Query) Result {
	start := time.Now()

	if q.BookmarkID == "" {
		return c.gen.Summarize(ctx, q.Input)
	}

	c.mu.Lock()
	key := c.resolveLocked(cacheKey(q.OwnerID, q.BookmarkID))
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return cachedResult(e.text, start)
	}
	f, running := c.flights[key]
	if !running {
		f = &flight{key: key}
		c.flights[key] = f
	}
	c.mu.Unlock()

	ch := c.group.DoChan(f.key, func() (interface{}, error) {
		defer c.land(f)
		return c.load(context.WithoutCancel(ctx), f.key, q), nil
	})

	select {
	case <-ctx.Done():
		return Result{Status: StatusTimeout, Text: MessageTimeout, Elapsed: time.Since(start)}
	case r := <-ch:
		res := r.Val.(Result)
		if res.Cached {
			res.Elapsed = time.Since(start)
		}
		return res
	}
}

// load runs once per flight key at a time. key may have been rekeyed
// since the flight started, so it is resolved again before every use.
func (c *Cache) load(ctx context.Context, key string, q Query) Result {
	start := time.Now()

	key = c.resolve(key)
	if e, ok := c.lookup(key); ok {
		return cachedResult(e.text, start)
	}

	_, id := splitKey(key)
	missing := false
	if !domain.IsTempID(id) && !c.isForgotten(key) {
		b, err := c.store.GetBookmark(ctx, q.OwnerID, id)
		switch {
		case err == nil && b.Summary != nil && strings.TrimSpace(*b.Summary) != "":
			c.remember(key, *b.Summary, true)
			return cachedResult(*b.Summary, start)
		case errors.Is(err, store.ErrNotFound):
			missing = true
		case err != nil:
			c.log.Warn("failed to read persisted summary", logger.String("bookmark_id", id), logger.Error(err))
		}
	}

	res := c.gen.Summarize(ctx, q.Input)
	if !res.OK() {
		return res
	}

	// the bookmark may have been confirmed or deleted meanwhile. A temporary
	// entry is written under the same lock as the alias check, so Rekey
	// either sees it or has already redirected key.
	c.mu.Lock()
	key = c.resolveLocked(key)
	if _, gone := c.forgotten[key]; gone {
		c.mu.Unlock()
		c.log.Debug("discarding summary for deleted bookmark", logger.String("bookmark_id", id))
		return res
	}
	ownerID, targetID := splitKey(key)
	if domain.IsTempID(targetID) {
		// held in memory until Rekey persists it
		c.entries[key] = entry{text: res.Text}
		c.mu.Unlock()
		return res
	}
	c.mu.Unlock()

	if missing && targetID == id {
		// not a stored bookmark of this owner, nothing to attach to
		return res
	}
	if err := c.store.UpdateSummary(ctx, ownerID, targetID, res.Text); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.log.Debug("bookmark gone before summary was saved", logger.String("bookmark_id", targetID))
		} else {
			c.log.Warn("failed to persist summary", logger.String("bookmark_id", targetID), logger.Error(err))
		}
		return res
	}
	c.remember(key, res.Text, true)
	return res
}

// land unregisters f once its generation is over.
func (c *Cache) land(f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range c.flights {
		if v == f {
			delete(c.flights, k)
		}
	}
}

// Lookup returns the in-memory entry for a bookmark.
func (c *Cache) Lookup(ownerID, id string) (Entry, bool) {
	key := c.resolve(cacheKey(ownerID, id))
	e, ok := c.lookup(key)
	if !ok {
		return Entry{}, false
	}
	_, bid := splitKey(key)
	return Entry{BookmarkID: bid, Text: e.text, Origin: OriginCache}, true
}

// Rekey moves an entry from a confirmed temporary id to its server id and
// persists it if it was generated before the confirmation.
func (c *Cache) Rekey(ctx context.Context, ownerID, tempID, serverID string) error {
	from, to := cacheKey(ownerID, tempID), cacheKey(ownerID, serverID)

	c.mu.Lock()
	c.aliases[from] = to
	if f, ok := c.flights[from]; ok {
		// requests for the server id join the generation already running
		if _, exists := c.flights[to]; !exists {
			c.flights[to] = f
		}
		delete(c.flights, from)
	}
	e, ok := c.entries[from]
	delete(c.entries, from)
	if ok {
		if _, exists := c.entries[to]; !exists {
			c.entries[to] = e
		}
	}
	c.mu.Unlock()

	if !ok || e.persisted {
		return nil
	}
	if err := c.store.UpdateSummary(ctx, ownerID, serverID, e.text); err != nil {
		return err
	}
	c.remember(to, e.text, true)
	return nil
}

// Forget drops a deleted bookmark. A generation still running for it will
// not be cached or persisted.
func (c *Cache) Forget(ownerID, id string) {
	key := c.resolve(cacheKey(ownerID, id))
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.forgotten[key] = struct{}{}
}

// Restore undoes Forget after a delete was rejected.
func (c *Cache) Restore(ownerID, id string) {
	key := c.resolve(cacheKey(ownerID, id))
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.forgotten, key)
}

func (c *Cache) lookup(key string) (entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *Cache) remember(key, text string, persisted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, gone := c.forgotten[key]; gone {
		return
	}
	c.entries[key] = entry{text: text, persisted: persisted}
}

func (c *Cache) isForgotten(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.forgotten[key]
	return ok
}

func (c *Cache) resolve(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolveLocked(key)
}

func (c *Cache) resolveLocked(key string) string {
	if to, ok := c.aliases[key]; ok {
		return to
	}
	return key
}

func splitKey(key string) (ownerID, id string) {
	i := strings.LastIndexByte(key, '/')
	if i < 0 {
		return "", key
	}
	return key[:i], key[i+1:]
}

func cachedResult(text string, start time.Time) Result {
	return Result{
		Status:  StatusOK,
		Text:    text,
		Origin:  OriginCache,
		Cached:  true,
		Elapsed: time.Since(start),
	}
}
