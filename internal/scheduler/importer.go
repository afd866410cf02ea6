package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/sources/homepage"
	"github.com/MrSnakeDoc/stash/internal/store"
)

// ImportReport summarizes one import run.
type ImportReport struct {
	Created            int
	Skipped            int
	Failed             int
	CollectionsCreated int
}

// Importer copies a Homepage bookmarks.yaml into one owner's library,
// periodically and on demand. Each category becomes a collection of the
// same name. Bookmarks whose normalized URL is already saved are skipped,
// so running it again only adds what is new.
type Importer struct {
	loader        *homepage.Loader
	docs          store.DocumentStore
	owner         string
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}
	mu            sync.Mutex // one run at a time
}

// NewImporter creates an importer. interval <= 0 disables periodic runs.
func NewImporter(
	bookmarkFile string,
	docs store.DocumentStore,
	owner string,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *Importer {
	return &Importer{
		loader:        homepage.NewLoader(bookmarkFile),
		docs:          docs,
		owner:         owner,
		logger:        log.Named("importer").With(logger.String("owner_id", owner)),
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start imports once, then keeps running in the background until Stop or
// ctx is done. A failed first import is returned but does not prevent the
// later runs.
func (im *Importer) Start(ctx context.Context) error {
	_, firstErr := im.Import(ctx)

	var tick <-chan time.Time
	if im.interval > 0 {
		ticker := time.NewTicker(im.interval)
		tick = ticker.C
		go func() {
			<-im.stopCh
			ticker.Stop()
		}()
	}

	go func() {
		for {
			select {
			case <-tick:
				if _, err := im.Import(ctx); err != nil {
					im.logger.Error("failed to import bookmarks", logger.Error(err))
				}
			case <-im.manualTrigger:
				im.logger.Info("manual bookmarks import triggered")
				if _, err := im.Import(ctx); err != nil {
					im.logger.Error("failed to import bookmarks", logger.Error(err))
				}
			case <-im.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	if firstErr != nil {
		return fmt.Errorf("initial bookmark import failed: %w", firstErr)
	}
	return nil
}

// Stop stops the background runs. It is safe to call more than once.
func (im *Importer) Stop() {
	im.stopOnce.Do(func() { close(im.stopCh) })
}

// Import runs one import.
func (im *Importer) Import(ctx context.Context) (ImportReport, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	var report ImportReport
	im.logger.Info("importing bookmarks from homepage", logger.String("file", im.loader.Path()))

	config, err := im.loader.Load()
	if err != nil {
		return report, fmt.Errorf("failed to load bookmarks: %w", err)
	}
	groups, err := homepage.MapBookmarks(config)
	if err != nil {
		return report, fmt.Errorf("failed to map bookmarks: %w", err)
	}

	existing, err := im.docs.ListBookmarks(ctx, im.owner)
	if err != nil {
		return report, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	seen := make(map[string]struct{}, len(existing))
	for _, b := range existing {
		if n := b.Normalized(); n != "" {
			seen[n] = struct{}{}
		}
	}

	collections, err := im.docs.ListCollections(ctx, im.owner)
	if err != nil {
		return report, fmt.Errorf("failed to list collections: %w", err)
	}
	byName := make(map[string]string, len(collections))
	for _, c := range collections {
		byName[strings.ToLower(c.Name)] = c.ID
	}

	for _, g := range groups {
		var collectionID *string
		for _, draft := range g.Bookmarks {
			normalized, err := domain.NormalizeURL(draft.URL)
			if err != nil {
				im.logger.Warn("skipping bookmark with invalid url",
					logger.String("title", draft.Title),
					logger.String("url", draft.URL))
				report.Failed++
				continue
			}
			if _, dup := seen[normalized]; dup {
				report.Skipped++
				continue
			}

			if collectionID == nil && g.Name != "" {
				id, created, err := im.collection(ctx, byName, g.Name)
				if err != nil {
					return report, err
				}
				if created {
					report.CollectionsCreated++
				}
				collectionID = &id
			}
			draft.CollectionID = collectionID

			if _, err := im.docs.CreateBookmark(ctx, im.owner, draft); err != nil {
				im.logger.Warn("failed to import bookmark",
					logger.String("url", draft.URL),
					logger.Error(err))
				report.Failed++
				continue
			}
			seen[normalized] = struct{}{}
			report.Created++
		}
	}

	im.logger.Info("bookmarks imported",
		logger.Int("created", report.Created),
		logger.Int("skipped", report.Skipped),
		logger.Int("failed", report.Failed),
		logger.Int("collections_created", report.CollectionsCreated))
	return report, nil
}

// collection returns the id of the owner's collection called name,
// creating it when missing.
func (im *Importer) collection(ctx context.Context, byName map[string]string, name string) (string, bool, error) {
	if id, ok := byName[strings.ToLower(name)]; ok {
		return id, false, nil
	}
	c, err := im.docs.CreateCollection(ctx, im.owner, domain.Collection{Name: name})
	if err != nil {
		return "", false, fmt.Errorf("failed to create collection %q: %w", name, err)
	}
	byName[strings.ToLower(name)] = c.ID
	return c.ID, true, nil
}
