package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/store/memory"
)

const bookmarksYAML = `---
- Developer:
    - Github:
        - abbr: GH
          href: https://github.com/
    - Go:
        - href: https://GO.dev
- Reading:
    - Hacker News:
        - href: https://news.ycombinator.com
    - Broken:
        - href: not a url
`

func writeBookmarks(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bookmarks.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write bookmarks file: %v", err)
	}
	return path
}

func TestImporter_Import(t *testing.T) {
	ctx := context.Background()
	docs := memory.New()

	// already saved under another spelling, and an existing collection
	if _, err := docs.CreateBookmark(ctx, "u1", domain.Bookmark{Title: "Go", URL: "https://go.dev/"}); err != nil {
		t.Fatalf("seed bookmark: %v", err)
	}
	reading, err := docs.CreateCollection(ctx, "u1", domain.Collection{Name: "reading"})
	if err != nil {
		t.Fatalf("seed collection: %v", err)
	}

	im := NewImporter(writeBookmarks(t, bookmarksYAML), docs, "u1", logger.NewNop(), 0, nil)
	report, err := im.Import(ctx)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if report.Created != 2 || report.Skipped != 1 || report.Failed != 1 || report.CollectionsCreated != 1 {
		t.Errorf("report = %+v, want 2 created, 1 skipped, 1 failed, 1 collection", report)
	}

	bookmarks, _ := docs.ListBookmarks(ctx, "u1")
	if len(bookmarks) != 3 {
		t.Fatalf("owner has %d bookmarks, want 3", len(bookmarks))
	}
	for _, b := range bookmarks {
		if b.Title == "Hacker News" && (b.CollectionID == nil || *b.CollectionID != reading.ID) {
			t.Errorf("Hacker News should be filed under the existing Reading collection")
		}
	}

	collections, _ := docs.ListCollections(ctx, "u1")
	if len(collections) != 2 {
		t.Errorf("owner has %d collections, want 2", len(collections))
	}

	other, _ := docs.ListBookmarks(ctx, "u2")
	if len(other) != 0 {
		t.Errorf("import leaked into another owner's library")
	}
}

func TestImporter_ImportIsIdempotent(t *testing.T) {
	ctx := context.Background()
	docs := memory.New()
	im := NewImporter(writeBookmarks(t, bookmarksYAML), docs, "u1", logger.NewNop(), 0, nil)

	if _, err := im.Import(ctx); err != nil {
		t.Fatalf("first Import() error = %v", err)
	}
	report, err := im.Import(ctx)
	if err != nil {
		t.Fatalf("second Import() error = %v", err)
	}
	if report.Created != 0 || report.CollectionsCreated != 0 || report.Skipped != 3 {
		t.Errorf("second run report = %+v, want nothing new", report)
	}
}

func TestImporter_MissingFile(t *testing.T) {
	im := NewImporter("/nonexistent/bookmarks.yaml", memory.New(), "u1", logger.NewNop(), 0, nil)
	if _, err := im.Import(context.Background()); err == nil {
		t.Error("Import() with a missing file should fail")
	}
}

func TestImporter_ManualTrigger(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "bookmarks.yaml")
	docs := memory.New()
	trigger := make(chan struct{}, 1)
	im := NewImporter(path, docs, "u1", logger.NewNop(), 0, trigger)
	defer im.Stop()

	// the file does not exist yet, the first run fails but the importer keeps listening
	if err := im.Start(ctx); err == nil {
		t.Fatal("Start() should report the failed first import")
	}

	if err := os.WriteFile(path, []byte(bookmarksYAML), 0o644); err != nil {
		t.Fatalf("failed to write bookmarks file: %v", err)
	}
	trigger <- struct{}{}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		bookmarks, _ := docs.ListBookmarks(ctx, "u1")
		if len(bookmarks) == 3 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("manual trigger did not import the bookmarks")
}
