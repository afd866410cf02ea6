package optimistic

import "github.com/MrSnakeDoc/stash/internal/domain"

// DuplicateDetector answers whether a URL is already saved in the view.
type DuplicateDetector struct {
	store *Store
}

func NewDuplicateDetector(store *Store) *DuplicateDetector {
	return &DuplicateDetector{store: store}
}

// Check normalizes candidate and scans the visible bookmarks for the same
// normalized URL. Input that cannot be normalized is never a duplicate.
func (d *DuplicateDetector) Check(candidate string) (domain.Bookmark, bool) {
	n, err := domain.NormalizeURL(candidate)
	if err != nil {
		return domain.Bookmark{}, false
	}
	return d.store.find(func(b domain.Bookmark) bool {
		return b.Normalized() == n
	})
}
