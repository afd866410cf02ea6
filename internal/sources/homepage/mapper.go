package homepage

import (
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/stash/internal/domain"
)

// Group is one Homepage category and its bookmarks, in file order. The
// bookmarks are drafts: no id, owner or normalized URL yet.
type Group struct {
	Name      string
	Bookmarks []domain.Bookmark
}

// MapBookmarks converts the config into groups. Entries without href are
// skipped; the title is the bookmark name, falling back to abbr, then href.
func MapBookmarks(config BookmarksConfig) ([]Group, error) {
	var groups []Group
	total := 0

	for _, category := range config {
		for categoryName, bookmarkList := range category {
			g := Group{Name: strings.TrimSpace(categoryName)}
			for _, bookmarkMap := range bookmarkList {
				for bookmarkName, entryList := range bookmarkMap {
					if len(entryList) == 0 {
						continue
					}
					entry := entryList[0]
					href := strings.TrimSpace(entry.Href)
					if href == "" {
						continue
					}

					title := strings.TrimSpace(bookmarkName)
					if title == "" {
						title = strings.TrimSpace(entry.Abbr)
					}
					if title == "" {
						title = href
					}

					g.Bookmarks = append(g.Bookmarks, domain.Bookmark{Title: title, URL: href})
				}
			}
			if len(g.Bookmarks) > 0 {
				groups = append(groups, g)
				total += len(g.Bookmarks)
			}
		}
	}

	if total == 0 {
		return nil, fmt.Errorf("no valid bookmarks found in config")
	}
	return groups, nil
}
