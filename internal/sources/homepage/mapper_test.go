package homepage

import (
	"testing"
)

func TestMapBookmarks(t *testing.T) {
	config := BookmarksConfig{
		{
			"Developer": {
				{"Github": {{Abbr: "GH", Href: "https://github.com/"}}},
				{"": {{Abbr: "GO", Href: "https://go.dev"}}},
				{"No link": {{Abbr: "NL"}}},
				{"Empty": {}},
			},
		},
		{
			"Templated": {
				{"Router": {{Href: ""}}},
			},
		},
	}

	groups, err := MapBookmarks(config)
	if err != nil {
		t.Fatalf("MapBookmarks() error = %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("MapBookmarks() returned %d groups, want 1", len(groups))
	}

	g := groups[0]
	if g.Name != "Developer" {
		t.Errorf("group name = %q, want Developer", g.Name)
	}
	if len(g.Bookmarks) != 2 {
		t.Fatalf("group has %d bookmarks, want 2", len(g.Bookmarks))
	}
	if g.Bookmarks[0].Title != "Github" || g.Bookmarks[0].URL != "https://github.com/" {
		t.Errorf("first bookmark = %+v", g.Bookmarks[0])
	}
	if g.Bookmarks[1].Title != "GO" {
		t.Errorf("nameless bookmark title = %q, want abbr GO", g.Bookmarks[1].Title)
	}
}

func TestMapBookmarksEmptyConfig(t *testing.T) {
	if _, err := MapBookmarks(BookmarksConfig{}); err == nil {
		t.Error("MapBookmarks() on empty config should return an error")
	}
}

func TestMapBookmarksKeepsCategoryOrder(t *testing.T) {
	config := BookmarksConfig{
		{"B": {{"one": {{Href: "https://b.example"}}}}},
		{"A": {{"two": {{Href: "https://a.example"}}}}},
	}

	groups, err := MapBookmarks(config)
	if err != nil {
		t.Fatalf("MapBookmarks() error = %v", err)
	}
	if len(groups) != 2 || groups[0].Name != "B" || groups[1].Name != "A" {
		t.Errorf("groups out of file order: %+v", groups)
	}
}
