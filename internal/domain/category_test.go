package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectCategory(t *testing.T) {
	tests := map[string]string{
		"https://www.youtube.com/watch?v=1": CategoryVideo,
		"https://youtu.be/abc":              CategoryVideo,
		"https://github.com/golang/go":      CategoryCode,
		"https://x.com/someone":             CategorySocial,
		"https://twitter.com/someone":       CategorySocial,
		"https://pinterest.com/pin/1":       CategoryDesign,
		"https://open.spotify.com/track/1":  CategoryMusic,
		"https://soundcloud.com/a":          CategoryMusic,
		"https://www.netflix.com/title/1":   CategoryWatch,
		"https://medium.com/@a/post":        CategoryArticle,
		"https://dev.to/post":               CategoryArticle,
		"https://www.amazon.com/dp/1":       CategoryShop,
		"https://example.com":               CategoryLink,
		"not a url":                         CategoryLink,
	}
	for in, want := range tests {
		assert.Equal(t, want, DetectCategory(in), in)
	}
}

func TestFilterApply(t *testing.T) {
	bookmarks := []Bookmark{
		{ID: "1", Title: "Go source", URL: "https://github.com/golang/go", CollectionID: ptr("dev")},
		{ID: "2", Title: "Lo-fi beats", URL: "https://www.youtube.com/watch?v=1"},
		{ID: "3", Title: "Rust book", URL: "https://doc.rust-lang.org/book/", CollectionID: ptr("dev")},
	}

	ids := func(bs []Bookmark) []string {
		out := make([]string, 0, len(bs))
		for _, b := range bs {
			out = append(out, b.ID)
		}
		return out
	}

	assert.Equal(t, []string{"1", "2", "3"}, ids(Filter{}.Apply(bookmarks)))
	assert.Equal(t, []string{"1"}, ids(Filter{Query: "GO SOURCE"}.Apply(bookmarks)))
	assert.Equal(t, []string{"3"}, ids(Filter{Query: "rust-lang"}.Apply(bookmarks)))
	assert.Equal(t, []string{"2"}, ids(Filter{Category: CategoryVideo}.Apply(bookmarks)))
	assert.Equal(t, []string{"1", "2", "3"}, ids(Filter{Category: "All"}.Apply(bookmarks)))
	assert.Equal(t, []string{"1", "3"}, ids(Filter{CollectionID: "dev"}.Apply(bookmarks)))
	assert.Equal(t, []string{"1"}, ids(Filter{CollectionID: "dev", Category: CategoryCode}.Apply(bookmarks)))
}
