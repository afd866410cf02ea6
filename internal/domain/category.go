package domain

import (
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Categories derived from a bookmark's host.
const (
	CategoryVideo   = "Video"
	CategoryCode    = "Code"
	CategorySocial  = "Social"
	CategoryDesign  = "Design"
	CategoryMusic   = "Music"
	CategoryWatch   = "Watch"
	CategoryArticle = "Article"
	CategoryShop    = "Shop"
	CategoryLink    = "Link"
)

var categoryRules = []struct {
	category string
	hosts    []string
}{
	{CategoryVideo, []string{"youtube", "youtu.be"}},
	{CategoryCode, []string{"github"}},
	{CategorySocial, []string{"twitter", "x.com"}},
	{CategoryDesign, []string{"pinterest"}},
	{CategoryMusic, []string{"spotify", "soundcloud"}},
	{CategoryWatch, []string{"netflix", "primevideo"}},
	{CategoryArticle, []string{"medium", "substack", "dev.to"}},
	{CategoryShop, []string{"amazon", "shop"}},
}

// DetectCategory classifies a URL by its host. Unparseable URLs are Links.
func DetectCategory(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return CategoryLink
	}
	host := strings.ToLower(u.Hostname())
	for _, rule := range categoryRules {
		for _, h := range rule.hosts {
			if matchCategoryHost(host, h) {
				return rule.category
			}
		}
	}
	return CategoryLink
}

// matchCategoryHost matches a bare keyword anywhere in the host, and a
// dotted domain only as the host itself or one of its parents, so that
// netflix.com is not taken for x.com.
func matchCategoryHost(host, pattern string) bool {
	if !strings.Contains(pattern, ".") {
		return strings.Contains(host, pattern)
	}
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}

// Filter narrows a bookmark list. Zero values match everything.
type Filter struct {
	Query        string
	Category     string
	CollectionID string
}

// Apply returns the bookmarks matching every set criterion, order kept.
func (f Filter) Apply(bookmarks []Bookmark) []Bookmark {
	q := fold(strings.TrimSpace(f.Query))
	out := make([]Bookmark, 0, len(bookmarks))
	for _, b := range bookmarks {
		if q != "" && !strings.Contains(fold(b.Title), q) && !strings.Contains(fold(b.URL), q) {
			continue
		}
		if f.Category != "" && f.Category != "All" && DetectCategory(b.URL) != f.Category {
			continue
		}
		if f.CollectionID != "" && (b.CollectionID == nil || *b.CollectionID != f.CollectionID) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// fold canonicalizes s for case-insensitive matching.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}
