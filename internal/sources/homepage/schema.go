package homepage

// BookmarksConfig is the root structure of a Homepage bookmarks.yaml.
// The YAML structure is: - CategoryName: [ - BookmarkName: [{ icon, abbr, href }] ]
// Each bookmark name maps to a list with a single entry holding the properties.
type BookmarksConfig []BookmarkCategory

// BookmarkCategory maps a category name to its bookmarks.
type BookmarkCategory map[string][]map[string][]BookmarkEntry

// BookmarkEntry is one bookmark's properties.
type BookmarkEntry struct {
	Href        string `yaml:"href"`
	Abbr        string `yaml:"abbr,omitempty"`
	Icon        string `yaml:"icon,omitempty"`
	Description string `yaml:"description,omitempty"`
}
