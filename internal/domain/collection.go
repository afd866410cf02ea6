package domain

import "time"

// Collection groups bookmarks. Deleting one never deletes its members,
// they become unfiled.
type Collection struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Icon      string    `json:"icon"`
	CreatedAt time.Time `json:"created_at"`
}

// CollectionColors is the palette offered when creating a collection.
var CollectionColors = []string{
	"#6366f1", "#8b5cf6", "#ec4899", "#f59e0b",
	"#10b981", "#3b82f6", "#ef4444", "#14b8a6",
}

// CollectionIcons is the icon set offered when creating a collection.
var CollectionIcons = []string{"📁", "🎨", "💻", "📚", "🔖", "⚡", "🎯", "🌟"}

const (
	DefaultCollectionColor = "#6366f1"
	DefaultCollectionIcon  = "📁"
)

// WithDefaults fills an empty color or icon.
func (c Collection) WithDefaults() Collection {
	if c.Color == "" {
		c.Color = DefaultCollectionColor
	}
	if c.Icon == "" {
		c.Icon = DefaultCollectionIcon
	}
	return c
}
