// Package store defines the document store the bookmark engine persists to.
package store

import (
	"context"
	"errors"

	"github.com/MrSnakeDoc/stash/internal/domain"
)

// ErrNotFound is returned for records that do not exist or belong to
// another owner.
var ErrNotFound = errors.New("store: not found")

// DocumentStore persists bookmarks and collections per owner and pushes
// their changes. Every method is scoped to ownerID.
type DocumentStore interface {
	// ListBookmarks returns the owner's bookmarks, newest first.
	ListBookmarks(ctx context.Context, ownerID string) ([]domain.Bookmark, error)
	GetBookmark(ctx context.Context, ownerID, id string) (domain.Bookmark, error)
	// CreateBookmark assigns the server id and creation time and returns
	// the stored record.
	CreateBookmark(ctx context.Context, ownerID string, draft domain.Bookmark) (domain.Bookmark, error)
	DeleteBookmark(ctx context.Context, ownerID, id string) error
	MoveBookmark(ctx context.Context, ownerID, id string, collectionID *string) error
	// UpdateSummary sets the summary of an existing bookmark. It never
	// recreates a deleted one.
	UpdateSummary(ctx context.Context, ownerID, id, summary string) error

	// ListCollections returns the owner's collections, oldest first.
	ListCollections(ctx context.Context, ownerID string) ([]domain.Collection, error)
	CreateCollection(ctx context.Context, ownerID string, c domain.Collection) (domain.Collection, error)
	// DeleteCollection removes the collection and unfiles its members.
	DeleteCollection(ctx context.Context, ownerID, id string) error

	// Subscribe streams the owner's bookmark changes until ctx ends.
	Subscribe(ctx context.Context, ownerID string) (<-chan domain.RealtimeEvent, error)

	Ping(ctx context.Context) error
}

// Owned binds a DocumentStore to one owner for callers that only take an id.
type Owned struct {
	Store   DocumentStore
	OwnerID string
}

func (o Owned) MoveBookmark(ctx context.Context, id string, collectionID *string) error {
	return o.Store.MoveBookmark(ctx, o.OwnerID, id, collectionID)
}
