package domain

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Bookmark is a saved link owned by a single user.
type Bookmark struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	// ID is a temporary id (see NewTempID) until the document store
	// confirms the record, then the server-assigned id.
	ID string `json:"id"`

	// OwnerID is the user the bookmark belongs to.
	OwnerID string `json:"user_id"`

	// ─────────────────────────────
	// Content
	// ─────────────────────────────

	Title string `json:"title"`
	URL   string `json:"url"`

	// NormalizedURL is the canonical form of URL used for duplicate checks.
	NormalizedURL string `json:"normalized_url,omitempty"`

	// CollectionID is nil when the bookmark is not filed anywhere.
	CollectionID *string `json:"collection_id"`

	// Summary is the AI-generated description, nil until one succeeded.
	Summary *string `json:"summary"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	CreatedAt time.Time `json:"created_at"`
}

// Normalized returns NormalizedURL, computing it when the record predates it.
func (b Bookmark) Normalized() string {
	if b.NormalizedURL != "" {
		return b.NormalizedURL
	}
	n, err := NormalizeURL(b.URL)
	if err != nil {
		return ""
	}
	return n
}

// Clone returns a copy that shares no pointers with b.
func (b Bookmark) Clone() Bookmark {
	out := b
	if b.CollectionID != nil {
		v := *b.CollectionID
		out.CollectionID = &v
	}
	if b.Summary != nil {
		v := *b.Summary
		out.Summary = &v
	}
	return out
}

// InCollection reports whether the bookmark is filed under collectionID.
// A nil collectionID matches unfiled bookmarks.
func (b Bookmark) InCollection(collectionID *string) bool {
	return SameCollection(b.CollectionID, collectionID)
}

// SameCollection compares two optional collection ids.
func SameCollection(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Field names carried by partial realtime updates.
const (
	FieldTitle        = "title"
	FieldURL          = "url"
	FieldCollectionID = "collection_id"
	FieldSummary      = "summary"
	FieldCreatedAt    = "created_at"
)

// MergeFields copies the named fields of src onto dst. An empty field list
// means src is a full snapshot and replaces dst entirely (identity kept).
func MergeFields(dst, src Bookmark, fields []string) Bookmark {
	if len(fields) == 0 {
		out := src.Clone()
		out.ID = dst.ID
		if out.OwnerID == "" {
			out.OwnerID = dst.OwnerID
		}
		if out.NormalizedURL == "" && out.URL == dst.URL {
			out.NormalizedURL = dst.NormalizedURL
		}
		return out
	}

	out := dst.Clone()
	src = src.Clone()
	for _, f := range fields {
		switch f {
		case FieldTitle:
			out.Title = src.Title
		case FieldURL:
			out.URL = src.URL
			out.NormalizedURL = src.NormalizedURL
		case FieldCollectionID:
			out.CollectionID = src.CollectionID
		case FieldSummary:
			out.Summary = src.Summary
		case FieldCreatedAt:
			out.CreatedAt = src.CreatedAt
		}
	}
	return out
}

// ─────────────────────────────────────────────────────────────────
// Temporary ids
// ─────────────────────────────────────────────────────────────────

// TempIDPrefix marks client-generated ids. Server ids are UUIDs and never
// carry it, so the two namespaces cannot collide.
const TempIDPrefix = "tmp-"

var tempSeq atomic.Uint64

// NewTempID returns a process-unique temporary id. Ids are never reused.
func NewTempID() string {
	return TempIDPrefix + strconv.FormatUint(tempSeq.Add(1), 10)
}

// IsTempID reports whether id was produced by NewTempID.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}
