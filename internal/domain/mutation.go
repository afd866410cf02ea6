package domain

import "time"

// MutationKind enumerates the local operations that can be in flight.
type MutationKind int

const (
	MutationCreate MutationKind = iota + 1
	MutationDelete
	MutationMove
)

func (k MutationKind) String() string {
	switch k {
	case MutationCreate:
		return "create"
	case MutationDelete:
		return "delete"
	case MutationMove:
		return "move"
	default:
		return "unknown"
	}
}

// PendingMutation is a local change applied to the view but not yet
// acknowledged by the document store.
type PendingMutation struct {
	Kind MutationKind

	// TargetID is the entity the mutation applies to. For a create it is
	// the temporary id of the new bookmark.
	TargetID string

	// LocalID identifies the mutation when confirming or rejecting it.
	LocalID string

	// Payload is the draft record of a create.
	Payload Bookmark

	// CollectionID is the destination of a move.
	CollectionID *string

	// PrevCollectionID is the value a rejected move restores.
	PrevCollectionID *string

	IssuedAt time.Time
}

// EventType is the kind of change pushed by the document store.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// RealtimeEvent is a change notification from the document store.
type RealtimeEvent struct {
	Type   EventType `json:"type"`
	Record Bookmark  `json:"record"`

	// Fields lists the columns an update carries. Empty means Record is a
	// full snapshot.
	Fields []string `json:"fields,omitempty"`
}
