package optimistic

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
)

// ErrNoDrag is returned when a drag step arrives with no drag in progress.
var ErrNoDrag = errors.New("optimistic: no drag in progress")

// DragState is the phase of the drag-and-drop gesture.
type DragState int

const (
	DragIdle DragState = iota
	DragDragging
	DragHovering
	DragDropped
)

func (s DragState) String() string {
	switch s {
	case DragIdle:
		return "idle"
	case DragDragging:
		return "dragging"
	case DragHovering:
		return "hover"
	case DragDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// DragSnapshot describes the current gesture.
type DragSnapshot struct {
	State      DragState
	BookmarkID string
	Target     *string
}

// MovePersister stores a reassignment.
type MovePersister interface {
	MoveBookmark(ctx context.Context, id string, collectionID *string) error
}

// Reassigner turns a drag-and-drop gesture into a move. There is one slot:
// starting a new drag discards any unfinished one.
type Reassigner struct {
	mu      sync.Mutex
	store   *Store
	persist MovePersister
	log     logger.Logger

	state      DragState
	bookmarkID string
	target     *string
	gesture    uint64
}

func NewReassigner(store *Store, persist MovePersister, log logger.Logger) *Reassigner {
	return &Reassigner{store: store, persist: persist, log: log}
}

// Begin starts dragging bookmarkID.
func (r *Reassigner) Begin(bookmarkID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == DragDragging || r.state == DragHovering {
		r.log.Debug("drag replaced by a new gesture", logger.String("bookmark_id", r.bookmarkID))
	}
	r.gesture++
	r.state = DragDragging
	r.bookmarkID = bookmarkID
	r.target = nil
}

// Hover marks collectionID as the current drop target. Nil is the
// "no collection" target.
func (r *Reassigner) Hover(collectionID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != DragDragging && r.state != DragHovering {
		return ErrNoDrag
	}
	r.state = DragHovering
	r.target = cloneID(collectionID)
	return nil
}

// Leave clears the drop target.
func (r *Reassigner) Leave() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == DragHovering {
		r.state = DragDragging
		r.target = nil
	}
}

// Cancel abandons the gesture.
func (r *Reassigner) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == DragDragging || r.state == DragHovering {
		r.reset()
	}
}

// Snapshot returns the current gesture.
func (r *Reassigner) Snapshot() DragSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return DragSnapshot{State: r.state, BookmarkID: r.bookmarkID, Target: cloneID(r.target)}
}

// Drop moves the dragged bookmark to collectionID. The view changes
// immediately; if persisting fails the previous collection is restored
// and the error returned. Dropping onto the current collection is a no-op.
func (r *Reassigner) Drop(ctx context.Context, collectionID *string) error {
	r.mu.Lock()
	if r.state != DragDragging && r.state != DragHovering {
		r.mu.Unlock()
		return ErrNoDrag
	}
	id := r.bookmarkID
	gesture := r.gesture
	r.state = DragDropped
	r.target = cloneID(collectionID)
	r.mu.Unlock()

	defer r.finish(gesture)

	current, ok := r.store.Bookmark(id)
	if !ok {
		return ErrUnknownBookmark
	}
	if domain.SameCollection(current.CollectionID, collectionID) {
		return nil
	}

	localID, _, err := r.store.Move(id, collectionID)
	if err != nil {
		return err
	}

	if err := r.persist.MoveBookmark(ctx, localID, collectionID); err != nil {
		r.log.Warn("move failed, restoring previous collection",
			logger.String("bookmark_id", localID),
			logger.Error(err))
		if _, rerr := r.store.Reject(localID); rerr != nil {
			r.log.Error("failed to roll back move", logger.String("bookmark_id", localID), logger.Error(rerr))
		}
		return fmt.Errorf("move bookmark %s: %w", localID, err)
	}

	if _, err := r.store.Confirm(localID, nil); err != nil {
		r.log.Warn("move confirmed for unknown mutation", logger.String("bookmark_id", localID), logger.Error(err))
	}
	return nil
}

// finish returns to idle unless a newer gesture already took the slot.
func (r *Reassigner) finish(gesture uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gesture == gesture {
		r.reset()
	}
}

func (r *Reassigner) reset() {
	r.state = DragIdle
	r.bookmarkID = ""
	r.target = nil
}
