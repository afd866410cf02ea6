package optimistic

import (
	"context"
	"slices"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
)

// Reconciler merges change events pushed by the document store into a
// Store. Every merge rule is idempotent, and because deleted ids are
// remembered the rules commute with local mutations: applying the same
// set of operations in any order yields the same view.
type Reconciler struct {
	store    *Store
	owner    string
	log      logger.Logger
	onDelete func(id string)
}

// NewReconciler creates a reconciler for owner's events. onDelete, if set,
// is called for every accepted delete event.
func NewReconciler(store *Store, owner string, log logger.Logger, onDelete func(id string)) *Reconciler {
	return &Reconciler{
		store:    store,
		owner:    owner,
		log:      log,
		onDelete: onDelete,
	}
}

// Run consumes feed until it is closed or ctx is done.
func (r *Reconciler) Run(ctx context.Context, feed <-chan domain.RealtimeEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-feed:
			if !ok {
				r.log.Debug("realtime feed closed", logger.String("owner", r.owner))
				return nil
			}
			r.Handle(ev)
		}
	}
}

// Handle merges one event and reports whether the view changed.
func (r *Reconciler) Handle(ev domain.RealtimeEvent) bool {
	if !r.accepts(ev) {
		r.log.Debug("dropping realtime event for another owner",
			logger.String("type", string(ev.Type)),
			logger.String("id", ev.Record.ID))
		return false
	}

	changed := r.store.applyRemote(ev)
	if ev.Type == domain.EventDelete && r.onDelete != nil {
		r.onDelete(ev.Record.ID)
	}

	r.log.Debug("realtime event merged",
		logger.String("type", string(ev.Type)),
		logger.String("id", ev.Record.ID),
		logger.Bool("changed", changed))
	return changed
}

// accepts filters events by owner. Delete events often carry only the id;
// those are accepted because deleting an id this owner does not have is a
// no-op.
func (r *Reconciler) accepts(ev domain.RealtimeEvent) bool {
	if ev.Record.ID == "" {
		return false
	}
	if ev.Record.OwnerID == r.owner {
		return true
	}
	return ev.Type == domain.EventDelete && ev.Record.OwnerID == ""
}

// applyRemote merges a pushed event:
//
//	INSERT known   -> ignored
//	INSERT unknown -> prepended
//	UPDATE known   -> field merge, last writer wins
//	UPDATE unknown -> inserted
//	DELETE known   -> removed
//	DELETE unknown -> no-op
//
// Ids deleted during the session stay deleted.
func (s *Store) applyRemote(ev domain.RealtimeEvent) bool {
	s.mu.Lock()
	changed := s.applyRemoteLocked(ev)
	s.mu.Unlock()

	if changed {
		s.publish()
	}
	return changed
}

func (s *Store) applyRemoteLocked(ev domain.RealtimeEvent) bool {
	rec := ev.Record
	id := rec.ID

	switch ev.Type {
	case domain.EventInsert:
		return s.insertRemote(rec)

	case domain.EventUpdate:
		if s.isTombstoned(id) {
			return false
		}
		cur, ok := s.records[id]
		if !ok {
			if e, i := s.parkedIndex(id); e != nil {
				e.parked[i] = withNormalized(domain.MergeFields(e.parked[i], rec, ev.Fields))
				return false
			}
			return s.insertRemote(rec)
		}
		s.records[id] = withNormalized(domain.MergeFields(cur, rec, ev.Fields))
		return true

	case domain.EventDelete:
		s.tombstones[id] = struct{}{}
		if e := s.pending[id]; e != nil && e.mutation.Kind == domain.MutationDelete {
			e.remoteDeleted = true
		}
		if e, i := s.parkedIndex(id); e != nil {
			e.parked = slices.Delete(e.parked, i, i+1)
		}
		return s.remove(id) >= 0
	}
	return false
}

// insertRemote prepends a pushed record unless it is known or deleted.
// While a local create with the same URL awaits confirmation the record
// is parked on it: it is most likely that create's server copy, and
// showing it now would display the same bookmark twice.
func (s *Store) insertRemote(rec domain.Bookmark) bool {
	id := rec.ID
	if id == "" || s.exists(id) || s.isTombstoned(id) {
		return false
	}
	if e, _ := s.parkedIndex(id); e != nil {
		return false
	}

	rec = withNormalized(rec.Clone())
	if n := rec.NormalizedURL; n != "" {
		for key, e := range s.pending {
			if e.mutation.Kind == domain.MutationCreate && s.records[key].NormalizedURL == n {
				e.parked = append(e.parked, rec)
				return false
			}
		}
	}

	s.insertAt(0, rec)
	return true
}

func (s *Store) parkedIndex(id string) (*pendingEntry, int) {
	for _, e := range s.pending {
		for i, p := range e.parked {
			if p.ID == id {
				return e, i
			}
		}
	}
	return nil, -1
}
