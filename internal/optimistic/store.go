// Package optimistic keeps a client-local view of an owner's bookmarks and
// collections consistent while local mutations are in flight and the
// document store pushes change events.
package optimistic

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/MrSnakeDoc/stash/internal/domain"
)

var (
	// ErrMutationInFlight is returned when an entity already has a pending
	// mutation. The caller retries after the first one settles.
	ErrMutationInFlight = errors.New("optimistic: a mutation is already pending for this bookmark")
	// ErrUnknownMutation is returned by Confirm and Reject for ids with no
	// pending mutation.
	ErrUnknownMutation = errors.New("optimistic: no pending mutation for this id")
	// ErrUnknownBookmark is returned when a mutation targets a bookmark that
	// is not in the view.
	ErrUnknownBookmark = errors.New("optimistic: bookmark not in view")
	// ErrInvalidMutation is returned for malformed mutations.
	ErrInvalidMutation = errors.New("optimistic: invalid mutation")
)

// View is an immutable snapshot of the local state.
type View struct {
	Bookmarks   []domain.Bookmark
	Collections []domain.Collection
	// Pending maps entity ids to the kind of mutation awaiting confirmation.
	Pending map[string]domain.MutationKind
}

type pendingEntry struct {
	mutation domain.PendingMutation

	// delete only: the removed record and where it was
	snapshot      domain.Bookmark
	position      int
	remoteDeleted bool

	// create only: pushed records that may be this create's server copy,
	// held back until it is confirmed or rejected
	parked []domain.Bookmark
}

type subscriber struct {
	id uint64
	fn func(View)
}

// Store is the single owner of the local bookmark view. Every change goes
// through its methods and is serialized by one lock; local mutations and
// pushed events share that serialization point.
type Store struct {
	mu          sync.RWMutex
	order       []string                   // bookmark ids, newest first
	records     map[string]domain.Bookmark // id -> record
	collections []domain.Collection        // oldest first
	pending     map[string]*pendingEntry   // entity id -> in-flight mutation
	aliases     map[string]string          // confirmed temp id -> server id
	tombstones  map[string]struct{}        // ids deleted during this session

	subMu   sync.Mutex
	subs    []subscriber
	nextSub uint64

	notifyMu sync.Mutex

	now func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		records:    make(map[string]domain.Bookmark),
		pending:    make(map[string]*pendingEntry),
		aliases:    make(map[string]string),
		tombstones: make(map[string]struct{}),
		now:        time.Now,
	}
}

// Reset replaces the whole state with an initial listing. Bookmarks are
// expected newest first, collections oldest first.
func (s *Store) Reset(bookmarks []domain.Bookmark, collections []domain.Collection) View {
	s.mu.Lock()
	s.order = make([]string, 0, len(bookmarks))
	s.records = make(map[string]domain.Bookmark, len(bookmarks))
	s.pending = make(map[string]*pendingEntry)
	s.aliases = make(map[string]string)
	s.tombstones = make(map[string]struct{})
	for _, b := range bookmarks {
		if _, dup := s.records[b.ID]; dup || b.ID == "" {
			continue
		}
		s.order = append(s.order, b.ID)
		s.records[b.ID] = withNormalized(b.Clone())
	}
	s.collections = slices.Clone(collections)
	s.mu.Unlock()

	return s.publish()
}

// ─────────────────────────────────────────────────────────────────
// Local mutations
// ─────────────────────────────────────────────────────────────────

// Create applies an optimistic insert of draft under a fresh temporary id.
func (s *Store) Create(draft domain.Bookmark) (string, View, error) {
	draft.ID = domain.NewTempID()
	v, err := s.Apply(domain.PendingMutation{Kind: domain.MutationCreate, TargetID: draft.ID, Payload: draft})
	if err != nil {
		return "", View{}, err
	}
	return draft.ID, v, nil
}

// Delete applies an optimistic removal. The returned id is the one to
// confirm or reject.
func (s *Store) Delete(id string) (string, View, error) {
	id = s.Resolve(id)
	v, err := s.Apply(domain.PendingMutation{Kind: domain.MutationDelete, TargetID: id})
	return id, v, err
}

// Move applies an optimistic reassignment. A nil collectionID unfiles the
// bookmark.
func (s *Store) Move(id string, collectionID *string) (string, View, error) {
	id = s.Resolve(id)
	v, err := s.Apply(domain.PendingMutation{Kind: domain.MutationMove, TargetID: id, CollectionID: collectionID})
	return id, v, err
}

// Apply records m as pending and reflects it in the view immediately.
func (s *Store) Apply(m domain.PendingMutation) (View, error) {
	if err := s.apply(m); err != nil {
		return View{}, err
	}
	return s.publish(), nil
}

func (s *Store) apply(m domain.PendingMutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.IssuedAt.IsZero() {
		m.IssuedAt = s.now()
	}

	switch m.Kind {
	case domain.MutationCreate:
		id := m.Payload.ID
		if id == "" {
			id = m.TargetID
		}
		if !domain.IsTempID(id) {
			return ErrInvalidMutation
		}
		if _, exists := s.records[id]; exists || s.pending[id] != nil {
			return ErrMutationInFlight
		}
		rec := withNormalized(m.Payload.Clone())
		rec.ID = id
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = m.IssuedAt
		}
		m.TargetID, m.LocalID, m.Payload = id, id, rec
		s.insertAt(0, rec)
		s.pending[id] = &pendingEntry{mutation: m}

	case domain.MutationDelete:
		id := s.resolveLocked(m.TargetID)
		if s.pending[id] != nil {
			return ErrMutationInFlight
		}
		rec, ok := s.records[id]
		if !ok {
			return ErrUnknownBookmark
		}
		pos := s.remove(id)
		s.tombstones[id] = struct{}{}
		m.TargetID, m.LocalID = id, id
		s.pending[id] = &pendingEntry{mutation: m, snapshot: rec, position: pos}

	case domain.MutationMove:
		id := s.resolveLocked(m.TargetID)
		if s.pending[id] != nil {
			return ErrMutationInFlight
		}
		rec, ok := s.records[id]
		if !ok {
			return ErrUnknownBookmark
		}
		m.PrevCollectionID = rec.CollectionID
		m.CollectionID = cloneID(m.CollectionID)
		rec.CollectionID = cloneID(m.CollectionID)
		s.records[id] = rec
		m.TargetID, m.LocalID = id, id
		s.pending[id] = &pendingEntry{mutation: m}

	default:
		return ErrInvalidMutation
	}
	return nil
}

// Confirm settles a pending mutation after the document store accepted it.
// For a create, record is the stored copy: the temporary entry is swapped
// for it in place. If the server copy already arrived through the event
// feed, the temporary entry is dropped instead, so the view never shows
// both.
func (s *Store) Confirm(localID string, record *domain.Bookmark) (View, error) {
	if err := s.confirm(localID, record); err != nil {
		return View{}, err
	}
	return s.publish(), nil
}

func (s *Store) confirm(localID string, record *domain.Bookmark) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, e := s.lookupPending(localID)
	if e == nil {
		return ErrUnknownMutation
	}

	if e.mutation.Kind != domain.MutationCreate {
		delete(s.pending, key)
		return nil
	}

	if record == nil || record.ID == "" || domain.IsTempID(record.ID) {
		return ErrInvalidMutation
	}
	delete(s.pending, key)

	serverID := record.ID
	s.aliases[key] = serverID
	local := s.records[key]
	pos := s.remove(key)

	switch {
	case s.isTombstoned(serverID):
		// deleted by another client before our insert was acknowledged
	case s.exists(serverID):
		if cur := s.records[serverID]; cur.Summary == nil && local.Summary != nil {
			cur.Summary = local.Summary
			s.records[serverID] = cur
		}
	default:
		rec := withNormalized(record.Clone())
		if rec.Summary == nil && local.Summary != nil {
			rec.Summary = local.Summary
		}
		s.insertAt(max(pos, 0), rec)
	}

	for _, p := range e.parked {
		if p.ID != serverID {
			s.insertRemote(p)
		}
	}
	return nil
}

// Reject undoes a pending mutation after the document store refused it.
// A create disappears, a delete reappears at its former position and a
// move restores the previous collection.
func (s *Store) Reject(localID string) (View, error) {
	if err := s.reject(localID); err != nil {
		return View{}, err
	}
	return s.publish(), nil
}

func (s *Store) reject(localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, e := s.lookupPending(localID)
	if e == nil {
		return ErrUnknownMutation
	}
	delete(s.pending, key)

	switch e.mutation.Kind {
	case domain.MutationCreate:
		s.remove(key)
		for _, p := range e.parked {
			s.insertRemote(p)
		}

	case domain.MutationDelete:
		if e.remoteDeleted {
			return nil
		}
		delete(s.tombstones, key)
		if !s.exists(key) {
			rec := e.snapshot
			if rec.CollectionID != nil && !s.hasCollection(*rec.CollectionID) {
				rec.CollectionID = nil
			}
			s.insertAt(min(e.position, len(s.order)), rec)
		}

	case domain.MutationMove:
		rec, ok := s.records[key]
		if !ok {
			return nil
		}
		prev := e.mutation.PrevCollectionID
		if prev != nil && !s.hasCollection(*prev) {
			prev = nil
		}
		rec.CollectionID = cloneID(prev)
		s.records[key] = rec
	}
	return nil
}

// SetSummary attaches a generated summary to a bookmark. It is the only
// way a summary enters the view. It reports false, and changes nothing,
// when the bookmark has been deleted or is unknown.
func (s *Store) SetSummary(id, text string) bool {
	s.mu.Lock()
	id = s.resolveLocked(id)
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	rec.Summary = &text
	s.records[id] = rec
	s.mu.Unlock()

	s.publish()
	return true
}

// ─────────────────────────────────────────────────────────────────
// Collections
// ─────────────────────────────────────────────────────────────────

// AddCollection appends a stored collection, or replaces one with the same id.
func (s *Store) AddCollection(c domain.Collection) View {
	s.mu.Lock()
	if i := s.collectionIndex(c.ID); i >= 0 {
		s.collections[i] = c
	} else {
		s.collections = append(s.collections, c)
	}
	s.mu.Unlock()
	return s.publish()
}

// RemoveCollection drops a collection and unfiles its members. Bookmark
// data is never deleted.
func (s *Store) RemoveCollection(id string) View {
	s.mu.Lock()
	if i := s.collectionIndex(id); i >= 0 {
		s.collections = slices.Delete(s.collections, i, i+1)
	}
	for bid, rec := range s.records {
		if rec.CollectionID != nil && *rec.CollectionID == id {
			rec.CollectionID = nil
			s.records[bid] = rec
		}
	}
	s.mu.Unlock()
	return s.publish()
}

// ─────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────

// View returns a snapshot of the current state.
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := View{
		Bookmarks:   make([]domain.Bookmark, 0, len(s.order)),
		Collections: slices.Clone(s.collections),
		Pending:     make(map[string]domain.MutationKind, len(s.pending)),
	}
	for _, id := range s.order {
		v.Bookmarks = append(v.Bookmarks, s.records[id].Clone())
	}
	for id, e := range s.pending {
		v.Pending[id] = e.mutation.Kind
	}
	return v
}

// Bookmarks returns the visible bookmarks, newest first.
func (s *Store) Bookmarks() []domain.Bookmark {
	return s.View().Bookmarks
}

// Collections returns the collections, oldest first.
func (s *Store) Collections() []domain.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.collections)
}

// Bookmark looks up a visible bookmark. Confirmed temporary ids resolve to
// their server id.
func (s *Store) Bookmark(id string) (domain.Bookmark, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[s.resolveLocked(id)]
	return rec.Clone(), ok
}

// Resolve maps a confirmed temporary id to its server id.
func (s *Store) Resolve(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveLocked(id)
}

// IsPending reports whether id has a mutation awaiting confirmation.
func (s *Store) IsPending(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, e := s.lookupPending(id)
	return e != nil
}

// Deleted reports whether id was removed during this session.
func (s *Store) Deleted(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isTombstoned(s.resolveLocked(id))
}

func (s *Store) find(match func(domain.Bookmark) bool) (domain.Bookmark, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if rec := s.records[id]; match(rec) {
			return rec.Clone(), true
		}
	}
	return domain.Bookmark{}, false
}

// ─────────────────────────────────────────────────────────────────
// Subscriptions
// ─────────────────────────────────────────────────────────────────

// Subscribe registers fn to receive a snapshot after every change. fn runs
// outside the state lock but must not call back into the store. The
// returned function unsubscribes.
func (s *Store) Subscribe(fn func(View)) (cancel func()) {
	s.subMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		s.subs = slices.DeleteFunc(s.subs, func(sub subscriber) bool { return sub.id == id })
	}
}

// publish snapshots the state and hands it to subscribers. notifyMu keeps
// deliveries ordered: a subscriber never receives an older snapshot after
// a newer one.
func (s *Store) publish() View {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	v := s.View()

	s.subMu.Lock()
	subs := slices.Clone(s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.fn(v)
	}
	return v
}

// ─────────────────────────────────────────────────────────────────
// Helpers (callers hold mu)
// ─────────────────────────────────────────────────────────────────

func (s *Store) resolveLocked(id string) string {
	if server, ok := s.aliases[id]; ok {
		return server
	}
	return id
}

func (s *Store) lookupPending(id string) (string, *pendingEntry) {
	if e := s.pending[id]; e != nil {
		return id, e
	}
	resolved := s.resolveLocked(id)
	if e := s.pending[resolved]; e != nil {
		return resolved, e
	}
	return "", nil
}

func (s *Store) exists(id string) bool {
	_, ok := s.records[id]
	return ok
}

func (s *Store) isTombstoned(id string) bool {
	_, ok := s.tombstones[id]
	return ok
}

func (s *Store) hasCollection(id string) bool {
	return s.collectionIndex(id) >= 0
}

func (s *Store) collectionIndex(id string) int {
	return slices.IndexFunc(s.collections, func(c domain.Collection) bool { return c.ID == id })
}

func (s *Store) insertAt(pos int, rec domain.Bookmark) {
	s.records[rec.ID] = rec
	s.order = slices.Insert(s.order, pos, rec.ID)
}

// remove deletes id and returns its former position, or -1.
func (s *Store) remove(id string) int {
	delete(s.records, id)
	i := slices.Index(s.order, id)
	if i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return i
}

func withNormalized(b domain.Bookmark) domain.Bookmark {
	if b.NormalizedURL == "" {
		b.NormalizedURL = b.Normalized()
	}
	return b
}

func cloneID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
