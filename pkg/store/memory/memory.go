// Package memory provides an in-process implementation of [store.Store].
//
// It stands in for the hosted backend in tests and in demo mode. Confirmed
// mutations are echoed to every subscriber of the owning user, mirroring the
// real backend's change stream, which lets the reconciliation core be
// exercised end to end without a server.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quillnotes/quill/pkg/models"
	"github.com/quillnotes/quill/pkg/store"
)

// subscriber buffers events so a slow consumer cannot block a mutation.
const subscriberBuffer = 64

type subscriber struct {
	userID models.UserID
	ch     chan store.ChangeEvent
}

// Store is an in-memory note store. The zero value is not usable; call [New].
type Store struct {
	mu     sync.RWMutex
	notes  map[models.NoteID]models.Note
	subs   map[*subscriber]struct{}
	failed bool

	// now is swappable for deterministic timestamps in tests.
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		notes: make(map[models.NoteID]models.Note),
		subs:  make(map[*subscriber]struct{}),
		now:   time.Now,
	}
}

// SetNow replaces the store's clock. Test hook.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetFailing toggles simulated backend unavailability. While failing, every
// call returns [store.ErrUnavailable] and no state changes.
func (s *Store) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = failing
}

// Seed inserts notes directly, bypassing the change stream. Test hook.
func (s *Store) Seed(notes ...models.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range notes {
		s.notes[n.ID] = n
	}
}

func (s *Store) ListNotes(ctx context.Context, userID models.UserID) ([]models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failed {
		return nil, store.ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]models.Note, 0, len(s.notes))
	for _, n := range s.notes {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	// Same ordering the hosted backend applies: pinned first, then most
	// recently updated.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *Store) CreateNote(ctx context.Context, note *models.Note) error {
	s.mu.Lock()
	if s.failed {
		s.mu.Unlock()
		return store.ErrUnavailable
	}
	if note.ID.IsZero() {
		note.ID = models.NewNoteID()
	}
	now := s.now()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	if note.UpdatedAt.IsZero() {
		note.UpdatedAt = now
	}
	s.notes[note.ID] = *note
	ev := store.ChangeEvent{Action: store.Created, Note: *note}
	s.mu.Unlock()

	s.broadcast(ev)
	return nil
}

func (s *Store) UpdateNote(ctx context.Context, note *models.Note) error {
	s.mu.Lock()
	if s.failed {
		s.mu.Unlock()
		return store.ErrUnavailable
	}
	if _, ok := s.notes[note.ID]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	note.Touch(s.now())
	s.notes[note.ID] = *note
	ev := store.ChangeEvent{Action: store.Updated, Note: *note}
	s.mu.Unlock()

	s.broadcast(ev)
	return nil
}

func (s *Store) SoftDeleteNote(ctx context.Context, id models.NoteID) error {
	s.mu.Lock()
	if s.failed {
		s.mu.Unlock()
		return store.ErrUnavailable
	}
	n, ok := s.notes[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	n.Deleted = true
	n.Touch(s.now())
	s.notes[id] = n
	ev := store.ChangeEvent{Action: store.Updated, Note: n}
	s.mu.Unlock()

	s.broadcast(ev)
	return nil
}

func (s *Store) Subscribe(ctx context.Context, userID models.UserID) (<-chan store.ChangeEvent, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed {
		return nil, nil, store.ErrUnavailable
	}

	sub := &subscriber{
		userID: userID,
		ch:     make(chan store.ChangeEvent, subscriberBuffer),
	}
	s.subs[sub] = struct{}{}

	cancel := func() { s.drop(sub) }
	return sub.ch, cancel, nil
}

// drop removes a subscriber and closes its channel exactly once, whether the
// subscriber cancelled or the store closed first.
func (s *Store) drop(sub *subscriber) {
	s.mu.Lock()
	_, ok := s.subs[sub]
	delete(s.subs, sub)
	s.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

func (s *Store) Close() error {
	s.mu.Lock()
	subs := make([]*subscriber, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
		delete(s.subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		close(sub.ch)
	}
	return nil
}

func (s *Store) broadcast(ev store.ChangeEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for sub := range s.subs {
		if sub.userID != ev.Note.UserID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Subscriber buffer full; the event is dropped rather than
			// blocking the mutation path. The consumer recovers on its
			// next snapshot reload.
		}
	}
}
