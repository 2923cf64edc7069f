// Package notebook implements the note lifecycle and list reconciliation
// core.
//
// A [Notebook] holds the last server-confirmed collection of one user's
// notes, the current selection, and the editor-open flag. Two asynchronous
// inputs feed it: responses to mutation calls it issued itself, and change
// events pushed by the store's subscription (changes made from other
// sessions of the same user). Both are normalized into one internal event
// type and applied by a single loop goroutine, so state updates never
// interleave.
//
// The write path is deliberately pessimistic: no mutation is applied locally
// ahead of store confirmation. Every confirmed write is followed by a full
// snapshot reload rather than a local patch, which funnels the direct-call
// response and the real-time echo through one code path. When two reloads
// are in flight the one that completes last determines the visible state.
package notebook

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quillnotes/quill/pkg/models"
	"github.com/quillnotes/quill/pkg/session"
	"github.com/quillnotes/quill/pkg/store"
)

// ErrEmptyContent rejects a save with no content before any store call is
// made. A note with empty content is never persisted.
var ErrEmptyContent = errors.New("note content is empty")

// ErrClosed reports an operation on a notebook after teardown.
var ErrClosed = errors.New("notebook is closed")

// Fields carries the editable fields of a save intent.
type Fields struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// event is the single normalized input type of the apply loop. Exactly one
// of snapshot and remote is set.
type event struct {
	snapshot []models.Note
	remote   *store.ChangeEvent
	applied  chan struct{} // closed once the loop has applied the event; nil for remote events
}

// Notebook reconciles local list state with the remote note store for one
// signed-in user.
type Notebook struct {
	store store.Store
	log   zerolog.Logger

	userID models.UserID

	mu         sync.RWMutex
	notes      []models.Note
	selected   *models.Note
	editorOpen bool

	events      chan event
	done        chan struct{}
	unsubscribe func()
	closeOnce   sync.Once

	outMu   sync.Mutex
	outs    map[int]chan store.ChangeEvent
	nextOut int
}

// New returns a notebook bound to st. It is inert until [Notebook.Start].
func New(st store.Store, log zerolog.Logger) *Notebook {
	return &Notebook{
		store:  st,
		log:    log,
		events: make(chan event, 64),
		done:   make(chan struct{}),
		outs:   make(map[int]chan store.ChangeEvent),
	}
}

// Start loads the initial snapshot for the session's user, subscribes to the
// change stream, and starts the apply loop. It fails without side effects
// when the store is unreachable; the caller shows an error state, never a
// stale list.
func (nb *Notebook) Start(ctx context.Context, sess *session.Session) error {
	nb.userID = sess.UserID

	notes, err := nb.store.ListNotes(ctx, nb.userID)
	if err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}

	changes, unsubscribe, err := nb.store.Subscribe(ctx, nb.userID)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	nb.mu.Lock()
	nb.notes = notes
	nb.mu.Unlock()
	nb.unsubscribe = unsubscribe

	go nb.loop()
	go nb.pump(changes)
	return nil
}

// Close unsubscribes from the change stream, stops the apply loop, and
// closes every event subscriber. Late responses and events arriving after
// Close are dropped; state no longer changes. Close is idempotent.
func (nb *Notebook) Close() {
	nb.closeOnce.Do(func() {
		if nb.unsubscribe != nil {
			nb.unsubscribe()
		}
		close(nb.done)

		nb.outMu.Lock()
		for id, ch := range nb.outs {
			delete(nb.outs, id)
			close(ch)
		}
		nb.outMu.Unlock()
	})
}

// SubscribeEvents registers a consumer of reconciled change events. Only
// events that altered the collection are published, and every subscriber
// receives every event, so each push connection gets its own channel. The
// channel is closed by the returned cancel func or by [Notebook.Close],
// whichever comes first.
func (nb *Notebook) SubscribeEvents() (<-chan store.ChangeEvent, func()) {
	nb.outMu.Lock()
	select {
	case <-nb.done:
		// Already torn down; hand back a closed channel so the consumer
		// ends immediately.
		nb.outMu.Unlock()
		ch := make(chan store.ChangeEvent)
		close(ch)
		return ch, func() {}
	default:
	}
	id := nb.nextOut
	nb.nextOut++
	ch := make(chan store.ChangeEvent, 64)
	nb.outs[id] = ch
	nb.outMu.Unlock()

	cancel := func() {
		nb.outMu.Lock()
		if c, ok := nb.outs[id]; ok {
			delete(nb.outs, id)
			close(c)
		}
		nb.outMu.Unlock()
	}
	return ch, cancel
}

// UserID returns the owning user of this notebook.
func (nb *Notebook) UserID() models.UserID {
	return nb.userID
}

// loop is the single consumer of normalized events. All collection writes
// happen here.
func (nb *Notebook) loop() {
	for {
		select {
		case ev := <-nb.events:
			nb.apply(ev)
		case <-nb.done:
			return
		}
	}
}

// pump forwards subscription events into the internal queue.
func (nb *Notebook) pump(changes <-chan store.ChangeEvent) {
	for ch := range changes {
		ch := ch
		nb.post(event{remote: &ch})
	}
}

// post enqueues an event and reports whether it was accepted. Events after
// teardown are dropped.
func (nb *Notebook) post(ev event) bool {
	select {
	case <-nb.done:
		return false
	default:
	}
	select {
	case nb.events <- ev:
		return true
	case <-nb.done:
		return false
	}
}

func (nb *Notebook) apply(ev event) {
	if ev.applied != nil {
		defer close(ev.applied)
	}

	nb.mu.Lock()
	if ev.snapshot != nil {
		nb.notes = ev.snapshot
		nb.mu.Unlock()
		return
	}

	changed := nb.applyRemote(*ev.remote)
	nb.mu.Unlock()

	if changed {
		nb.outMu.Lock()
		for _, ch := range nb.outs {
			select {
			case ch <- *ev.remote:
			default:
				// Subscriber buffer full; that UI catches up on its next
				// list call.
			}
		}
		nb.outMu.Unlock()
	}
}

// applyRemote merges one change event into the collection. Caller holds mu.
func (nb *Notebook) applyRemote(ev store.ChangeEvent) bool {
	idx := -1
	for i := range nb.notes {
		if nb.notes[i].ID == ev.Note.ID {
			idx = i
			break
		}
	}

	switch ev.Action {
	case store.Created:
		// Idempotent: a duplicate Created for a known ID must not produce
		// a duplicate entry.
		if idx >= 0 {
			return false
		}
		nb.notes = append(nb.notes, ev.Note)
		return true
	case store.Updated:
		// An update for a note never seen is a benign race, not an error.
		if idx < 0 {
			return false
		}
		nb.notes[idx] = ev.Note
		return true
	case store.Deleted:
		// The backend does not emit these under the soft-delete
		// convention; if it ever does, the row is gone, so drop the local
		// copy.
		if idx < 0 {
			return false
		}
		nb.notes = append(nb.notes[:idx], nb.notes[idx+1:]...)
		return true
	default:
		nb.log.Warn().Str("action", string(ev.Action)).Msg("unknown change action")
		return false
	}
}

// Refresh fetches a full snapshot and installs it. If several refreshes are
// in flight the one completing last wins, matching the observed behavior of
// the reload-after-write design.
func (nb *Notebook) Refresh(ctx context.Context) error {
	notes, err := nb.store.ListNotes(ctx, nb.userID)
	if err != nil {
		nb.log.Error().Err(err).Msg("snapshot reload failed")
		return fmt.Errorf("snapshot reload: %w", err)
	}

	applied := make(chan struct{})
	if !nb.post(event{snapshot: notes, applied: applied}) {
		return ErrClosed
	}
	select {
	case <-applied:
		return nil
	case <-nb.done:
		return ErrClosed
	}
}

// Save persists editor contents. A non-nil id updates that note's title and
// content; nil inserts a new note owned by the session's user with default
// flags. The target is resolved here, under the notebook's own state, so
// concurrent saves cannot write onto each other's notes. Empty content is
// rejected before any store call. An id not found locally is a stale target
// and a silent no-op, same as the toggles. On success the snapshot is
// reloaded, the selection is cleared, and the editor closes; on failure
// nothing changes and the editor stays open.
func (nb *Notebook) Save(ctx context.Context, id *models.NoteID, fields Fields) error {
	if fields.Content == "" {
		return ErrEmptyContent
	}

	if id != nil {
		target := nb.Note(*id)
		if target == nil {
			nb.log.Debug().Str("note_id", id.String()).Msg("save of unknown note ignored")
			return nil
		}
		target.Title = fields.Title
		target.Content = fields.Content
		if err := nb.store.UpdateNote(ctx, target); err != nil {
			nb.log.Error().Err(err).Str("note_id", target.ID.String()).Msg("save failed")
			return err
		}
	} else {
		note := models.Note{
			UserID:  nb.userID,
			Title:   fields.Title,
			Content: fields.Content,
		}
		if err := nb.store.CreateNote(ctx, &note); err != nil {
			nb.log.Error().Err(err).Msg("create failed")
			return err
		}
	}

	if err := nb.Refresh(ctx); err != nil {
		return err
	}

	nb.mu.Lock()
	nb.selected = nil
	nb.editorOpen = false
	nb.mu.Unlock()
	return nil
}

// TogglePin flips the pinned flag of a locally known note. An unknown id is
// a silent no-op, defending against stale UI events.
func (nb *Notebook) TogglePin(ctx context.Context, id models.NoteID) error {
	return nb.toggle(ctx, id, func(n *models.Note) {
		n.Pinned = !n.Pinned
	})
}

// ToggleArchive moves a locally known note between the active and archived
// views. An unknown id is a silent no-op.
func (nb *Notebook) ToggleArchive(ctx context.Context, id models.NoteID) error {
	return nb.toggle(ctx, id, func(n *models.Note) {
		n.Archived = !n.Archived
	})
}

func (nb *Notebook) toggle(ctx context.Context, id models.NoteID, mutate func(*models.Note)) error {
	nb.mu.RLock()
	var target *models.Note
	for i := range nb.notes {
		if nb.notes[i].ID == id {
			n := nb.notes[i]
			target = &n
			break
		}
	}
	nb.mu.RUnlock()

	if target == nil {
		nb.log.Debug().Str("note_id", id.String()).Msg("toggle on unknown note ignored")
		return nil
	}

	mutate(target)
	if err := nb.store.UpdateNote(ctx, target); err != nil {
		nb.log.Error().Err(err).Str("note_id", id.String()).Msg("toggle failed")
		return err
	}
	return nb.Refresh(ctx)
}

// SoftDelete marks the note deleted in the store and reloads. The row is
// updated rather than removed so the change stream still echoes it to other
// sessions.
func (nb *Notebook) SoftDelete(ctx context.Context, id models.NoteID) error {
	if err := nb.store.SoftDeleteNote(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			nb.log.Debug().Str("note_id", id.String()).Msg("delete of unknown note ignored")
			return nil
		}
		nb.log.Error().Err(err).Str("note_id", id.String()).Msg("delete failed")
		return err
	}
	return nb.Refresh(ctx)
}

// VisibleNotes projects the current collection onto one of the two views.
func (nb *Notebook) VisibleNotes(archivedView bool) []models.Note {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	return Visible(nb.notes, archivedView)
}

// Note returns a copy of the note with the given id from the current
// collection, or nil when unknown.
func (nb *Notebook) Note(id models.NoteID) *models.Note {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	for i := range nb.notes {
		if nb.notes[i].ID == id {
			n := nb.notes[i]
			return &n
		}
	}
	return nil
}

// Select sets the note the editor displays (nil starts a new note) and
// opens the editor. Selection is presentation state only; Save names its
// target explicitly.
func (nb *Notebook) Select(note *models.Note) {
	nb.mu.Lock()
	defer nb.mu.Unlock()
	if note != nil {
		n := *note
		nb.selected = &n
	} else {
		nb.selected = nil
	}
	nb.editorOpen = true
}

// Selected returns a copy of the note under edit, or nil.
func (nb *Notebook) Selected() *models.Note {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	if nb.selected == nil {
		return nil
	}
	n := *nb.selected
	return &n
}

// OpenEditor opens the editor on a new, unsaved note.
func (nb *Notebook) OpenEditor() {
	nb.Select(nil)
}

// CloseEditor discards the selection without saving.
func (nb *Notebook) CloseEditor() {
	nb.mu.Lock()
	defer nb.mu.Unlock()
	nb.selected = nil
	nb.editorOpen = false
}

// EditorOpen reports whether the editor modal is showing.
func (nb *Notebook) EditorOpen() bool {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	return nb.editorOpen
}

// Visible filters notes to the requested view and orders them for display:
// deleted notes never appear, the archived flag selects the view, pinned
// notes sort before unpinned ones, and each group orders by UpdatedAt
// descending. Pure projection; the input is not modified.
func Visible(notes []models.Note, archivedView bool) []models.Note {
	out := make([]models.Note, 0, len(notes))
	for _, n := range notes {
		if n.Deleted {
			continue
		}
		if n.Archived != archivedView {
			continue
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}
