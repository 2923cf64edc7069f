package notebook

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillnotes/quill/pkg/models"
	"github.com/quillnotes/quill/pkg/session"
	"github.com/quillnotes/quill/pkg/store"
	"github.com/quillnotes/quill/pkg/store/memory"
)

var (
	t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
	t2 = t0.Add(2 * time.Hour)
)

func testNote(id models.NoteID, user models.UserID, updated time.Time, pinned, archived, deleted bool) models.Note {
	return models.Note{
		ID:        id,
		UserID:    user,
		Title:     "t",
		Content:   "c",
		CreatedAt: t0,
		UpdatedAt: updated,
		Pinned:    pinned,
		Archived:  archived,
		Deleted:   deleted,
	}
}

func startNotebook(t *testing.T, st store.Store, user models.UserID) *Notebook {
	t.Helper()
	nb := New(st, zerolog.Nop())
	err := nb.Start(context.Background(), &session.Session{Token: "tok", UserID: user, Email: "a@b.c"})
	require.NoError(t, err)
	t.Cleanup(nb.Close)
	return nb
}

func TestVisibleSortsPinnedFirstThenRecency(t *testing.T) {
	user := models.NewUserID()
	older := testNote(models.NewNoteID(), user, t0, true, false, false)
	newest := testNote(models.NewNoteID(), user, t2, false, false, false)
	newer := testNote(models.NewNoteID(), user, t1, false, false, false)
	pinnedNew := testNote(models.NewNoteID(), user, t1, true, false, false)

	got := Visible([]models.Note{newest, older, pinnedNew, newer}, false)

	require.Len(t, got, 4)
	// All pinned entries precede all unpinned ones, each group ordered by
	// UpdatedAt descending.
	assert.Equal(t, []models.NoteID{pinnedNew.ID, older.ID, newest.ID, newer.ID},
		[]models.NoteID{got[0].ID, got[1].ID, got[2].ID, got[3].ID})

	seenUnpinned := false
	var prev *models.Note
	for i := range got {
		if !got[i].Pinned {
			seenUnpinned = true
		} else {
			assert.False(t, seenUnpinned, "pinned note after unpinned note")
		}
		if prev != nil && prev.Pinned == got[i].Pinned {
			assert.False(t, got[i].UpdatedAt.After(prev.UpdatedAt), "UpdatedAt increased within group")
		}
		p := got[i]
		prev = &p
	}
}

func TestVisiblePartitionsViewsAndHidesDeleted(t *testing.T) {
	user := models.NewUserID()
	active := testNote(models.NewNoteID(), user, t1, false, false, false)
	archived := testNote(models.NewNoteID(), user, t1, false, true, false)
	deleted := testNote(models.NewNoteID(), user, t2, false, false, true)
	deletedArchived := testNote(models.NewNoteID(), user, t2, false, true, true)

	all := []models.Note{active, archived, deleted, deletedArchived}

	activeView := Visible(all, false)
	require.Len(t, activeView, 1)
	assert.Equal(t, active.ID, activeView[0].ID)

	archivedView := Visible(all, true)
	require.Len(t, archivedView, 1)
	assert.Equal(t, archived.ID, archivedView[0].ID)
}

func TestVisibleDoesNotMutateInput(t *testing.T) {
	user := models.NewUserID()
	a := testNote(models.NewNoteID(), user, t0, false, false, false)
	b := testNote(models.NewNoteID(), user, t2, true, false, false)
	in := []models.Note{a, b}

	_ = Visible(in, false)

	assert.Equal(t, a.ID, in[0].ID)
	assert.Equal(t, b.ID, in[1].ID)
}

func TestApplyRemoteCreatedIsIdempotent(t *testing.T) {
	user := models.NewUserID()
	nb := New(memory.New(), zerolog.Nop())
	note := testNote(models.NewNoteID(), user, t1, false, false, false)

	ev := store.ChangeEvent{Action: store.Created, Note: note}
	assert.True(t, nb.applyRemote(ev))
	assert.False(t, nb.applyRemote(ev), "duplicate Created must be dropped")

	require.Len(t, nb.notes, 1)
	assert.Equal(t, note.ID, nb.notes[0].ID)
}

func TestApplyRemoteOrphanUpdateIsDropped(t *testing.T) {
	user := models.NewUserID()
	nb := New(memory.New(), zerolog.Nop())
	known := testNote(models.NewNoteID(), user, t0, false, false, false)
	nb.notes = []models.Note{known}

	orphan := testNote(models.NewNoteID(), user, t2, true, false, false)
	assert.False(t, nb.applyRemote(store.ChangeEvent{Action: store.Updated, Note: orphan}))

	require.Len(t, nb.notes, 1)
	assert.Equal(t, known.ID, nb.notes[0].ID)
}

func TestApplyRemoteUpdateReplacesByID(t *testing.T) {
	user := models.NewUserID()
	nb := New(memory.New(), zerolog.Nop())
	known := testNote(models.NewNoteID(), user, t0, false, false, false)
	nb.notes = []models.Note{known}

	updated := known
	updated.Title = "renamed"
	updated.UpdatedAt = t2
	assert.True(t, nb.applyRemote(store.ChangeEvent{Action: store.Updated, Note: updated}))

	require.Len(t, nb.notes, 1)
	assert.Equal(t, "renamed", nb.notes[0].Title)
	assert.Equal(t, t2, nb.notes[0].UpdatedAt)
}

func TestApplyRemoteDeleteRemovesLocalCopy(t *testing.T) {
	user := models.NewUserID()
	nb := New(memory.New(), zerolog.Nop())
	known := testNote(models.NewNoteID(), user, t0, false, false, false)
	nb.notes = []models.Note{known}

	assert.True(t, nb.applyRemote(store.ChangeEvent{Action: store.Deleted, Note: known}))
	assert.Empty(t, nb.notes)

	// Unknown id: benign drop.
	assert.False(t, nb.applyRemote(store.ChangeEvent{Action: store.Deleted, Note: known}))
}

// recordingStore counts store calls; used to prove validation happens before
// any network activity.
type recordingStore struct {
	*memory.Store
	mu    sync.Mutex
	calls int
}

func (r *recordingStore) CreateNote(ctx context.Context, n *models.Note) error {
	r.count()
	return r.Store.CreateNote(ctx, n)
}

func (r *recordingStore) UpdateNote(ctx context.Context, n *models.Note) error {
	r.count()
	return r.Store.UpdateNote(ctx, n)
}

func (r *recordingStore) SoftDeleteNote(ctx context.Context, id models.NoteID) error {
	r.count()
	return r.Store.SoftDeleteNote(ctx, id)
}

func (r *recordingStore) count() {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
}

func (r *recordingStore) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestSaveRejectsEmptyContentBeforeAnyStoreCall(t *testing.T) {
	user := models.NewUserID()
	rec := &recordingStore{Store: memory.New()}
	nb := startNotebook(t, rec, user)
	nb.Select(nil)

	err := nb.Save(context.Background(), nil, Fields{Title: "x", Content: ""})
	require.ErrorIs(t, err, ErrEmptyContent)

	assert.Zero(t, rec.callCount(), "empty-content save must not reach the store")
	assert.True(t, nb.EditorOpen(), "editor stays open after rejected save")
}

func TestSaveCreatesThenClearsSelectionAndReloads(t *testing.T) {
	user := models.NewUserID()
	st := memory.New()
	nb := startNotebook(t, st, user)
	nb.Select(nil)

	err := nb.Save(context.Background(), nil, Fields{Title: "groceries", Content: "milk"})
	require.NoError(t, err)

	assert.Nil(t, nb.Selected())
	assert.False(t, nb.EditorOpen())

	visible := nb.VisibleNotes(false)
	require.Len(t, visible, 1)
	assert.Equal(t, "groceries", visible[0].Title)
	assert.Equal(t, user, visible[0].UserID)
	assert.False(t, visible[0].Pinned)
	assert.False(t, visible[0].Archived)
	assert.False(t, visible[0].Deleted)
}

func TestSaveUpdatesTargetNote(t *testing.T) {
	user := models.NewUserID()
	st := memory.New()
	seeded := testNote(models.NewNoteID(), user, t1, false, false, false)
	st.Seed(seeded)
	nb := startNotebook(t, st, user)

	err := nb.Save(context.Background(), &seeded.ID, Fields{Title: "new title", Content: "new content"})
	require.NoError(t, err)

	visible := nb.VisibleNotes(false)
	require.Len(t, visible, 1)
	assert.Equal(t, seeded.ID, visible[0].ID)
	assert.Equal(t, "new title", visible[0].Title)
	assert.Equal(t, "new content", visible[0].Content)
	assert.True(t, visible[0].UpdatedAt.After(t1), "UpdatedAt must be refreshed")
}

func TestSaveFailureLeavesStateUnchanged(t *testing.T) {
	user := models.NewUserID()
	st := memory.New()
	seeded := testNote(models.NewNoteID(), user, t1, false, false, false)
	st.Seed(seeded)
	nb := startNotebook(t, st, user)
	nb.Select(nil)

	st.SetFailing(true)
	err := nb.Save(context.Background(), nil, Fields{Title: "x", Content: "y"})
	require.ErrorIs(t, err, store.ErrUnavailable)

	assert.True(t, nb.EditorOpen(), "editor stays open after failed save")
	visible := nb.VisibleNotes(false)
	require.Len(t, visible, 1)
	assert.Equal(t, seeded.ID, visible[0].ID)
}

func TestSaveUnknownTargetIsSilentNoOp(t *testing.T) {
	user := models.NewUserID()
	rec := &recordingStore{Store: memory.New()}
	seeded := testNote(models.NewNoteID(), user, t1, false, false, false)
	rec.Seed(seeded)
	nb := startNotebook(t, rec, user)

	// A target that was dropped from the collection, e.g. by a defensive
	// delete event, must not turn the save into an insert.
	stale := models.NewNoteID()
	err := nb.Save(context.Background(), &stale, Fields{Title: "x", Content: "y"})
	require.NoError(t, err)

	assert.Zero(t, rec.callCount(), "stale save must not reach the store")
	visible := nb.VisibleNotes(false)
	require.Len(t, visible, 1)
	assert.Equal(t, seeded.ID, visible[0].ID)
}

func TestSaveIgnoresSelectionChanges(t *testing.T) {
	user := models.NewUserID()
	st := memory.New()
	a := testNote(models.NewNoteID(), user, t1, false, false, false)
	b := testNote(models.NewNoteID(), user, t1, false, false, false)
	a.Title, a.Content = "A", "alpha"
	b.Title, b.Content = "B", "beta"
	st.Seed(a, b)
	nb := startNotebook(t, st, user)

	// Another tab reselects between the edit and the save; the save still
	// lands on the note it was issued for.
	nb.Select(nb.Note(a.ID))
	nb.Select(nb.Note(b.ID))
	require.NoError(t, nb.Save(context.Background(), &a.ID, Fields{Title: "A", Content: "edited alpha"}))

	assert.Equal(t, "edited alpha", nb.Note(a.ID).Content)
	assert.Equal(t, "beta", nb.Note(b.ID).Content, "save must not leak onto the selected note")
}

func TestConcurrentSavesKeepTheirOwnTargets(t *testing.T) {
	user := models.NewUserID()
	st := memory.New()
	a := testNote(models.NewNoteID(), user, t1, false, false, false)
	b := testNote(models.NewNoteID(), user, t1, false, false, false)
	st.Seed(a, b)
	nb := startNotebook(t, st, user)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, nb.Save(context.Background(), &a.ID, Fields{Title: "A", Content: "content a"}))
	}()
	go func() {
		defer wg.Done()
		assert.NoError(t, nb.Save(context.Background(), &b.ID, Fields{Title: "B", Content: "content b"}))
	}()
	wg.Wait()

	// The overlapping reloads resolve last-completed-wins, so settle with
	// one more refresh before asserting the projection.
	require.NoError(t, nb.Refresh(context.Background()))
	assert.Equal(t, "content a", nb.Note(a.ID).Content)
	assert.Equal(t, "content b", nb.Note(b.ID).Content)

	stored, err := st.ListNotes(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, n := range stored {
		switch n.ID {
		case a.ID:
			assert.Equal(t, "content a", n.Content)
		case b.ID:
			assert.Equal(t, "content b", n.Content)
		}
	}
}

func TestTogglePinIssuesUpdateAndReloads(t *testing.T) {
	user := models.NewUserID()
	st := memory.New()
	plain := testNote(models.NewNoteID(), user, t0, false, false, false)
	recent := testNote(models.NewNoteID(), user, t1, false, false, false)
	st.Seed(plain, recent)
	nb := startNotebook(t, st, user)

	require.NoError(t, nb.TogglePin(context.Background(), plain.ID))

	visible := nb.VisibleNotes(false)
	require.Len(t, visible, 2)
	// The pinned note sorts first despite being older.
	assert.Equal(t, plain.ID, visible[0].ID)
	assert.True(t, visible[0].Pinned)
	assert.True(t, visible[0].UpdatedAt.After(t0), "UpdatedAt must be refreshed")
}

func TestToggleArchiveMovesBetweenViews(t *testing.T) {
	user := models.NewUserID()
	st := memory.New()
	n := testNote(models.NewNoteID(), user, t1, false, false, false)
	st.Seed(n)
	nb := startNotebook(t, st, user)

	require.NoError(t, nb.ToggleArchive(context.Background(), n.ID))
	assert.Empty(t, nb.VisibleNotes(false))
	require.Len(t, nb.VisibleNotes(true), 1)

	require.NoError(t, nb.ToggleArchive(context.Background(), n.ID))
	require.Len(t, nb.VisibleNotes(false), 1)
	assert.Empty(t, nb.VisibleNotes(true))
}

func TestToggleOnUnknownIDIsSilentNoOp(t *testing.T) {
	user := models.NewUserID()
	rec := &recordingStore{Store: memory.New()}
	nb := startNotebook(t, rec, user)

	require.NoError(t, nb.TogglePin(context.Background(), models.NewNoteID()))
	require.NoError(t, nb.ToggleArchive(context.Background(), models.NewNoteID()))
	assert.Zero(t, rec.callCount(), "stale toggle must not reach the store")
}

func TestToggleFailureLeavesLocalStateUnchanged(t *testing.T) {
	user := models.NewUserID()
	st := memory.New()
	n := testNote(models.NewNoteID(), user, t1, false, false, false)
	st.Seed(n)
	nb := startNotebook(t, st, user)

	st.SetFailing(true)
	err := nb.TogglePin(context.Background(), n.ID)
	require.ErrorIs(t, err, store.ErrUnavailable)

	visible := nb.VisibleNotes(false)
	require.Len(t, visible, 1)
	assert.False(t, visible[0].Pinned, "toggle must not show as applied after failure")
}

func TestSoftDeleteExcludesFromBothViews(t *testing.T) {
	user := models.NewUserID()
	st := memory.New()
	n := testNote(models.NewNoteID(), user, t1, false, false, false)
	st.Seed(n)
	nb := startNotebook(t, st, user)

	require.NoError(t, nb.SoftDelete(context.Background(), n.ID))

	assert.Empty(t, nb.VisibleNotes(false))
	assert.Empty(t, nb.VisibleNotes(true))

	// Soft delete keeps the row in the store; only the flag flips.
	all, err := st.ListNotes(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Deleted)
}

func TestRemoteEventFromAnotherSessionAppears(t *testing.T) {
	user := models.NewUserID()
	st := memory.New()
	nb := startNotebook(t, st, user)

	// A second session of the same user creates a note directly.
	other := testNote(models.NewNoteID(), user, t1, false, false, false)
	require.NoError(t, st.CreateNote(context.Background(), &other))

	require.Eventually(t, func() bool {
		return len(nb.VisibleNotes(false)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, other.ID, nb.VisibleNotes(false)[0].ID)
}

func TestEveryEventSubscriberReceivesEachEvent(t *testing.T) {
	user := models.NewUserID()
	st := memory.New()
	nb := startNotebook(t, st, user)

	first, cancelFirst := nb.SubscribeEvents()
	defer cancelFirst()
	second, cancelSecond := nb.SubscribeEvents()
	defer cancelSecond()

	other := testNote(models.NewNoteID(), user, t1, false, false, false)
	require.NoError(t, st.CreateNote(context.Background(), &other))

	for name, ch := range map[string]<-chan store.ChangeEvent{"first": first, "second": second} {
		select {
		case ev := <-ch:
			assert.Equal(t, store.Created, ev.Action)
			assert.Equal(t, other.ID, ev.Note.ID)
		case <-time.After(time.Second):
			t.Fatalf("%s subscriber received no event", name)
		}
	}
}

func TestSubscribeEventsAfterCloseYieldsClosedChannel(t *testing.T) {
	user := models.NewUserID()
	st := memory.New()
	nb := startNotebook(t, st, user)
	nb.Close()

	events, cancel := nb.SubscribeEvents()
	defer cancel()

	_, open := <-events
	assert.False(t, open, "subscription after teardown must be closed")
}

func TestRemoteEventsForOtherUsersNotDelivered(t *testing.T) {
	user := models.NewUserID()
	st := memory.New()
	nb := startNotebook(t, st, user)

	foreign := testNote(models.NewNoteID(), models.NewUserID(), t1, false, false, false)
	require.NoError(t, st.CreateNote(context.Background(), &foreign))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, nb.VisibleNotes(false))
}

// blockingStore serves ListNotes results in a controlled order so the
// last-completed-reload-wins behavior is observable.
type blockingStore struct {
	*memory.Store
	mu      sync.Mutex
	pending []chan []models.Note
}

func (b *blockingStore) ListNotes(ctx context.Context, userID models.UserID) ([]models.Note, error) {
	ch := make(chan []models.Note)
	b.mu.Lock()
	b.pending = append(b.pending, ch)
	b.mu.Unlock()
	return <-ch, nil
}

func (b *blockingStore) release(i int, notes []models.Note) {
	b.mu.Lock()
	ch := b.pending[i]
	b.mu.Unlock()
	ch <- notes
}

func TestLastCompletedReloadWins(t *testing.T) {
	user := models.NewUserID()
	bs := &blockingStore{Store: memory.New()}

	nb := New(bs, zerolog.Nop())
	// Bypass Start: install state and loop directly so the initial snapshot
	// does not consume a pending ListNotes slot.
	nb.userID = user
	go nb.loop()
	t.Cleanup(nb.Close)

	r1Notes := []models.Note{testNote(models.NewNoteID(), user, t1, false, false, false)}
	r2Notes := []models.Note{testNote(models.NewNoteID(), user, t2, false, false, false)}

	r1Done := make(chan struct{})
	r2Done := make(chan struct{})
	go func() { defer close(r1Done); _ = nb.Refresh(context.Background()) }() // R1
	require.Eventually(t, func() bool {
		bs.mu.Lock()
		defer bs.mu.Unlock()
		return len(bs.pending) == 1
	}, time.Second, time.Millisecond)
	go func() { defer close(r2Done); _ = nb.Refresh(context.Background()) }() // R2
	require.Eventually(t, func() bool {
		bs.mu.Lock()
		defer bs.mu.Unlock()
		return len(bs.pending) == 2
	}, time.Second, time.Millisecond)

	// R2 resolves first, R1 second: the reload completing last (R1)
	// determines the visible state. Refresh returns only after its snapshot
	// is applied, so waiting on r2Done serializes the completions.
	bs.release(1, r2Notes)
	<-r2Done
	bs.release(0, r1Notes)
	<-r1Done

	visible := nb.VisibleNotes(false)
	require.Len(t, visible, 1)
	assert.Equal(t, r1Notes[0].ID, visible[0].ID)
}

func TestCloseStopsApplyingLateEvents(t *testing.T) {
	user := models.NewUserID()
	st := memory.New()
	nb := startNotebook(t, st, user)

	nb.Close()

	late := testNote(models.NewNoteID(), user, t1, false, false, false)
	require.NoError(t, st.CreateNote(context.Background(), &late))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, nb.VisibleNotes(false), "events after teardown must not mutate state")

	err := nb.Refresh(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestStartFailsWhenStoreUnavailable(t *testing.T) {
	user := models.NewUserID()
	st := memory.New()
	st.SetFailing(true)

	nb := New(st, zerolog.Nop())
	err := nb.Start(context.Background(), &session.Session{UserID: user})
	require.ErrorIs(t, err, store.ErrUnavailable)
}
