package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillnotes/quill/pkg/models"
	"github.com/quillnotes/quill/pkg/store"
)

func TestListNotesOrdersPinnedFirstThenRecency(t *testing.T) {
	ctx := context.Background()
	user := models.NewUserID()
	st := New()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	oldPinned := models.Note{ID: models.NewNoteID(), UserID: user, Content: "a", UpdatedAt: base, Pinned: true}
	newPlain := models.Note{ID: models.NewNoteID(), UserID: user, Content: "b", UpdatedAt: base.Add(2 * time.Hour)}
	oldPlain := models.Note{ID: models.NewNoteID(), UserID: user, Content: "c", UpdatedAt: base.Add(time.Hour)}
	st.Seed(newPlain, oldPlain, oldPinned)

	notes, err := st.ListNotes(ctx, user)
	require.NoError(t, err)
	require.Len(t, notes, 3)
	assert.Equal(t, oldPinned.ID, notes[0].ID)
	assert.Equal(t, newPlain.ID, notes[1].ID)
	assert.Equal(t, oldPlain.ID, notes[2].ID)
}

func TestListNotesScopedToUser(t *testing.T) {
	ctx := context.Background()
	st := New()
	alice := models.NewUserID()
	bob := models.NewUserID()
	st.Seed(
		models.Note{ID: models.NewNoteID(), UserID: alice, Content: "a"},
		models.Note{ID: models.NewNoteID(), UserID: bob, Content: "b"},
	)

	notes, err := st.ListNotes(ctx, alice)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, alice, notes[0].UserID)
}

func TestCreateAssignsIDAndTimestamps(t *testing.T) {
	ctx := context.Background()
	st := New()
	n := models.Note{UserID: models.NewUserID(), Content: "x"}

	require.NoError(t, st.CreateNote(ctx, &n))
	assert.False(t, n.ID.IsZero())
	assert.False(t, n.CreatedAt.IsZero())
	assert.False(t, n.UpdatedAt.IsZero())
}

func TestUpdateUnknownNoteReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	st := New()
	n := models.Note{ID: models.NewNoteID(), UserID: models.NewUserID(), Content: "x"}

	err := st.UpdateNote(ctx, &n)
	require.ErrorIs(t, err, store.ErrNotFound)

	err = st.SoftDeleteNote(ctx, n.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestMutationsEchoToSubscribers(t *testing.T) {
	ctx := context.Background()
	st := New()
	user := models.NewUserID()

	events, cancel, err := st.Subscribe(ctx, user)
	require.NoError(t, err)
	defer cancel()

	n := models.Note{UserID: user, Content: "x"}
	require.NoError(t, st.CreateNote(ctx, &n))

	select {
	case ev := <-events:
		assert.Equal(t, store.Created, ev.Action)
		assert.Equal(t, n.ID, ev.Note.ID)
	case <-time.After(time.Second):
		t.Fatal("no create echo received")
	}

	require.NoError(t, st.SoftDeleteNote(ctx, n.ID))
	select {
	case ev := <-events:
		// Soft delete arrives as an update carrying the flagged row.
		assert.Equal(t, store.Updated, ev.Action)
		assert.True(t, ev.Note.Deleted)
	case <-time.After(time.Second):
		t.Fatal("no delete echo received")
	}
}

func TestSubscribeFiltersByUser(t *testing.T) {
	ctx := context.Background()
	st := New()
	alice := models.NewUserID()

	events, cancel, err := st.Subscribe(ctx, alice)
	require.NoError(t, err)
	defer cancel()

	foreign := models.Note{UserID: models.NewUserID(), Content: "x"}
	require.NoError(t, st.CreateNote(ctx, &foreign))

	select {
	case ev := <-events:
		t.Fatalf("unexpected event for other user: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelClosesChannelAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := New()
	events, cancel, err := st.Subscribe(ctx, models.NewUserID())
	require.NoError(t, err)

	cancel()
	cancel()

	_, open := <-events
	assert.False(t, open, "channel must be closed after cancel")
}

func TestFailingStoreReturnsUnavailableEverywhere(t *testing.T) {
	ctx := context.Background()
	st := New()
	user := models.NewUserID()
	st.SetFailing(true)

	_, err := st.ListNotes(ctx, user)
	require.ErrorIs(t, err, store.ErrUnavailable)

	n := models.Note{UserID: user, Content: "x"}
	require.ErrorIs(t, st.CreateNote(ctx, &n), store.ErrUnavailable)
	require.ErrorIs(t, st.UpdateNote(ctx, &n), store.ErrUnavailable)
	require.ErrorIs(t, st.SoftDeleteNote(ctx, models.NewNoteID()), store.ErrUnavailable)

	_, _, err = st.Subscribe(ctx, user)
	require.ErrorIs(t, err, store.ErrUnavailable)
}
