package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayTitle(t *testing.T) {
	n := Note{Title: "shopping"}
	assert.Equal(t, "shopping", n.DisplayTitle())

	n.Title = ""
	assert.Equal(t, "Untitled", n.DisplayTitle())
}

func TestTouchRefreshesUpdatedAt(t *testing.T) {
	n := Note{UpdatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	now := n.UpdatedAt.Add(time.Hour)

	n.Touch(now)
	assert.Equal(t, now, n.UpdatedAt)
}

func TestNoteIDJSONRoundTrip(t *testing.T) {
	id := NewNoteID()

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.JSONEq(t, `"`+id.String()+`"`, string(data))

	var back NoteID
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, id, back)
}

func TestNoteJSONUsesTableColumnNames(t *testing.T) {
	n := Note{ID: NewNoteID(), UserID: NewUserID(), Pinned: true}
	data, err := json.Marshal(n)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"id", "user_id", "title", "content", "created_at", "updated_at", "is_pinned", "is_archived", "is_deleted"} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, true, raw["is_pinned"])
}

func TestRecordIDCarriesTable(t *testing.T) {
	nid := NewNoteID()
	rid := nid.RecordID()
	assert.Equal(t, NoteTable, rid.Table)
	assert.Equal(t, nid.String(), rid.ID)

	uid := NewUserID()
	assert.Equal(t, UserTable, uid.RecordID().Table)
}

func TestNoteIDCBORRoundTrip(t *testing.T) {
	id := NewNoteID()

	data, err := id.MarshalCBOR()
	require.NoError(t, err)

	var back NoteID
	require.NoError(t, back.UnmarshalCBOR(data))
	assert.Equal(t, id, back)

	// A user RecordID must not unmarshal as a note ID.
	userData, err := NewUserID().MarshalCBOR()
	require.NoError(t, err)
	var wrong NoteID
	assert.Error(t, wrong.UnmarshalCBOR(userData))
}

func TestParseNoteIDRejectsGarbage(t *testing.T) {
	_, err := ParseNoteID("not-a-uuid")
	require.Error(t, err)

	id := NewNoteID()
	parsed, err := ParseNoteID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}
