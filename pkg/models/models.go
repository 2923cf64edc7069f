// Package models defines the note entity and its typed identifiers.
//
// A [Note] is the sole domain entity of the application: a short piece of
// text owned by a single user, carrying pin/archive/delete flags that drive
// the list views. Field names in the JSON form mirror the backing table
// columns (user_id, is_pinned, is_archived, is_deleted) so the same struct
// round-trips through both the HTTP API and the SurrealDB store.
//
// Identifiers are typed ([NoteID], [UserID]) rather than raw strings or
// UUIDs. Typed IDs marshal to plain strings in JSON and to SurrealDB
// RecordIDs (CBOR tag 8) in the store's binary protocol, so a Note can be
// passed to the SDK's generic Create/Update calls directly without any
// per-call ID translation.
package models

import (
	"time"
)

// Note is a single user-owned note.
//
// Invariants maintained by the store and the reconciliation core:
//   - ID is assigned once and never changes.
//   - UserID equals the owning session's user for every mutation issued.
//   - Deleted is terminal for list purposes: a deleted note is excluded
//     from both the active and the archived view and is never re-surfaced
//     by a pin or archive toggle.
//   - UpdatedAt is refreshed on every title, content, pin, or archive
//     mutation; it is the secondary sort key after Pinned.
type Note struct {
	ID        NoteID    `json:"id"`
	UserID    UserID    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Pinned    bool      `json:"is_pinned"`
	Archived  bool      `json:"is_archived"`
	Deleted   bool      `json:"is_deleted"`
}

// DisplayTitle returns the title to render in a list, substituting
// "Untitled" when the note has no title. Titles may legitimately be empty;
// content may not.
func (n *Note) DisplayTitle() string {
	if n.Title == "" {
		return "Untitled"
	}
	return n.Title
}

// Touch refreshes the modification timestamp.
func (n *Note) Touch(now time.Time) {
	n.UpdatedAt = now
}
