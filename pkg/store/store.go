// Package store defines the remote note store contract.
//
// The application never owns durable data: every note lives in a hosted
// backend, and this package is the narrow interface the rest of the code
// talks to. Two implementations exist:
//
//   - [github.com/quillnotes/quill/pkg/store/surrealdb.Store] speaks to a
//     SurrealDB instance over the SDK's websocket connection and uses a
//     live query as the change subscription.
//   - [github.com/quillnotes/quill/pkg/store/memory.Store] is an in-process
//     implementation used by tests and by demo mode; it echoes confirmed
//     mutations back to subscribers the way the hosted backend does.
//
// All methods take a context and return wrapped errors; a backend that
// cannot be reached surfaces as [ErrUnavailable] regardless of transport.
package store

import (
	"context"
	"errors"

	"github.com/quillnotes/quill/pkg/models"
)

// ErrUnavailable reports that the backend could not be reached or rejected
// the call. Callers treat it as fail-stop: nothing changed, try again.
var ErrUnavailable = errors.New("note store unavailable")

// ErrNotFound reports that a mutation target does not exist. Local misses
// are benign and handled as no-ops by the reconciliation core; the error
// exists for store implementations that can detect the condition.
var ErrNotFound = errors.New("note not found")

// ChangeAction classifies a change notification from the store.
type ChangeAction string

const (
	// Created reports a newly inserted row.
	Created ChangeAction = "CREATE"
	// Updated reports a modified row; the event carries the full new row.
	Updated ChangeAction = "UPDATE"
	// Deleted reports a physical row removal. Under the soft-delete
	// convention the backend never emits it, but a reconfigured backend
	// might, so consumers handle it defensively.
	Deleted ChangeAction = "DELETE"
)

// ChangeEvent is a change notification pushed by the store, independent of
// the client's own direct calls. It carries the full row after the change.
type ChangeEvent struct {
	Action ChangeAction `json:"action"`
	Note   models.Note  `json:"note"`
}

// Store is the remote note store: a queryable table of notes plus a
// per-user change stream.
type Store interface {
	// ListNotes returns all notes owned by userID, ordered pinned-first
	// and then by UpdatedAt descending. It returns an empty slice, never
	// nil, when the user has no notes.
	ListNotes(ctx context.Context, userID models.UserID) ([]models.Note, error)

	// CreateNote inserts a new note. A zero ID is assigned and zero
	// timestamps are set by the store before the insert.
	CreateNote(ctx context.Context, note *models.Note) error

	// UpdateNote replaces the stored row with the given note and
	// refreshes its UpdatedAt.
	UpdateNote(ctx context.Context, note *models.Note) error

	// SoftDeleteNote marks the note deleted. The row is updated, not
	// removed, so the change stream still echoes it.
	SoftDeleteNote(ctx context.Context, id models.NoteID) error

	// Subscribe opens a change stream filtered to userID. The returned
	// cancel func must be called on teardown; it stops delivery and
	// closes the channel.
	Subscribe(ctx context.Context, userID models.UserID) (<-chan ChangeEvent, func(), error)

	// Close releases the backend connection.
	Close() error
}
