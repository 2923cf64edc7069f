// Package surrealdb implements [store.Store] against a hosted SurrealDB
// instance.
//
// The store speaks the SDK's websocket connection with the surrealcbor codec
// so that typed IDs and time.Time values round-trip in SurrealDB's native
// CBOR format. The change subscription is a filtered live query
// (LIVE SELECT ... WHERE user_id = $user); notifications carry the full row
// after the change, which is exactly the shape the reconciliation core
// consumes.
//
// All queries are parameterized. Never interpolate user input into a
// SurrealQL string.
package surrealdb

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	sdbmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/quillnotes/quill/pkg/models"
	"github.com/quillnotes/quill/pkg/store"
)

// codec marshals and unmarshals values in SurrealDB's CBOR format. It is the
// same codec installed on the connection, reused to decode live notification
// payloads back into [models.Note].
type codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, dst any) error
}

// Store implements [store.Store] over a SurrealDB connection.
type Store struct {
	db    *surrealdb.DB
	codec codec
	log   zerolog.Logger
}

var _ store.Store = (*Store)(nil)

// Connect dials the SurrealDB endpoint and selects the namespace and
// database. The connection uses the surrealcbor codec; without it, time.Time
// and RecordID values marshal in a format the server rejects.
//
// The returned DB is unauthenticated. Authentication is the session
// provider's job, on this same connection, so that record-level access rules
// apply to every query the store issues.
func Connect(ctx context.Context, endpoint, namespace, database string) (*surrealdb.DB, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse endpoint URL: %w", err)
	}

	conf := connection.NewConfig(u)
	c := surrealcbor.New()
	conf.Marshaler = c
	conf.Unmarshaler = c

	conn := gorillaws.New(conf)

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, namespace, database); err != nil {
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}
	return db, nil
}

// New wraps an existing connection. The caller keeps ownership of
// authentication state; Close tears the connection down.
func New(db *surrealdb.DB, log zerolog.Logger) *Store {
	return &Store{
		db:    db,
		codec: surrealcbor.New(),
		log:   log,
	}
}

func (s *Store) ListNotes(ctx context.Context, userID models.UserID) ([]models.Note, error) {
	// The snapshot intentionally includes archived and deleted rows; view
	// filtering is the reconciliation core's concern. Ordering here matches
	// the core's visible sort so the initial render needs no resort.
	query := "SELECT * FROM type::table($tb) WHERE user_id = $user ORDER BY is_pinned DESC, updated_at DESC"
	params := map[string]any{
		"tb":   models.NoteTable,
		"user": userID.RecordID(),
	}

	result, err := surrealdb.Query[[]models.Note](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w: %s", store.ErrUnavailable, err)
	}

	notes := []models.Note{}
	if result != nil && len(*result) > 0 {
		notes = append(notes, (*result)[0].Result...)
	}
	return notes, nil
}

func (s *Store) CreateNote(ctx context.Context, note *models.Note) error {
	if note.ID.IsZero() {
		note.ID = models.NewNoteID()
	}
	now := time.Now()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	if note.UpdatedAt.IsZero() {
		note.UpdatedAt = now
	}

	// The model marshals directly: typed IDs become RecordIDs through
	// their MarshalCBOR.
	if _, err := surrealdb.Create[models.Note](ctx, s.db, models.NoteTable, note); err != nil {
		return fmt.Errorf("create note: %w: %s", store.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) UpdateNote(ctx context.Context, note *models.Note) error {
	note.Touch(time.Now())
	if _, err := surrealdb.Update[models.Note](ctx, s.db, note.ID.RecordID(), note); err != nil {
		return fmt.Errorf("update note: %w: %s", store.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) SoftDeleteNote(ctx context.Context, id models.NoteID) error {
	// An UPDATE, not a DELETE: the row must survive so the change stream
	// echoes it and other sessions drop the note from their views.
	query := "UPDATE $note SET is_deleted = true, updated_at = $now"
	params := map[string]any{
		"note": id.RecordID(),
		"now":  time.Now(),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, query, params); err != nil {
		return fmt.Errorf("soft delete note: %w: %s", store.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, userID models.UserID) (<-chan store.ChangeEvent, func(), error) {
	query := "LIVE SELECT * FROM type::table($tb) WHERE user_id = $user"
	params := map[string]any{
		"tb":   models.NoteTable,
		"user": userID.RecordID(),
	}

	result, err := surrealdb.Query[sdbmodels.UUID](ctx, s.db, query, params)
	if err != nil {
		return nil, nil, fmt.Errorf("start live query: %w: %s", store.ErrUnavailable, err)
	}
	if result == nil || len(*result) == 0 {
		return nil, nil, fmt.Errorf("start live query: %w: empty result", store.ErrUnavailable)
	}
	liveID := (*result)[0].Result.String()

	notifications, err := s.db.LiveNotifications(liveID)
	if err != nil {
		return nil, nil, fmt.Errorf("live notifications: %w: %s", store.ErrUnavailable, err)
	}

	out := make(chan store.ChangeEvent, 64)
	go s.forward(notifications, out)

	cancel := func() {
		// Killing the live query closes the notification channel, which in
		// turn ends the forwarding goroutine and closes out.
		if err := surrealdb.Kill(context.Background(), s.db, liveID); err != nil {
			s.log.Warn().Err(err).Str("live_id", liveID).Msg("failed to kill live query")
		}
	}
	return out, cancel, nil
}

// forward decodes raw live notifications into change events. Undecodable
// payloads are logged and skipped; a malformed event must never wedge the
// stream.
func (s *Store) forward(in chan connection.Notification, out chan<- store.ChangeEvent) {
	defer close(out)
	for notification := range in {
		action, ok := mapAction(notification.Action)
		if !ok {
			s.log.Warn().Str("action", string(notification.Action)).Msg("unknown live query action")
			continue
		}

		note, err := s.decodeNote(notification.Result)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to decode live notification")
			continue
		}
		out <- store.ChangeEvent{Action: action, Note: note}
	}
}

// decodeNote converts a notification payload (map[string]any with SurrealDB
// native values) into a Note by round-tripping through the connection codec.
func (s *Store) decodeNote(result any) (models.Note, error) {
	raw, err := s.codec.Marshal(result)
	if err != nil {
		return models.Note{}, fmt.Errorf("re-marshal notification: %w", err)
	}
	var note models.Note
	if err := s.codec.Unmarshal(raw, &note); err != nil {
		return models.Note{}, fmt.Errorf("unmarshal note: %w", err)
	}
	return note, nil
}

func mapAction(a connection.Action) (store.ChangeAction, bool) {
	switch a {
	case connection.CreateAction:
		return store.Created, true
	case connection.UpdateAction:
		return store.Updated, true
	case connection.DeleteAction:
		return store.Deleted, true
	default:
		return "", false
	}
}

func (s *Store) Close() error {
	return s.db.Close(context.Background())
}
