package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/quillnotes/quill/pkg/models"
)

// SaveNoteRequest is the save intent: ID set updates an existing note,
// empty creates a new one.
type SaveNoteRequest struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ListNotes returns the visible notes of one view, ordered pinned-first and
// then most recently updated.
func (c *Client) ListNotes(ctx context.Context, archivedView bool) ([]models.Note, error) {
	path := "/api/notes"
	if archivedView {
		path += "?archived=true"
	}

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("list notes request failed: %w", err)
	}

	var result []models.Note
	if err := decodeResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to decode notes: %w", err)
	}
	return result, nil
}

// SaveNote persists editor contents and returns the refreshed active view.
func (c *Client) SaveNote(ctx context.Context, req SaveNoteRequest) ([]models.Note, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/notes", req)
	if err != nil {
		return nil, fmt.Errorf("save note request failed: %w", err)
	}

	var result []models.Note
	if err := decodeResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to decode save response: %w", err)
	}
	return result, nil
}

// TogglePin flips the pinned flag of a note.
func (c *Client) TogglePin(ctx context.Context, id models.NoteID) ([]models.Note, error) {
	return c.noteAction(ctx, http.MethodPost, fmt.Sprintf("/api/notes/%s/pin", id))
}

// ToggleArchive moves a note between the active and archived views.
func (c *Client) ToggleArchive(ctx context.Context, id models.NoteID) ([]models.Note, error) {
	return c.noteAction(ctx, http.MethodPost, fmt.Sprintf("/api/notes/%s/archive", id))
}

// DeleteNote soft-deletes a note.
func (c *Client) DeleteNote(ctx context.Context, id models.NoteID) ([]models.Note, error) {
	return c.noteAction(ctx, http.MethodDelete, fmt.Sprintf("/api/notes/%s", id))
}

// RefreshNotes forces a snapshot reload on the server.
func (c *Client) RefreshNotes(ctx context.Context) ([]models.Note, error) {
	return c.noteAction(ctx, http.MethodPost, "/api/notes/refresh")
}

func (c *Client) noteAction(ctx context.Context, method, path string) ([]models.Note, error) {
	resp, err := c.doRequest(ctx, method, path, nil)
	if err != nil {
		return nil, fmt.Errorf("note request failed: %w", err)
	}

	var result []models.Note
	if err := decodeResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to decode notes: %w", err)
	}
	return result, nil
}
