package quill

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/quillnotes/quill/pkg/models"
	"github.com/quillnotes/quill/pkg/notebook"
	"github.com/quillnotes/quill/pkg/store"
)

// SaveNoteRequest is the save intent of the editor. ID selects an existing
// note to update; omitted or empty it creates a new one.
type SaveNoteRequest struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// requireNotebook resolves the active notebook or writes the error response:
// 401 when signed out, 503 when the session exists but the note list never
// loaded (store unreachable at sign-in).
func (a *App) requireNotebook(w http.ResponseWriter) *notebook.Notebook {
	if a.session.Current() == nil {
		respondError(w, http.StatusUnauthorized, "not signed in")
		return nil
	}
	nb := a.Notebook()
	if nb == nil {
		respondError(w, http.StatusServiceUnavailable, "note store unavailable")
		return nil
	}
	return nb
}

// handleListNotes returns the visible notes of one view. ?archived=true
// selects the archived view; anything else the active one. The two views
// partition the non-deleted notes; deleted notes appear in neither.
func (a *App) handleListNotes(w http.ResponseWriter, r *http.Request) {
	nb := a.requireNotebook(w)
	if nb == nil {
		return
	}

	archivedView := r.URL.Query().Get("archived") == "true"
	respondJSON(w, http.StatusOK, nb.VisibleNotes(archivedView))
}

// handleSaveNote persists the editor contents. The target note id travels
// with the request and is resolved inside the notebook, so overlapping
// saves from different tabs cannot write onto each other's notes. Empty
// content is rejected before any store call; a store failure leaves
// everything unchanged so the client keeps its editor open.
func (a *App) handleSaveNote(w http.ResponseWriter, r *http.Request) {
	nb := a.requireNotebook(w)
	if nb == nil {
		return
	}

	var req SaveNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	var target *models.NoteID
	if req.ID != "" {
		id, err := models.ParseNoteID(req.ID)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid note ID")
			return
		}
		target = &id
	}

	if err := nb.Save(r.Context(), target, notebook.Fields{Title: req.Title, Content: req.Content}); err != nil {
		switch {
		case errors.Is(err, notebook.ErrEmptyContent):
			respondError(w, http.StatusUnprocessableEntity, "note content must not be empty")
		case errors.Is(err, store.ErrUnavailable):
			respondError(w, http.StatusBadGateway, "note store unavailable")
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, nb.VisibleNotes(false))
}

func (a *App) handleTogglePin(w http.ResponseWriter, r *http.Request) {
	a.handleToggle(w, r, (*notebook.Notebook).TogglePin)
}

func (a *App) handleToggleArchive(w http.ResponseWriter, r *http.Request) {
	a.handleToggle(w, r, (*notebook.Notebook).ToggleArchive)
}

func (a *App) handleToggle(
	w http.ResponseWriter,
	r *http.Request,
	op func(*notebook.Notebook, context.Context, models.NoteID) error,
) {
	nb := a.requireNotebook(w)
	if nb == nil {
		return
	}

	id, err := models.ParseNoteID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid note ID")
		return
	}

	if err := op(nb, r.Context(), id); err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			respondError(w, http.StatusBadGateway, "note store unavailable")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Unknown ids fall through here as well: a stale toggle is a no-op,
	// not an error the user can act on.
	respondJSON(w, http.StatusOK, nb.VisibleNotes(false))
}

// handleDeleteNote soft-deletes: the row is flagged, not removed, so other
// sessions see the change through the stream.
func (a *App) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	nb := a.requireNotebook(w)
	if nb == nil {
		return
	}

	id, err := models.ParseNoteID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid note ID")
		return
	}

	if err := nb.SoftDelete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			respondError(w, http.StatusBadGateway, "note store unavailable")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, nb.VisibleNotes(false))
}

// handleRefresh forces a full snapshot reload.
func (a *App) handleRefresh(w http.ResponseWriter, r *http.Request) {
	nb := a.requireNotebook(w)
	if nb == nil {
		return
	}

	if err := nb.Refresh(r.Context()); err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			respondError(w, http.StatusBadGateway, "note store unavailable")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, nb.VisibleNotes(false))
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
