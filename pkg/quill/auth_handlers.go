package quill

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quillnotes/quill/pkg/session"
)

// SignUpRequest creates an account and signs it in.
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInRequest authenticates an existing account.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries the session issued on a successful sign-up or
// sign-in.
type AuthResponse struct {
	Session *session.Session `json:"session"`
}

func (a *App) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	sess, err := a.session.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, AuthResponse{Session: sess})
}

func (a *App) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	sess, err := a.session.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, AuthResponse{Session: sess})
}

func (a *App) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := a.session.SignOut(r.Context()); err != nil {
		// The local session is gone either way; report the backend
		// failure without resurrecting it.
		a.log.Warn().Err(err).Msg("sign-out backend invalidation failed")
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

func (a *App) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	sess := a.session.Current()
	if sess == nil {
		respondError(w, http.StatusUnauthorized, "not signed in")
		return
	}
	respondJSON(w, http.StatusOK, AuthResponse{Session: sess})
}
