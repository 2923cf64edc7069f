package quill

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Router builds the HTTP surface. Split out of Run so handler tests can
// mount it on an httptest server.
func (a *App) Router() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", a.handleHealth).Methods("GET")

	api.HandleFunc("/auth/signup", a.handleSignUp).Methods("POST")
	api.HandleFunc("/auth/signin", a.handleSignIn).Methods("POST")
	api.HandleFunc("/auth/signout", a.handleSignOut).Methods("POST")
	api.HandleFunc("/auth/me", a.handleCurrentSession).Methods("GET")

	api.HandleFunc("/notes", a.handleListNotes).Methods("GET")
	api.HandleFunc("/notes", a.handleSaveNote).Methods("POST")
	api.HandleFunc("/notes/refresh", a.handleRefresh).Methods("POST")
	api.HandleFunc("/notes/{id}/pin", a.handleTogglePin).Methods("POST")
	api.HandleFunc("/notes/{id}/archive", a.handleToggleArchive).Methods("POST")
	api.HandleFunc("/notes/{id}", a.handleDeleteNote).Methods("DELETE")

	api.HandleFunc("/events", a.handleEvents).Methods("GET")

	router.HandleFunc("/health", a.handleHealth).Methods("GET")
	return router
}

// Run serves the HTTP surface until ctx is cancelled, then shuts down
// gracefully.
func (a *App) Run(ctx context.Context, cmd *RunCommand) error {
	addr := a.config.Addr
	if cmd.Addr != "" {
		addr = cmd.Addr
	}

	a.log.Info().Str("addr", addr).Msg("starting quill server")

	server := &http.Server{
		Addr:    addr,
		Handler: a.Router(),
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}
