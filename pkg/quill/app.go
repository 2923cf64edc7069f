// Package quill wires the note client together: session provider, remote
// store, reconciliation core, and the HTTP/websocket surface the browser UI
// consumes.
package quill

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quillnotes/quill/pkg/notebook"
	"github.com/quillnotes/quill/pkg/session"
	"github.com/quillnotes/quill/pkg/store"
	"github.com/quillnotes/quill/pkg/store/memory"
	surrealstore "github.com/quillnotes/quill/pkg/store/surrealdb"
)

// Config carries backend and server configuration shared by all commands.
type Config struct {
	// SurrealDB connection settings.
	Endpoint  string
	Namespace string
	Database  string
	// Access is the record access method used for sign-up and sign-in.
	Access string

	// Addr is the listen address of the HTTP surface.
	Addr string

	// Demo runs against the in-memory store and authenticator instead of a
	// SurrealDB instance.
	Demo bool
}

// App owns the application context: one store connection, one session
// provider, and at most one active notebook. The notebook is created when a
// session is acquired and torn down on sign-out, never held as ambient
// state.
type App struct {
	config  *Config
	log     zerolog.Logger
	store   store.Store
	session *session.Provider

	mu        sync.RWMutex
	notebook  *notebook.Notebook
	stopWatch func()
}

// New connects the configured backend and assembles the application. In demo
// mode everything runs in-process.
func New(ctx context.Context, config *Config, log zerolog.Logger) (*App, error) {
	var (
		st   store.Store
		auth session.Authenticator
	)

	if config.Demo {
		st = memory.New()
		auth = session.NewMemoryAuthenticator()
		log.Info().Msg("running in demo mode against the in-memory store")
	} else {
		db, err := surrealstore.Connect(ctx, config.Endpoint, config.Namespace, config.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
		}
		st = surrealstore.New(db, log)
		auth = session.NewSurrealAuthenticator(db, config.Namespace, config.Database, config.Access)
		log.Info().Str("endpoint", config.Endpoint).Msg("connected to SurrealDB")
	}

	a := &App{
		config:  config,
		log:     log,
		store:   st,
		session: session.NewProvider(auth, log),
	}
	a.stopWatch = a.session.OnChange(a.onSessionChange)
	return a, nil
}

// onSessionChange is the explicit init/teardown hook of the notebook
// lifecycle: sign-in builds and starts a notebook, sign-out closes it.
func (a *App) onSessionChange(sess *session.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.notebook != nil {
		a.notebook.Close()
		a.notebook = nil
	}
	if sess == nil {
		a.log.Info().Msg("session ended")
		return
	}

	nb := notebook.New(a.store, a.log)
	if err := nb.Start(context.Background(), sess); err != nil {
		// The list surface reports unavailability until the next sign-in
		// attempt; a stale or empty list is never shown as if it were
		// current.
		a.log.Error().Err(err).Str("user_id", sess.UserID.String()).Msg("failed to start notebook")
		return
	}
	a.notebook = nb
	a.log.Info().Str("user_id", sess.UserID.String()).Msg("notebook started")
}

// Notebook returns the active notebook, or nil when signed out or when the
// initial snapshot failed.
func (a *App) Notebook() *notebook.Notebook {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.notebook
}

// Session returns the session provider.
func (a *App) Session() *session.Provider {
	return a.session
}

// Store returns the backing note store. Demo tooling and tests use it to
// act as another session of the same user.
func (a *App) Store() store.Store {
	return a.store
}

// Close tears down the notebook and the store connection.
func (a *App) Close() error {
	if a.stopWatch != nil {
		a.stopWatch()
	}

	a.mu.Lock()
	if a.notebook != nil {
		a.notebook.Close()
		a.notebook = nil
	}
	a.mu.Unlock()

	return a.store.Close()
}
