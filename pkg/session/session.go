// Package session tracks the authenticated user and announces sign-in and
// sign-out transitions.
//
// The [Provider] owns the current session and is the application's single
// source of identity. Credential verification itself is delegated to an
// [Authenticator]; the SurrealDB-backed implementation lives in this package
// ([NewSurrealAuthenticator]) and an in-process one ([NewMemoryAuthenticator])
// serves tests and demo mode.
//
// Change callbacks fire once per transition, on the goroutine performing the
// sign-in or sign-out. Handlers must not call back into the Provider.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quillnotes/quill/pkg/models"
)

// ErrInvalidCredentials reports a rejected sign-in or sign-up.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Session is an authenticated user identity.
type Session struct {
	Token  string        `json:"token"`
	UserID models.UserID `json:"user_id"`
	Email  string        `json:"email"`
}

// Authenticator verifies credentials against an identity backend.
type Authenticator interface {
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	Invalidate(ctx context.Context) error
}

// Provider holds the active session and fans out session-change events.
type Provider struct {
	auth Authenticator
	log  zerolog.Logger

	mu       sync.RWMutex
	current  *Session
	handlers map[int]func(*Session)
	nextID   int
}

// NewProvider returns a signed-out provider.
func NewProvider(auth Authenticator, log zerolog.Logger) *Provider {
	return &Provider{
		auth:     auth,
		log:      log,
		handlers: make(map[int]func(*Session)),
	}
}

// Current returns the active session, or nil when signed out.
func (p *Provider) Current() *Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// OnChange registers a callback fired with the new session (nil on sign-out)
// whenever the active session changes. The returned func unregisters it.
func (p *Provider) OnChange(fn func(*Session)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.handlers[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.handlers, id)
		p.mu.Unlock()
	}
}

// SignUp creates an account and activates its session.
func (p *Provider) SignUp(ctx context.Context, email, password string) (*Session, error) {
	sess, err := p.auth.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	p.setCurrent(sess)
	return sess, nil
}

// SignIn authenticates and activates the session.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	sess, err := p.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	p.setCurrent(sess)
	return sess, nil
}

// SignOut clears the active session and notifies subscribers. The local
// session is dropped even when backend invalidation fails; the returned
// error reports that failure.
func (p *Provider) SignOut(ctx context.Context) error {
	err := p.auth.Invalidate(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("failed to invalidate session on backend")
	}
	p.setCurrent(nil)
	return err
}

func (p *Provider) setCurrent(sess *Session) {
	p.mu.Lock()
	if p.current == nil && sess == nil {
		// Signed out already; no transition, no callbacks.
		p.mu.Unlock()
		return
	}
	p.current = sess
	fns := make([]func(*Session), 0, len(p.handlers))
	for _, fn := range p.handlers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(sess)
	}
}
