package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/quillnotes/quill/pkg/models"
)

// MemoryAuthenticator is an in-process identity backend for tests and demo
// mode. Accounts live for the process lifetime; passwords are compared in
// plain text because nothing durable is at stake.
type MemoryAuthenticator struct {
	mu       sync.Mutex
	accounts map[string]memoryAccount
}

type memoryAccount struct {
	userID   models.UserID
	password string
}

var _ Authenticator = (*MemoryAuthenticator)(nil)

func NewMemoryAuthenticator() *MemoryAuthenticator {
	return &MemoryAuthenticator{accounts: make(map[string]memoryAccount)}
}

func (a *MemoryAuthenticator) SignUp(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password required", ErrInvalidCredentials)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.accounts[email]; exists {
		return nil, fmt.Errorf("%w: account already exists", ErrInvalidCredentials)
	}
	acct := memoryAccount{userID: models.NewUserID(), password: password}
	a.accounts[email] = acct

	return &Session{
		Token:  uuid.NewString(),
		UserID: acct.userID,
		Email:  email,
	}, nil
}

func (a *MemoryAuthenticator) SignIn(ctx context.Context, email, password string) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	acct, ok := a.accounts[email]
	if !ok || acct.password != password {
		return nil, ErrInvalidCredentials
	}
	return &Session{
		Token:  uuid.NewString(),
		UserID: acct.userID,
		Email:  email,
	}, nil
}

func (a *MemoryAuthenticator) Invalidate(ctx context.Context) error {
	return nil
}
