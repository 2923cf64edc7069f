package session

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/quillnotes/quill/pkg/models"
)

// SurrealAuthenticator verifies credentials against SurrealDB record access.
// Sign-up and sign-in run on the shared application connection, so after a
// successful call every store query executes with that user's record-level
// permissions.
type SurrealAuthenticator struct {
	db        *surrealdb.DB
	namespace string
	database  string
	access    string
}

var _ Authenticator = (*SurrealAuthenticator)(nil)

// NewSurrealAuthenticator wires record access authentication on db. access
// is the name of the ACCESS method defined on the database (for example
// "account").
func NewSurrealAuthenticator(db *surrealdb.DB, namespace, database, access string) *SurrealAuthenticator {
	return &SurrealAuthenticator{
		db:        db,
		namespace: namespace,
		database:  database,
		access:    access,
	}
}

func (a *SurrealAuthenticator) SignUp(ctx context.Context, email, password string) (*Session, error) {
	token, err := a.db.SignUp(ctx, map[string]any{
		"NS":    a.namespace,
		"DB":    a.database,
		"AC":    a.access,
		"email": email,
		"pass":  password,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, err)
	}
	return a.sessionFromToken(ctx, token, email)
}

func (a *SurrealAuthenticator) SignIn(ctx context.Context, email, password string) (*Session, error) {
	token, err := a.db.SignIn(ctx, map[string]any{
		"NS":    a.namespace,
		"DB":    a.database,
		"AC":    a.access,
		"email": email,
		"pass":  password,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, err)
	}
	return a.sessionFromToken(ctx, token, email)
}

func (a *SurrealAuthenticator) Invalidate(ctx context.Context) error {
	if err := a.db.Invalidate(ctx); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}

// sessionFromToken resolves the authenticated user record. $auth is bound by
// SurrealDB to the record the token was issued for.
func (a *SurrealAuthenticator) sessionFromToken(ctx context.Context, token, email string) (*Session, error) {
	type authUser struct {
		ID    models.UserID `json:"id"`
		Email string        `json:"email"`
	}

	result, err := surrealdb.Query[authUser](ctx, a.db, "SELECT id, email FROM ONLY $auth", nil)
	if err != nil {
		return nil, fmt.Errorf("resolve authenticated user: %w", err)
	}
	if result == nil || len(*result) == 0 {
		return nil, fmt.Errorf("resolve authenticated user: empty result")
	}

	user := (*result)[0].Result
	if user.Email == "" {
		user.Email = email
	}
	return &Session{
		Token:  token,
		UserID: user.ID,
		Email:  user.Email,
	}, nil
}
