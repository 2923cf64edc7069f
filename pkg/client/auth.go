package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/quillnotes/quill/pkg/session"
)

// SignUpRequest represents a sign-up request.
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInRequest represents a sign-in request.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse represents an authentication response.
type AuthResponse struct {
	Session *session.Session `json:"session"`
}

// SignUp creates a new account and activates its session.
func (c *Client) SignUp(ctx context.Context, email, password string) (*AuthResponse, error) {
	req := SignUpRequest{Email: email, Password: password}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/signup", req)
	if err != nil {
		return nil, fmt.Errorf("signup request failed: %w", err)
	}

	var result AuthResponse
	if err := decodeResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to decode signup response: %w", err)
	}

	if result.Session != nil {
		c.SetAuthToken(result.Session.Token)
	}
	return &result, nil
}

// SignIn authenticates an existing account.
func (c *Client) SignIn(ctx context.Context, email, password string) (*AuthResponse, error) {
	req := SignInRequest{Email: email, Password: password}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/signin", req)
	if err != nil {
		return nil, fmt.Errorf("signin request failed: %w", err)
	}

	var result AuthResponse
	if err := decodeResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to decode signin response: %w", err)
	}

	if result.Session != nil {
		c.SetAuthToken(result.Session.Token)
	}
	return &result, nil
}

// SignOut ends the current session.
func (c *Client) SignOut(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/signout", nil)
	if err != nil {
		return fmt.Errorf("signout request failed: %w", err)
	}

	if err := decodeResponse(resp, nil); err != nil {
		return fmt.Errorf("failed to process signout response: %w", err)
	}

	c.SetAuthToken("")
	return nil
}

// CurrentSession retrieves the active session.
func (c *Client) CurrentSession(ctx context.Context) (*AuthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/auth/me", nil)
	if err != nil {
		return nil, fmt.Errorf("current session request failed: %w", err)
	}

	var result AuthResponse
	if err := decodeResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to decode session response: %w", err)
	}
	return &result, nil
}
