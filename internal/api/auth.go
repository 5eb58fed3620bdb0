package api

import (
	"context"
	"net/http"
)

// Login exchanges credentials for a token and user record. It never sends a
// bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/auth/login",
		path:   "/auth/login",
		body:   LoginRequest{Email: email, Password: password},
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Signup creates an account. The backend does not return a session.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*MessageResponse, error) {
	var resp MessageResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/auth/signup",
		path:   "/auth/signup",
		body:   req,
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ChangePassword changes the signed-in user's password.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) (*MessageResponse, error) {
	var resp MessageResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/auth/change-password",
		path:   "/auth/change-password",
		body:   changePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword},
		auth:   true,
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
