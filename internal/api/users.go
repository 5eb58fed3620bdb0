package api

import (
	"context"
	"net/http"

	"github.com/felixgeelhaar/calsync/internal/session"
)

// Me fetches the signed-in user's profile.
func (c *Client) Me(ctx context.Context) (*session.User, error) {
	var u session.User
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/users/me",
		path:   "/users/me",
		auth:   true,
		out:    &u,
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateMe edits the signed-in user's profile. The backend answers with a
// message only; callers re-fetch the profile with Me.
func (c *Client) UpdateMe(ctx context.Context, update ProfileUpdate) (*MessageResponse, error) {
	var resp MessageResponse
	err := c.do(ctx, request{
		method: http.MethodPut,
		route:  "/users/me",
		path:   "/users/me",
		body:   update,
		auth:   true,
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// RegisterPushToken associates a push token with the signed-in user.
func (c *Client) RegisterPushToken(ctx context.Context, token string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		route:  "/users/fcm-token",
		path:   "/users/fcm-token",
		body:   pushTokenRequest{Token: token},
		auth:   true,
	})
}

// ListUsers lists every account. Admin only.
func (c *Client) ListUsers(ctx context.Context) ([]session.User, error) {
	var users []session.User
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/users",
		path:   "/users",
		auth:   true,
		out:    &users,
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}
