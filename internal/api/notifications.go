package api

import (
	"context"
	"fmt"
	"net/http"
)

// ListNotifications lists delivered, unread reminders for the signed-in user.
func (c *Client) ListNotifications(ctx context.Context) ([]Notification, error) {
	var ns []Notification
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/notifications",
		path:   "/notifications",
		auth:   true,
		out:    &ns,
	})
	if err != nil {
		return nil, err
	}
	return ns, nil
}

// MarkNotificationRead marks one reminder as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		route:  "/notifications/{id}/read",
		path:   fmt.Sprintf("/notifications/%d/read", id),
		auth:   true,
	})
}

// Health fetches the backend health report. An unhealthy backend answers 500
// with the same body; that case is returned as a RequestFailed error.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/health",
		path:   "/health",
		out:    &h,
	})
	if err != nil {
		return nil, err
	}
	return &h, nil
}
