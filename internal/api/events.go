package api

import (
	"context"
	"fmt"
	"net/http"
)

// ListEvents lists all events ordered by start time.
func (c *Client) ListEvents(ctx context.Context) ([]Event, error) {
	var events []Event
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/events",
		path:   "/events",
		auth:   true,
		out:    &events,
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// GetEvent fetches one event.
func (c *Client) GetEvent(ctx context.Context, id int64) (*Event, error) {
	var ev Event
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/events/{id}",
		path:   fmt.Sprintf("/events/%d", id),
		auth:   true,
		out:    &ev,
	})
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// CreateEvent creates an event and its reminders.
func (c *Client) CreateEvent(ctx context.Context, ev NewEvent) (*CreatedEvent, error) {
	if ev.Departments == nil {
		ev.Departments = []string{}
	}
	var resp CreatedEvent
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/events",
		path:   "/events",
		body:   ev,
		auth:   true,
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteEvent deletes an event. Only admins and the event's creator may.
func (c *Client) DeleteEvent(ctx context.Context, id int64) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		route:  "/events/{id}",
		path:   fmt.Sprintf("/events/%d", id),
		auth:   true,
	})
}

// EventStats fetches the dashboard counters.
func (c *Client) EventStats(ctx context.Context) (*EventStats, error) {
	var stats EventStats
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/events/stats",
		path:   "/events/stats",
		auth:   true,
		out:    &stats,
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
