package api

import (
	"context"
	"fmt"
	"net/http"
)

// ListDepartments lists departments. It needs no session so the signup form
// can offer them.
func (c *Client) ListDepartments(ctx context.Context) ([]Department, error) {
	var depts []Department
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/departments",
		path:   "/departments",
		out:    &depts,
	})
	if err != nil {
		return nil, err
	}
	return depts, nil
}

// CreateDepartment adds a department. Admin only.
func (c *Client) CreateDepartment(ctx context.Context, name string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		route:  "/departments",
		path:   "/departments",
		body:   map[string]string{"name": name},
		auth:   true,
	})
}

// DeleteDepartment removes a department. Admin only.
func (c *Client) DeleteDepartment(ctx context.Context, id int64) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		route:  "/departments/{id}",
		path:   fmt.Sprintf("/departments/%d", id),
		auth:   true,
	})
}

// ListDepartmentFeeds lists feed posts, newest first. An empty department
// lists all of them.
func (c *Client) ListDepartmentFeeds(ctx context.Context, department string) ([]DepartmentFeed, error) {
	var feeds []DepartmentFeed
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/department-feeds",
		path:   "/department-feeds",
		query:  map[string]string{"department": department},
		auth:   true,
		out:    &feeds,
	})
	if err != nil {
		return nil, err
	}
	return feeds, nil
}

// CreateDepartmentFeed posts to a department feed. Admin only.
func (c *Client) CreateDepartmentFeed(ctx context.Context, feed NewDepartmentFeed) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		route:  "/department-feeds",
		path:   "/department-feeds",
		body:   feed,
		auth:   true,
	})
}

// DeleteDepartmentFeed removes a feed post. Admin only.
func (c *Client) DeleteDepartmentFeed(ctx context.Context, id int64) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		route:  "/department-feeds/{id}",
		path:   fmt.Sprintf("/department-feeds/%d", id),
		auth:   true,
	})
}
