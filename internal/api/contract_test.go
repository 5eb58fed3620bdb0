package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/calsync/internal/errors"
)

func loadContract(t *testing.T) *Contract {
	t.Helper()
	c, err := LoadContract(context.Background())
	require.NoError(t, err)
	return c
}

func TestContract_Template(t *testing.T) {
	c := loadContract(t)

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"/events", "/events", true},
		{"/events/stats", "/events/stats", true},
		{"/events/17", "/events/{id}", true},
		{"/notifications/3/read", "/notifications/{id}/read", true},
		{"/department-feeds/9", "/department-feeds/{id}", true},
		{"/api/events", "", false},
		{"/events/1/extra", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := c.Template(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContract_RequiresAuth(t *testing.T) {
	c := loadContract(t)

	assert.True(t, c.RequiresAuth("POST", "/users/fcm-token"))
	assert.True(t, c.RequiresAuth("DELETE", "/events/5"))
	assert.False(t, c.RequiresAuth("POST", "/auth/login"))
	assert.False(t, c.RequiresAuth("GET", "/departments"))
}

func TestContract_ValidateRequest(t *testing.T) {
	c := loadContract(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		method  string
		path    string
		body    string
		wantErr bool
	}{
		{"valid login", "POST", "/auth/login", `{"email":"a@b.c","password":"x"}`, false},
		{"login missing password", "POST", "/auth/login", `{"email":"a@b.c"}`, true},
		{"login empty email", "POST", "/auth/login", `{"email":"","password":"x"}`, true},
		{"signup bad role", "POST", "/auth/signup", `{"first_name":"a","last_name":"b","email":"a@b.c","password":"x","role":"owner"}`, true},
		{"event without title", "POST", "/events", `{"title":"","start_datetime":"s","end_datetime":"e"}`, true},
		{"event negative reminder", "POST", "/events", `{"title":"t","start_datetime":"s","end_datetime":"e","reminders":[-5]}`, true},
		{"valid event", "POST", "/events", `{"title":"t","start_datetime":"s","end_datetime":"e","reminders":[15,60]}`, false},
		{"empty profile update", "PUT", "/users/me", `{}`, true},
		{"profile update unknown field", "PUT", "/users/me", `{"role":"admin"}`, true},
		{"missing required body", "POST", "/users/fcm-token", ``, true},
		{"get without body", "GET", "/events/4", ``, false},
		{"unknown endpoint", "GET", "/api/events", ``, true},
		{"unknown method", "PATCH", "/events", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body []byte
			if tt.body != "" {
				body = []byte(tt.body)
			}
			err := c.ValidateRequest(ctx, tt.method, tt.path, nil, body)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsValidation(err), "want validation failure, got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClient_ContractStopsInvalidRequests(t *testing.T) {
	var hits int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeJSON(w, http.StatusCreated, CreatedEvent{Success: true, EventID: 1})
	}, staticTokens{token: "tok"}, WithContract(loadContract(t)))

	_, err := c.CreateEvent(context.Background(), NewEvent{StartDateTime: "s", EndDateTime: "e"})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))

	created, err := c.CreateEvent(context.Background(), NewEvent{Title: "Retro", StartDateTime: "s", EndDateTime: "e"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.EventID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestClient_ContractRejectsAnonymousCallsToSecuredRoutes(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": 1, "email": "a@b.c", "role": "employee"})
	}, staticTokens{token: "tok"}, WithContract(loadContract(t)))

	var out map[string]any
	err := c.Call(context.Background(), http.MethodGet, "/users/me", nil, false, &out)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))

	require.NoError(t, c.Call(context.Background(), http.MethodGet, "/users/me", nil, true, &out))
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}
