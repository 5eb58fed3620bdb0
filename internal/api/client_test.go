package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/calsync/internal/errors"
	"github.com/felixgeelhaar/calsync/internal/metrics"
	"github.com/felixgeelhaar/calsync/internal/session"
)

type staticTokens struct {
	token string
	epoch uint64
}

func (s staticTokens) Token() (string, uint64, bool) {
	return s.token, s.epoch, s.token != ""
}

func newTestClient(t *testing.T, h http.HandlerFunc, tokens TokenSource, opts ...Option) (*Client, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, tokens, opts...), &hits
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestCall_AttachesBearerToken(t *testing.T) {
	var gotAuth, gotReqID string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-ID")
		writeJSON(w, http.StatusOK, map[string]any{"id": 3, "email": "a@b.c", "role": "employee"})
	}, staticTokens{token: "tok-123"})

	u, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.NotEmpty(t, gotReqID)
	assert.Equal(t, "3", u.ID.String())
}

func TestCall_UnauthenticatedCallSendsNoToken(t *testing.T) {
	var gotAuth string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, []Department{{ID: 1, Name: "HR"}})
	}, staticTokens{token: "tok"})

	depts, err := c.ListDepartments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
	assert.Equal(t, []Department{{ID: 1, Name: "HR"}}, depts)
}

func TestCall_FailsFastWithoutSession(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, nil)
	}, staticTokens{})

	_, err := c.ListEvents(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsUnauthenticated(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(hits), "no request may be sent")

	// a nil token source behaves the same
	c2 := NewClient(c.BaseURL(), nil)
	_, err = c2.ListEvents(context.Background())
	assert.True(t, errors.IsUnauthenticated(err))
}

func TestCall_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		check      func(error) bool
		wantMsg    string
		wantStatus int
	}{
		{"error field", 400, `{"error":"Email already exists"}`, errors.IsRequestFailed, "Email already exists", 400},
		{"message field", 409, `{"message":"conflict"}`, errors.IsRequestFailed, "conflict", 409},
		{"error wins over message", 400, `{"error":"first","message":"second"}`, errors.IsRequestFailed, "first", 400},
		{"no structured body", 502, `<html>bad gateway</html>`, errors.IsRequestFailed, "request failed with status 502", 502},
		{"empty body", 500, ``, errors.IsRequestFailed, "request failed with status 500", 500},
		{"unauthorized", 401, `{"error":"Token has expired"}`, errors.IsUnauthenticated, "Token has expired", 401},
		{"forbidden", 403, `{"error":"Admin access required"}`, errors.IsForbidden, "Admin access required", 403},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, staticTokens{token: "tok"})

			err := c.Call(context.Background(), http.MethodGet, "/users", nil, true, nil)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error kind: %v", err)
			assert.Equal(t, tt.wantMsg, errors.Message(err))
			assert.Equal(t, tt.wantStatus, errors.StatusOf(err))
		})
	}
}

func TestCall_ReportsUnauthorizedWithEpoch(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Token has expired"})
	}, staticTokens{token: "tok", epoch: 7})

	var calls int32
	var gotEpoch uint64
	c.OnUnauthenticated(func(_ context.Context, epoch uint64) {
		atomic.AddInt32(&calls, 1)
		gotEpoch = epoch
	})

	_, err := c.ListNotifications(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, uint64(7), gotEpoch)
}

func TestCall_UnauthorizedLoginIsNotReported(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Invalid email or password"})
	}, staticTokens{})

	reported := false
	c.OnUnauthenticated(func(context.Context, uint64) { reported = true })

	_, err := c.Login(context.Background(), "a@b.c", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Invalid email or password", errors.Message(err))
	assert.False(t, reported)
}

func TestCall_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, staticTokens{token: "tok"})
	_, err := c.Login(context.Background(), "a@b.c", "pw")
	require.Error(t, err)
	assert.True(t, errors.IsNetwork(err))
	assert.Equal(t, "Network error", errors.Message(err))
}

func TestCall_Timeout(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, nil, WithTimeout(50*time.Millisecond))

	_, err := c.Health(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsNetwork(err))
}

func TestCall_RawTextAndEmptyBodies(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("OK"))
		case "/auth/signup":
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}, staticTokens{token: "tok"})

	var text string
	require.NoError(t, c.Call(context.Background(), http.MethodGet, "/health", nil, false, &text))
	assert.Equal(t, "OK", text)

	var h Health
	err := c.Call(context.Background(), http.MethodGet, "/health", nil, false, &h)
	require.Error(t, err, "non-JSON body cannot decode into a struct")

	require.NoError(t, c.DeleteEvent(context.Background(), 4))

	resp, err := c.Signup(context.Background(), SignupRequest{
		FirstName: "Jane", LastName: "Doe", Email: "jane@example.com",
		Password: "secret", Role: session.RoleEmployee, Department: "IT",
	})
	require.NoError(t, err, "an empty 201 is still a success")
	assert.Empty(t, resp.Message)
}

func TestCall_RecordsMetrics(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Event{ID: 42, Title: "Standup"})
	}, staticTokens{token: "tok"}, WithMetrics(m))

	_, err := c.GetEvent(context.Background(), 42)
	require.NoError(t, err)
	_, err = c.GetEvent(context.Background(), 43)
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("GET", "/events/{id}", "200")))
}

func TestLogin_DecodesSession(t *testing.T) {
	var got LoginRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Login successful",
			"token":   "jwt",
			"user": map[string]any{
				"id": 12, "email": "ada@example.com", "first_name": "Ada",
				"last_name": "Lovelace", "role": "admin",
			},
		})
	}, nil)

	resp, err := c.Login(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, LoginRequest{Email: "ada@example.com", Password: "secret"}, got)
	assert.Equal(t, "jwt", resp.Token)
	assert.Equal(t, "12", resp.User.ID.String())
	assert.True(t, resp.User.IsAdmin())
}

func TestListDepartmentFeeds_Filter(t *testing.T) {
	var gotQuery string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		writeJSON(w, http.StatusOK, []DepartmentFeed{})
	}, staticTokens{token: "tok"})

	_, err := c.ListDepartmentFeeds(context.Background(), "R&D")
	require.NoError(t, err)
	assert.Equal(t, "department=R%26D", gotQuery)

	_, err = c.ListDepartmentFeeds(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, gotQuery)
}

func TestNotification_FlagDecoding(t *testing.T) {
	var ns []Notification
	raw := `[{"id":1,"event_id":2,"sent":1,"read":0,"title":"a"},{"id":2,"sent":true},{"id":3,"sent":0,"read":true}]`
	require.NoError(t, json.Unmarshal([]byte(raw), &ns))

	require.Len(t, ns, 3)
	assert.True(t, bool(ns[0].Sent))
	assert.False(t, ns[0].IsRead())
	assert.False(t, ns[1].IsRead(), "missing read column means unread")
	assert.True(t, ns[2].IsRead())
}
