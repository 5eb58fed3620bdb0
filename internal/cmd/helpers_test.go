package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type fakeUser struct {
	ID              int    `json:"id"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Role            string `json:"role"`
	Department      string `json:"department"`
	CanCreateEvents bool   `json:"can_create_events"`
}

var (
	jane  = fakeUser{ID: 1, Email: "jane@example.com", FirstName: "Jane", LastName: "Doe", Role: "employee", Department: "IT, HR"}
	admin = fakeUser{ID: 2, Email: "admin@example.com", FirstName: "Ada", LastName: "Admin", Role: "admin", CanCreateEvents: true}
)

// fakeBackend is the calendar service as far as the commands need it.
type fakeBackend struct {
	*httptest.Server

	mu         sync.Mutex
	sessions   map[string]fakeUser // token -> user
	pushTokens []string
	created    []map[string]any
	readIDs    []string
	deleted    []string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{sessions: map[string]fakeUser{}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", fb.login)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "database": "connected", "departments_count": 2})
	})
	mux.HandleFunc("GET /departments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{"id": 1, "name": "IT"}, {"id": 2, "name": "HR"}})
	})
	mux.HandleFunc("GET /events", fb.authed(func(w http.ResponseWriter, r *http.Request, u fakeUser) {
		writeJSON(w, http.StatusOK, []map[string]any{{
			"id": 1, "title": "Standup", "description": "Daily sync",
			"start_datetime": "2026-10-20T09:00:00.000Z", "end_datetime": "2026-10-20T09:15:00.000Z",
			"created_by": 2, "created_at": "2026-10-01T08:00:00Z", "creator_name": "Ada Admin",
		}})
	}))
	mux.HandleFunc("POST /events", fb.authed(func(w http.ResponseWriter, r *http.Request, u fakeUser) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		fb.mu.Lock()
		fb.created = append(fb.created, body)
		fb.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "event_id": 7, "message": "Event created"})
	}))
	mux.HandleFunc("DELETE /events/{id}", fb.authed(func(w http.ResponseWriter, r *http.Request, u fakeUser) {
		fb.mu.Lock()
		fb.deleted = append(fb.deleted, r.PathValue("id"))
		fb.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"message": "Event deleted"})
	}))
	mux.HandleFunc("GET /users/me", fb.authed(func(w http.ResponseWriter, r *http.Request, u fakeUser) {
		writeJSON(w, http.StatusOK, u)
	}))
	mux.HandleFunc("GET /users", fb.authed(func(w http.ResponseWriter, r *http.Request, u fakeUser) {
		if u.Role != "admin" {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "Admin access required"})
			return
		}
		writeJSON(w, http.StatusOK, []fakeUser{jane, admin})
	}))
	mux.HandleFunc("POST /users/fcm-token", fb.authed(func(w http.ResponseWriter, r *http.Request, u fakeUser) {
		var body struct {
			Token string `json:"fcm_token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		fb.mu.Lock()
		fb.pushTokens = append(fb.pushTokens, body.Token)
		fb.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"message": "stored"})
	}))
	mux.HandleFunc("GET /notifications", fb.authed(func(w http.ResponseWriter, r *http.Request, u fakeUser) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": 10, "event_id": 1, "title": "Standup", "start_datetime": "2026-10-20T09:00", "notify_at": "2026-10-20T08:45", "sent": 1, "read": 0},
			{"id": 11, "event_id": 1, "title": "Standup", "start_datetime": "2026-10-20T09:00", "notify_at": "2026-10-20T08:00", "sent": 1, "read": 1},
		})
	}))
	mux.HandleFunc("POST /notifications/{id}/read", fb.authed(func(w http.ResponseWriter, r *http.Request, u fakeUser) {
		fb.mu.Lock()
		fb.readIDs = append(fb.readIDs, r.PathValue("id"))
		fb.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	}))

	fb.Server = httptest.NewServer(mux)
	t.Cleanup(fb.Close)
	return fb
}

func (fb *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	for _, u := range []fakeUser{jane, admin} {
		if body.Email == u.Email && body.Password == "secret" {
			token := "tok-" + strings.Split(u.Email, "@")[0]
			fb.mu.Lock()
			fb.sessions[token] = u
			fb.mu.Unlock()
			writeJSON(w, http.StatusOK, map[string]any{"message": "Login successful", "token": token, "user": u})
			return
		}
	}
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
}

func (fb *fakeBackend) authed(h func(http.ResponseWriter, *http.Request, fakeUser)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		fb.mu.Lock()
		u, ok := fb.sessions[token]
		fb.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Token expired"})
			return
		}
		h(w, r, u)
	}
}

// revokeAll expires every issued token.
func (fb *fakeBackend) revokeAll() {
	fb.mu.Lock()
	fb.sessions = map[string]fakeUser{}
	fb.mu.Unlock()
}

func (fb *fakeBackend) snapshot() (push []string, created []map[string]any, read []string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.pushTokens...),
		append([]map[string]any(nil), fb.created...),
		append([]string(nil), fb.readIDs...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// setupEnv points the CLI at fb with a private config directory and a file
// session, and turns off everything interactive.
func setupEnv(t *testing.T, fb *fakeBackend) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("CI", "true")
	t.Setenv("CALSYNC_API_URL", fb.URL)
	t.Setenv("CALSYNC_SESSION_BACKEND", "file")
	t.Setenv("CALSYNC_SESSION_PATH", filepath.Join(dir, "session.json"))
	t.Setenv("CALSYNC_NOTIFICATION_PERMISSION", "granted")
	t.Setenv("CALSYNC_LOG_LEVEL", "error")
	return dir
}

// run executes the CLI in process and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runContext(context.Background(), t, args...)
}

func runContext(ctx context.Context, t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout, _, err := runCapture(ctx, t, args...)
	return stdout, err
}

// runCapture is runContext that also returns what went to stderr.
func runCapture(ctx context.Context, t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--no-color"}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

// resetFlags restores every flag to its default so runs do not leak into
// each other.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}
