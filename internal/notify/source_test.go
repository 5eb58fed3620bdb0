package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/calsync/internal/api"
	"github.com/felixgeelhaar/calsync/internal/errors"
)

type fakeLister struct {
	mu    sync.Mutex
	calls int
	pages [][]api.Notification
	err   error
}

func (f *fakeLister) ListNotifications(context.Context) ([]api.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.pages) == 0 {
		return nil, nil
	}
	page := f.pages[0]
	if len(f.pages) > 1 {
		f.pages = f.pages[1:]
	}
	return page, nil
}

func TestPollingSource_EmitsUnreadOnce(t *testing.T) {
	read := api.Flag(true)
	lister := &fakeLister{pages: [][]api.Notification{
		{
			{ID: 1, EventID: 10, Title: "Standup", StartDateTime: "2026-10-16T09:00"},
			{ID: 2, EventID: 11, Title: "Already read", Read: &read},
		},
		{
			{ID: 1, EventID: 10, Title: "Standup", StartDateTime: "2026-10-16T09:00"},
			{ID: 3, EventID: 12, Title: "Review", StartDateTime: "2026-10-16T14:00"},
		},
	}}
	src := NewPollingSource(lister, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var got []Message
	done := make(chan error, 1)
	go func() {
		done <- src.Subscribe(ctx, func(m Message) {
			mu.Lock()
			got = append(got, m)
			if len(got) == 2 {
				cancel()
			}
			mu.Unlock()
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("polling did not deliver both reminders")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, "Standup", got[0].Title)
	assert.Equal(t, "Starts 2026-10-16T09:00", got[0].Body)
	assert.Equal(t, int64(10), got[0].EventID)
	assert.Equal(t, "polling", got[0].Source)
	assert.Equal(t, "Review", got[1].Title)
}

func TestPollingSource_KeepsPollingWhenSignedOut(t *testing.T) {
	lister := &fakeLister{err: errors.NewUnauthenticated("not signed in")}
	src := NewPollingSource(lister, 5*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, src.Subscribe(ctx, func(Message) { t.Error("no message expected") }))

	lister.mu.Lock()
	defer lister.mu.Unlock()
	assert.Greater(t, lister.calls, 1)
}

type tokenStub string

func (s tokenStub) Token() (string, uint64, bool) { return string(s), 0, s != "" }

func TestWebSocketSource_DeliversNotificationFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	authHeader := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		frames := []string{
			`{"event":"ping"}`,
			`not json`,
			`{"notification":{"title":"Standup","body":"in 15 minutes"},"data":{"id":"n1","event_id":"42"}}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// hold the connection until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	src := NewWebSocketSource(url, tokenStub("tok"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- src.Subscribe(ctx, func(m Message) { got <- m })
	}()

	select {
	case m := <-got:
		assert.Equal(t, "Standup", m.Title)
		assert.Equal(t, "in 15 minutes", m.Body)
		assert.Equal(t, "n1", m.ID)
		assert.Equal(t, int64(42), m.EventID)
		assert.Equal(t, "websocket", m.Source)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
	assert.Equal(t, "Bearer tok", <-authHeader)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop")
	}
}

func TestWebSocketSource_StopsWhileReconnecting(t *testing.T) {
	src := NewWebSocketSource("ws://127.0.0.1:1/unreachable", nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, src.Subscribe(ctx, func(Message) {}))
}

func TestDeviceTokenSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")

	first, err := NewDeviceTokenSource(path).Token(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, "dev:"))
	assert.Len(t, strings.TrimPrefix(first, "dev:"), 64)

	again, err := NewDeviceTokenSource(path).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, again, "token is stable per installation")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	other, err := NewDeviceTokenSource(filepath.Join(t.TempDir(), "device.json")).Token(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestDeviceTokenSource_InMemory(t *testing.T) {
	src := NewDeviceTokenSource("")
	a, err := src.Token(context.Background())
	require.NoError(t, err)
	b, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDeviceTokenSource_ReplacesCorruptState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

	token, err := NewDeviceTokenSource(path).Token(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestWebPushTokenSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")
	src := NewWebPushTokenSource("https://push.example.com/sub/1", path)

	token, err := src.Token(context.Background())
	require.NoError(t, err)

	var sub webpush.Subscription
	require.NoError(t, json.Unmarshal([]byte(token), &sub))
	assert.Equal(t, "https://push.example.com/sub/1", sub.Endpoint)

	pub, err := base64.RawURLEncoding.DecodeString(sub.Keys.P256dh)
	require.NoError(t, err)
	assert.Len(t, pub, 65, "uncompressed P-256 point")
	secret, err := base64.RawURLEncoding.DecodeString(sub.Keys.Auth)
	require.NoError(t, err)
	assert.Len(t, secret, 16)

	again, err := NewWebPushTokenSource("https://push.example.com/sub/1", path).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, token, again, "keys are kept between runs")
}

func TestWebPushTokenSource_NoEndpoint(t *testing.T) {
	token, err := NewWebPushTokenSource("", "").Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestTerminalDisplay(t *testing.T) {
	var buf bytes.Buffer
	d := NewTerminalDisplay(&buf)
	d.Show(Message{Title: "Standup", Body: "Starts 09:00"})

	out := buf.String()
	assert.Contains(t, out, "Standup")
	assert.Contains(t, out, "Starts 09:00")
}
