package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/calsync/internal/log"
)

// BearerSource returns the current bearer token, if any. *session.Store
// satisfies it.
type BearerSource interface {
	Token() (string, uint64, bool)
}

// wireMessage is a relay frame. Frames without a notification are ignored.
type wireMessage struct {
	Event        string `json:"event"`
	Notification *struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	} `json:"notification"`
	Data struct {
		ID string `json:"id"`
		// push data values are often strings; Number takes "42" and 42
		EventID json.Number `json:"event_id"`
	} `json:"data"`
}

// WebSocketSource receives push messages from a websocket relay. It
// reconnects with backoff until ctx is done.
type WebSocketSource struct {
	url     string
	tokens  BearerSource
	dialer  *websocket.Dialer
	logger  *log.Logger
	backoff time.Duration
	maxWait time.Duration
}

// NewWebSocketSource connects to url, authenticating with tokens when a
// session exists.
func NewWebSocketSource(url string, tokens BearerSource, logger *log.Logger) *WebSocketSource {
	if logger == nil {
		logger = log.Nop()
	}
	return &WebSocketSource{
		url:     url,
		tokens:  tokens,
		dialer:  websocket.DefaultDialer,
		logger:  logger.With("source", "websocket"),
		backoff: time.Second,
		maxWait: 30 * time.Second,
	}
}

// Subscribe implements MessageSource.
func (w *WebSocketSource) Subscribe(ctx context.Context, handler func(Message)) error {
	wait := w.backoff
	for {
		connected, err := w.run(ctx, handler)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			wait = w.backoff
		}
		w.logger.WithError(err).Debug("relay connection lost, reconnecting", "wait", wait)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		if wait *= 2; wait > w.maxWait {
			wait = w.maxWait
		}
	}
}

// run holds one connection. It reports whether the dial succeeded.
func (w *WebSocketSource) run(ctx context.Context, handler func(Message)) (bool, error) {
	header := http.Header{}
	if w.tokens != nil {
		if token, _, ok := w.tokens.Token(); ok {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	conn, resp, err := w.dialer.DialContext(ctx, w.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return false, fmt.Errorf("dial relay: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read relay: %w", err)
		}

		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			w.logger.WithError(err).Debug("ignoring malformed relay frame")
			continue
		}
		if msg.Notification == nil {
			continue
		}
		eventID, _ := msg.Data.EventID.Int64()
		handler(Message{
			ID:      msg.Data.ID,
			Title:   msg.Notification.Title,
			Body:    msg.Notification.Body,
			EventID: eventID,
			Source:  "websocket",
		})
	}
}
