package notify

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/felixgeelhaar/calsync/internal/api"
	"github.com/felixgeelhaar/calsync/internal/errors"
	"github.com/felixgeelhaar/calsync/internal/log"
)

// Message is one foreground notification.
type Message struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	EventID int64  `json:"event_id,omitempty"`
	Source  string `json:"source"`
}

// MessageSource delivers foreground messages to handler until ctx is done.
// Subscribe blocks; it returns nil once ctx is done.
type MessageSource interface {
	Subscribe(ctx context.Context, handler func(Message)) error
}

// NotificationLister lists delivered reminders. *api.Client satisfies it.
type NotificationLister interface {
	ListNotifications(ctx context.Context) ([]api.Notification, error)
}

// PollingSource polls the backend for reminders and emits each unread one
// once.
type PollingSource struct {
	lister   NotificationLister
	interval time.Duration
	logger   *log.Logger

	mu   sync.Mutex
	seen map[int64]struct{}
}

// NewPollingSource polls lister every interval.
func NewPollingSource(lister NotificationLister, interval time.Duration, logger *log.Logger) *PollingSource {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &PollingSource{
		lister:   lister,
		interval: interval,
		logger:   logger.With("source", "polling"),
		seen:     make(map[int64]struct{}),
	}
}

// Subscribe implements MessageSource.
func (p *PollingSource) Subscribe(ctx context.Context, handler func(Message)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.poll(ctx, handler)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *PollingSource) poll(ctx context.Context, handler func(Message)) {
	ns, err := p.lister.ListNotifications(ctx)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return
	case errors.IsUnauthenticated(err):
		// signed out; keep polling in case someone signs in again
		p.logger.Debug("skipping poll without a session")
		return
	default:
		p.logger.WithError(err).Warn("polling notifications failed")
		return
	}

	for _, n := range ns {
		if n.IsRead() || !p.markSeen(n.ID) {
			continue
		}
		handler(Message{
			ID:      strconv.FormatInt(n.ID, 10),
			Title:   n.Title,
			Body:    "Starts " + n.StartDateTime,
			EventID: n.EventID,
			Source:  "polling",
		})
	}
}

// markSeen reports whether id was new.
func (p *PollingSource) markSeen(id int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.seen[id]; ok {
		return false
	}
	p.seen[id] = struct{}{}
	return true
}
