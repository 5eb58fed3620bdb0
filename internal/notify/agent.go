// Package notify registers this installation for push notifications and
// shows foreground messages.
//
// Registration is best effort. Every attempt runs the same ordered steps:
// ask for permission, obtain a push token, send it to the backend for the
// signed-in user. Any step that fails ends the attempt quietly; nothing is
// retried and no error reaches the user.
package notify

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/calsync/internal/auth"
	"github.com/felixgeelhaar/calsync/internal/log"
	"github.com/felixgeelhaar/calsync/internal/metrics"
	"github.com/felixgeelhaar/calsync/internal/session"
	"github.com/felixgeelhaar/calsync/internal/telemetry"
)

// Registrar sends a push token to the backend. *api.Client satisfies it.
type Registrar interface {
	RegisterPushToken(ctx context.Context, token string) error
}

// SessionReader exposes the current session. *session.Store satisfies it.
type SessionReader interface {
	Current() *session.Session
}

// Lifecycle publishes auth transitions. *auth.Controller satisfies it.
type Lifecycle interface {
	Subscribe(fn func(auth.Transition)) func()
}

// Outcome is the result of one registration attempt.
type Outcome string

const (
	OutcomeRegistered  Outcome = "registered"
	OutcomeUnsupported Outcome = "unsupported"
	OutcomeDenied      Outcome = "denied"
	OutcomeNoToken     Outcome = "no_token"
	OutcomeNoSession   Outcome = "no_session"
	OutcomeFailed      Outcome = "failed"
)

// Option configures an Agent.
type Option func(*Agent)

// WithPermission sets the permission provider. Without one, notifications
// are unsupported.
func WithPermission(p PermissionProvider) Option {
	return func(a *Agent) { a.permission = p }
}

// WithTokenSource sets where push tokens come from.
func WithTokenSource(t TokenSource) Option {
	return func(a *Agent) { a.tokens = t }
}

// WithMessageSource sets the foreground message source.
func WithMessageSource(s MessageSource) Option {
	return func(a *Agent) { a.source = s }
}

// WithDisplay sets the callback that shows foreground messages.
func WithDisplay(d Display) Option {
	return func(a *Agent) { a.display = d }
}

// WithLogger sets the agent logger.
func WithLogger(l *log.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMetrics records registration outcomes and delivered messages.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

// Agent coordinates push registration with the auth lifecycle.
type Agent struct {
	registrar  Registrar
	sessions   SessionReader
	permission PermissionProvider
	tokens     TokenSource
	source     MessageSource
	display    Display
	logger     *log.Logger
	metrics    *metrics.Metrics

	// serializes attempts so the steps of one never interleave with another
	attempt sync.Mutex

	subscribe sync.Once
	wg        sync.WaitGroup

	mu      sync.Mutex
	held    int
	pending []context.Context
}

// NewAgent creates an agent that registers through registrar for the session
// in sessions.
func NewAgent(registrar Registrar, sessions SessionReader, opts ...Option) *Agent {
	a := &Agent{
		registrar: registrar,
		sessions:  sessions,
		logger:    log.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "notify")
	return a
}

// Register runs one registration attempt and reports how it ended. It never
// fails; the outcome is informational.
func (a *Agent) Register(ctx context.Context) Outcome {
	a.attempt.Lock()
	defer a.attempt.Unlock()

	ctx, span := telemetry.StartStepSpan(ctx, "push", "register")
	outcome := a.register(ctx)
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	span.End()
	a.metrics.RecordPushRegistration(string(outcome))
	a.logger.Debug("push registration finished", "outcome", string(outcome))
	return outcome
}

func (a *Agent) register(ctx context.Context) Outcome {
	// 1. permission
	if a.permission == nil {
		return OutcomeUnsupported
	}
	perm, err := a.permission.Request(ctx)
	if err != nil {
		a.logger.WithError(err).Debug("notification permission unavailable")
		return OutcomeUnsupported
	}
	switch perm {
	case PermissionGranted:
	case PermissionUnsupported:
		return OutcomeUnsupported
	default:
		return OutcomeDenied
	}

	// 2. push token
	if a.tokens == nil {
		return OutcomeNoToken
	}
	token, err := a.tokens.Token(ctx)
	if err != nil {
		a.logger.WithError(err).Debug("could not obtain a push token")
		return OutcomeNoToken
	}
	if token == "" {
		return OutcomeNoToken
	}

	// 4. foreground messages, after 3 whatever its result
	defer a.listen(ctx)

	// 3. backend registration
	if a.sessions == nil || a.sessions.Current() == nil {
		return OutcomeNoSession
	}
	if err := a.registrar.RegisterPushToken(ctx, token); err != nil {
		a.logger.WithError(err).Warn("failed to register push token")
		return OutcomeFailed
	}
	return OutcomeRegistered
}

// listen subscribes to foreground messages once per agent. The subscription
// outlives the attempt that started it and ends when ctx is done.
func (a *Agent) listen(ctx context.Context) {
	if a.source == nil {
		return
	}
	a.subscribe.Do(func() {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.source.Subscribe(ctx, a.deliver); err != nil && ctx.Err() == nil {
				a.logger.WithError(err).Warn("foreground message subscription ended")
			}
		}()
	})
}

func (a *Agent) deliver(m Message) {
	a.metrics.RecordNotification(m.Source)
	if a.display != nil {
		a.display.Show(m)
	}
}

// Attach runs a registration attempt on its own goroutine every time c
// enters a signed-in session, including a second login as another user.
// Previous registrations are not revoked. ctx bounds the attempts and the
// foreground subscription. The returned function detaches the agent.
func (a *Agent) Attach(ctx context.Context, c Lifecycle) func() {
	return c.Subscribe(func(t auth.Transition) {
		if !t.EntersAuthenticated() {
			return
		}
		a.mu.Lock()
		if a.held > 0 {
			a.pending = append(a.pending, ctx)
			a.mu.Unlock()
			return
		}
		a.mu.Unlock()
		a.spawn(ctx)
	})
}

func (a *Agent) spawn(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.Register(ctx)
	}()
}

// Hold queues attempts triggered through Attach until the returned release
// function runs. Callers hold the agent while something else owns the
// terminal, since an attempt may prompt for permission.
func (a *Agent) Hold() (release func()) {
	a.mu.Lock()
	a.held++
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			a.held--
			var queued []context.Context
			if a.held == 0 {
				queued, a.pending = a.pending, nil
			}
			a.mu.Unlock()
			for _, ctx := range queued {
				a.spawn(ctx)
			}
		})
	}
}

// Start runs the startup attempt when notifications are supported at all.
func (a *Agent) Start(ctx context.Context) Outcome {
	if a.permission == nil {
		return OutcomeUnsupported
	}
	return a.Register(ctx)
}

// Wait blocks until running attempts and the subscription have finished.
// Cancel the context passed to Attach or Start first.
func (a *Agent) Wait() {
	a.wg.Wait()
}
