package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/calsync/internal/api"
	"github.com/felixgeelhaar/calsync/internal/auth"
	"github.com/felixgeelhaar/calsync/internal/config"
	"github.com/felixgeelhaar/calsync/internal/errors"
	"github.com/felixgeelhaar/calsync/internal/guard"
	"github.com/felixgeelhaar/calsync/internal/log"
	"github.com/felixgeelhaar/calsync/internal/metrics"
	"github.com/felixgeelhaar/calsync/internal/notify"
	"github.com/felixgeelhaar/calsync/internal/session"
	"github.com/felixgeelhaar/calsync/internal/tui"
	"github.com/felixgeelhaar/calsync/internal/ux"
)

// Command annotations.
const (
	// annotationOffline marks commands that run without config or session.
	annotationOffline = "calsync.offline"
	// annotationRequires lists what a command asks of the user, comma
	// separated: "session", "can_create_events", "is_admin" or "role=<role>".
	annotationRequires = "calsync.requires"
)

// returnToKey is where a command refused for lack of a session is kept, so
// the next login can say where to resume.
const returnToKey = "return_to"

// current is the app of the running command.
var current *app

// app is everything a command needs, built once per run.
type app struct {
	cfg      *config.Config
	opts     *globalOptions
	logger   *log.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	backend  session.Backend
	store    *session.Store
	client   *api.Client
	auth     *auth.Controller
	agent    *notify.Agent
	out      ux.Formatter
	stdout   io.Writer
	stderr   io.Writer

	span    trace.Span
	detach  func()
	closers []func()
}

func newApp(ctx context.Context, opts *globalOptions, stdout, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.APIURL != "" {
		cfg.API.URL = opts.APIURL
	}

	a := &app{
		cfg:    cfg,
		opts:   opts,
		stdout: stdout,
		stderr: stderr,
	}
	a.logger = setupLogging(cfg, opts, stderr)
	a.closers = append(a.closers, setupTelemetry(ctx, cfg, a.logger))
	a.registry, a.metrics = metrics.NewRegistry()

	backend, err := a.openBackend()
	if err != nil {
		a.close()
		return nil, err
	}
	a.backend = backend
	a.store = session.NewStore(backend, a.logger)

	clientOpts := []api.Option{
		api.WithTimeout(cfg.API.Timeout),
		api.WithLogger(a.logger),
		api.WithMetrics(a.metrics),
	}
	if cfg.API.ValidateContract {
		contract, err := api.LoadContract(ctx)
		if err != nil {
			a.close()
			return nil, err
		}
		clientOpts = append(clientOpts, api.WithContract(contract))
	}
	a.client = api.NewClient(cfg.BaseURL(), a.store, clientOpts...)

	a.auth = auth.NewController(a.store, a.client,
		auth.WithAdminCode(cfg.Signup.AdminCode),
		auth.WithLogger(a.logger),
		auth.WithMetrics(a.metrics),
	)

	a.out, err = ux.NewFormatter(opts.Format, &ux.FormatterOptions{Writer: stdout, NoColor: opts.NoColor})
	if err != nil {
		a.close()
		return nil, err
	}

	a.agent = a.newAgent()
	a.logger.Debug("app ready", "base_url", a.client.BaseURL(), "session_backend", cfg.Session.Backend)
	return a, nil
}

func (a *app) openBackend() (session.Backend, error) {
	sc := a.cfg.Session
	switch sc.Backend {
	case config.BackendMemory:
		return session.NewMemoryBackend(), nil
	case config.BackendRedis:
		rb := session.NewRedisBackend(redis.NewClient(&redis.Options{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
		}), sc.Redis.Prefix, sc.Redis.TTL)
		a.closers = append(a.closers, func() {
			if err := rb.Close(); err != nil {
				a.logger.WithError(err).Debug("closing redis client failed")
			}
		})
		return rb, nil
	case config.BackendFile:
		return session.NewFileBackend(sc.Path, sc.Passphrase), nil
	}
	return nil, errors.NewConfigInvalidError(fmt.Sprintf("unknown session backend %q", sc.Backend))
}

// newAgent builds a push registration agent from the notification settings.
// With notifications disabled the agent reports every attempt unsupported.
func (a *app) newAgent(extra ...notify.Option) *notify.Agent {
	opts := []notify.Option{
		notify.WithLogger(a.logger),
		notify.WithMetrics(a.metrics),
	}
	nc := a.cfg.Notifications
	if nc.Enabled {
		initial, err := notify.ParsePermission(nc.Permission)
		if err != nil {
			initial = notify.PermissionDefault
		}
		opts = append(opts,
			notify.WithPermission(&notify.PromptPermission{Initial: initial}),
			notify.WithTokenSource(a.tokenSource()),
		)
	}
	return notify.NewAgent(a.client, a.store, append(opts, extra...)...)
}

func (a *app) tokenSource() notify.TokenSource {
	nc := a.cfg.Notifications
	if nc.TokenSource == "webpush" {
		return notify.NewWebPushTokenSource(nc.PushEndpoint, nc.DevicePath)
	}
	return notify.NewDeviceTokenSource(nc.DevicePath)
}

func (a *app) messageSource() notify.MessageSource {
	nc := a.cfg.Notifications
	if nc.Source == "websocket" {
		return notify.NewWebSocketSource(nc.WebSocketURL, a.store, a.logger)
	}
	return notify.NewPollingSource(a.client, nc.PollInterval, a.logger)
}

// attachAgent registers the push token whenever a session begins from now
// on. A session restored at startup is not registered again; `notifications
// listen` does that.
func (a *app) attachAgent(ctx context.Context) {
	a.detach = a.agent.Attach(ctx, a.auth)
}

// enforce evaluates the command's requirement against the current session.
func (a *app) enforce(ctx context.Context, cmd *cobra.Command) error {
	req, gated := requirementOf(cmd)
	if !gated {
		return nil
	}

	d := guard.Decide(a.auth.State(), a.auth.User(), req, commandName(cmd))
	a.metrics.RecordGuard(string(d.Outcome))

	switch d.Outcome {
	case guard.OutcomeLoading:
		return errors.NewUnauthenticated("The session could not be restored")
	case guard.OutcomeRedirectLogin:
		a.rememberReturn(ctx, d.ReturnTo)
	}
	return d.Err()
}

func requirementOf(cmd *cobra.Command) (guard.Requirement, bool) {
	raw, ok := cmd.Annotations[annotationRequires]
	if !ok {
		return guard.Requirement{}, false
	}

	var req guard.Requirement
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == string(guard.PermissionCreateEvents):
			req.Permission = guard.PermissionCreateEvents
		case part == string(guard.PermissionAdmin):
			req.Permission = guard.PermissionAdmin
		case strings.HasPrefix(part, "role="):
			req.Role = session.Role(strings.TrimPrefix(part, "role="))
		}
	}
	return req, true
}

func (a *app) rememberReturn(ctx context.Context, location string) {
	if location == "" {
		return
	}
	if err := a.backend.Set(ctx, returnToKey, location); err != nil {
		a.logger.WithError(err).Debug("could not remember return location")
	}
}

// takeReturn returns and forgets the remembered location.
func (a *app) takeReturn(ctx context.Context) string {
	location, ok, err := a.backend.Get(ctx, returnToKey)
	if err != nil || !ok {
		return ""
	}
	if err := a.backend.Delete(ctx, returnToKey); err != nil {
		a.logger.WithError(err).Debug("could not forget return location")
	}
	return location
}

func (a *app) print(v any) error {
	return a.out.Format(v)
}

func (a *app) close() {
	if a.detach != nil {
		a.detach()
		a.detach = nil
	}
	if a.agent != nil {
		a.agent.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// appFor returns the app prepared for cmd.
func appFor(cmd *cobra.Command) (*app, error) {
	if current == nil {
		return nil, fmt.Errorf("%s ran without being prepared", commandName(cmd))
	}
	return current, nil
}

func gate(cmd *cobra.Command, requirement string) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[annotationRequires] = requirement
	return cmd
}

func offline(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[annotationOffline] = "true"
	return cmd
}

// message is the result of commands that only report what they did.
type message struct {
	Message string `json:"message" yaml:"message"`
}

func (m message) String() string { return m.Message }

// confirmed asks before a destructive command unless --yes was given or
// nobody is there to answer.
func confirmed(cmd *cobra.Command, question string) (bool, error) {
	if yes, _ := cmd.Flags().GetBool("yes"); yes || !tui.ShouldPrompt() {
		return true, nil
	}
	return tui.Confirm(question, false)
}

func withYesFlag(cmds ...*cobra.Command) {
	for _, c := range cmds {
		c.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	}
}
