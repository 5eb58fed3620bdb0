package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/felixgeelhaar/calsync/internal/api"
	"github.com/felixgeelhaar/calsync/internal/errors"
	"github.com/felixgeelhaar/calsync/internal/log"
	"github.com/felixgeelhaar/calsync/internal/metrics"
	"github.com/felixgeelhaar/calsync/internal/session"
)

// Gateway is the part of the backend client the controller needs.
// *api.Client satisfies it.
type Gateway interface {
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	Signup(ctx context.Context, req api.SignupRequest) (*api.MessageResponse, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword string) (*api.MessageResponse, error)
	Me(ctx context.Context) (*session.User, error)
	UpdateMe(ctx context.Context, update api.ProfileUpdate) (*api.MessageResponse, error)
}

// unauthenticatedNotifier is implemented by gateways that report 401s on
// authenticated calls.
type unauthenticatedNotifier interface {
	OnUnauthenticated(h api.UnauthenticatedHandler)
}

// Option configures a Controller.
type Option func(*Controller)

// WithAdminCode sets the enrollment code admins must enter at signup.
func WithAdminCode(code string) Option {
	return func(c *Controller) { c.adminCode = code }
}

// WithLogger sets the controller logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records transitions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// Controller drives the Unknown → Anonymous ↔ Authenticated lifecycle. It is
// safe for concurrent use.
//
// Subscribers are called synchronously and in order. They must not call
// methods that change state from inside the callback.
type Controller struct {
	store     *session.Store
	gw        Gateway
	adminCode string
	logger    *log.Logger
	metrics   *metrics.Metrics

	mu    sync.RWMutex
	state State
	user  *session.User

	notifyMu sync.Mutex
	subsMu   sync.Mutex
	subs     map[int]func(Transition)
	nextSub  int
}

// NewController wires a controller to store and gw. When gw reports 401s,
// the controller signs out in response.
func NewController(store *session.Store, gw Gateway, opts ...Option) *Controller {
	c := &Controller{
		store:  store,
		gw:     gw,
		logger: log.Nop(),
		subs:   make(map[int]func(Transition)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "auth")

	if n, ok := gw.(unauthenticatedNotifier); ok {
		n.OnUnauthenticated(c.HandleUnauthenticated)
	}
	return c
}

// Start restores the persisted session and leaves the Unknown state.
func (c *Controller) Start(ctx context.Context) State {
	if sess, ok := c.store.Restore(ctx); ok {
		c.logger.Debug("session restored", "user_id", sess.User.ID.String())
		c.transition(StateAuthenticated, &sess.User, ReasonRestore)
		return StateAuthenticated
	}
	c.transition(StateAnonymous, nil, ReasonRestore)
	return StateAnonymous
}

// Login exchanges credentials for a session. On failure the state does not
// change and the error message is always non-empty.
func (c *Controller) Login(ctx context.Context, email, password string) (session.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return session.User{}, errors.NewValidationFailure("email", "Email and password are required.")
	}

	epoch := c.store.Epoch()
	resp, err := c.gw.Login(ctx, email, password)
	if err != nil {
		c.logger.WithError(err).Debug("login failed")
		return session.User{}, loginFailure(err)
	}
	if resp.Token == "" || resp.User.ID == "" {
		c.logger.Warn("login response without token or user")
		return session.User{}, errors.NewRequestFailed(0, "Login failed")
	}

	stored, err := c.store.SetIfEpoch(ctx, epoch, session.Session{Token: resp.Token, User: resp.User})
	if err != nil {
		return session.User{}, err
	}
	if !stored {
		return session.User{}, errors.NewUnauthenticated("signed out while the login was in progress")
	}

	user := resp.User
	c.transition(StateAuthenticated, &user, ReasonLogin)
	c.logger.Info("signed in", "user_id", user.ID.String(), "role", string(user.Role))
	return user, nil
}

// SignupForm is what a new user fills in.
type SignupForm struct {
	FirstName   string
	LastName    string
	Email       string
	Password    string
	Role        session.Role
	Departments []string
	AdminCode   string
}

// Signup validates form locally and creates the account. It returns the
// backend's confirmation message. The new account is not signed in.
func (c *Controller) Signup(ctx context.Context, form SignupForm) (string, error) {
	req, err := c.signupRequest(form)
	if err != nil {
		return "", err
	}

	resp, err := c.gw.Signup(ctx, req)
	if err != nil {
		c.logger.WithError(err).Debug("signup failed")
		return "", surface(err, "Signup failed")
	}
	c.logger.Info("account created", "role", string(req.Role))
	return resp.Message, nil
}

// signupRequest runs the client-side checks. The admin code is only a UX
// gate; it is never sent.
func (c *Controller) signupRequest(form SignupForm) (api.SignupRequest, error) {
	req := api.SignupRequest{
		FirstName: strings.TrimSpace(form.FirstName),
		LastName:  strings.TrimSpace(form.LastName),
		Email:     strings.TrimSpace(form.Email),
		Password:  form.Password,
		Role:      form.Role,
	}
	if req.Role == "" {
		req.Role = session.RoleEmployee
	}
	if !req.Role.Valid() {
		return req, errors.NewValidationFailure("role", "Role must be employee or admin.")
	}

	if req.FirstName == "" || req.LastName == "" || req.Email == "" || req.Password == "" {
		return req, errors.NewValidationFailure("", "All fields are required.")
	}

	switch req.Role {
	case session.RoleEmployee:
		var depts []string
		for _, d := range form.Departments {
			if d = strings.TrimSpace(d); d != "" {
				depts = append(depts, d)
			}
		}
		if len(depts) == 0 {
			return req, errors.NewValidationFailure("department", "Please select at least one department.")
		}
		req.Department = strings.Join(depts, ", ")
	case session.RoleAdmin:
		if strings.TrimSpace(form.AdminCode) == "" {
			return req, errors.NewValidationFailure("", "All fields are required.")
		}
		if form.AdminCode != c.adminCode {
			return req, errors.NewValidationFailure("admin_code", "Invalid admin code.")
		}
	}
	return req, nil
}

// Logout clears the session locally. The backend is not told.
func (c *Controller) Logout(ctx context.Context) error {
	err := c.store.Clear(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("failed to remove persisted session")
	}
	c.transition(StateAnonymous, nil, ReasonLogout)
	return err
}

// HandleUnauthenticated signs out after a 401 on a request that carried the
// token of epoch. Later 401s for the same epoch are ignored.
func (c *Controller) HandleUnauthenticated(ctx context.Context, epoch uint64) {
	cleared, err := c.store.ClearIfEpoch(ctx, epoch)
	if err != nil {
		c.logger.WithError(err).Warn("failed to remove persisted session")
	}
	if !cleared {
		return
	}
	c.logger.Info("session rejected by the server, signed out")
	c.transition(StateAnonymous, nil, ReasonUnauthenticated)
}

// RefreshProfile re-fetches the user record and replaces it wholesale.
func (c *Controller) RefreshProfile(ctx context.Context) (session.User, error) {
	cur := c.store.Current()
	if cur == nil {
		return session.User{}, errors.NewUnauthenticated("not signed in")
	}
	epoch := c.store.Epoch()

	u, err := c.gw.Me(ctx)
	if err != nil {
		return session.User{}, surface(err, "Failed to load profile")
	}

	if now := c.store.Current(); now == nil || now.Token != cur.Token {
		return session.User{}, errors.NewUnauthenticated("session changed while loading the profile")
	}
	stored, err := c.store.SetIfEpoch(ctx, epoch, session.Session{Token: cur.Token, User: *u})
	if err != nil {
		return session.User{}, err
	}
	if !stored {
		return session.User{}, errors.NewUnauthenticated("signed out while loading the profile")
	}

	c.transition(StateAuthenticated, u, ReasonProfile)
	return *u, nil
}

// UpdateProfile saves the given fields and then reloads the profile.
func (c *Controller) UpdateProfile(ctx context.Context, update api.ProfileUpdate) (session.User, error) {
	if update.Empty() {
		return session.User{}, errors.NewValidationFailure("", "No valid fields to update.")
	}
	if _, err := c.gw.UpdateMe(ctx, update); err != nil {
		return session.User{}, surface(err, "Failed to update profile")
	}
	return c.RefreshProfile(ctx)
}

// ChangePassword checks that both new passwords match before asking the
// backend to change the password.
func (c *Controller) ChangePassword(ctx context.Context, oldPassword, newPassword, confirm string) (string, error) {
	if oldPassword == "" || newPassword == "" || confirm == "" {
		return "", errors.NewValidationFailure("", "All fields are required.")
	}
	if newPassword != confirm {
		return "", errors.NewValidationFailure("confirm_password", "New passwords do not match")
	}

	resp, err := c.gw.ChangePassword(ctx, oldPassword, newPassword)
	if err != nil {
		return "", surface(err, "Failed to change password")
	}
	return resp.Message, nil
}

// Subscribe registers fn for every future transition and returns a function
// that removes it.
func (c *Controller) Subscribe(fn func(Transition)) func() {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, id)
			c.subsMu.Unlock()
		})
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// User returns a copy of the signed-in user, or nil.
func (c *Controller) User() *session.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

func (c *Controller) transition(to State, user *session.User, reason Reason) {
	c.mu.Lock()
	from := c.state
	if from == to && to != StateAuthenticated {
		c.mu.Unlock()
		return
	}
	c.state = to
	c.user = nil
	t := Transition{From: from, To: to, Reason: reason}
	if user != nil {
		u, tu := *user, *user
		c.user = &u
		t.User = &tu
	}

	// hold notifyMu across the unlock so subscribers see transitions in order
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	c.metrics.RecordTransition(to.String(), string(reason))
	c.logger.Debug("auth state changed", "from", from.String(), "to", to.String(), "reason", string(reason))

	c.subsMu.Lock()
	fns := make([]func(Transition), 0, len(c.subs))
	for id := 0; id < c.nextSub; id++ {
		if fn, ok := c.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	c.subsMu.Unlock()

	for _, fn := range fns {
		fn(t)
	}
}
