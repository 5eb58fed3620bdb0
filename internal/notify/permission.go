package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/felixgeelhaar/calsync/internal/tui"
)

// Permission is the notification capability state.
type Permission string

const (
	PermissionDefault     Permission = "default"
	PermissionGranted     Permission = "granted"
	PermissionDenied      Permission = "denied"
	PermissionUnsupported Permission = "unsupported"
)

// ParsePermission parses a configured permission value.
func ParsePermission(s string) (Permission, error) {
	switch p := Permission(strings.ToLower(strings.TrimSpace(s))); p {
	case PermissionDefault, PermissionGranted, PermissionDenied, PermissionUnsupported:
		return p, nil
	case "":
		return PermissionDefault, nil
	default:
		return "", fmt.Errorf("unknown notification permission %q", s)
	}
}

// PermissionProvider asks for, or reports, the notification permission.
type PermissionProvider interface {
	Request(ctx context.Context) (Permission, error)
}

// StaticPermission always answers with the same value. "default" counts as
// not granted, since nobody can be asked.
type StaticPermission Permission

// Request implements PermissionProvider.
func (p StaticPermission) Request(context.Context) (Permission, error) {
	return Permission(p), nil
}

// PromptPermission asks once on the terminal and remembers the answer for
// the rest of the process. A configured "granted" or "denied" skips the
// question. When nobody can be asked (no terminal, or running in CI) it
// answers "unsupported".
type PromptPermission struct {
	Initial Permission

	// Ask defaults to tui.Confirm and Interactive to tui.ShouldPrompt.
	Ask         func(message string, defaultValue bool) (bool, error)
	Interactive func() bool

	mu       sync.Mutex
	resolved Permission
}

// Request implements PermissionProvider.
func (p *PromptPermission) Request(ctx context.Context) (Permission, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.resolved != "" {
		return p.resolved, nil
	}
	if p.Initial == PermissionGranted || p.Initial == PermissionDenied {
		p.resolved = p.Initial
		return p.resolved, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	interactive := p.Interactive
	if interactive == nil {
		interactive = tui.ShouldPrompt
	}
	if !interactive() {
		return PermissionUnsupported, nil
	}

	ask := p.Ask
	if ask == nil {
		ask = tui.Confirm
	}
	ok, err := ask("Show event reminders as notifications?", true)
	if err != nil {
		return "", err
	}
	p.resolved = PermissionDenied
	if ok {
		p.resolved = PermissionGranted
	}
	return p.resolved, nil
}
