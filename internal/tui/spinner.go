package tui

import (
	"context"

	"github.com/charmbracelet/huh/spinner"
)

// WithSpinner runs fn behind a loading indicator on an interactive terminal
// outside CI, and plainly otherwise. fn's error is returned unchanged.
func WithSpinner(ctx context.Context, title string, fn func(ctx context.Context) error) error {
	if !ShouldPrompt() {
		return fn(ctx)
	}

	var fnErr error
	err := spinner.New().
		Title(title).
		Context(ctx).
		Action(func() { fnErr = fn(ctx) }).
		Run()
	if fnErr != nil {
		return fnErr
	}
	return err
}
