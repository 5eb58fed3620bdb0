package ux

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/calsync/internal/errors"
)

// ErrorWithSuggestion wraps an error with helpful recovery suggestions
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface
func (e *ErrorWithSuggestion) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%v\n\n💡 Suggestion: %s", e.Err, e.Suggestion)
	}
	return e.Err.Error()
}

// Unwrap provides access to the underlying error
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// NewErrorWithSuggestion creates a new error with a suggestion
func NewErrorWithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// EnhanceError adds a suggestion to errors that do not carry one already.
// Coded errors are returned unchanged.
func EnhanceError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.CodeOf(err); ok {
		return err
	}

	errMsg := err.Error()

	if strings.Contains(errMsg, "permission denied") {
		return NewErrorWithSuggestion(err,
			"Check the permissions of ~/.config/calsync and the session file")
	}

	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host") {
		return NewErrorWithSuggestion(err,
			"Run 'calsync doctor' to check which backend address is in use")
	}

	if strings.Contains(errMsg, "prompt failed") {
		return NewErrorWithSuggestion(err,
			"Pass the values as flags when no terminal is attached")
	}

	return err
}

// FormatError provides consistent error formatting with context
func FormatError(err error, context string) error {
	if err == nil {
		return nil
	}

	enhanced := EnhanceError(err)
	if context != "" {
		return fmt.Errorf("%s: %w", context, enhanced)
	}
	return enhanced
}

var (
	errorLabel      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	suggestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// RenderError writes err the way the CLI shows failures: the bare message
// first, then any suggestions. The error code is shown for coded errors.
func RenderError(w io.Writer, err error, noColor bool) {
	if err == nil {
		return
	}

	label, dim := errorLabel, suggestionStyle
	if noColor {
		label, dim = lipgloss.NewStyle(), lipgloss.NewStyle()
	}

	var ce *errors.CalsyncError
	if !stderrors.As(err, &ce) {
		fmt.Fprintf(w, "%s %s\n", label.Render("Error:"), EnhanceError(err).Error())
		return
	}

	fmt.Fprintf(w, "%s %s %s\n", label.Render("Error:"), ce.Message, dim.Render("("+string(ce.Code)+")"))
	for _, s := range ce.Suggestions {
		fmt.Fprintf(w, "  %s\n", dim.Render("• "+s))
	}
}
