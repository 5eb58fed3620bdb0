// Package tui holds the interactive terminal pieces: prompts, forms, the
// loading spinner and shared styles.
package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
)

// ciVariables are set by CI systems; any of them turns prompting off.
var ciVariables = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "BUILDKITE"}

// Confirm asks a yes/no question.
func Confirm(question string, initial bool) (bool, error) {
	answer := initial
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(question).Affirmative("Yes").Negative("No").Value(&answer),
	)).Run()
	if err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return answer, nil
}

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// InCI reports whether a CI system is running us.
func InCI() bool {
	for _, name := range ciVariables {
		if os.Getenv(name) != "" {
			return true
		}
	}
	return false
}

// ShouldPrompt reports whether questions may be asked: a terminal is
// attached and no CI system is running us.
func ShouldPrompt() bool {
	return !InCI() && IsInteractive()
}

func required(label string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", label)
		}
		return nil
	}
}
