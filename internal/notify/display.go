package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Display shows a foreground message.
type Display interface {
	Show(Message)
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(Message)

// Show implements Display.
func (f DisplayFunc) Show(m Message) { f(m) }

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	bodyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

// TerminalDisplay renders messages as boxes on a terminal.
type TerminalDisplay struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminalDisplay writes to w.
func NewTerminalDisplay(w io.Writer) *TerminalDisplay {
	return &TerminalDisplay{w: w}
}

// Show implements Display.
func (d *TerminalDisplay) Show(m Message) {
	content := titleStyle.Render("🔔 " + m.Title)
	if m.Body != "" {
		content += "\n" + bodyStyle.Render(m.Body)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.w, boxStyle.Render(content))
}
