package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --format.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formatter writes command results.
type Formatter interface {
	Format(v any) error
}

// FormatterOptions configures NewFormatter.
type FormatterOptions struct {
	Writer  io.Writer // os.Stdout when nil
	NoColor bool
	// Compact drops indentation from json and yaml output
	Compact bool
}

// Tabular is implemented by list results so the text formatter can render
// them as a table. JSON and YAML output encode the value itself.
type Tabular interface {
	Table() (headers []string, rows [][]string)
}

// NewFormatter returns the formatter for format. An empty format is text.
func NewFormatter(format string, opts *FormatterOptions) (Formatter, error) {
	o := FormatterOptions{Writer: os.Stdout}
	if opts != nil {
		o = *opts
		if o.Writer == nil {
			o.Writer = os.Stdout
		}
	}

	switch format {
	case FormatText, "":
		return textFormatter(o), nil
	case FormatJSON:
		return jsonFormatter(o), nil
	case FormatYAML:
		return yamlFormatter(o), nil
	}
	return nil, fmt.Errorf("unknown format: %s (supported: text, json, yaml)", format)
}

type jsonFormatter FormatterOptions

func (f jsonFormatter) Format(v any) error {
	enc := json.NewEncoder(f.Writer)
	if !f.Compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

type yamlFormatter FormatterOptions

func (f yamlFormatter) Format(v any) error {
	enc := yaml.NewEncoder(f.Writer)
	if !f.Compact {
		enc.SetIndent(2)
	}
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// textFormatter renders Tabular values as tables and everything else
// through String. Values that are neither are rejected.
type textFormatter FormatterOptions

func (f textFormatter) Format(v any) error {
	var s string
	switch v := v.(type) {
	case string:
		s = v
	case Tabular:
		s = f.table(v)
	case fmt.Stringer:
		s = v.String()
	default:
		return fmt.Errorf("%T cannot be shown as text; use --format json", v)
	}
	_, err := fmt.Fprintln(f.Writer, s)
	return err
}

func (f textFormatter) table(t Tabular) string {
	headers, rows := t.Table()
	if len(rows) == 0 {
		return "Nothing to show."
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	if !f.NoColor {
		header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
		cell := lipgloss.NewStyle().Padding(0, 1)
		tbl = tbl.
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return header
				}
				return cell
			})
	}
	return tbl.String()
}
