package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	ConfigPath string
	Format     string
	NoColor    bool
	LogLevel   string
	LogFormat  string
	APIURL     string
}

// globalOptionsFrom reads the persistent flags of the running command.
func globalOptionsFrom(cmd *cobra.Command) (*globalOptions, error) {
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	format, err := flags.GetString("format")
	if err != nil {
		return nil, err
	}
	switch format {
	case "text", "json", "yaml":
	default:
		return nil, fmt.Errorf("invalid argument %q for --format: must be text, json or yaml", format)
	}
	noColor, err := flags.GetBool("no-color")
	if err != nil {
		return nil, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return nil, err
	}
	logFormat, err := flags.GetString("log-format")
	if err != nil {
		return nil, err
	}
	apiURL, err := flags.GetString("api-url")
	if err != nil {
		return nil, err
	}

	return &globalOptions{
		ConfigPath: configPath,
		Format:     format,
		NoColor:    noColor,
		LogLevel:   logLevel,
		LogFormat:  logFormat,
		APIURL:     apiURL,
	}, nil
}

// commandName is the command path without the binary name, e.g.
// "events create".
func commandName(cmd *cobra.Command) string {
	if cmd == nil || !cmd.HasParent() {
		return "calsync"
	}
	name := cmd.Name()
	for p := cmd.Parent(); p != nil && p.HasParent(); p = p.Parent() {
		name = p.Name() + " " + name
	}
	return name
}
