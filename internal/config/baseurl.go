package config

import (
	"net"
	"regexp"
	"strings"
)

// FallbackBaseURL is the hosted backend used when nothing points elsewhere.
const FallbackBaseURL = "https://calsync-production.up.railway.app"

// DevBackendPort is the port the backend listens on in development.
const DevBackendPort = "5000"

var bareIPv4 = regexp.MustCompile(`^\d{1,3}(?:\.\d{1,3}){3}$`)

// ResolveBaseURL returns the service address. An explicit override wins.
// A host that is localhost or a bare IPv4 address is mapped to the same host
// on DevBackendPort. Anything else gets FallbackBaseURL.
//
// This is the only place the base address is decided.
func ResolveBaseURL(override, host string) string {
	if override = strings.TrimSpace(override); override != "" {
		return strings.TrimRight(override, "/")
	}

	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "localhost" || bareIPv4.MatchString(host) {
		return "http://" + net.JoinHostPort(host, DevBackendPort)
	}
	return FallbackBaseURL
}

// BaseURL resolves the base address from the loaded configuration.
func (c *Config) BaseURL() string {
	return ResolveBaseURL(c.API.URL, c.API.Host)
}
