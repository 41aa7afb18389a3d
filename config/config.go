// Package config provides YAML configuration parsing for the lab console.
//
// This package enables running the console as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: MIR Bench
//	port: 8080
//	backend_url: ${LAB_BACKEND_URL:-http://localhost:8000}
//	probe_interval: 30s
//	probe_timeout: 10s
//	transition_notices: true
//
//	backend_headers:
//	  X-Api-Key: ${LAB_API_KEY}
//
//	devices:
//	  - id: arduino_uno_r4
//	    name: Arduino Uno R4
//	    route: arduino
//	  - id: picoscope_5244d
//	    name: PicoScope 5244D
//	    placeholder: true
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort          = 8080
	defaultProbeInterval = 30 * time.Second
	defaultProbeTimeout  = 10 * time.Second

	// minProbeInterval keeps a misconfigured console from hammering the backend.
	minProbeInterval = 1 * time.Second
	minProbeTimeout  = 1 * time.Second
)

// routePattern matches a single URL path segment.
var routePattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

// Config is the root configuration structure for the lab console.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the console title. Defaults to "Lab Console" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// BackendURL is the base URL of the device-control backend. Required.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	BackendURL string `yaml:"backend_url"`

	// BackendHeaders are sent with every backend request.
	// Values support environment variable substitution.
	BackendHeaders map[string]string `yaml:"backend_headers"`

	// ProbeInterval is the time between backend health probes.
	// Accepts duration strings like "10s", "1m". Defaults to 30s.
	ProbeInterval Duration `yaml:"probe_interval"`

	// ProbeTimeout bounds a single health probe. Defaults to 10s.
	ProbeTimeout Duration `yaml:"probe_timeout"`

	// TransitionNotices raises a notification when backend health changes.
	TransitionNotices bool `yaml:"transition_notices"`

	// Devices is the instrument table. When omitted the console lists the
	// six instruments of the standard setup.
	Devices []DeviceConfig `yaml:"devices"`
}

// DeviceConfig defines one instrument.
type DeviceConfig struct {
	// ID is the device's key in the console state.
	ID string `yaml:"id"`

	// Name is the display name shown in the console.
	Name string `yaml:"name"`

	// Route is the backend path segment: /api/<route>/connect and so on.
	// Required unless Placeholder is set.
	Route string `yaml:"route"`

	// Placeholder lists the device without making it controllable.
	Placeholder bool `yaml:"placeholder"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		varName := submatches[1]
		hasDefault := submatches[2] != ""

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return submatches[3]
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in backend_url and backend_headers
// values. Defaults are applied for port (8080), probe_interval (30s) and
// probe_timeout (10s).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.ProbeInterval == 0 {
		cfg.ProbeInterval = Duration(defaultProbeInterval)
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = Duration(defaultProbeTimeout)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.ProbeInterval.Duration() < minProbeInterval {
		return fmt.Errorf("probe_interval must be at least %s, got %s", minProbeInterval, c.ProbeInterval.Duration())
	}
	if c.ProbeTimeout.Duration() < minProbeTimeout {
		return fmt.Errorf("probe_timeout must be at least %s, got %s", minProbeTimeout, c.ProbeTimeout.Duration())
	}

	if c.BackendURL == "" {
		return fmt.Errorf("backend_url is required")
	}
	expanded, err := expandEnvVars(c.BackendURL)
	if err != nil {
		return fmt.Errorf("backend_url: %w", err)
	}
	c.BackendURL = expanded

	parsedURL, err := url.Parse(c.BackendURL)
	if err != nil {
		return fmt.Errorf("invalid backend_url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return fmt.Errorf("backend_url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("backend_url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("backend_url must have a host")
	}

	for k, v := range c.BackendHeaders {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("backend_headers[%s]: %w", k, err)
		}
		c.BackendHeaders[k] = expanded
	}

	seen := make(map[string]int, len(c.Devices))
	for i := range c.Devices {
		d := &c.Devices[i]

		if d.ID == "" {
			return fmt.Errorf("devices[%d]: id is required", i)
		}
		if strings.ContainsAny(d.ID, " \t\r\n/") {
			return fmt.Errorf("devices[%d] (%s): id cannot contain whitespace or '/'", i, d.ID)
		}
		if prev, dup := seen[d.ID]; dup {
			return fmt.Errorf("devices[%d] (%s): duplicate id, first defined at devices[%d]", i, d.ID, prev)
		}
		seen[d.ID] = i

		if d.Name == "" {
			return fmt.Errorf("devices[%d] (%s): name is required", i, d.ID)
		}

		if d.Placeholder {
			continue
		}
		if d.Route == "" {
			return fmt.Errorf("devices[%d] (%s): route is required", i, d.ID)
		}
		if !routePattern.MatchString(d.Route) {
			return fmt.Errorf("devices[%d] (%s): route %q must be a single path segment", i, d.ID, d.Route)
		}
	}

	return nil
}
