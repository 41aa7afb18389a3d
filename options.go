package labconsole

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jpalmerr/labconsole/internal/clock"
)

const (
	// MinProbeInterval is the shortest allowed health probe interval.
	MinProbeInterval = time.Second

	// MinProbeTimeout is the shortest allowed health probe timeout.
	MinProbeTimeout = time.Second
)

// consoleConfig holds mutable state during Console construction.
type consoleConfig struct {
	title          string
	backendURL     string
	backendHeaders map[string]string
	probeInterval  time.Duration
	probeTimeout   time.Duration
	devices        []Device
	devicesSet     bool
	port           int
	logger         *slog.Logger
	notices        bool
	clock          clock.Clock
	callbacks      []func(Snapshot)
}

// Option is a function that configures a [Console] during construction.
//
// Options return an error if validation fails.
type Option func(*consoleConfig) error

// WithBackendURL sets the base URL of the device-control backend, for
// example "http://localhost:8000". Required.
//
// Returns an error if the URL is not absolute http or https.
func WithBackendURL(rawURL string) Option {
	return func(cfg *consoleConfig) error {
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("invalid backend URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("backend URL must use http:// or https://")
		}
		if u.Host == "" {
			return errors.New("backend URL must have a host")
		}
		cfg.backendURL = rawURL
		return nil
	}
}

// WithBackendHeaders adds HTTP headers sent with every backend request,
// health probes included.
//
// Accepts variadic key-value pairs. Returns an error if an odd number of
// arguments is provided.
func WithBackendHeaders(keyValues ...string) Option {
	return func(cfg *consoleConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithBackendHeaders requires an even number of arguments (key-value pairs)")
		}
		if cfg.backendHeaders == nil {
			cfg.backendHeaders = make(map[string]string, len(keyValues)/2)
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.backendHeaders[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithProbeInterval sets how often the backend health endpoint is probed.
// Defaults to 30 seconds.
//
// Returns an error if the interval is shorter than [MinProbeInterval].
func WithProbeInterval(d time.Duration) Option {
	return func(cfg *consoleConfig) error {
		if d < MinProbeInterval {
			return fmt.Errorf("probe interval must be at least %s, got %s", MinProbeInterval, d)
		}
		cfg.probeInterval = d
		return nil
	}
}

// WithProbeTimeout bounds a single health probe. Defaults to 10 seconds.
//
// Returns an error if the timeout is shorter than [MinProbeTimeout].
func WithProbeTimeout(d time.Duration) Option {
	return func(cfg *consoleConfig) error {
		if d < MinProbeTimeout {
			return fmt.Errorf("probe timeout must be at least %s, got %s", MinProbeTimeout, d)
		}
		cfg.probeTimeout = d
		return nil
	}
}

// WithDevices sets the device table. Can be called multiple times; devices
// accumulate. Defaults to [DefaultDevices] when never called.
func WithDevices(devices ...Device) Option {
	return func(cfg *consoleConfig) error {
		cfg.devices = append(cfg.devices, devices...)
		cfg.devicesSet = true
		return nil
	}
}

// WithPort sets the HTTP port for the console page and API. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *consoleConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithTitle sets the console title shown in the browser tab and header.
// Defaults to "Lab Console".
func WithTitle(title string) Option {
	return func(cfg *consoleConfig) error {
		cfg.title = title
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *consoleConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithTransitionNotices makes the console raise a notification whenever the
// backend health changes: a warning when it becomes unreachable, an error
// when it answers with a failure status and a success when it recovers.
func WithTransitionNotices(enabled bool) Option {
	return func(cfg *consoleConfig) error {
		cfg.notices = enabled
		return nil
	}
}

// WithClock replaces the clock that drives notification expiry and the
// probe schedule.
func WithClock(c clock.Clock) Option {
	return func(cfg *consoleConfig) error {
		if c == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.clock = c
		return nil
	}
}

// WithStateCallback registers a function called with the new snapshot after
// every state change, and once with the initial state when the console
// starts.
//
// Callbacks run synchronously inside the state update, in registration
// order, and must not block. Panics are recovered and logged. Nil callbacks
// are ignored.
func WithStateCallback(cb func(Snapshot)) Option {
	return func(cfg *consoleConfig) error {
		if cb != nil {
			cfg.callbacks = append(cfg.callbacks, cb)
		}
		return nil
	}
}
