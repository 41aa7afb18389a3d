package labconsole

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jpalmerr/labconsole/internal/devices"
)

// routePattern restricts routes to a single URL path segment.
var routePattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

// Device is one instrument shown on the console.
//
// Device is immutable after creation via [NewDevice]. A device either has a
// backend route (calls go to /api/<route>/connect and so on) or is a
// placeholder: listed in the device table but never called.
type Device struct {
	id          string
	name        string
	route       string
	placeholder bool
}

// ID returns the device's unique identifier.
func (d Device) ID() string {
	return d.id
}

// Name returns the device's display name.
func (d Device) Name() string {
	return d.name
}

// Route returns the backend path segment, empty for placeholders.
func (d Device) Route() string {
	return d.route
}

// Placeholder reports whether the device's control is not implemented.
func (d Device) Placeholder() bool {
	return d.placeholder
}

// deviceConfig holds mutable state during device construction.
type deviceConfig struct {
	route       string
	placeholder bool
}

// DeviceOption configures a [Device] during construction.
type DeviceOption func(*deviceConfig) error

// WithRoute sets the backend path segment for the device.
//
// Returns an error if the route is empty or is not a single path segment of
// letters, digits, '_' or '-'.
func WithRoute(route string) DeviceOption {
	return func(cfg *deviceConfig) error {
		if !routePattern.MatchString(route) {
			return fmt.Errorf("invalid route %q: must be a single path segment", route)
		}
		cfg.route = route
		return nil
	}
}

// WithPlaceholder marks the device as listed but not controllable. Any
// route is ignored.
func WithPlaceholder() DeviceOption {
	return func(cfg *deviceConfig) error {
		cfg.placeholder = true
		return nil
	}
}

// NewDevice creates a [Device].
//
// The id is the device's key in the console state and must not be empty or
// contain whitespace. A device that is not a placeholder needs a route.
//
// Example:
//
//	arduino, err := labconsole.NewDevice("arduino_uno_r4", "Arduino Uno R4",
//	    labconsole.WithRoute("arduino"),
//	)
func NewDevice(id, name string, opts ...DeviceOption) (Device, error) {
	if id == "" {
		return Device{}, errors.New("device id cannot be empty")
	}
	if strings.ContainsAny(id, " \t\r\n/") {
		return Device{}, fmt.Errorf("device id %q cannot contain whitespace or '/'", id)
	}
	if name == "" {
		return Device{}, fmt.Errorf("device %s: name cannot be empty", id)
	}

	cfg := &deviceConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Device{}, fmt.Errorf("device %s: %w", id, err)
		}
	}

	if cfg.placeholder {
		cfg.route = ""
	} else if cfg.route == "" {
		return Device{}, fmt.Errorf("device %s: route is required unless the device is a placeholder", id)
	}

	return Device{id: id, name: name, route: cfg.route, placeholder: cfg.placeholder}, nil
}

// DefaultDevices returns the standard lab instrument table: the Arduino Uno
// R4 MUX controller on route "arduino" and five placeholders.
func DefaultDevices() []Device {
	defaults := devices.DefaultDevices()
	out := make([]Device, len(defaults))
	for i, d := range defaults {
		out[i] = Device{id: d.ID, name: d.Name, route: d.Route, placeholder: d.Placeholder}
	}
	return out
}

// toInternal converts the public device to the device package's form.
func (d Device) toInternal() devices.Device {
	return devices.Device{ID: d.id, Name: d.name, Route: d.route, Placeholder: d.placeholder}
}
