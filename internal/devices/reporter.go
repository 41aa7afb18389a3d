package devices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jpalmerr/labconsole/internal/state"
)

var (
	// ErrUnknownDevice is returned for an id that is not in the device table.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrPlaceholder is returned for devices whose control is not implemented.
	ErrPlaceholder = errors.New("device control not implemented")
)

// Device describes one instrument the console can operate.
type Device struct {
	ID   string
	Name string

	// Route is the backend path segment: calls go to /api/<Route>/<action>.
	Route string

	// Placeholder devices are listed but never called.
	Placeholder bool
}

// DefaultDevices returns the standard lab instrument table. Only the Arduino
// MUX controller has a backend module; the rest are placeholders.
func DefaultDevices() []Device {
	out := make([]Device, 0, 6)
	for _, d := range state.DefaultDevices() {
		dev := Device{ID: d.ID, Name: d.Name, Placeholder: true}
		if d.ID == "arduino_uno_r4" {
			dev.Route = "arduino"
			dev.Placeholder = false
		}
		out = append(out, dev)
	}
	return out
}

// Store is the subset of the application store the reporter writes to.
type Store interface {
	Dispatch(a state.Action)
}

// Reporter runs device operations and reports every outcome into the store:
// the loading flag, the device's status entry and a user-facing notice.
// Failed operations are not retried.
type Reporter struct {
	client  *Client
	store   Store
	logger  *slog.Logger
	devices map[string]Device
	order   []string

	mu       sync.Mutex
	inflight int
}

// ReporterOption configures a [Reporter].
type ReporterOption func(*Reporter)

// WithLogger sets the reporter's logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ReporterOption {
	return func(r *Reporter) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReporter creates a reporter for the given devices. Later duplicates of
// an id are ignored.
func NewReporter(client *Client, store Store, devices []Device, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		client:  client,
		store:   store,
		logger:  slog.Default(),
		devices: make(map[string]Device, len(devices)),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, d := range devices {
		if _, dup := r.devices[d.ID]; dup {
			continue
		}
		r.devices[d.ID] = d
		r.order = append(r.order, d.ID)
	}
	return r
}

// Devices returns the device table in configuration order.
func (r *Reporter) Devices() []Device {
	out := make([]Device, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.devices[id])
	}
	return out
}

// Device returns the device with the given id.
func (r *Reporter) Device(id string) (Device, bool) {
	d, ok := r.devices[id]
	return d, ok
}

// Connect opens the device connection, then re-reads its status.
func (r *Reporter) Connect(ctx context.Context, id string) error {
	return r.run(ctx, id, ActionConnect, "Failed to connect", "Connected to %s")
}

// Disconnect closes the device connection, then re-reads its status.
func (r *Reporter) Disconnect(ctx context.Context, id string) error {
	return r.run(ctx, id, ActionDisconnect, "Failed to disconnect", "Disconnected from %s")
}

// Refresh re-reads the device status. Success raises no notice.
func (r *Reporter) Refresh(ctx context.Context, id string) error {
	return r.run(ctx, id, ActionStatus, "Failed to fetch status", "")
}

// RefreshAll refreshes every non-placeholder device in order and returns the
// joined errors.
func (r *Reporter) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, id := range r.order {
		if r.devices[id].Placeholder {
			continue
		}
		if err := r.Refresh(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Reporter) run(ctx context.Context, id string, action Action, failPrefix, successFormat string) error {
	dev, ok := r.devices[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	if dev.Placeholder {
		return fmt.Errorf("%s: %w", id, ErrPlaceholder)
	}

	r.beginLoading()
	defer r.endLoading()

	out, err := r.client.Do(ctx, dev.Route, action)
	if err == nil && action != ActionStatus {
		out, err = r.client.Status(ctx, dev.Route)
	}

	if err != nil {
		reason := failureReason(out, err)
		r.logger.Warn("device operation failed",
			"device", id,
			"action", string(action),
			"error", err.Error(),
		)
		r.store.Dispatch(state.UpdateDeviceStatus{Device: state.DeviceStatus{
			ID:        id,
			Name:      dev.Name,
			Connected: false,
			Status:    state.DeviceError,
		}})
		r.store.Dispatch(state.Error(fmt.Sprintf("%s: %s", failPrefix, reason)))
		return fmt.Errorf("%s %s: %w", id, action, err)
	}

	status := state.DeviceDisconnected
	if out.Connected {
		status = state.DeviceIdle
	}
	r.store.Dispatch(state.UpdateDeviceStatus{Device: state.DeviceStatus{
		ID:        id,
		Name:      dev.Name,
		Connected: out.Connected,
		Status:    status,
	}})
	r.logger.Debug("device operation completed",
		"device", id,
		"action", string(action),
		"connected", out.Connected,
	)

	if successFormat != "" {
		r.store.Dispatch(state.Success(fmt.Sprintf(successFormat, dev.Name)))
	}
	return nil
}

// beginLoading raises the global loading flag for the first operation in
// flight; endLoading lowers it when the last one finishes.
func (r *Reporter) beginLoading() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inflight++
	if r.inflight == 1 {
		r.store.Dispatch(state.SetLoading{Loading: true})
	}
}

func (r *Reporter) endLoading() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inflight--
	if r.inflight == 0 {
		r.store.Dispatch(state.SetLoading{Loading: false})
	}
}

// failureReason returns the user-facing part of a failed operation.
func failureReason(out Outcome, err error) string {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		return statusErr.Message
	case errors.Is(err, ErrUnreachable):
		return ErrUnreachable.Error()
	case errors.Is(err, ErrProtocol) && out.Message != "":
		return out.Message
	}
	return err.Error()
}
