package labconsole

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/labconsole/dashboard"
	"github.com/jpalmerr/labconsole/internal/backend"
	"github.com/jpalmerr/labconsole/internal/clock"
	"github.com/jpalmerr/labconsole/internal/devices"
	"github.com/jpalmerr/labconsole/internal/health"
	"github.com/jpalmerr/labconsole/internal/notify"
	"github.com/jpalmerr/labconsole/internal/server"
	"github.com/jpalmerr/labconsole/internal/state"
)

const (
	defaultProbeInterval = 30 * time.Second
	defaultProbeTimeout  = 10 * time.Second
	defaultPort          = 8080
)

// Snapshot is a complete copy of the console state at one point in time.
type Snapshot = state.State

// Console wires the state store, notification lifecycle, backend health
// monitor, device clients and HTTP surface into one process.
//
// It is created using [New] with functional options and run with
// [Console.Start]:
//
//	c, err := labconsole.New(labconsole.WithBackendURL("http://localhost:8000"))
//	if err != nil {
//	    slog.Error("failed to create console", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	c.Start(ctx) // blocks until context cancelled
type Console struct {
	title          string
	backendURL     string
	backendHeaders map[string]string
	probeInterval  time.Duration
	probeTimeout   time.Duration
	devices        []Device
	port           int
	logger         *slog.Logger
	notices        bool
	clock          clock.Clock
	callbacks      []func(Snapshot)
}

// New creates a [Console] with the given options.
//
// [WithBackendURL] is required. Other options have defaults:
//   - Probe interval: 30 seconds
//   - Probe timeout: 10 seconds
//   - Port: 8080
//   - Devices: [DefaultDevices]
//
// Returns an error if an option is invalid or device ids repeat.
func New(opts ...Option) (*Console, error) {
	cfg := &consoleConfig{
		probeInterval: defaultProbeInterval,
		probeTimeout:  defaultProbeTimeout,
		port:          defaultPort,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.backendURL == "" {
		return nil, errors.New("backend URL is required")
	}

	if !cfg.devicesSet {
		cfg.devices = DefaultDevices()
	}
	if len(cfg.devices) == 0 {
		return nil, errors.New("at least one device is required")
	}

	seen := make(map[string]bool, len(cfg.devices))
	for _, d := range cfg.devices {
		if d.id == "" {
			return nil, errors.New("devices must be created with NewDevice")
		}
		if seen[d.id] {
			return nil, fmt.Errorf("duplicate device id: %q", d.id)
		}
		seen[d.id] = true
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := cfg.clock
	if clk == nil {
		clk = clock.Real()
	}

	return &Console{
		title:          cfg.title,
		backendURL:     cfg.backendURL,
		backendHeaders: cfg.backendHeaders,
		probeInterval:  cfg.probeInterval,
		probeTimeout:   cfg.probeTimeout,
		devices:        cfg.devices,
		port:           cfg.port,
		logger:         logger,
		notices:        cfg.notices,
		clock:          clk,
		callbacks:      cfg.callbacks,
	}, nil
}

// Start runs the console until ctx is cancelled.
//
// Start creates a fresh state store seeded with every configured device as
// disconnected, then:
//
//   - attaches the notification expiry manager
//   - probes the backend health immediately, then at the probe interval
//   - reads the status of every controllable device once
//   - serves the console page and API on the configured port
//
// On cancellation it stops the health monitor, cancels the pending
// notification timer and disposes the store, in that order, then waits for
// the HTTP server to release its port.
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server fails
// to start.
func (c *Console) Start(ctx context.Context) error {
	c.logger.Info("lab console starting", "device_count", len(c.devices), "backend_url", c.backendURL)
	c.logger.Info("health probing configured", "interval", c.probeInterval.String(), "timeout", c.probeTimeout.String())
	c.logger.Info("console available", "url", fmt.Sprintf("http://localhost:%d", c.port))

	if ctx.Err() != nil {
		return nil
	}

	store := state.NewStore(c.seedDevices(),
		state.WithClock(c.clock),
		state.WithLogger(c.logger),
	)
	cancelCallbacks := c.listen(store)

	notifier := notify.New(store, notify.WithClock(c.clock), notify.WithLogger(c.logger))
	notifier.Start()

	transport := backend.NewClient(c.backendHeaders)
	prober := health.NewHTTPProber(transport, c.backendURL, c.probeTimeout)
	monitor := health.NewMonitor(prober, store,
		health.WithInterval(c.probeInterval),
		health.WithClock(c.clock),
		health.WithLogger(c.logger),
		health.WithTransitionNotices(c.notices),
	)
	monitor.Start(ctx)

	reporter := devices.NewReporter(
		devices.NewClient(transport, c.backendURL, c.probeTimeout),
		store,
		c.internalDevices(),
		devices.WithLogger(c.logger),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := reporter.RefreshAll(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("initial device status refresh failed", "error", err.Error())
		}
	}()

	teardown := func() {
		monitor.Stop() // also releases the transport's idle connections
		wg.Wait()
		notifier.Close()
		cancelCallbacks()
		store.Close()
	}

	httpServer := server.NewServer(server.Config{
		Port:     c.port,
		Assets:   dashboard.Assets,
		Title:    c.title,
		Logger:   c.logger,
		Store:    store,
		Notifier: notifier,
		Health:   monitor,
		Devices:  reporter,
	})
	if err := httpServer.Start(ctx); err != nil {
		teardown()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	teardown()
	httpServer.Wait()
	c.logger.Info("lab console stopped")
	return nil
}

// listen registers the state callbacks and returns a function removing them.
func (c *Console) listen(store *state.Store) func() {
	cancels := make([]func(), 0, len(c.callbacks))
	for _, cb := range c.callbacks {
		cancels = append(cancels, store.Listen(cb))
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

// seedDevices returns the initial device table for the store.
func (c *Console) seedDevices() []state.DeviceStatus {
	out := make([]state.DeviceStatus, len(c.devices))
	for i, d := range c.devices {
		out[i] = state.DeviceStatus{ID: d.id, Name: d.name}
	}
	return out
}

func (c *Console) internalDevices() []devices.Device {
	out := make([]devices.Device, len(c.devices))
	for i, d := range c.devices {
		out[i] = d.toInternal()
	}
	return out
}

// Devices returns a copy of the configured device table.
func (c *Console) Devices() []Device {
	cp := make([]Device, len(c.devices))
	copy(cp, c.devices)
	return cp
}

// BackendURL returns the configured backend base URL.
func (c *Console) BackendURL() string {
	return c.backendURL
}

// Port returns the configured HTTP port.
func (c *Console) Port() int {
	return c.port
}

// ProbeInterval returns the time between backend health probes.
func (c *Console) ProbeInterval() time.Duration {
	return c.probeInterval
}

// ProbeTimeout returns the timeout of a single health probe.
func (c *Console) ProbeTimeout() time.Duration {
	return c.probeTimeout
}

// Title returns the configured console title.
func (c *Console) Title() string {
	return c.title
}
