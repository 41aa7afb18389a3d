package health

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/labconsole/internal/clock"
	"github.com/jpalmerr/labconsole/internal/state"
)

// DefaultInterval is the time between health probes.
const DefaultInterval = 30 * time.Second

// Dispatcher accepts state actions. [state.Store] implements it.
type Dispatcher interface {
	Dispatch(a state.Action)
}

// Monitor probes the backend periodically and reports the outcome into the
// application store as SetBackendConnection.
//
// The monitor probes once immediately on [Monitor.Start], then once per
// interval until [Monitor.Stop] or cancellation of the start context. Probe
// failures never escape: every outcome, including a panicking prober, becomes
// a [Reading] and a state update.
//
// All lifecycle methods are safe for concurrent use.
type Monitor struct {
	prober   Prober
	store    Dispatcher
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger
	notices  bool

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	readingMu sync.RWMutex
	latest    Reading
}

// MonitorOption configures a [Monitor].
type MonitorOption func(*Monitor)

// WithInterval sets the time between probes. Non-positive values are ignored.
func WithInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithClock sets the clock driving the probe interval.
func WithClock(c clock.Clock) MonitorOption {
	return func(m *Monitor) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithLogger sets the monitor's logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) MonitorOption {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithTransitionNotices makes the monitor add a notification whenever the
// health phase changes (except for the first successful probe).
func WithTransitionNotices(enabled bool) MonitorOption {
	return func(m *Monitor) {
		m.notices = enabled
	}
}

// NewMonitor creates a [Monitor] that reports readings from prober into store.
func NewMonitor(prober Prober, store Dispatcher, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		prober:   prober,
		store:    store,
		interval: DefaultInterval,
		clock:    clock.Real(),
		logger:   slog.Default(),
		latest:   Reading{Phase: PhaseUnknown},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Interval returns the time between probes.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// Latest returns the most recent reading. Its phase is PhaseUnknown until the
// first probe completes.
func (m *Monitor) Latest() Reading {
	m.readingMu.RLock()
	defer m.readingMu.RUnlock()
	return m.latest
}

// Start begins probing in a background goroutine and returns immediately.
//
// If ctx is nil, context.Background() is used. Start is idempotent; it is a
// no-op after Stop.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started || m.stopped {
		m.mu.Unlock()
		return
	}
	m.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	probeCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	// created before returning so the first tick is measured from Start
	ticker := m.clock.NewTicker(m.interval)
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer ticker.Stop()

		m.probeOnce(probeCtx)

		for {
			select {
			case <-probeCtx.Done():
				return
			case <-ticker.Chan():
				m.probeOnce(probeCtx)
			}
		}
	}()
}

// Stop cancels the probe schedule and waits for an in-flight probe to finish.
// Once Stop returns the monitor dispatches nothing further. Stop is
// idempotent and safe to call before Start.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.stopped {
		m.stopped = true
		if m.cancel != nil {
			m.cancel()
		}
	}
	m.mu.Unlock()

	m.wg.Wait()

	if c, ok := m.prober.(interface{ Close() }); ok {
		c.Close()
	}
}

// probeOnce performs one probe and reports it.
func (m *Monitor) probeOnce(ctx context.Context) {
	reading := m.safeProbe(ctx)
	reading.CheckedAt = m.clock.Now()

	// a probe cut short by Stop is not an observation of the backend
	if ctx.Err() != nil {
		return
	}

	m.readingMu.Lock()
	prev := m.latest
	m.latest = reading
	m.readingMu.Unlock()

	m.store.Dispatch(state.SetBackendConnection{Connected: reading.Healthy()})

	attrs := []any{
		"phase", reading.Phase,
		"modules_loaded", reading.ModulesLoaded,
		"status_code", reading.StatusCode,
		"latency_ms", reading.Latency.Milliseconds(),
	}
	if reading.Err != nil {
		m.logger.Warn("backend health probe failed", append(attrs, "error", reading.Err.Error())...)
	} else {
		m.logger.Debug("backend health probe completed", attrs...)
	}

	if prev.Phase != reading.Phase {
		m.logger.Info("backend health changed", "from", prev.Phase, "to", reading.Phase)
		if m.notices {
			if notice, ok := transitionNotice(prev, reading); ok {
				m.store.Dispatch(notice)
			}
		}
	}
}

// safeProbe calls the prober with panic recovery. A panic is logged with a
// correlation ID and reported as an error reading.
func (m *Monitor) safeProbe(ctx context.Context) (reading Reading) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			m.logger.Error("health prober panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			reading = Reading{
				Phase: PhaseError,
				Err:   fmt.Errorf("health prober panic (correlation_id: %s)", correlationID),
			}
		}
	}()
	return m.prober.Probe(ctx)
}

// transitionNotice returns the notification announcing a phase change.
func transitionNotice(prev, next Reading) (state.AddNotification, bool) {
	switch next.Phase {
	case PhaseDisconnected:
		return state.Warning("Backend unreachable"), true
	case PhaseError:
		if next.StatusCode != 0 {
			return state.Error(fmt.Sprintf("Backend returned HTTP %d", next.StatusCode)), true
		}
		return state.Error("Backend health check failed"), true
	case PhaseConnected:
		if prev.Phase == PhaseUnknown {
			return state.AddNotification{}, false
		}
		return state.Success(fmt.Sprintf("Backend connection restored (%d modules loaded)", next.ModulesLoaded)), true
	}
	return state.AddNotification{}, false
}
