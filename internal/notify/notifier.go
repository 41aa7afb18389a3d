// Package notify retires transient notifications from the application store.
//
// Only the surfaced notification (the tail of the queue) is ever on screen, so
// the [Notifier] keeps at most one expiry timer: the one for the surfaced
// notification, when it has a duration. Whenever the surfaced notification
// changes the previous timer is cancelled.
package notify

import (
	"log/slog"
	"sync"

	"github.com/jpalmerr/labconsole/internal/clock"
	"github.com/jpalmerr/labconsole/internal/state"
)

// Store is the part of [state.Store] the notifier depends on.
type Store interface {
	Listen(fn func(state.State)) (cancel func())
	Dispatch(a state.Action)
}

// DismissReason says why the view asked to close a notification.
type DismissReason string

const (
	// ReasonClose is an explicit close by the user (close button, escape key).
	ReasonClose DismissReason = "close"

	// ReasonClickAway is an incidental click outside the notification. It is
	// not user intent and never removes anything.
	ReasonClickAway DismissReason = "clickaway"
)

// ParseDismissReason maps a view-supplied reason to a [DismissReason].
// Anything other than "clickaway" counts as an explicit close.
func ParseDismissReason(s string) DismissReason {
	if DismissReason(s) == ReasonClickAway {
		return ReasonClickAway
	}
	return ReasonClose
}

// Notifier schedules and cancels expiry timers for surfaced notifications.
//
// The lifecycle is [New], [Notifier.Start], [Notifier.Close]. Close cancels
// the pending timer so nothing is dispatched into a disposed store.
type Notifier struct {
	store  Store
	clock  clock.Clock
	logger *slog.Logger

	mu       sync.Mutex
	started  bool
	closed   bool
	cancel   func()
	surfaced string
	timer    clock.Timer
	gen      uint64
}

// Option configures a [Notifier].
type Option func(*Notifier)

// WithClock sets the clock used to schedule expiry timers.
func WithClock(c clock.Clock) Option {
	return func(n *Notifier) {
		if c != nil {
			n.clock = c
		}
	}
}

// WithLogger sets the notifier's logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// New creates a notifier for st. It does nothing until [Notifier.Start].
func New(st Store, opts ...Option) *Notifier {
	n := &Notifier{
		store:  st,
		clock:  clock.Real(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Start attaches the notifier to the store. The currently surfaced
// notification, if any, gets its timer immediately. Start is idempotent and a
// no-op after Close.
func (n *Notifier) Start() {
	n.mu.Lock()
	if n.started || n.closed {
		n.mu.Unlock()
		return
	}
	n.started = true
	n.mu.Unlock()

	// Listen calls back synchronously, so n.mu must not be held here.
	cancel := n.store.Listen(n.onSnapshot)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		cancel()
		return
	}
	n.cancel = cancel
	n.mu.Unlock()
}

// Dismiss removes the surfaced notification id on behalf of the user.
//
// It reports whether a removal was dispatched. Click-away dismissals, ids that
// are not currently surfaced, and calls after Close are ignored.
func (n *Notifier) Dismiss(id string, reason DismissReason) bool {
	if reason == ReasonClickAway {
		n.logger.Debug("click-away dismissal ignored", "notification", id)
		return false
	}

	n.mu.Lock()
	ok := !n.closed && id != "" && id == n.surfaced
	n.mu.Unlock()

	if !ok {
		return false
	}
	n.store.Dispatch(state.RemoveNotification{ID: id})
	return true
}

// Close cancels any pending expiry timer and detaches from the store.
// Close is idempotent.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.stopTimerLocked()
	n.surfaced = ""
	cancel := n.cancel
	n.cancel = nil
	n.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// onSnapshot reschedules the expiry timer when the surfaced notification
// changes. It runs inside the store's dispatch and must not dispatch.
func (n *Notifier) onSnapshot(s state.State) {
	tail, ok := s.Surfaced()

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}

	id := ""
	if ok {
		id = tail.ID
	}
	if id == n.surfaced {
		return
	}

	n.stopTimerLocked()
	n.surfaced = id

	if !ok || tail.Duration == nil {
		return
	}

	n.gen++
	gen := n.gen
	n.timer = n.clock.AfterFunc(*tail.Duration, func() {
		n.expire(id, gen)
	})
}

// expire removes id if its timer is still the current one.
func (n *Notifier) expire(id string, gen uint64) {
	n.mu.Lock()
	current := !n.closed && n.gen == gen && n.surfaced == id
	if current {
		n.timer = nil
	}
	n.mu.Unlock()

	if !current {
		n.logger.Debug("stale notification timer ignored", "notification", id)
		return
	}

	n.logger.Debug("notification expired", "notification", id)
	n.store.Dispatch(state.RemoveNotification{ID: id})
}

// stopTimerLocked cancels the pending timer. Caller must hold n.mu.
func (n *Notifier) stopTimerLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	// invalidate a timer whose callback is already running
	n.gen++
}
