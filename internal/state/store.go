package state

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jpalmerr/labconsole/internal/clock"
)

const subscriberBuffer = 16

// Store is the single owner of the console's [State].
//
// State changes only through [Store.Dispatch], which applies one [Action] at a
// time: each dispatch computes the next snapshot, commits it, and notifies
// listeners before the next dispatch starts. Readers get deep copies via
// [Store.Snapshot] or a subscription channel.
//
// A Store is created once per console with [NewStore] and disposed with
// [Store.Close]. All methods are safe for concurrent use.
type Store struct {
	// dispatchMu serializes dispatches including listener delivery, so
	// listeners observe snapshots in dispatch order.
	dispatchMu sync.Mutex

	mu        sync.RWMutex
	state     State
	closed    bool
	listeners []listener
	nextID    int

	subMu       sync.RWMutex
	subscribers map[chan State]struct{}

	clock  clock.Clock
	newID  func() string
	logger *slog.Logger
}

type listener struct {
	id int
	fn func(State)
}

// Option configures a [Store].
type Option func(*Store)

// WithClock sets the clock used to stamp LastUpdate and Timestamp.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithIDGenerator sets the function that generates notification IDs.
// Defaults to random UUIDs.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger sets the store's logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore creates a store whose device table holds one entry per element of
// devices, in order. Only ID and Name are taken from the seeds; every device
// starts disconnected. Seeds repeating an earlier ID are dropped.
func NewStore(devices []DeviceStatus, opts ...Option) *Store {
	s := &Store{
		subscribers: make(map[chan State]struct{}),
		clock:       clock.Real(),
		newID:       uuid.NewString,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	now := s.clock.Now()
	seen := make(map[string]bool, len(devices))
	table := make([]DeviceStatus, 0, len(devices))
	for _, d := range devices {
		if seen[d.ID] {
			s.logger.Warn("duplicate device id ignored", "device", d.ID)
			continue
		}
		seen[d.ID] = true
		table = append(table, DeviceStatus{
			ID:         d.ID,
			Name:       d.Name,
			Connected:  false,
			Status:     DeviceDisconnected,
			LastUpdate: now,
		})
	}

	s.state = State{
		Devices:       table,
		Notifications: []Notification{},
	}
	return s
}

// Dispatch applies a to the current state.
//
// Dispatch never fails: unknown device IDs and absent notification IDs are
// no-ops, and dispatches after [Store.Close] are ignored. Listeners registered
// with [Store.Listen] run synchronously before Dispatch returns and must not
// dispatch themselves.
func (s *Store) Dispatch(a Action) {
	if a == nil {
		return
	}

	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("dispatch after close ignored", "action", fmt.Sprintf("%T", a))
		return
	}
	next := reduce(s.state, a, env{now: s.clock.Now(), newID: s.newID})
	s.state = next
	listeners := make([]listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		s.invokeListenerSafe(l.fn, next.Clone())
	}
	s.notifySubscribers(next)
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Listen registers fn to be called with the new snapshot after every
// dispatch, and once immediately with the current one. The returned function
// removes the listener; it is safe to call more than once.
func (s *Store) Listen(fn func(State)) (cancel func()) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return func() {}
	}
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	current := s.state.Clone()
	s.mu.Unlock()

	s.invokeListenerSafe(fn, current)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Subscribe returns a channel that receives a snapshot after every dispatch.
//
// The channel has a small buffer; when it is full, snapshots are dropped for
// that subscriber rather than blocking dispatch. Since every snapshot is
// complete, a subscriber that misses some still converges on the next one.
// Callers must call [Store.Unsubscribe] when done.
func (s *Store) Subscribe() <-chan State {
	ch := make(chan State, subscriberBuffer)

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		close(ch)
		return ch
	}

	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// multiple times or with an unknown channel.
func (s *Store) Unsubscribe(ch <-chan State) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for subCh := range s.subscribers {
		if subCh == ch {
			delete(s.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// Close disposes the store: listeners are dropped, subscription channels are
// closed, and later dispatches are ignored. Snapshot keeps returning the last
// state. Close is idempotent.
func (s *Store) Close() {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.listeners = nil
	s.mu.Unlock()

	s.subMu.Lock()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.subMu.Unlock()
}

// notifySubscribers sends st to all subscribers without blocking.
func (s *Store) notifySubscribers(st State) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for ch := range s.subscribers {
		select {
		case ch <- st.Clone():
		default:
			// subscriber is slow, drop the snapshot
		}
	}
}

// invokeListenerSafe calls a listener with panic recovery. The panic is
// logged with a correlation id so it can be matched to user reports.
func (s *Store) invokeListenerSafe(fn func(State), st State) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("state listener panicked",
				"correlation_id", uuid.NewString(),
				"panic", r,
			)
		}
	}()
	fn(st)
}
