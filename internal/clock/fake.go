package clock

import (
	"sync"
	"time"
)

// Fake is a manually advanced [Clock].
//
// Timers scheduled with AfterFunc fire synchronously from [Fake.Advance], in
// deadline order, on the goroutine that calls Advance. Tickers deliver at most
// one pending tick (the channel has a buffer of one, like time.Ticker).
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	timers  []*fakeTimer
	tickers []*fakeTicker
}

// NewFake creates a [Fake] clock positioned at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// AfterFunc schedules fn to run once the clock has been advanced by d.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	t := &fakeTimer{clock: f, at: f.now.Add(d), seq: f.seq, fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// NewTicker creates a ticker that fires every d of advanced time.
func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTicker{
		clock:  f,
		period: d,
		next:   f.now.Add(d),
		c:      make(chan time.Time, 1),
	}
	f.tickers = append(f.tickers, t)
	return t
}

// Advance moves the clock forward by d, firing every timer and ticker whose
// deadline falls within the window.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for f.fireNext(target) {
	}

	f.mu.Lock()
	if target.After(f.now) {
		f.now = target
	}
	f.mu.Unlock()
}

// PendingTimers returns the number of scheduled timers that have neither
// fired nor been stopped.
func (f *Fake) PendingTimers() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, t := range f.timers {
		if !t.done {
			n++
		}
	}
	return n
}

// fireNext fires the earliest due timer or ticker not later than target.
// Returns false when nothing is due.
func (f *Fake) fireNext(target time.Time) bool {
	f.mu.Lock()

	var timer *fakeTimer
	for _, t := range f.timers {
		if t.done || t.at.After(target) {
			continue
		}
		if timer == nil || t.at.Before(timer.at) || (t.at.Equal(timer.at) && t.seq < timer.seq) {
			timer = t
		}
	}

	var ticker *fakeTicker
	for _, t := range f.tickers {
		if t.stopped || t.next.After(target) {
			continue
		}
		if ticker == nil || t.next.Before(ticker.next) {
			ticker = t
		}
	}

	switch {
	case timer != nil && (ticker == nil || !ticker.next.Before(timer.at)):
		timer.done = true
		f.now = timer.at
		f.compact()
		fn := timer.fn
		f.mu.Unlock()
		fn()
		return true

	case ticker != nil:
		f.now = ticker.next
		ticker.next = ticker.next.Add(ticker.period)
		select {
		case ticker.c <- f.now:
		default:
			// receiver is behind, drop the tick like time.Ticker does
		}
		f.mu.Unlock()
		return true
	}

	f.mu.Unlock()
	return false
}

// compact drops finished timers. Caller must hold f.mu.
func (f *Fake) compact() {
	live := f.timers[:0]
	for _, t := range f.timers {
		if !t.done {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(f.timers); i++ {
		f.timers[i] = nil
	}
	f.timers = live
}

type fakeTimer struct {
	clock *Fake
	at    time.Time
	seq   uint64
	fn    func()
	done  bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.done {
		return false
	}
	t.done = true
	t.clock.compact()
	return true
}

type fakeTicker struct {
	clock   *Fake
	period  time.Duration
	next    time.Time
	c       chan time.Time
	stopped bool
}

func (t *fakeTicker) Chan() <-chan time.Time {
	return t.c
}

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	t.stopped = true
	t.clock.mu.Unlock()
}
