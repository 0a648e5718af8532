// Package countdown implements a restartable one-second countdown.
//
// Every run owns its own ticker and stop channel and is tagged with a
// generation number. Start always stops the previous run before creating a
// new one, so two runs never decrement the same counter.
package countdown

import (
	"sync"
	"time"
)

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates the ticker for one run.
type TickerFunc func(d time.Duration) Ticker

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

func NewStdTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

type Countdown struct {
	mu        sync.Mutex
	remaining int
	gen       uint64
	stop      chan struct{}

	newTicker TickerFunc
	onTick    func(remaining int)
	onDone    func()
}

type Option func(*Countdown)

func WithTicker(f TickerFunc) Option {
	return func(c *Countdown) { c.newTicker = f }
}

// OnTick is called with the remaining seconds when a run starts and after
// every tick. It runs under the countdown lock and must not call back into
// the Countdown.
func OnTick(fn func(remaining int)) Option {
	return func(c *Countdown) { c.onTick = fn }
}

// OnDone is called once when a run reaches zero. Stopped runs never call it.
func OnDone(fn func()) Option {
	return func(c *Countdown) { c.onDone = fn }
}

func New(opts ...Option) *Countdown {
	c := &Countdown{newTicker: NewStdTicker}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start cancels any active run and counts down from seconds. A non-positive
// value just resets the counter.
func (c *Countdown) Start(seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	if seconds <= 0 {
		c.remaining = 0
		return
	}

	c.gen++
	c.remaining = seconds
	stop := make(chan struct{})
	c.stop = stop
	if c.onTick != nil {
		c.onTick(seconds)
	}

	go c.run(c.gen, stop, c.newTicker(time.Second))
}

// Stop cancels the active run, if any, and resets the counter.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.remaining = 0
}

func (c *Countdown) stopLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}

func (c *Countdown) run(gen uint64, stop <-chan struct{}, t Ticker) {
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C():
			if done := c.tick(gen); done {
				if c.onDone != nil {
					c.onDone()
				}
				return
			}
		}
	}
}

// tick reports whether this run just finished. Ticks from a superseded run
// are ignored.
func (c *Countdown) tick(gen uint64) (done bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen || c.stop == nil {
		return false
	}
	c.remaining--
	if c.onTick != nil {
		c.onTick(c.remaining)
	}
	if c.remaining > 0 {
		return false
	}
	c.stop = nil
	return true
}
