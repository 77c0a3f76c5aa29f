package service

import (
	"sync"
	"time"
)

// Countdown calls a tick function once per interval on its own goroutine
// until the function returns false or Stop is called.
type Countdown struct {
	interval time.Duration
	tick     func() bool

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewCountdown creates a stopped countdown. A non-positive interval means one second.
func NewCountdown(interval time.Duration, tick func() bool) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{interval: interval, tick: tick}
}

// Rearm starts the countdown, or restarts it if it is already running, so the
// next tick is a full interval away.
func (c *Countdown) Rearm() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.run(c.stop, c.done)
}

// Stop halts the countdown and waits for its goroutine to exit. Calling it
// on a stopped countdown does nothing. It must not be called from the tick
// function.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Running reports whether the goroutine is still ticking
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *Countdown) stopLocked() {
	if c.stop == nil {
		return
	}
	close(c.stop)
	<-c.done
	c.stop = nil
	c.done = nil
}

func (c *Countdown) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// stop may have closed while the tick was pending
			select {
			case <-stop:
				return
			default:
			}
			if !c.tick() {
				return
			}
		}
	}
}
