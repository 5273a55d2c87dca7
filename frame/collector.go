package frame

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ReclaimWindow is the minimum age, in microseconds, a Frame must reach
// before the Collector will reclaim it. 3,000,000us (3s) matches the
// original implementation's fixed window, chosen there as an upper bound
// on combined RTP jitter buffer, codec, and package-layer latency.
const ReclaimWindow int64 = 3_000_000

// tickInterval is how often the Collector scans for reclaimable frames.
// The original implementation slept via select() with a 1-second timeout;
// this is kept as the default but is a constructor parameter here (per
// SPEC_FULL §9, the tick granularity must be configurable, not a source
// constant).
const tickInterval = 1 * time.Second

// Collector is a deferred-reclamation service: every Frame registered with
// it is retained until at least ReclaimWindow microseconds after its
// birth, then destroyed. This decouples producer and consumer lifetimes
// without reference counting on the hot path.
//
// Unlike the original implementation's process-global singleton, a
// Collector here is an ordinary value threaded explicitly through Frame
// constructors; nothing in this package holds a package-level pointer to
// one.
type Collector struct {
	mu           sync.Mutex
	frames       []*Frame
	active       bool
	stopCh       chan struct{}
	doneCh       chan struct{}
	tick         time.Duration
	timeProvider TimeProvider
	log          *logrus.Entry
}

// NewCollector creates a Collector with the default 1-second tick and the
// system wall clock. Call Start before registering any Frame.
func NewCollector() *Collector {
	return NewCollectorWithOptions(tickInterval, DefaultTimeProvider{})
}

// NewCollectorWithOptions creates a Collector with an injectable tick
// interval and time source, for deterministic tests of the reclamation
// window (testable property 1 and scenario S5).
func NewCollectorWithOptions(tick time.Duration, tp TimeProvider) *Collector {
	return &Collector{
		tick:         tick,
		timeProvider: tp,
		log:          logrus.WithField("package", "frame"),
	}
}

// Start activates the Collector and begins its reclamation tick in a
// background goroutine. Calling Start on an already-active Collector is a
// no-op.
func (c *Collector) Start() {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return
	}
	c.active = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.mu.Unlock()

	c.log.Info("frame collector starting")
	go c.run()
}

// Stop deactivates the Collector, draining and destroying every held
// frame regardless of age, and waits for the background tick goroutine to
// exit.
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	close(c.stopCh)
	c.mu.Unlock()

	<-c.doneCh

	c.mu.Lock()
	n := len(c.frames)
	c.frames = nil
	c.mu.Unlock()
	c.log.WithField("drained", n).Info("frame collector stopped")
}

// register enqueues frame for eventual reclamation. It is a no-op until
// the Collector is active, matching the original's `if(!active) return`
// guard (frames constructed before Start simply are not tracked).
func (c *Collector) register(f *Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	c.frames = append(c.frames, f)
}

// Len reports how many frames the Collector currently holds. Useful for
// tests asserting reachability windows.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *Collector) run() {
	defer close(c.doneCh)
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.reclaim()
		}
	}
}

func (c *Collector) reclaim() {
	now := c.timeProvider.Now().UnixMicro()
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.frames[:0]
	reclaimed := 0
	for _, f := range c.frames {
		if now-f.TimeBorn >= ReclaimWindow {
			reclaimed++
			continue
		}
		kept = append(kept, f)
	}
	c.frames = kept
	if reclaimed > 0 {
		c.log.WithField("reclaimed", reclaimed).Debug("frame collector reclaimed aged frames")
	}
}
