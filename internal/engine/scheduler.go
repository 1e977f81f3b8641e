package engine

import (
	"sync"
	"time"
)

const (
	DefaultTickInterval  = 500 * time.Millisecond
	DefaultTradeInterval = 2500 * time.Millisecond
	DefaultMaxPositions  = 3
)

// Scheduler calls tick on a fixed interval between Start and Stop.
type Scheduler struct {
	interval time.Duration
	tick     func()

	mu   sync.Mutex
	stop chan struct{}
}

// NewScheduler returns a stopped scheduler.
func NewScheduler(interval time.Duration, tick func()) *Scheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Scheduler{interval: interval, tick: tick}
}

// Start begins ticking. It reports false if the scheduler was already running.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return false
	}
	stop := make(chan struct{})
	s.stop = stop
	go s.loop(stop)
	return true
}

// Stop halts future ticks without waiting for an in-progress one, so it may be
// called from inside tick's own critical section.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
}

// Running reports whether the scheduler is ticking.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

func (s *Scheduler) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			s.tick()
		}
	}
}

// Gate decides whether a scheduler tick may begin a new trade.
type Gate struct {
	TradeInterval time.Duration
	MaxPositions  int
}

// Allow reports whether all gating conditions hold: the trade interval has
// elapsed since last, at least one instrument is admitted, and open plus
// in-flight positions are below the cap.
func (g Gate) Allow(now, last time.Time, admitted, open int) bool {
	if !last.IsZero() && now.Sub(last) < g.TradeInterval {
		return false
	}
	if admitted == 0 {
		return false
	}
	return open < g.MaxPositions
}
