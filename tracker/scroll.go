package tracker

import (
	"sync"
	"time"
)

// Scroll tracking defaults.
var defaultMilestones = []int{25, 50, 75, 100}

// DefaultScrollThrottle bounds how often scroll observations are handled.
const DefaultScrollThrottle = 250 * time.Millisecond

// EmitFunc receives a milestone percentage exactly once per page view.
type EmitFunc func(milestone int)

// ScrollConfig controls milestone thresholds and handler throttling.
type ScrollConfig struct {
	Milestones []int
	Throttle   time.Duration
}

// ScrollTracker detects when the scroll position crosses configured
// percentage milestones. Each milestone fires at most once per page view;
// state resets when the path changes.
type ScrollTracker struct {
	milestones []int
	throttle   time.Duration
	emit       EmitFunc
	clock      Clock

	mu          sync.Mutex
	path        string
	fired       map[int]bool
	lastHandled time.Time
}

// NewScrollTracker creates a ScrollTracker. Zero config fields fall back
// to the 25/50/75/100 milestones and a 250 ms throttle.
func NewScrollTracker(cfg ScrollConfig, emit EmitFunc, clock Clock) *ScrollTracker {
	if len(cfg.Milestones) == 0 {
		cfg.Milestones = defaultMilestones
	}
	if cfg.Throttle <= 0 {
		cfg.Throttle = DefaultScrollThrottle
	}
	if clock == nil {
		clock = time.Now
	}
	return &ScrollTracker{
		milestones: cfg.Milestones,
		throttle:   cfg.Throttle,
		emit:       emit,
		clock:      clock,
		fired:      make(map[int]bool),
	}
}

// Bind resets milestone state for a new page view and checks the initial
// position once (covers landing mid-page via anchors). A page that fits
// the viewport counts as fully scrolled and fires the 100% milestone
// immediately.
func (s *ScrollTracker) Bind(path string, scrollTop, scrollHeight, clientHeight float64) {
	s.mu.Lock()
	s.path = path
	s.fired = make(map[int]bool)
	s.lastHandled = time.Time{}
	s.mu.Unlock()

	s.check(percent(scrollTop, scrollHeight, clientHeight))
}

// Observe handles a scroll event. Handling is throttled; ticks inside the
// throttle window are ignored.
func (s *ScrollTracker) Observe(scrollTop, scrollHeight, clientHeight float64) {
	now := s.clock()

	s.mu.Lock()
	if !s.lastHandled.IsZero() && now.Sub(s.lastHandled) < s.throttle {
		s.mu.Unlock()
		return
	}
	s.lastHandled = now
	s.mu.Unlock()

	s.check(percent(scrollTop, scrollHeight, clientHeight))
}

// check fires every configured milestone at or below pct that has not
// fired yet for this page view.
func (s *ScrollTracker) check(pct float64) {
	var due []int

	s.mu.Lock()
	for _, m := range s.milestones {
		if pct >= float64(m) && !s.fired[m] {
			s.fired[m] = true
			due = append(due, m)
		}
	}
	s.mu.Unlock()

	for _, m := range due {
		s.emit(m)
	}
}

// percent converts scroll geometry to a 0-100 depth percentage. A
// non-scrollable page reads as 100.
func percent(scrollTop, scrollHeight, clientHeight float64) float64 {
	scrollable := scrollHeight - clientHeight
	if scrollable <= 0 {
		return 100
	}
	return scrollTop / scrollable * 100
}
