// Package tracker implements the embeddable tracking client: an event
// queue with batched delivery, sliding-expiry session identification and
// scroll-depth milestone detection. Delivery is best effort; a failed
// batch is dropped and never surfaces to the caller.
package tracker

import (
	"context"
	"sync"
	"time"

	"webfolio/api/logger"
	"webfolio/api/models"
)

// Clock returns the current time. Injectable for deterministic tests.
type Clock func() time.Time

// Default batching parameters.
const (
	DefaultMaxBatch      = 50
	DefaultFlushInterval = 3 * time.Second

	sendTimeout = 5 * time.Second
)

// Config controls tracker batching and opt-out behavior.
type Config struct {
	// MaxBatch flushes the queue once it reaches this size.
	MaxBatch int
	// FlushInterval flushes any queued events on this period.
	FlushInterval time.Duration
	// Disabled drops all submissions (do-not-track honored upstream).
	Disabled bool
}

// Tracker buffers behavioral events and delivers them in batches.
type Tracker struct {
	cfg       Config
	transport Transport
	sessions  *SessionManager
	log       logger.Logger
	clock     Clock

	mu    sync.Mutex
	queue []models.Event
	path  string

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// New creates a Tracker. Zero config fields fall back to defaults; a nil
// clock uses time.Now.
func New(cfg Config, transport Transport, sessions *SessionManager, log logger.Logger, clock Clock) *Tracker {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = DefaultMaxBatch
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{
		cfg:       cfg,
		transport: transport,
		sessions:  sessions,
		log:       log,
		clock:     clock,
		queue:     make([]models.Event, 0, cfg.MaxBatch),
		done:      make(chan struct{}),
	}
}

// Start launches the periodic flush loop.
func (t *Tracker) Start() {
	t.wg.Add(1)
	go t.flushLoop()
}

// Stop ends the flush loop and delivers anything still queued.
func (t *Tracker) Stop() {
	t.once.Do(func() { close(t.done) })
	t.wg.Wait()
	t.Flush()
}

// SetPath records the current page path stamped onto queued events.
func (t *Tracker) SetPath(path string) {
	t.mu.Lock()
	t.path = path
	t.mu.Unlock()
}

// Queue fills in the session id and current path, then buffers the event.
// No-op when tracking is disabled. Reaching MaxBatch triggers a flush.
func (t *Tracker) Queue(e models.Event) {
	if t.cfg.Disabled {
		return
	}

	e.SessionID = t.sessions.ID()
	if e.Path == "" {
		t.mu.Lock()
		e.Path = t.path
		t.mu.Unlock()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = t.clock()
	}

	t.mu.Lock()
	t.queue = append(t.queue, e)
	full := len(t.queue) >= t.cfg.MaxBatch
	t.mu.Unlock()

	if full {
		t.Flush()
	}
}

// QueueScrollMilestone records a scroll-depth milestone as an event.
// Wire it as the ScrollTracker emit callback.
func (t *Tracker) QueueScrollMilestone(milestone int) {
	t.Queue(models.Event{
		Category: models.CategoryScroll,
		Action:   "depth",
		Value:    float64(milestone),
	})
}

// Flush delivers all queued events. Delivery failures are swallowed.
func (t *Tracker) Flush() {
	t.mu.Lock()
	if len(t.queue) == 0 {
		t.mu.Unlock()
		return
	}
	batch := t.queue
	t.queue = make([]models.Event, 0, t.cfg.MaxBatch)
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := t.transport.Send(ctx, batch); err != nil {
		// Best-effort delivery: the batch is dropped, the caller never
		// sees an error.
		t.log.Debug("Dropped event batch",
			logger.Int("batch_size", len(batch)),
			logger.Error(err),
		)
	}
}

// Len returns the number of events currently queued.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

func (t *Tracker) flushLoop() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.Flush()
		case <-t.done:
			return
		}
	}
}
