package tracker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webfolio/api/logger"
	"webfolio/api/models"
	"webfolio/api/tracker"
)

// fakeTransport captures delivered batches.
type fakeTransport struct {
	mu      sync.Mutex
	batches [][]models.Event
	err     error
}

func (f *fakeTransport) Send(_ context.Context, events []models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	batch := make([]models.Event, len(events))
	copy(batch, events)
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeTransport) Batches() [][]models.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches
}

func newTestTracker(cfg tracker.Config, transport tracker.Transport) *tracker.Tracker {
	clock := &fakeClock{now: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
	sessions := tracker.NewSessionManager(tracker.NewMemoryStorage(), tracker.NewMemoryStorage(), clock.Now)
	return tracker.New(cfg, transport, sessions, logger.NewNop(), clock.Now)
}

func TestTracker_QueueFillsSessionAndPath(t *testing.T) {
	transport := &fakeTransport{}
	tr := newTestTracker(tracker.Config{}, transport)

	tr.SetPath("/pricing")
	tr.Queue(models.Event{Category: models.CategoryClick, Action: "cta"})
	tr.Flush()

	batches := transport.Batches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)

	got := batches[0][0]
	assert.Equal(t, "/pricing", got.Path)
	assert.NotEmpty(t, got.SessionID)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestTracker_FlushesWhenBatchFull(t *testing.T) {
	transport := &fakeTransport{}
	tr := newTestTracker(tracker.Config{MaxBatch: 3}, transport)
	tr.SetPath("/")

	for i := 0; i < 3; i++ {
		tr.Queue(models.Event{Category: models.CategoryScroll, Action: "depth", Value: 25})
	}

	batches := transport.Batches()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 3)
	assert.Equal(t, 0, tr.Len())
}

func TestTracker_FlushEmptyQueueIsNoop(t *testing.T) {
	transport := &fakeTransport{}
	tr := newTestTracker(tracker.Config{}, transport)

	tr.Flush()

	assert.Empty(t, transport.Batches())
}

func TestTracker_DisabledDropsEverything(t *testing.T) {
	transport := &fakeTransport{}
	tr := newTestTracker(tracker.Config{Disabled: true}, transport)
	tr.SetPath("/")

	tr.Queue(models.Event{Category: models.CategoryClick, Action: "cta"})
	tr.Flush()

	assert.Equal(t, 0, tr.Len())
	assert.Empty(t, transport.Batches())
}

func TestTracker_DeliveryFailureIsSwallowed(t *testing.T) {
	transport := &fakeTransport{err: errors.New("network down")}
	tr := newTestTracker(tracker.Config{}, transport)
	tr.SetPath("/")

	tr.Queue(models.Event{Category: models.CategoryClick, Action: "cta"})
	tr.Flush()

	// The batch is dropped, not retried.
	assert.Equal(t, 0, tr.Len())
}

func TestTracker_StopDeliversRemainingEvents(t *testing.T) {
	transport := &fakeTransport{}
	tr := newTestTracker(tracker.Config{FlushInterval: time.Hour}, transport)
	tr.SetPath("/")
	tr.Start()

	tr.Queue(models.Event{Category: models.CategoryEngagement, Action: "time_on_page", Value: 42})
	tr.Stop()

	batches := transport.Batches()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 1)
}

func TestTracker_QueueScrollMilestone(t *testing.T) {
	transport := &fakeTransport{}
	tr := newTestTracker(tracker.Config{}, transport)
	tr.SetPath("/blog")

	tr.QueueScrollMilestone(75)
	tr.Flush()

	batches := transport.Batches()
	require.Len(t, batches, 1)
	got := batches[0][0]
	assert.Equal(t, models.CategoryScroll, got.Category)
	assert.Equal(t, "depth", got.Action)
	assert.Equal(t, 75.0, got.Value)
}
