package tracker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"webfolio/api/tracker"
)

// collectMilestones returns a ScrollTracker wired to append fired
// milestones to the returned slice.
func collectMilestones(cfg tracker.ScrollConfig, clock *fakeClock) (*tracker.ScrollTracker, *[]int) {
	fired := &[]int{}
	st := tracker.NewScrollTracker(cfg, func(m int) {
		*fired = append(*fired, m)
	}, clock.Now)
	return st, fired
}

func TestScrollTracker_NoFireBelowThreshold(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	st, fired := collectMilestones(tracker.ScrollConfig{}, clock)

	st.Bind("/blog", 0, 2000, 800)
	clock.Advance(time.Second)
	st.Observe(100, 2000, 800) // ~8%

	assert.Empty(t, *fired)
}

func TestScrollTracker_MilestoneFiresExactlyOnce(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	st, fired := collectMilestones(tracker.ScrollConfig{}, clock)

	st.Bind("/blog", 0, 2000, 800)

	// 600/1200 = 50%: fires 25 and 50.
	clock.Advance(time.Second)
	st.Observe(600, 2000, 800)
	assert.Equal(t, []int{25, 50}, *fired)

	// Scrolling around past the same milestones fires nothing new.
	clock.Advance(time.Second)
	st.Observe(650, 2000, 800)
	clock.Advance(time.Second)
	st.Observe(550, 2000, 800)
	assert.Equal(t, []int{25, 50}, *fired)
}

func TestScrollTracker_NonScrollablePageFires100OnBind(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	st, fired := collectMilestones(tracker.ScrollConfig{}, clock)

	st.Bind("/contact", 0, 800, 800)

	assert.Contains(t, *fired, 100)
}

func TestScrollTracker_InitialPositionCheckedOnBind(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	st, fired := collectMilestones(tracker.ScrollConfig{}, clock)

	// Landing mid-page via an anchor: 720/1200 = 60%.
	st.Bind("/docs", 720, 2000, 800)

	assert.Equal(t, []int{25, 50}, *fired)
}

func TestScrollTracker_ThrottleDropsRapidTicks(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	st, fired := collectMilestones(tracker.ScrollConfig{Throttle: 250 * time.Millisecond}, clock)

	st.Bind("/blog", 0, 2000, 800)

	clock.Advance(time.Second)
	st.Observe(300, 2000, 800) // 25% handled
	clock.Advance(50 * time.Millisecond)
	st.Observe(1200, 2000, 800) // inside throttle window, ignored
	assert.Equal(t, []int{25}, *fired)

	clock.Advance(250 * time.Millisecond)
	st.Observe(1200, 2000, 800) // 100%: fires 50, 75, 100
	assert.Equal(t, []int{25, 50, 75, 100}, *fired)
}

func TestScrollTracker_StateResetsOnPathChange(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	st, fired := collectMilestones(tracker.ScrollConfig{}, clock)

	st.Bind("/a", 0, 2000, 800)
	clock.Advance(time.Second)
	st.Observe(1200, 2000, 800)
	assert.Equal(t, []int{25, 50, 75, 100}, *fired)

	// New page view: milestones are armed again.
	st.Bind("/b", 0, 2000, 800)
	clock.Advance(time.Second)
	st.Observe(300, 2000, 800)
	assert.Equal(t, []int{25, 50, 75, 100, 25}, *fired)
}
