package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lysyi3m/rss-monitor/app/feed"
)

func webFeed304() *feed.WebFeed {
	return &feed.WebFeed{Status: 304, Response: &feed.WebResponse{}}
}

func newTestMonitor(minimalInterval int, timeout time.Duration, fx *detectorFixture) *Monitor {
	return NewMonitor(fx.feedRepo, fx.detector, fx.schedule, fx.stat,
		minimalInterval, timeout, time.Minute)
}

func TestSubmitFeedLocksAndEnqueues(t *testing.T) {
	f := activeFeed()
	fx := newDetectorFixture(f, oneSub(), nil)
	m := newTestMonitor(5, time.Minute, fx)

	m.SubmitFeed(f)

	if got := m.taskState(f.ID); got != stateLocked {
		t.Errorf("Expected state LOCKED, got %s", got)
	}
	if m.QueueDepth() != 1 {
		t.Errorf("Expected queue depth 1, got %d", m.QueueDepth())
	}
}

func TestSubmitFeedSkipsLockAtMinimalIntervalOne(t *testing.T) {
	f := activeFeed()
	fx := newDetectorFixture(f, oneSub(), nil)
	m := newTestMonitor(1, time.Minute, fx)

	m.SubmitFeed(f)

	if got := m.taskState(f.ID); got != stateEmpty {
		t.Errorf("Expected no state at minimal interval 1, got %s", got)
	}
	if m.QueueDepth() != 1 {
		t.Errorf("Expected queue depth 1, got %d", m.QueueDepth())
	}
}

func TestSubmitFeedDefersWhenBusy(t *testing.T) {
	f := activeFeed()
	fx := newDetectorFixture(f, oneSub(), nil)
	m := newTestMonitor(5, time.Minute, fx)

	m.setInProgress(f.ID)
	m.SubmitFeed(f)

	if got := m.taskState(f.ID); got != stateInProgress|stateDeferred {
		t.Errorf("Expected IN_PROGRESS|DEFERRED, got %s", got)
	}
	if m.QueueDepth() != 0 {
		t.Errorf("Expected nothing enqueued for a deferred submission, got %d", m.QueueDepth())
	}
	_, tier2 := fx.stat.Snapshot()
	if tier2.Deferred != 1 {
		t.Errorf("Expected 1 deferred, got %d", tier2.Deferred)
	}
}

func TestSubmitFeedDefersOnlyOnce(t *testing.T) {
	f := activeFeed()
	fx := newDetectorFixture(f, oneSub(), nil)
	m := newTestMonitor(5, time.Minute, fx)

	m.setInProgress(f.ID)
	m.SubmitFeed(f)
	m.SubmitFeed(f)

	if got := m.taskState(f.ID); got != stateInProgress|stateDeferred {
		t.Errorf("Expected IN_PROGRESS|DEFERRED, got %s", got)
	}
	_, tier2 := fx.stat.Snapshot()
	if tier2.Deferred != 2 {
		t.Errorf("Expected both submissions counted as deferred, got %d", tier2.Deferred)
	}
}

func TestEraseStateResubmitsDeferred(t *testing.T) {
	f := activeFeed()
	fx := newDetectorFixture(f, oneSub(), nil)
	m := newTestMonitor(5, time.Minute, fx)

	m.setInProgress(f.ID)
	m.SubmitFeed(f) // deferred

	m.eraseState(f.ID, stateInProgress)

	// The owed check re-locks the feed and goes back on the queue by id.
	if got := m.taskState(f.ID); got != stateLocked {
		t.Errorf("Expected LOCKED after resubmission, got %s", got)
	}
	if m.QueueDepth() != 1 {
		t.Errorf("Expected resubmission enqueued, got depth %d", m.QueueDepth())
	}
	_, tier2 := fx.stat.Snapshot()
	if tier2.Resubmitted != 1 {
		t.Errorf("Expected 1 resubmitted, got %d", tier2.Resubmitted)
	}
}

func TestEraseStateClearsLastFlag(t *testing.T) {
	f := activeFeed()
	fx := newDetectorFixture(f, oneSub(), nil)
	m := newTestMonitor(5, time.Minute, fx)

	m.setInProgress(f.ID)
	m.eraseState(f.ID, stateInProgress)

	if got := m.taskState(f.ID); got != stateEmpty {
		t.Errorf("Expected empty state, got %s", got)
	}
}

func TestEraseStateOnEmptyIsNoOp(t *testing.T) {
	f := activeFeed()
	fx := newDetectorFixture(f, oneSub(), nil)
	m := newTestMonitor(5, time.Minute, fx)

	m.eraseState(f.ID, stateInProgress)

	if got := m.taskState(f.ID); got != stateEmpty {
		t.Errorf("Expected empty state, got %s", got)
	}
	if m.QueueDepth() != 0 {
		t.Errorf("Expected nothing enqueued, got %d", m.QueueDepth())
	}
}

func TestMonitorTaskTimeout(t *testing.T) {
	f := activeFeed()
	fx := newDetectorFixture(f, oneSub(), nil)
	fx.fetcher.block = true
	m := newTestMonitor(5, 30*time.Millisecond, fx)

	m.monitorTask(submission{feedID: f.ID, feed: f})

	_, tier2 := fx.stat.Snapshot()
	if tier2.Timeout != 1 {
		t.Errorf("Expected 1 timeout, got %+v", tier2)
	}
	if got := m.taskState(f.ID); got != stateEmpty {
		t.Errorf("Expected state cleared after the task, got %s", got)
	}
}

func TestRecordTimeoutOutcome(t *testing.T) {
	f := activeFeed()
	fx := newDetectorFixture(f, oneSub(), nil)
	m := newTestMonitor(5, time.Minute, fx)

	// The detector can finish between the timer firing and the cancellation
	// landing; its outcome is already recorded then.
	m.recordTimeoutOutcome(f.Link, nil)

	_, tier2 := fx.stat.Snapshot()
	if tier2.Sum != 0 {
		t.Errorf("Expected no extra outcome for a finished detector, got %+v", tier2)
	}

	m.recordTimeoutOutcome(f.Link, context.Canceled)

	_, tier2 = fx.stat.Snapshot()
	if tier2.Timeout != 1 {
		t.Errorf("Expected 1 timeout for a cancelled detector, got %+v", tier2)
	}

	m.recordTimeoutOutcome(f.Link, errors.New("db gone"))

	_, tier2 = fx.stat.Snapshot()
	if tier2.TimeoutUnknownError != 1 {
		t.Errorf("Expected 1 timeout w/ unknown error, got %+v", tier2)
	}
	if tier2.Sum != 2 {
		t.Errorf("Expected 2 outcomes in total, got %+v", tier2)
	}
}

func TestMonitorTaskUnknownError(t *testing.T) {
	f := activeFeed()
	fx := newDetectorFixture(f, oneSub(), nil)
	fx.subRepo.err = errors.New("db gone")
	m := newTestMonitor(5, time.Minute, fx)

	m.monitorTask(submission{feedID: f.ID, feed: f})

	_, tier2 := fx.stat.Snapshot()
	if tier2.UnknownError != 1 {
		t.Errorf("Expected 1 unknown error, got %+v", tier2)
	}
}

func TestMonitorTaskResolvesFeedByID(t *testing.T) {
	f := activeFeed()
	fx := newDetectorFixture(f, oneSub(), webFeed304())
	m := newTestMonitor(5, time.Minute, fx)

	m.monitorTask(submission{feedID: f.ID})

	if fx.fetcher.calls != 1 {
		t.Errorf("Expected the resolved feed to be checked, got %d calls", fx.fetcher.calls)
	}
}

func TestMonitorTaskUnknownFeedID(t *testing.T) {
	f := activeFeed()
	fx := newDetectorFixture(f, oneSub(), nil)
	m := newTestMonitor(5, time.Minute, fx)

	m.monitorTask(submission{feedID: 999})

	if fx.fetcher.calls != 0 {
		t.Error("Expected no check for an unknown feed")
	}
	if got := m.taskState(999); got != stateEmpty {
		t.Errorf("Expected state cleared for an unknown feed, got %s", got)
	}
	_, tier2 := fx.stat.Snapshot()
	if tier2.Sum != 0 {
		t.Errorf("Expected no outcome recorded, got %+v", tier2)
	}
}

func TestRunPeriodicTaskSubmitsDueFeeds(t *testing.T) {
	f := activeFeed()
	interval := 1
	f.Interval = &interval

	fx := newDetectorFixture(f, oneSub(), nil)
	m := newTestMonitor(5, time.Minute, fx)

	m.RunPeriodicTask()

	if m.QueueDepth() != 1 {
		t.Errorf("Expected the due feed enqueued, got depth %d", m.QueueDepth())
	}
	if got := m.taskState(f.ID); got != stateLocked {
		t.Errorf("Expected LOCKED, got %s", got)
	}
}

func TestStartStop(t *testing.T) {
	f := activeFeed()
	fx := newDetectorFixture(f, oneSub(), webFeed304())
	m := newTestMonitor(1, time.Second, fx)

	m.Start()
	m.Start() // idempotent

	m.SubmitFeed(f)

	// Give the dispatcher a moment to drain the queue.
	deadline := time.Now().Add(time.Second)
	for m.QueueDepth() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	m.Stop()

	if m.QueueDepth() != 0 {
		t.Errorf("Expected queue drained, got %d", m.QueueDepth())
	}
	_, tier2 := fx.stat.Snapshot()
	if tier2.Cached != 1 {
		t.Errorf("Expected the submitted check to complete, got %+v", tier2)
	}
}

func TestSyncSchedule(t *testing.T) {
	f := activeFeed()
	fx := newDetectorFixture(f, oneSub(), nil)
	fx.schedule.Remove(f.ID)

	m := newTestMonitor(5, time.Minute, fx)

	if err := m.SyncSchedule(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if fx.schedule.Len() != 1 {
		t.Errorf("Expected 1 scheduled feed, got %d", fx.schedule.Len())
	}
}
