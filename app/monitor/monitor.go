package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/rss-monitor/app/database"
	"github.com/lysyi3m/rss-monitor/app/observability"
)

// Monitor owns the submission/deferral state machine: at most one in-flight
// check per feed, a minimum inter-check interval, and resubmission of checks
// that were requested while one was already running.
//
// All state-table operations run entirely under mu and never across I/O, so
// each read-modify-write sequence is atomic with respect to the others.
type Monitor struct {
	feedRepo database.FeedRepository
	detector *Detector
	schedule *Schedule
	stat     *Stats

	minimalInterval int // minutes; locking is pointless at <= 1
	timeout         time.Duration
	tickInterval    time.Duration

	mu       sync.Mutex
	deferMap map[int64]TaskState
	started  bool

	queue  *submissionQueue
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMonitor(feedRepo database.FeedRepository, detector *Detector, schedule *Schedule,
	stat *Stats, minimalInterval int, timeout, tickInterval time.Duration) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		feedRepo:        feedRepo,
		detector:        detector,
		schedule:        schedule,
		stat:            stat,
		minimalInterval: minimalInterval,
		timeout:         timeout,
		tickInterval:    tickInterval,
		deferMap:        make(map[int64]TaskState),
		queue:           newSubmissionQueue(),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Start launches the dispatcher and the periodic driver. Idempotent.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.dispatch()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.tickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.RunPeriodicTask()
			}
		}
	}()
}

// Stop cancels the dispatcher and the driver. Workers already in flight are
// cancelled through the shared context and finish their own cleanup.
func (m *Monitor) Stop() {
	m.cancel()
	m.queue.close()
	m.wg.Wait()
}

// dispatch consumes the queue and spawns one worker per submission. It never
// waits for a worker, so submission throughput is independent of check
// duration.
func (m *Monitor) dispatch() {
	defer m.wg.Done()

	for {
		item, ok := m.queue.pop()
		if !ok {
			return
		}
		go m.monitorTask(item)
	}
}

// SyncSchedule loads every active feed into the schedule table.
func (m *Monitor) SyncSchedule() error {
	feeds, err := m.feedRepo.ListActiveFeeds()
	if err != nil {
		return fmt.Errorf("failed to load feeds for scheduling: %w", err)
	}
	for _, f := range feeds {
		m.schedule.Set(f.ID, f.Interval)
	}
	return nil
}

// RunPeriodicTask is the driver tick: emit the stats summary, collect due
// feeds and submit each of them.
func (m *Monitor) RunPeriodicTask() {
	m.stat.PrintSummary()

	due := m.schedule.DueTasks()
	if len(due) == 0 {
		return
	}

	feeds, err := m.feedRepo.FilterByIDs(due)
	if err != nil {
		slog.Error("Failed to resolve due feeds", "error", err)
		return
	}

	slog.Debug("Started a periodic monitoring task", "due", len(feeds))

	for _, f := range feeds {
		m.SubmitFeed(f)
	}
}

// SubmitFeed either enqueues a check for f or defers it when any state flag
// is already set.
func (m *Monitor) SubmitFeed(f *database.Feed) {
	m.mu.Lock()
	state := m.deferMap[f.ID]
	if state == stateDeferred {
		// Should not happen: DEFERRED alone means the resubmission that was
		// owed never took place. Enqueue anyway.
		slog.Warn("A deferred task was never resubmitted", "state", state.String(), "feed", f.ID, "link", f.Link)
	} else if state != stateEmpty {
		m.deferMap[f.ID] = state | stateDeferred
		m.mu.Unlock()
		m.stat.Deferred()
		slog.Debug("Deferred", "state", state.String(), "feed", f.ID, "link", f.Link)
		return
	}
	m.lockFeedID(f.ID)
	m.mu.Unlock()

	m.queue.push(submission{feedID: f.ID, feed: f})
}

// lockFeedID overwrites the feed's state to LOCKED and schedules the unlock.
// Callers must hold m.mu and ensure the current state may be overwritten.
func (m *Monitor) lockFeedID(feedID int64) {
	if m.minimalInterval <= 1 {
		// The scheduling cadence is one minute; locking adds nothing.
		delete(m.deferMap, feedID)
		return
	}
	m.deferMap[feedID] = stateLocked
	time.AfterFunc(time.Duration(m.minimalInterval)*time.Minute, func() {
		m.eraseState(feedID, stateLocked)
	})
}

// eraseState clears flag from the feed's state. When only DEFERRED remains
// the owed check is resubmitted by id.
func (m *Monitor) eraseState(feedID int64, flag TaskState) {
	m.mu.Lock()
	state := m.deferMap[feedID]
	if state == stateEmpty {
		m.mu.Unlock()
		slog.Warn("Unexpected empty task state", "feed", feedID)
		return
	}

	erased := state &^ flag
	if erased == stateDeferred {
		m.lockFeedID(feedID)
		m.mu.Unlock()
		m.queue.push(submission{feedID: feedID})
		m.stat.Resubmitted()
		slog.Debug("Resubmitted a deferred task", "state", state.String(), "feed", feedID)
		return
	}

	if erased == stateEmpty {
		delete(m.deferMap, feedID)
	} else {
		m.deferMap[feedID] = erased
	}
	m.mu.Unlock()
}

func (m *Monitor) setInProgress(feedID int64) {
	m.mu.Lock()
	m.deferMap[feedID] |= stateInProgress
	m.mu.Unlock()
}

func (m *Monitor) clearState(feedID int64) {
	m.mu.Lock()
	delete(m.deferMap, feedID)
	m.mu.Unlock()
}

// taskState returns the current flags for a feed. Intended for tests and
// introspection.
func (m *Monitor) taskState(feedID int64) TaskState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deferMap[feedID]
}

// monitorTask runs one feed check under the hard timeout and classifies the
// outcome.
func (m *Monitor) monitorTask(item submission) {
	feedID := item.feedID
	m.setInProgress(feedID)

	f := item.feed
	if f == nil {
		got, err := m.feedRepo.GetFeedByID(feedID)
		if err != nil || got == nil {
			slog.Error("Feed not found, but it was submitted to the monitor queue", "feed", feedID, "error", err)
			m.clearState(feedID)
			return
		}
		f = got
	}

	defer m.eraseState(feedID, stateInProgress)

	observability.WorkersInFlight.Inc()
	defer observability.WorkersInFlight.Dec()
	start := time.Now()
	defer func() {
		observability.CheckDuration.Observe(time.Since(start).Seconds())
	}()

	checkCtx, cancelCheck := context.WithCancel(m.ctx)
	defer cancelCheck()

	done := make(chan error, 1)
	go func() {
		done <- m.runDetector(checkCtx, f)
	}()

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	// A deadline context on the detector itself would turn cooperative
	// cancellation into a deadline error at the fetch boundary. Waiting on
	// the done channel with a separate timer keeps "detector finished" and
	// "detector must be cancelled" distinguishable.
	select {
	case err := <-done:
		switch {
		case err == nil:
			// terminal outcome already recorded by the detector
		case errors.Is(err, context.Canceled):
			m.stat.Cancelled()
			slog.Error("Monitoring task failed due to cancellation", "feed", f.Link, "error", err)
		default:
			m.stat.UnknownError()
			slog.Error("Monitoring task failed due to an unknown error", "feed", f.Link, "error", err)
		}
	case <-timer.C:
		cancelCheck()
		m.recordTimeoutOutcome(f.Link, <-done)
	}
}

// recordTimeoutOutcome classifies what the detector returned after the timer
// fired. A nil error means the detector finished in the window between the
// timer and the cancellation; its terminal outcome is already recorded and
// counting a timeout on top would double-count the check.
func (m *Monitor) recordTimeoutOutcome(link string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		m.stat.Timeout()
		slog.Error("Monitoring task timed out", "timeout", m.timeout.String(), "feed", link)
	default:
		m.stat.TimeoutUnknownError()
		slog.Error("Monitoring task timed out and caused an unknown error",
			"timeout", m.timeout.String(), "feed", link, "error", err)
	}
}

// runDetector shields the worker from detector panics; they classify as
// unknown errors instead of crashing the process.
func (m *Monitor) runDetector(ctx context.Context, f *database.Feed) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector panic: %v", r)
		}
	}()
	return m.detector.Check(ctx, f)
}

// QueueDepth reports the number of submissions waiting for a worker.
func (m *Monitor) QueueDepth() int {
	return m.queue.len()
}

// StatsSnapshot exposes the two-tier counters for the API.
func (m *Monitor) StatsSnapshot() (tier1, tier2 Counter) {
	return m.stat.Snapshot()
}
