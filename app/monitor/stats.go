package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lysyi3m/rss-monitor/app/observability"
)

// Counter is a fixed record of monitoring outcome counts. Sum counts every
// recorded outcome; deferred and resubmitted bump it too so the summary
// reflects submission volume, not just terminal checks.
type Counter struct {
	Sum                 int `json:"sum"`
	Updated             int `json:"updated"`
	NotUpdated          int `json:"not_updated"`
	Cached              int `json:"cached"`
	Empty               int `json:"empty"`
	Failed              int `json:"failed"`
	Skipped             int `json:"skipped"`
	Cancelled           int `json:"cancelled"`
	UnknownError        int `json:"unknown_error"`
	Timeout             int `json:"timeout"`
	TimeoutUnknownError int `json:"timeout_unknown_error"`
	Deferred            int `json:"deferred"`
	Resubmitted         int `json:"resubmitted"`
}

// merge folds other into c element-wise.
func (c *Counter) merge(other Counter) {
	c.Sum += other.Sum
	c.Updated += other.Updated
	c.NotUpdated += other.NotUpdated
	c.Cached += other.Cached
	c.Empty += other.Empty
	c.Failed += other.Failed
	c.Skipped += other.Skipped
	c.Cancelled += other.Cancelled
	c.UnknownError += other.UnknownError
	c.Timeout += other.Timeout
	c.TimeoutUnknownError += other.TimeoutUnknownError
	c.Deferred += other.Deferred
	c.Resubmitted += other.Resubmitted
}

func (c Counter) hasErrors() bool {
	return c.Cancelled > 0 || c.UnknownError > 0 || c.Timeout > 0 || c.TimeoutUnknownError > 0
}

func (c Counter) String() string {
	parts := []string{
		fmt.Sprintf("updated(%d)", c.Updated),
		fmt.Sprintf("not updated(%d, including %d cached and %d empty)", c.NotUpdated, c.Cached, c.Empty),
	}
	optional := []struct {
		count int
		label string
	}{
		{c.Failed, "fetch failed"},
		{c.Skipped, "skipped"},
		{c.Cancelled, "cancelled"},
		{c.UnknownError, "unknown error"},
		{c.Timeout, "timeout"},
		{c.TimeoutUnknownError, "timeout w/ unknown error"},
		{c.Deferred, "deferred"},
		{c.Resubmitted, "resubmitted"},
	}
	for _, o := range optional {
		if o.count > 0 {
			parts = append(parts, fmt.Sprintf("%s(%d)", o.label, o.count))
		}
	}
	return strings.Join(parts, ", ")
}

// Stats aggregates check outcomes in two tiers: tier 2 is summarized on every
// driver tick, tier 1 accumulates tick windows and is summarized once per
// tier1Period.
type Stats struct {
	mu        sync.Mutex
	tier1     Counter
	tier2     Counter
	tier1Last time.Time
	tier2Last time.Time
	started   bool

	tier1Period time.Duration
	clock       func() time.Time
}

func NewStats(tier1Period time.Duration) *Stats {
	return &Stats{
		tier1Period: tier1Period,
		clock:       time.Now,
	}
}

func (s *Stats) record(outcome string, apply func(*Counter)) {
	s.mu.Lock()
	apply(&s.tier2)
	s.mu.Unlock()
	observability.MonitorOutcomes.WithLabelValues(outcome).Inc()
}

func (s *Stats) NotUpdated() {
	s.record("not_updated", func(c *Counter) { c.NotUpdated++; c.Sum++ })
}

func (s *Stats) Cached() {
	s.record("cached", func(c *Counter) { c.Cached++; c.NotUpdated++; c.Sum++ })
}

func (s *Stats) Empty() {
	s.record("empty", func(c *Counter) { c.Empty++; c.NotUpdated++; c.Sum++ })
}

func (s *Stats) Failed() {
	s.record("failed", func(c *Counter) { c.Failed++; c.Sum++ })
}

func (s *Stats) Updated() {
	s.record("updated", func(c *Counter) { c.Updated++; c.Sum++ })
}

func (s *Stats) Skipped() {
	s.record("skipped", func(c *Counter) { c.Skipped++; c.Sum++ })
}

func (s *Stats) Timeout() {
	s.record("timeout", func(c *Counter) { c.Timeout++; c.Sum++ })
}

func (s *Stats) Cancelled() {
	s.record("cancelled", func(c *Counter) { c.Cancelled++; c.Sum++ })
}

func (s *Stats) UnknownError() {
	s.record("unknown_error", func(c *Counter) { c.UnknownError++; c.Sum++ })
}

func (s *Stats) TimeoutUnknownError() {
	s.record("timeout_unknown_error", func(c *Counter) { c.TimeoutUnknownError++; c.Sum++ })
}

func (s *Stats) Deferred() {
	s.record("deferred", func(c *Counter) { c.Deferred++; c.Sum++ })
}

func (s *Stats) Resubmitted() {
	s.record("resubmitted", func(c *Counter) { c.Resubmitted++; c.Sum++ })
}

// Snapshot returns copies of the accumulating and window counters.
func (s *Stats) Snapshot() (tier1, tier2 Counter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tier1, s.tier2
}

// PrintSummary emits the tier-2 window summary, folds it into tier 1 and,
// once per tier1Period, emits and resets the tier-1 summary. The first call
// only records the baseline timestamps.
func (s *Stats) PrintSummary() {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.started = true
		s.tier1Last = now
		s.tier2Last = now
		return
	}

	summarize(s.tier2, slog.LevelDebug, now.Sub(s.tier2Last))
	s.tier2Last = now
	s.tier1.merge(s.tier2)
	s.tier2 = Counter{}

	tier1Diff := now.Sub(s.tier1Last)
	if tier1Diff < s.tier1Period {
		return
	}
	summarize(s.tier1, slog.LevelInfo, tier1Diff)
	s.tier1Last = now
	s.tier1 = Counter{}
}

func summarize(c Counter, defaultLevel slog.Level, window time.Duration) {
	window = window.Round(time.Second)
	if c.Sum == 0 {
		slog.Debug("No monitoring task", "window", window.String())
		return
	}
	level := defaultLevel
	if c.hasErrors() {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "Monitoring summary",
		"tasks", c.Sum, "window", window.String(), "stat", c.String())
}
