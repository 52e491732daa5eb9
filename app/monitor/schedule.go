package monitor

import (
	"sync"
)

// Schedule decides which feeds are due on each driver tick. A feed with
// interval N minutes becomes due every N ticks (the driver ticks once a
// minute). Feeds without subscribers are dropped from the table entirely.
type Schedule struct {
	mu              sync.Mutex
	intervals       map[int64]int
	defaultInterval int
	tick            int
}

func NewSchedule(defaultInterval int) *Schedule {
	if defaultInterval < 1 {
		defaultInterval = 1
	}
	return &Schedule{
		intervals:       make(map[int64]int),
		defaultInterval: defaultInterval,
	}
}

func (s *Schedule) effective(interval *int) int {
	if interval != nil && *interval >= 1 {
		return *interval
	}
	return s.defaultInterval
}

// Set registers or updates a feed's check interval (nil means default).
func (s *Schedule) Set(feedID int64, interval *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intervals[feedID] = s.effective(interval)
}

func (s *Schedule) Remove(feedID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.intervals, feedID)
}

// Sync reconciles a feed's schedule entry with its current state: inactive
// feeds and feeds nobody subscribes to are unscheduled.
func (s *Schedule) Sync(feedID int64, interval *int, state int, activeSubs int) {
	if state != 1 || activeSubs == 0 {
		s.Remove(feedID)
		return
	}
	s.Set(feedID, interval)
}

// DueTasks advances the tick counter and returns the feeds due this tick.
func (s *Schedule) DueTasks() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tick++
	var due []int64
	for feedID, interval := range s.intervals {
		if s.tick%interval == 0 {
			due = append(due, feedID)
		}
	}
	return due
}

func (s *Schedule) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.intervals)
}
