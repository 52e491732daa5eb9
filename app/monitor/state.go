package monitor

import "strings"

// TaskState is a bitset describing the scheduling state of one feed.
// DEFERRED is only ever set alongside LOCKED or IN_PROGRESS; an empty state
// means the feed has no monitor activity and its entry may be dropped.
type TaskState uint8

const (
	stateEmpty      TaskState = 0
	stateLocked     TaskState = 1 << 0
	stateInProgress TaskState = 1 << 1
	stateDeferred   TaskState = 1 << 2
)

func (s TaskState) String() string {
	if s == stateEmpty {
		return "EMPTY"
	}
	var parts []string
	if s&stateLocked != 0 {
		parts = append(parts, "LOCKED")
	}
	if s&stateInProgress != 0 {
		parts = append(parts, "IN_PROGRESS")
	}
	if s&stateDeferred != 0 {
		parts = append(parts, "DEFERRED")
	}
	return strings.Join(parts, "|")
}
