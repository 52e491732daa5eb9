package database

import (
	"time"
)

const (
	FeedStateDeactivated = 0
	FeedStateActive      = 1
)

// Feed is a monitored upstream syndication document.
type Feed struct {
	ID            int64
	Link          string // canonical URL used for fetching
	Title         string
	ETag          string
	LastModified  *time.Time
	UpdatedAt     time.Time  // last successful observation
	EntryHashes   []string   // fingerprints of recently seen entries, newest first
	ErrorCount    int        // consecutive fetch failures
	NextCheckTime *time.Time // earliest time the next check may run
	Interval      *int       // minutes between checks, nil means default
	State         int        // 1 active, 0 deactivated
}

// Sub links a feed to a user.
type Sub struct {
	ID     int64
	UserID int64
	FeedID int64
	State  int // 1 active, 0 inactive
	Title  string
	Notify bool
}

type User struct {
	ID    int64
	Lang  string
	State int
}
