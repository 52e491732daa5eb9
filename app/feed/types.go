package feed

import (
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"
)

// WebResponse carries the cache-relevant parts of an HTTP response.
type WebResponse struct {
	ETag         string
	Expires      *time.Time
	Now          time.Time // observation time, set by the caller
	LastModified *time.Time
	MaxAge       *int // seconds, from Cache-Control
}

// WebError describes a failed fetch.
type WebError struct {
	Code int // HTTP status, 0 for transport-level failures
	Msg  string
	Err  error
}

func (e *WebError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (HTTP %d)", e.Msg, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *WebError) Unwrap() error {
	return e.Err
}

// WebFeed is the result of a single conditional fetch. Feed is nil when the
// fetch or parse failed; Error then explains why.
type WebFeed struct {
	URL           string // effective URL after redirects
	Status        int
	Feed          *gofeed.Feed
	TTLMinutes    string // raw RSS <ttl> value, decimal minutes
	Response      *WebResponse
	CFCacheStatus string
	Error         *WebError
}
