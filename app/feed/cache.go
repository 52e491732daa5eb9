package feed

import (
	"strconv"
	"time"
)

// TTLFloor guards against RSSHub's default 5-minute TTL forcing deferrals
// longer than the polling cadence; some legacy versions report it even with
// caching disabled.
const TTLFloor = 300 * time.Second

var cfCacheStatuses = map[string]struct{}{
	"HIT":         {},
	"MISS":        {},
	"EXPIRED":     {},
	"REVALIDATED": {},
}

// NextCheckFromServerCache derives the earliest sensible next check from
// server-side cache hints. Returns nil when no hint applies, which also
// clears any previously scheduled check.
func NextCheckFromServerCache(wf *WebFeed) *time.Time {
	wr := wf.Response
	if wr == nil {
		return nil
	}
	now := wr.Now

	// Cloudflare edge cache: trust Expires only when the response actually
	// went through the cache.
	// https://developers.cloudflare.com/cache/concepts/cache-responses/
	if wr.Expires != nil {
		if _, ok := cfCacheStatuses[wf.CFCacheStatus]; ok && wr.Expires.After(now) {
			return wr.Expires
		}
	}

	// RSSHub TTL (or Cache-Control max-age as fallback).
	if wf.Feed != nil && wf.Feed.Generator == "RSSHub" && wf.Feed.Updated != "" {
		var ttlSeconds int
		if minutes, err := strconv.Atoi(wf.TTLMinutes); err == nil && minutes >= 0 {
			ttlSeconds = minutes * 60
		} else if wr.MaxAge != nil {
			ttlSeconds = *wr.MaxAge
		}
		if float64(ttlSeconds) > TTLFloor.Seconds() {
			if updated := parseRFC2822or8601(wf.Feed.Updated); updated != nil {
				next := updated.Add(time.Duration(ttlSeconds) * time.Second)
				if next.After(now) {
					return &next
				}
			}
		}
	}

	return nil
}

var updatedLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

func parseRFC2822or8601(s string) *time.Time {
	for _, layout := range updatedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
