package monitor

import (
	"context"

	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/rss-monitor/app/database"
	"github.com/lysyi3m/rss-monitor/app/feed"
)

// Fetcher performs a conditional fetch of a feed URL. Fetch failures are
// reported inside the WebFeed, never as a Go error.
type Fetcher interface {
	FeedGet(ctx context.Context, url string, headers map[string]string) *feed.WebFeed
}

// Notifier fans updated entries out to subscribers and handles feed
// deactivation notices.
type Notifier interface {
	NotifyAll(ctx context.Context, f *database.Feed, subs []database.Sub, entry *gofeed.Item) error
	DeactivateFeedAndNotifyAll(ctx context.Context, f *database.Feed, subs []database.Sub, reason string) error
}

// FloodGate reports whether delivery to a user is currently flood-limited.
type FloodGate interface {
	UserLocked(userID int64) bool
}
