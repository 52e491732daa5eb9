package database

// FeedRepository handles persistence of feed records. SaveFeedFields writes
// exactly the named fields, nothing else.
type FeedRepository interface {
	GetFeedByID(id int64) (*Feed, error)
	FilterByIDs(ids []int64) ([]*Feed, error)
	ListActiveFeeds() ([]*Feed, error)
	GetFeedCount() (int, error)

	UpsertFeed(link, title string, interval *int) (*Feed, error)
	SaveFeedFields(feed *Feed, fields ...string) error
	DeactivateFeed(feed *Feed) error

	// MigrateToNewURL points feed at newURL. When another feed already owns
	// newURL, subscriptions move there, the old feed is deactivated and the
	// target feed is returned. Otherwise the link is rewritten in place and
	// nil is returned.
	MigrateToNewURL(feed *Feed, newURL string) (*Feed, error)
}

// SubRepository handles persistence of subscriptions.
type SubRepository interface {
	GetActiveSubs(feedID int64) ([]Sub, error)
	UpsertSub(userID, feedID int64, title string, notify bool) error
	DeactivateUserSubs(userID int64) (int, error)
}

// UserRepository resolves per-user attributes.
type UserRepository interface {
	GetLang(userID int64) (string, error)
	UpsertUser(id int64, lang string) error
}
