package seeds

// File represents a complete seeds file
type File struct {
	Feeds []FeedSeed `yaml:"feeds"`
	Subs  []SubSeed  `yaml:"subs"`
}

// FeedSeed describes one feed to register at startup
type FeedSeed struct {
	URL      string `yaml:"url"`
	Title    string `yaml:"title"`
	Interval *int   `yaml:"interval"` // minutes, nil means default
}

// SubSeed subscribes a user to a feed by URL
type SubSeed struct {
	UserID  int64  `yaml:"user_id"`
	FeedURL string `yaml:"feed_url"`
	Lang    string `yaml:"lang"`
	Title   string `yaml:"title"`
	Notify  *bool  `yaml:"notify"`
}
