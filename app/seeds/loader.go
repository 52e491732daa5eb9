package seeds

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/rss-monitor/app/database"
)

// Loader reads a YAML seeds file and registers its feeds and subscriptions
// through the repositories. Seeding is idempotent: every record is upserted.
type Loader struct {
	path string
}

// NewLoader creates a new seeds loader
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads and validates the seeds file. A missing file is not an error;
// it returns an empty seed set.
func (l *Loader) Load() (*File, error) {
	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		return &File{}, nil
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seeds file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seeds YAML: %w", err)
	}

	if err := l.validate(&f); err != nil {
		return nil, fmt.Errorf("invalid seeds file %s: %w", l.path, err)
	}

	return &f, nil
}

// validate checks the seed records for obvious mistakes
func (l *Loader) validate(f *File) error {
	urls := make(map[string]bool, len(f.Feeds))
	for i, fs := range f.Feeds {
		if fs.URL == "" {
			return fmt.Errorf("feed at index %d: url is required", i)
		}
		if urls[fs.URL] {
			return fmt.Errorf("feed at index %d: duplicate url %s", i, fs.URL)
		}
		urls[fs.URL] = true
		if fs.Interval != nil && *fs.Interval < 1 {
			return fmt.Errorf("feed at index %d: interval must be positive", i)
		}
	}

	for i, ss := range f.Subs {
		if ss.UserID == 0 {
			return fmt.Errorf("sub at index %d: user_id is required", i)
		}
		if !urls[ss.FeedURL] {
			return fmt.Errorf("sub at index %d: unknown feed_url %s", i, ss.FeedURL)
		}
	}

	return nil
}

// Apply upserts all seeded feeds, users and subscriptions
func (l *Loader) Apply(feedRepo database.FeedRepository, subRepo database.SubRepository,
	userRepo database.UserRepository) error {
	f, err := l.Load()
	if err != nil {
		return err
	}
	if len(f.Feeds) == 0 {
		return nil
	}

	feedIDs := make(map[string]int64, len(f.Feeds))
	for _, fs := range f.Feeds {
		feed, err := feedRepo.UpsertFeed(fs.URL, fs.Title, fs.Interval)
		if err != nil {
			return fmt.Errorf("failed to seed feed %s: %w", fs.URL, err)
		}
		feedIDs[fs.URL] = feed.ID
	}

	for _, ss := range f.Subs {
		if err := userRepo.UpsertUser(ss.UserID, ss.Lang); err != nil {
			return fmt.Errorf("failed to seed user %d: %w", ss.UserID, err)
		}
		notify := true
		if ss.Notify != nil {
			notify = *ss.Notify
		}
		if err := subRepo.UpsertSub(ss.UserID, feedIDs[ss.FeedURL], ss.Title, notify); err != nil {
			return fmt.Errorf("failed to seed sub for user %d: %w", ss.UserID, err)
		}
	}

	slog.Info("Seeds applied", "feeds", len(f.Feeds), "subs", len(f.Subs))
	return nil
}
