package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/rss-monitor/app/database"
	"github.com/lysyi3m/rss-monitor/app/feed"
)

// Detector runs the update-detection algorithm for a single feed: conditional
// fetch, hash-diff of entries, cache-driven next-check scheduling and the
// fan-out of new entries. Exactly one terminal outcome is recorded per check
// unless an error propagates to the worker, which then classifies it.
type Detector struct {
	fetcher  Fetcher
	feedRepo database.FeedRepository
	subRepo  database.SubRepository
	notifier Notifier
	flood    FloodGate
	schedule *Schedule
	stat     *Stats

	defaultInterval int
	clock           func() time.Time
}

func NewDetector(fetcher Fetcher, feedRepo database.FeedRepository, subRepo database.SubRepository,
	notifier Notifier, flood FloodGate, schedule *Schedule, stat *Stats, defaultInterval int) *Detector {
	return &Detector{
		fetcher:         fetcher,
		feedRepo:        feedRepo,
		subRepo:         subRepo,
		notifier:        notifier,
		flood:           flood,
		schedule:        schedule,
		stat:            stat,
		defaultInterval: defaultInterval,
		clock:           time.Now,
	}
}

// checkState carries the mutable bookkeeping of one check across the status
// handling and the unconditional persistence step.
type checkState struct {
	noError        bool
	newNextCheck   *time.Time
	dirty          []string
	updatedEntries []*gofeed.Item
}

func (st *checkState) markDirty(field string) {
	for _, f := range st.dirty {
		if f == field {
			return
		}
	}
	st.dirty = append(st.dirty, field)
}

func (d *Detector) Check(ctx context.Context, f *database.Feed) error {
	now := d.clock().UTC()

	if f.NextCheckTime != nil && now.Before(*f.NextCheckTime) {
		d.stat.Skipped()
		return nil
	}

	subs, err := d.subRepo.GetActiveSubs(f.ID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		slog.Warn("Feed has no active subscribers", "feed", f.ID, "link", f.Link)
		d.schedule.Sync(f.ID, f.Interval, f.State, 0)
		d.stat.Skipped()
		return nil
	}

	allFlooded := true
	for _, sub := range subs {
		if !d.flood.UserLocked(sub.UserID) {
			allFlooded = false
			break
		}
	}
	if allFlooded {
		d.stat.Skipped()
		return nil
	}

	ims := f.UpdatedAt
	if f.LastModified != nil {
		ims = *f.LastModified
	}
	headers := map[string]string{
		"If-Modified-Since": feed.FormatHTTPDate(ims),
	}
	if f.ETag != "" {
		headers["If-None-Match"] = f.ETag
	}

	wf := d.fetcher.FeedGet(ctx, f.Link, headers)
	if err := ctx.Err(); err != nil {
		return err // cooperative cancellation during the fetch
	}

	st := &checkState{noError: true}

	checkErr := d.handleResponse(ctx, wf, f, subs, now, st)

	// Persistence runs regardless of the status handling's outcome.
	f, persistErr := d.persist(f, wf, st)
	if checkErr != nil {
		return checkErr
	}
	if persistErr != nil {
		return persistErr
	}

	if len(st.updatedEntries) == 0 {
		return nil
	}

	// Oldest first.
	for i := len(st.updatedEntries) - 1; i >= 0; i-- {
		if err := d.notifier.NotifyAll(ctx, f, subs, st.updatedEntries[i]); err != nil {
			return err
		}
	}
	d.stat.Updated()
	return nil
}

func (d *Detector) handleResponse(ctx context.Context, wf *feed.WebFeed, f *database.Feed,
	subs []database.Sub, now time.Time, st *checkState) error {
	if wf.Status == 304 {
		slog.Debug("Fetched (not updated, cached)", "feed", f.Link)
		d.stat.Cached()
		return nil
	}

	if wf.Feed == nil { // fetch or parse failed
		st.noError = false
		f.ErrorCount++
		st.markDirty("error_count")

		if f.ErrorCount%20 == 0 {
			slog.Warn("Fetch failed", "retries", f.ErrorCount, "error", wf.Error, "feed", f.Link)
		}
		if f.ErrorCount >= 100 {
			slog.Error("Feed deactivated due to too many errors",
				"errors", f.ErrorCount, "error", wf.Error, "feed", f.Link)
			reason := ""
			if wf.Error != nil {
				reason = wf.Error.Error()
			}
			if err := d.notifier.DeactivateFeedAndNotifyAll(ctx, f, subs, reason); err != nil {
				return err
			}
			d.schedule.Remove(f.ID)
			d.stat.Failed()
			return nil
		}
		if f.ErrorCount >= 10 { // too many errors, back off
			interval := d.defaultInterval
			if f.Interval != nil {
				interval = *f.Interval
			}
			backoff := min(interval, 15) * min(f.ErrorCount/10+1, 5)
			if backoff > interval {
				next := now.Add(time.Duration(backoff) * time.Minute)
				st.newNextCheck = &next
			}
		}
		slog.Debug("Fetched (failed)", "retries", f.ErrorCount, "error", wf.Error, "feed", f.Link)
		d.stat.Failed()
		return nil
	}

	wr := wf.Response
	wr.Now = now

	if etag := wr.ETag; etag != "" && etag != f.ETag {
		f.ETag = etag
		st.markDirty("etag")
	}

	st.newNextCheck = feed.NextCheckFromServerCache(wf)

	if len(wf.Feed.Items) == 0 {
		slog.Debug("Fetched (not updated, empty)", "feed", f.Link)
		d.stat.Empty()
		return nil
	}

	title := feed.StripHTMLSpace(wf.Feed.Title)
	if title != f.Title {
		slog.Debug("Feed title changed", "old", f.Title, "new", title, "feed", f.Link)
		f.Title = title
		st.markDirty("title")
	}

	newHashes, updated := feed.CalculateUpdate(f.EntryHashes, wf.Feed.Items)
	if len(updated) == 0 {
		slog.Debug("Fetched (not updated)", "feed", f.Link)
		d.stat.NotUpdated()
		return nil
	}

	slog.Debug("Updated", "feed", f.Link, "entries", len(updated))
	f.LastModified = wr.LastModified
	f.EntryHashes = feed.RetainHashes(newHashes, len(wf.Feed.Items))
	st.markDirty("last_modified")
	st.markDirty("entry_hashes")
	st.updatedEntries = updated
	return nil
}

// persist is the unconditional epilogue of a check: error-count reset, URL
// migration, next-check update and the write of exactly the dirty fields.
// The returned feed may differ from the input when migration moved the
// subscriptions to an existing feed.
func (d *Detector) persist(f *database.Feed, wf *feed.WebFeed, st *checkState) (*database.Feed, error) {
	if st.noError {
		if f.ErrorCount > 0 {
			f.ErrorCount = 0
			st.markDirty("error_count")
		}
		if wf.URL != "" && wf.URL != f.Link {
			slog.Info("Feed URL migrated", "old", f.Link, "new", wf.URL, "feed", f.ID)
			target, err := d.feedRepo.MigrateToNewURL(f, wf.URL)
			if err != nil {
				return f, err
			}
			if target != nil {
				d.schedule.Remove(f.ID)
				f = target
			}
		}
	}

	if !equalTimePtr(st.newNextCheck, f.NextCheckTime) {
		f.NextCheckTime = st.newNextCheck
		st.markDirty("next_check_time")
	}

	if len(st.dirty) > 0 {
		if err := d.feedRepo.SaveFeedFields(f, st.dirty...); err != nil {
			return f, err
		}
	}

	return f, nil
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
