package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

var _ FeedRepository = (*FeedRepositoryImpl)(nil)

type FeedRepositoryImpl struct {
	db *DB
}

func NewFeedRepository(db *DB) *FeedRepositoryImpl {
	return &FeedRepositoryImpl{db: db}
}

const feedColumns = `id, link, title, etag, last_modified, updated_at, entry_hashes, error_count, next_check_time, interval, state`

func (r *FeedRepositoryImpl) scanFeed(row interface{ Scan(...any) error }) (*Feed, error) {
	var feed Feed
	var lastModified, nextCheckTime sql.NullTime
	var entryHashes sql.NullString
	var interval sql.NullInt64

	err := row.Scan(&feed.ID, &feed.Link, &feed.Title, &feed.ETag, &lastModified,
		&feed.UpdatedAt, &entryHashes, &feed.ErrorCount, &nextCheckTime, &interval, &feed.State)
	if err != nil {
		return nil, err
	}

	if lastModified.Valid {
		t := lastModified.Time
		feed.LastModified = &t
	}
	if nextCheckTime.Valid {
		t := nextCheckTime.Time
		feed.NextCheckTime = &t
	}
	if interval.Valid {
		v := int(interval.Int64)
		feed.Interval = &v
	}
	if entryHashes.Valid && entryHashes.String != "" {
		if err := json.Unmarshal([]byte(entryHashes.String), &feed.EntryHashes); err != nil {
			return nil, fmt.Errorf("failed to decode entry hashes: %w", err)
		}
	}

	return &feed, nil
}

func (r *FeedRepositoryImpl) GetFeedByID(id int64) (*Feed, error) {
	feed, err := r.scanFeed(r.db.QueryRow(`SELECT `+feedColumns+` FROM feeds WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed by ID: %w", err)
	}
	return feed, nil
}

func (r *FeedRepositoryImpl) GetFeedByLink(link string) (*Feed, error) {
	feed, err := r.scanFeed(r.db.QueryRow(`SELECT `+feedColumns+` FROM feeds WHERE link = ?`, link))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed by link: %w", err)
	}
	return feed, nil
}

func (r *FeedRepositoryImpl) FilterByIDs(ids []int64) ([]*Feed, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := r.db.Query(`SELECT `+feedColumns+` FROM feeds WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to filter feeds by IDs: %w", err)
	}
	defer rows.Close()

	var feeds []*Feed
	for rows.Next() {
		feed, err := r.scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

func (r *FeedRepositoryImpl) ListActiveFeeds() ([]*Feed, error) {
	rows, err := r.db.Query(`SELECT ` + feedColumns + ` FROM feeds WHERE state = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active feeds: %w", err)
	}
	defer rows.Close()

	var feeds []*Feed
	for rows.Next() {
		feed, err := r.scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

func (r *FeedRepositoryImpl) GetFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

func (r *FeedRepositoryImpl) UpsertFeed(link, title string, interval *int) (*Feed, error) {
	existing, err := r.GetFeedByLink(link)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing feed: %w", err)
	}

	if existing != nil {
		_, err = r.db.Exec(`UPDATE feeds SET title = ?, interval = ?, state = 1 WHERE id = ?`,
			title, intervalValue(interval), existing.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to update feed: %w", err)
		}
		return r.GetFeedByID(existing.ID)
	}

	res, err := r.db.Exec(`INSERT INTO feeds (link, title, interval, updated_at) VALUES (?, ?, ?, ?)`,
		link, title, intervalValue(interval), time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to insert feed: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get inserted feed ID: %w", err)
	}

	return r.GetFeedByID(id)
}

// SaveFeedFields persists exactly the named fields of feed.
func (r *FeedRepositoryImpl) SaveFeedFields(feed *Feed, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}

	var assignments []string
	var args []any

	for _, field := range fields {
		switch field {
		case "title":
			assignments = append(assignments, "title = ?")
			args = append(args, feed.Title)
		case "etag":
			assignments = append(assignments, "etag = ?")
			args = append(args, feed.ETag)
		case "last_modified":
			assignments = append(assignments, "last_modified = ?")
			args = append(args, timeValue(feed.LastModified))
		case "updated_at":
			assignments = append(assignments, "updated_at = ?")
			args = append(args, feed.UpdatedAt)
		case "entry_hashes":
			encoded, err := encodeEntryHashes(feed.EntryHashes)
			if err != nil {
				return err
			}
			assignments = append(assignments, "entry_hashes = ?")
			args = append(args, encoded)
		case "error_count":
			assignments = append(assignments, "error_count = ?")
			args = append(args, feed.ErrorCount)
		case "next_check_time":
			assignments = append(assignments, "next_check_time = ?")
			args = append(args, timeValue(feed.NextCheckTime))
		case "link":
			assignments = append(assignments, "link = ?")
			args = append(args, feed.Link)
		case "interval":
			assignments = append(assignments, "interval = ?")
			args = append(args, intervalValue(feed.Interval))
		case "state":
			assignments = append(assignments, "state = ?")
			args = append(args, feed.State)
		default:
			return fmt.Errorf("unknown feed field: %s", field)
		}
	}

	args = append(args, feed.ID)
	_, err := r.db.Exec(`UPDATE feeds SET `+strings.Join(assignments, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to save feed fields: %w", err)
	}

	return nil
}

func (r *FeedRepositoryImpl) DeactivateFeed(feed *Feed) error {
	feed.State = 0
	feed.NextCheckTime = nil
	return r.SaveFeedFields(feed, "state", "next_check_time")
}

func (r *FeedRepositoryImpl) MigrateToNewURL(feed *Feed, newURL string) (*Feed, error) {
	target, err := r.GetFeedByLink(newURL)
	if err != nil {
		return nil, fmt.Errorf("failed to look up migration target: %w", err)
	}

	if target == nil || target.ID == feed.ID {
		feed.Link = newURL
		if err := r.SaveFeedFields(feed, "link"); err != nil {
			return nil, err
		}
		return nil, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer tx.Rollback()

	// The unique(user_id, feed_id) constraint drops subs the target already has.
	if _, err := tx.Exec(`UPDATE OR IGNORE subs SET feed_id = ? WHERE feed_id = ?`, target.ID, feed.ID); err != nil {
		return nil, fmt.Errorf("failed to move subscriptions: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM subs WHERE feed_id = ?`, feed.ID); err != nil {
		return nil, fmt.Errorf("failed to drop residual subscriptions: %w", err)
	}
	if _, err := tx.Exec(`UPDATE feeds SET state = 0, next_check_time = NULL WHERE id = ?`, feed.ID); err != nil {
		return nil, fmt.Errorf("failed to deactivate migrated feed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit migration: %w", err)
	}

	return target, nil
}

func encodeEntryHashes(hashes []string) (any, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(hashes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entry hashes: %w", err)
	}
	return string(encoded), nil
}

func timeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func intervalValue(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
