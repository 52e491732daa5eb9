package database

import (
	"database/sql"
	"fmt"
)

var _ SubRepository = (*SubRepositoryImpl)(nil)
var _ UserRepository = (*UserRepositoryImpl)(nil)

type SubRepositoryImpl struct {
	db *DB
}

func NewSubRepository(db *DB) *SubRepositoryImpl {
	return &SubRepositoryImpl{db: db}
}

func (r *SubRepositoryImpl) GetActiveSubs(feedID int64) ([]Sub, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, feed_id, state, title, notify
		FROM subs
		WHERE feed_id = ? AND state = 1
		ORDER BY id
	`, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active subs: %w", err)
	}
	defer rows.Close()

	var subs []Sub
	for rows.Next() {
		var sub Sub
		var notify int
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.FeedID, &sub.State, &sub.Title, &notify); err != nil {
			return nil, fmt.Errorf("failed to scan sub row: %w", err)
		}
		sub.Notify = notify != 0
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sub rows: %w", err)
	}

	return subs, nil
}

func (r *SubRepositoryImpl) UpsertSub(userID, feedID int64, title string, notify bool) error {
	notifyVal := 0
	if notify {
		notifyVal = 1
	}

	_, err := r.db.Exec(`
		INSERT INTO subs (user_id, feed_id, title, notify, state)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(user_id, feed_id) DO UPDATE SET title = excluded.title, notify = excluded.notify, state = 1
	`, userID, feedID, title, notifyVal)
	if err != nil {
		return fmt.Errorf("failed to upsert sub: %w", err)
	}

	return nil
}

func (r *SubRepositoryImpl) DeactivateUserSubs(userID int64) (int, error) {
	res, err := r.db.Exec(`UPDATE subs SET state = 0 WHERE user_id = ? AND state = 1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate user subs: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deactivated subs: %w", err)
	}

	return int(affected), nil
}

type UserRepositoryImpl struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepositoryImpl {
	return &UserRepositoryImpl{db: db}
}

func (r *UserRepositoryImpl) GetLang(userID int64) (string, error) {
	var lang string
	err := r.db.QueryRow(`SELECT lang FROM users WHERE id = ?`, userID).Scan(&lang)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get user language: %w", err)
	}
	return lang, nil
}

func (r *UserRepositoryImpl) UpsertUser(id int64, lang string) error {
	_, err := r.db.Exec(`
		INSERT INTO users (id, lang) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET lang = excluded.lang
	`, id, lang)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}
