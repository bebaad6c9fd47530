package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/matheus3301/chatsync/internal/model"
)

// UpsertProfile inserts or updates a user profile. Empty fields do not
// overwrite stored values.
func (db *DB) UpsertProfile(ctx context.Context, p *model.Profile) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, display_name, handle, photo_url, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			display_name = CASE WHEN excluded.display_name != '' THEN excluded.display_name ELSE profiles.display_name END,
			handle = CASE WHEN excluded.handle != '' THEN excluded.handle ELSE profiles.handle END,
			photo_url = CASE WHEN excluded.photo_url != '' THEN excluded.photo_url ELSE profiles.photo_url END,
			updated_at = excluded.updated_at`,
		p.UserID, p.DisplayName, p.Handle, p.PhotoURL, now)
	return err
}

// GetProfile returns a profile by user id, or nil if unknown.
func (db *DB) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	return db.profileWhere(ctx, `user_id = ?`, userID)
}

// ProfileByHandle returns the profile with the given handle, or nil.
func (db *DB) ProfileByHandle(ctx context.Context, handle string) (*model.Profile, error) {
	return db.profileWhere(ctx, `handle = ? AND handle != ''`, handle)
}

func (db *DB) profileWhere(ctx context.Context, where string, arg any) (*model.Profile, error) {
	var p model.Profile
	err := db.QueryRowContext(ctx, `
		SELECT user_id, display_name, handle, photo_url FROM profiles WHERE `+where, arg).
		Scan(&p.UserID, &p.DisplayName, &p.Handle, &p.PhotoURL)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
