package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/matheus3301/chatsync/internal/model"
)

// Account is a locally registered credential bound to a profile.
type Account struct {
	UserID       string
	Email        string
	PasswordHash []byte
}

// AuthSession is the persisted signed-in state.
type AuthSession struct {
	UserID     string
	SignedInAt time.Time
	ReauthAt   time.Time
}

// CreateAccount stores a profile and its account in one transaction.
func (db *DB) CreateAccount(ctx context.Context, p *model.Profile, email string, hash []byte) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profiles (user_id, display_name, handle, photo_url, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.UserID, p.DisplayName, p.Handle, p.PhotoURL, now); err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (user_id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		p.UserID, email, hash, now); err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return tx.Commit()
}

// AccountByEmail returns the account registered with email, or nil.
func (db *DB) AccountByEmail(ctx context.Context, email string) (*Account, error) {
	return db.accountWhere(ctx, `a.email = ?`, email)
}

// AccountByHandle returns the account whose profile carries handle, or nil.
func (db *DB) AccountByHandle(ctx context.Context, handle string) (*Account, error) {
	return db.accountWhere(ctx, `p.handle = ?`, handle)
}

// AccountByUserID returns the account of userID, or nil.
func (db *DB) AccountByUserID(ctx context.Context, userID string) (*Account, error) {
	return db.accountWhere(ctx, `a.user_id = ?`, userID)
}

func (db *DB) accountWhere(ctx context.Context, where string, arg any) (*Account, error) {
	var a Account
	err := db.QueryRowContext(ctx, `
		SELECT a.user_id, a.email, a.password_hash
		FROM accounts a JOIN profiles p ON p.user_id = a.user_id
		WHERE `+where, arg).Scan(&a.UserID, &a.Email, &a.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SetPasswordHash replaces the stored hash for userID.
func (db *DB) SetPasswordHash(ctx context.Context, userID string, hash []byte) error {
	res, err := db.ExecContext(ctx, `UPDATE accounts SET password_hash = ? WHERE user_id = ?`, hash, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account %q: %w", userID, ErrNotFound)
	}
	return nil
}

// CreatePasswordReset stores a single-use reset token.
func (db *DB) CreatePasswordReset(ctx context.Context, token, userID string, expiresAt time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, userID, expiresAt.UnixMilli())
	return err
}

// ConsumePasswordReset deletes token and returns its user if it has not expired.
func (db *DB) ConsumePasswordReset(ctx context.Context, token string, now time.Time) (string, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var userID string
	var expiresAt int64
	err = tx.QueryRowContext(ctx, `SELECT user_id, expires_at FROM password_resets WHERE token = ?`, token).
		Scan(&userID, &expiresAt)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("reset token: %w", ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM password_resets WHERE token = ?`, token); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	if now.UnixMilli() > expiresAt {
		return "", fmt.Errorf("reset token expired: %w", ErrNotFound)
	}
	return userID, nil
}

// SaveAuthSession records userID as the signed-in user.
func (db *DB) SaveAuthSession(ctx context.Context, userID string, at time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO auth_session (id, user_id, signed_in_at, reauth_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			signed_in_at = excluded.signed_in_at,
			reauth_at = excluded.reauth_at`,
		userID, at.UnixMilli(), at.UnixMilli())
	return err
}

// TouchReauth records a successful re-authentication.
func (db *DB) TouchReauth(ctx context.Context, at time.Time) error {
	_, err := db.ExecContext(ctx, `UPDATE auth_session SET reauth_at = ? WHERE id = 1`, at.UnixMilli())
	return err
}

// LoadAuthSession returns the persisted session, or nil when signed out.
func (db *DB) LoadAuthSession(ctx context.Context) (*AuthSession, error) {
	var s AuthSession
	var signedIn, reauth int64
	err := db.QueryRowContext(ctx, `SELECT user_id, signed_in_at, reauth_at FROM auth_session WHERE id = 1`).
		Scan(&s.UserID, &signedIn, &reauth)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.SignedInAt = time.UnixMilli(signedIn)
	s.ReauthAt = time.UnixMilli(reauth)
	return &s, nil
}

// ClearAuthSession signs the local user out.
func (db *DB) ClearAuthSession(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `DELETE FROM auth_session WHERE id = 1`)
	return err
}
