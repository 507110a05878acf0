package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/quollsec/authgate/internal/auth/domain"
	"github.com/quollsec/authgate/internal/auth/store"
)

type usersRepo struct {
	q querier
}

const userColumns = `id, username, password_hash, totp_secret, totp_enabled,
	totp_disabled_at, totp_generation, totp_last_counter, created_at, updated_at`

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.TOTPSecret, &u.TOTPEnabled,
		&u.TOTPDisabledAt, &u.TOTPGeneration, &u.TOTPLastCounter,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (r usersRepo) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", mapError(err))
	}
	return nil
}

func (r usersRepo) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r usersRepo) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

func (r usersRepo) ReplaceTOTPSecret(ctx context.Context, userID, secret string) (int64, error) {
	var generation int64
	err := r.q.QueryRowContext(ctx, `
		UPDATE users
		SET totp_secret = ?,
		    totp_enabled = NULL,
		    totp_disabled_at = NULL,
		    totp_last_counter = NULL,
		    totp_generation = totp_generation + 1,
		    updated_at = ?
		WHERE id = ?
		RETURNING totp_generation`,
		secret, time.Now().UTC(), userID,
	).Scan(&generation)
	if err != nil {
		return 0, fmt.Errorf("replace totp secret: %w", mapError(err))
	}
	return generation, nil
}

func (r usersRepo) EnableTOTP(ctx context.Context, userID string, expectedGeneration int64, now time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users
		SET totp_enabled = ?, totp_disabled_at = NULL, updated_at = ?
		WHERE id = ? AND totp_generation = ? AND totp_secret IS NOT NULL`,
		now, now, userID, expectedGeneration,
	)
	if err != nil {
		return fmt.Errorf("enable totp: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("enable totp: %w", err)
	}
	if affected == 0 {
		// Either the user is gone or the secret was replaced under us.
		if _, err := r.GetUserByID(ctx, userID); err != nil {
			return err
		}
		return store.ErrConflict
	}
	return nil
}

func (r usersRepo) DisableTOTP(ctx context.Context, userID string, retainSecret bool, now time.Time) error {
	var (
		res sql.Result
		err error
	)
	if retainSecret {
		res, err = r.q.ExecContext(ctx, `
			UPDATE users
			SET totp_enabled = NULL, totp_disabled_at = ?, updated_at = ?
			WHERE id = ?`,
			now, now, userID,
		)
	} else {
		res, err = r.q.ExecContext(ctx, `
			UPDATE users
			SET totp_secret = NULL,
			    totp_enabled = NULL,
			    totp_disabled_at = NULL,
			    totp_last_counter = NULL,
			    updated_at = ?
			WHERE id = ?`,
			now, userID,
		)
	}
	if err != nil {
		return fmt.Errorf("disable totp: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("disable totp: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r usersRepo) AdvanceTOTPCounter(ctx context.Context, userID string, counter int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users
		SET totp_last_counter = ?, updated_at = ?
		WHERE id = ?
		  AND (totp_last_counter IS NULL OR totp_last_counter < ?)`,
		counter, time.Now().UTC(), userID, counter,
	)
	if err != nil {
		return false, fmt.Errorf("advance totp counter: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advance totp counter: %w", err)
	}
	if affected == 1 {
		return true, nil
	}

	if _, err := r.GetUserByID(ctx, userID); err != nil {
		return false, err
	}
	return false, nil
}
