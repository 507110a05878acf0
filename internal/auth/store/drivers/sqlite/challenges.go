package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/quollsec/authgate/internal/auth/domain"
	"github.com/quollsec/authgate/internal/auth/store"
)

type challengesRepo struct {
	q querier
}

func (r challengesRepo) CreateLoginChallenge(ctx context.Context, c *domain.LoginChallenge) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO login_challenges
			(id, user_id, token_hash, secret_generation, attempts, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.TokenHash, c.SecretGeneration, c.Attempts, c.ExpiresAt, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create login challenge: %w", mapError(err))
	}
	return nil
}

func (r challengesRepo) GetLoginChallengeByHash(ctx context.Context, tokenHash string, now time.Time) (*domain.LoginChallenge, error) {
	var c domain.LoginChallenge
	err := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, secret_generation, attempts, consumed_at, expires_at, created_at
		FROM login_challenges
		WHERE token_hash = ? AND consumed_at IS NULL AND expires_at > ?`,
		tokenHash, now,
	).Scan(&c.ID, &c.UserID, &c.TokenHash, &c.SecretGeneration, &c.Attempts, &c.ConsumedAt, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

func (r challengesRepo) IncrementLoginChallengeAttempts(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE login_challenges SET attempts = attempts + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment challenge attempts: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r challengesRepo) ConsumeLoginChallenge(ctx context.Context, tokenHash string, now time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE login_challenges
		SET consumed_at = ?
		WHERE token_hash = ? AND consumed_at IS NULL AND expires_at > ?`,
		now, tokenHash, now,
	)
	if err != nil {
		return fmt.Errorf("consume login challenge: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r challengesRepo) DeleteLoginChallenge(ctx context.Context, id string) error {
	if _, err := r.q.ExecContext(ctx,
		`DELETE FROM login_challenges WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete login challenge: %w", err)
	}
	return nil
}

func (r challengesRepo) DeleteExpiredLoginChallenges(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM login_challenges WHERE expires_at <= ? OR consumed_at IS NOT NULL`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired challenges: %w", err)
	}
	return res.RowsAffected()
}
