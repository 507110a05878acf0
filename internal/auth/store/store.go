// Package store defines the persistence contract for the auth service.
// Drivers live under drivers/ and must satisfy these interfaces.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/quollsec/authgate/internal/auth/domain"
)

var (
	// ErrNotFound is returned when a record does not exist. Callers decide
	// whether that is an error or an expected miss.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned on unique-constraint violations.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrConflict is returned when an optimistic-concurrency check fails,
	// e.g. confirming enrollment against a superseded secret.
	ErrConflict = errors.New("record was modified concurrently")
)

// Users persists user accounts and their TOTP state.
type Users interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)

	// ReplaceTOTPSecret installs a fresh secret, clears the enabled and
	// disabled markers along with the replay counter, and bumps the secret
	// generation. Returns the new generation.
	ReplaceTOTPSecret(ctx context.Context, userID, secret string) (int64, error)

	// EnableTOTP marks the second factor active, but only if the secret
	// generation still matches expectedGeneration; otherwise ErrConflict.
	EnableTOTP(ctx context.Context, userID string, expectedGeneration int64, now time.Time) error

	// DisableTOTP deactivates the second factor. The secret is cleared
	// unless retainSecret is set, in which case the row keeps it alongside
	// a disabled marker.
	DisableTOTP(ctx context.Context, userID string, retainSecret bool, now time.Time) error

	// AdvanceTOTPCounter records counter as the latest accepted time step
	// if and only if it is strictly greater than the stored one. Returns
	// false when the code was a replay.
	AdvanceTOTPCounter(ctx context.Context, userID string, counter int64) (bool, error)
}

// LoginChallenges persists pending second-factor challenges.
type LoginChallenges interface {
	CreateLoginChallenge(ctx context.Context, challenge *domain.LoginChallenge) error

	// GetLoginChallengeByHash fetches a live challenge by token
	// fingerprint. Consumed or expired rows come back as ErrNotFound.
	GetLoginChallengeByHash(ctx context.Context, tokenHash string, now time.Time) (*domain.LoginChallenge, error)

	IncrementLoginChallengeAttempts(ctx context.Context, id string) error

	// ConsumeLoginChallenge marks the challenge used. Exactly one caller
	// can win; the rest get ErrNotFound.
	ConsumeLoginChallenge(ctx context.Context, tokenHash string, now time.Time) error

	DeleteLoginChallenge(ctx context.Context, id string) error
	DeleteExpiredLoginChallenges(ctx context.Context, now time.Time) (int64, error)
}

// Repos bundles the repositories so services depend on one value.
type Repos interface {
	Users() Users
	LoginChallenges() LoginChallenges
}

// Tx is a transaction-scoped view of the repositories.
type Tx interface {
	Repos
	Commit() error
	Rollback() error
}

// Store is the full persistence surface a driver must provide.
type Store interface {
	Repos

	ApplyMigrations() error
	Begin(ctx context.Context) (Tx, error)

	// WithTx runs fn inside a transaction, committing on nil error and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}
