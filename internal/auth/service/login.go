// Package service implements the authentication flows on top of the store.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quollsec/authgate/internal/auth/domain"
	"github.com/quollsec/authgate/internal/auth/store"
	"github.com/quollsec/authgate/pkg/cryptox"
	"github.com/quollsec/authgate/pkg/idx"
	"github.com/quollsec/authgate/pkg/jwtx"
	"github.com/quollsec/authgate/pkg/slogx"
	"github.com/quollsec/authgate/pkg/totpx"
)

// MaxChallengeAttempts caps wrong-code submissions against one challenge
// before it is burned.
const MaxChallengeAttempts = 5

// DefaultChallengeTTL bounds how long a pending second-factor step stays
// valid.
const DefaultChallengeTTL = 5 * time.Minute

var (
	// ErrInvalidCredentials covers unknown usernames and wrong passwords
	// alike, so responses never reveal which one it was.
	ErrInvalidCredentials = errors.New("invalid_credentials")
	// ErrInvalidCode is a wrong, malformed or replayed one-time code.
	ErrInvalidCode = errors.New("invalid_code")
	// ErrChallengeExpired covers unknown, expired and already-consumed
	// challenge tokens alike.
	ErrChallengeExpired = errors.New("challenge_expired_or_unknown")
	// ErrTooManyAttempts means the challenge was burned by repeated
	// failures and the client must log in again.
	ErrTooManyAttempts = errors.New("too_many_attempts")
)

// LoginService drives the password and second-factor login flow.
type LoginService struct {
	Store        store.Store
	Signer       *jwtx.Signer
	Issuer       string
	SessionTTL   time.Duration
	ChallengeTTL time.Duration
}

// NewLoginService wires a login service with default TTLs where zero values
// were given.
func NewLoginService(s store.Store, signer *jwtx.Signer, issuer string, sessionTTL, challengeTTL time.Duration) *LoginService {
	if sessionTTL <= 0 {
		sessionTTL = jwtx.DefaultSessionTTL
	}
	if challengeTTL <= 0 {
		challengeTTL = DefaultChallengeTTL
	}
	return &LoginService{
		Store:        s,
		Signer:       signer,
		Issuer:       issuer,
		SessionTTL:   sessionTTL,
		ChallengeTTL: challengeTTL,
	}
}

// SubmitPassword runs the first factor. Accounts without an active second
// factor get a session immediately; the rest get a single-use challenge
// token for the OTP step.
func (s *LoginService) SubmitPassword(ctx context.Context, username, password string) (*domain.LoginResult, error) {
	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn comparable time so unknown usernames are not
			// distinguishable by latency.
			_ = cryptox.VerifyPassword(password, decoyHash())
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !user.TOTPActive() {
		token, err := s.issueSession(user, jwtx.AMRPassword)
		if err != nil {
			return nil, err
		}
		return &domain.LoginResult{
			SessionToken: token,
			User:         domain.IdentityOf(user),
		}, nil
	}

	challenge, err := s.issueChallenge(ctx, user)
	if err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("second factor required", "user_id", user.ID)
	return &domain.LoginResult{
		SecondFactorRequired: true,
		ChallengeToken:       challenge,
		User:                 domain.IdentityOf(user),
	}, nil
}

// SubmitSecondFactor finishes a two-factor login: it resolves the challenge
// token, verifies the code against the current secret, consumes the
// challenge and advances the replay counter in one transaction.
func (s *LoginService) SubmitSecondFactor(ctx context.Context, challengeToken, code string, now time.Time) (*domain.LoginResult, error) {
	hash := cryptox.FingerprintToken(challengeToken)

	challenge, err := s.Store.LoginChallenges().GetLoginChallengeByHash(ctx, hash, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChallengeExpired
		}
		return nil, fmt.Errorf("lookup challenge: %w", err)
	}

	if challenge.Attempts >= MaxChallengeAttempts {
		_ = s.Store.LoginChallenges().DeleteLoginChallenge(ctx, challenge.ID)
		return nil, ErrTooManyAttempts
	}

	user, err := s.Store.Users().GetUserByID(ctx, challenge.UserID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	// A secret replaced after the challenge was issued invalidates it.
	if !user.TOTPActive() || user.TOTPGeneration != challenge.SecretGeneration {
		_ = s.Store.LoginChallenges().DeleteLoginChallenge(ctx, challenge.ID)
		return nil, ErrChallengeExpired
	}

	counter, ok, err := totpx.Verify(*user.TOTPSecret, code, now, totpx.DefaultSkew)
	if err != nil {
		return nil, fmt.Errorf("verify code: %w", err)
	}
	if !ok {
		if err := s.Store.LoginChallenges().IncrementLoginChallengeAttempts(ctx, challenge.ID); err != nil {
			slogx.FromContext(ctx).Warn("failed to record challenge attempt", "error", err)
		}
		return nil, ErrInvalidCode
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.LoginChallenges().ConsumeLoginChallenge(ctx, hash, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrChallengeExpired
			}
			return err
		}

		fresh, err := tx.Users().AdvanceTOTPCounter(ctx, user.ID, int64(counter))
		if err != nil {
			return err
		}
		if !fresh {
			// Same code was already accepted once.
			return ErrInvalidCode
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrChallengeExpired) || errors.Is(err, ErrInvalidCode) {
			return nil, err
		}
		return nil, fmt.Errorf("finalise login: %w", err)
	}

	token, err := s.issueSession(user, jwtx.AMRPassword, jwtx.AMROTP)
	if err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("two-factor login completed", "user_id", user.ID)
	return &domain.LoginResult{
		SessionToken: token,
		User:         domain.IdentityOf(user),
	}, nil
}

func (s *LoginService) issueSession(user *domain.User, amr ...string) (string, error) {
	claims := jwtx.NewSessionClaims(user.ID, user.Username, s.Issuer, amr, s.SessionTTL, time.Now().UTC())
	token, err := s.Signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

func (s *LoginService) issueChallenge(ctx context.Context, user *domain.User) (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", fmt.Errorf("generate challenge token: %w", err)
	}

	now := time.Now().UTC()
	challenge := &domain.LoginChallenge{
		ID:               idx.New().String(),
		UserID:           user.ID,
		TokenHash:        cryptox.FingerprintToken(token),
		SecretGeneration: user.TOTPGeneration,
		ExpiresAt:        now.Add(s.ChallengeTTL),
		CreatedAt:        now,
	}
	if err := s.Store.LoginChallenges().CreateLoginChallenge(ctx, challenge); err != nil {
		return "", fmt.Errorf("create challenge: %w", err)
	}
	return token, nil
}

var (
	decoyOnce sync.Once
	decoy     string
)

// decoyHash is a throwaway argon2id hash used to equalise timing for unknown
// usernames. Built lazily so the pepper is configured before first use; never
// matches any real password.
func decoyHash() string {
	decoyOnce.Do(func() {
		h, err := cryptox.HashPassword(idx.New().String())
		if err != nil {
			panic(err)
		}
		decoy = h
	})
	return decoy
}
