package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quollsec/authgate/internal/auth/domain"
	"github.com/quollsec/authgate/internal/auth/store"
	"github.com/quollsec/authgate/pkg/slogx"
	"github.com/quollsec/authgate/pkg/totpx"
)

var (
	// ErrMFAAlreadyEnabled blocks starting a new enrollment while a second
	// factor is active.
	ErrMFAAlreadyEnabled = errors.New("mfa_already_enabled")
	// ErrMFANotEnabled blocks disable when no second factor is active.
	ErrMFANotEnabled = errors.New("mfa_not_enabled")
	// ErrEnrollmentNotPending means confirm was called without a pending
	// enrollment.
	ErrEnrollmentNotPending = errors.New("enrollment_not_pending")
	// ErrEnrollmentConflict means the pending secret changed between
	// provisioning and confirmation, e.g. enrollment was restarted.
	ErrEnrollmentConflict = errors.New("enrollment_conflict")
)

// EnrollmentService drives the TOTP enrollment lifecycle.
type EnrollmentService struct {
	Store  store.Store
	Issuer string

	// RetainSecretOnDisable keeps the secret row on disable instead of
	// clearing it. Off unless an operator explicitly needs the audit
	// trail.
	RetainSecretOnDisable bool
}

func NewEnrollmentService(s store.Store, issuer string, retainSecretOnDisable bool) *EnrollmentService {
	return &EnrollmentService{
		Store:                 s,
		Issuer:                issuer,
		RetainSecretOnDisable: retainSecretOnDisable,
	}
}

// StartEnrollment provisions a fresh secret for the user and returns the
// artifacts to register it with an authenticator app. Restarting a pending
// enrollment replaces the secret and invalidates any earlier provisioning.
func (s *EnrollmentService) StartEnrollment(ctx context.Context, userID string) (*domain.EnrollmentResponse, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user.TOTPActive() {
		return nil, ErrMFAAlreadyEnabled
	}

	secret, err := totpx.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	if _, err := s.Store.Users().ReplaceTOTPSecret(ctx, userID, secret); err != nil {
		return nil, fmt.Errorf("store secret: %w", err)
	}

	artifact, err := totpx.Provision(secret, user.Username, s.Issuer)
	if err != nil && !errors.Is(err, totpx.ErrRenderFailed) {
		return nil, fmt.Errorf("provision secret: %w", err)
	}

	resp := &domain.EnrollmentResponse{
		Secret:  artifact.Secret,
		URI:     artifact.URI,
		QRCode:  artifact.QRCode,
		Issuer:  s.Issuer,
		Account: user.Username,
	}

	slogx.FromContext(ctx).Info("totp enrollment started", "user_id", userID)
	// Propagate a degraded render so the handler can omit the QR code
	// while still returning the secret and URI.
	return resp, err
}

// ConfirmEnrollment activates the pending secret once the user proves they
// hold it by submitting a valid current code.
func (s *EnrollmentService) ConfirmEnrollment(ctx context.Context, userID, code string, now time.Time) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}

	switch domain.EnrollmentStateOf(user) {
	case domain.EnrollmentPending:
	case domain.EnrollmentEnabled:
		return ErrMFAAlreadyEnabled
	default:
		return ErrEnrollmentNotPending
	}

	counter, ok, err := totpx.Verify(*user.TOTPSecret, code, now, totpx.DefaultSkew)
	if err != nil {
		return fmt.Errorf("verify code: %w", err)
	}
	if !ok {
		return ErrInvalidCode
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().EnableTOTP(ctx, userID, user.TOTPGeneration, now); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrEnrollmentConflict
			}
			return err
		}

		// Consume the confirming code so it cannot be replayed at login.
		fresh, err := tx.Users().AdvanceTOTPCounter(ctx, userID, int64(counter))
		if err != nil {
			return err
		}
		if !fresh {
			return ErrInvalidCode
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrEnrollmentConflict) || errors.Is(err, ErrInvalidCode) {
			return err
		}
		return fmt.Errorf("confirm enrollment: %w", err)
	}

	slogx.FromContext(ctx).Info("totp enrollment confirmed", "user_id", userID)
	return nil
}

// Disable deactivates the second factor. The secret is cleared unless the
// service was configured to retain it.
func (s *EnrollmentService) Disable(ctx context.Context, userID string, now time.Time) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if !user.TOTPActive() {
		return ErrMFANotEnabled
	}

	if err := s.Store.Users().DisableTOTP(ctx, userID, s.RetainSecretOnDisable, now); err != nil {
		return fmt.Errorf("disable totp: %w", err)
	}

	slogx.FromContext(ctx).Info("totp disabled",
		"user_id", userID,
		"secret_retained", s.RetainSecretOnDisable,
	)
	return nil
}
