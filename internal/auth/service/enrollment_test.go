package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quollsec/authgate/internal/auth/domain"
	"github.com/quollsec/authgate/internal/auth/service"
	"github.com/quollsec/authgate/pkg/totpx"
)

func TestStartEnrollmentProvisionsSecret(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.Register(ctx, "alice", "correct-horse-battery")
	require.NoError(t, err)

	resp, err := f.enrollment.StartEnrollment(ctx, user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Secret)
	require.Contains(t, resp.URI, "otpauth://totp/")
	require.Contains(t, resp.URI, resp.Secret)
	require.NotEmpty(t, resp.QRCode)
	require.Equal(t, "authgate", resp.Issuer)
	require.Equal(t, "alice", resp.Account)

	got, err := f.users.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, domain.EnrollmentPending, domain.EnrollmentStateOf(got))
}

func TestStartEnrollmentRestartReplacesSecret(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.Register(ctx, "alice", "correct-horse-battery")
	require.NoError(t, err)

	first, err := f.enrollment.StartEnrollment(ctx, user.ID)
	require.NoError(t, err)
	second, err := f.enrollment.StartEnrollment(ctx, user.ID)
	require.NoError(t, err)
	require.NotEqual(t, first.Secret, second.Secret)

	// A code for the superseded secret no longer confirms anything.
	now := time.Now().UTC()
	staleCode, err := totpx.CodeAt(first.Secret, now)
	require.NoError(t, err)
	err = f.enrollment.ConfirmEnrollment(ctx, user.ID, staleCode, now)
	require.ErrorIs(t, err, service.ErrInvalidCode)

	code, err := totpx.CodeAt(second.Secret, now)
	require.NoError(t, err)
	require.NoError(t, f.enrollment.ConfirmEnrollment(ctx, user.ID, code, now))
}

func TestStartEnrollmentRejectsWhenEnabled(t *testing.T) {
	f := newFixture(t)

	userID, _ := enrollUser(t, f, "alice", "correct-horse-battery")

	_, err := f.enrollment.StartEnrollment(context.Background(), userID)
	require.ErrorIs(t, err, service.ErrMFAAlreadyEnabled)
}

func TestConfirmEnrollmentWithoutPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.Register(ctx, "alice", "correct-horse-battery")
	require.NoError(t, err)

	err = f.enrollment.ConfirmEnrollment(ctx, user.ID, "123456", time.Now().UTC())
	require.ErrorIs(t, err, service.ErrEnrollmentNotPending)
}

func TestConfirmEnrollmentWrongCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.Register(ctx, "alice", "correct-horse-battery")
	require.NoError(t, err)

	_, err = f.enrollment.StartEnrollment(ctx, user.ID)
	require.NoError(t, err)

	err = f.enrollment.ConfirmEnrollment(ctx, user.ID, "000000", time.Now().UTC())
	require.ErrorIs(t, err, service.ErrInvalidCode)

	// Still pending, not enabled.
	got, err := f.users.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, domain.EnrollmentPending, domain.EnrollmentStateOf(got))
}

func TestConfirmEnrollmentAcceptsSkewedCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.Register(ctx, "alice", "correct-horse-battery")
	require.NoError(t, err)

	resp, err := f.enrollment.StartEnrollment(ctx, user.ID)
	require.NoError(t, err)

	// A code from the previous time step is inside the accepted window.
	now := time.Now().UTC()
	code, err := totpx.CodeAt(resp.Secret, now.Add(-totpx.Period*time.Second))
	require.NoError(t, err)
	require.NoError(t, f.enrollment.ConfirmEnrollment(ctx, user.ID, code, now))
}

func TestConfirmEnrollmentRejectsOutsideWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.Register(ctx, "alice", "correct-horse-battery")
	require.NoError(t, err)

	resp, err := f.enrollment.StartEnrollment(ctx, user.ID)
	require.NoError(t, err)

	now := time.Now().UTC()
	code, err := totpx.CodeAt(resp.Secret, now.Add(-2*totpx.Period*time.Second))
	require.NoError(t, err)
	err = f.enrollment.ConfirmEnrollment(ctx, user.ID, code, now)
	require.ErrorIs(t, err, service.ErrInvalidCode)
}

func TestDisableClearsSecretByDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID, _ := enrollUser(t, f, "alice", "correct-horse-battery")

	require.NoError(t, f.enrollment.Disable(ctx, userID, time.Now().UTC()))

	got, err := f.users.GetUserByID(ctx, userID)
	require.NoError(t, err)
	require.Nil(t, got.TOTPSecret)
	require.False(t, got.TOTPActive())

	// Login is back to single factor.
	res, err := f.login.SubmitPassword(ctx, "alice", "correct-horse-battery")
	require.NoError(t, err)
	require.False(t, res.SecondFactorRequired)
	require.NotEmpty(t, res.SessionToken)
}

func TestDisableRetainsSecretWhenConfigured(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID, secret := enrollUser(t, f, "alice", "correct-horse-battery")

	f.enrollment.RetainSecretOnDisable = true
	require.NoError(t, f.enrollment.Disable(ctx, userID, time.Now().UTC()))

	got, err := f.users.GetUserByID(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, got.TOTPSecret)
	require.Equal(t, secret, *got.TOTPSecret)
	require.False(t, got.TOTPActive())
	require.Equal(t, domain.EnrollmentUnprovisioned, domain.EnrollmentStateOf(got))
}

func TestDisableWithoutActiveFactor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.Register(ctx, "alice", "correct-horse-battery")
	require.NoError(t, err)

	err = f.enrollment.Disable(ctx, user.ID, time.Now().UTC())
	require.ErrorIs(t, err, service.ErrMFANotEnabled)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Register(ctx, "al", "correct-horse-battery")
	require.ErrorIs(t, err, service.ErrInvalidUsername)

	_, err = f.users.Register(ctx, "alice!", "correct-horse-battery")
	require.ErrorIs(t, err, service.ErrInvalidUsername)

	_, err = f.users.Register(ctx, "alice", "short")
	require.ErrorIs(t, err, service.ErrWeakPassword)

	_, err = f.users.Register(ctx, "alice", "correct-horse-battery")
	require.NoError(t, err)

	_, err = f.users.Register(ctx, "alice", "another-password-1")
	require.ErrorIs(t, err, service.ErrUsernameTaken)
}
