package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quollsec/authgate/internal/auth/service"
	"github.com/quollsec/authgate/internal/auth/store/drivers/sqlite"
	"github.com/quollsec/authgate/pkg/cryptox"
	"github.com/quollsec/authgate/pkg/jwtx"
	"github.com/quollsec/authgate/pkg/totpx"
)

type fixture struct {
	store      *sqlite.Store
	users      *service.UserService
	login      *service.LoginService
	enrollment *service.EnrollmentService
	signer     *jwtx.Signer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.ApplyMigrations())

	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSigner(pemKey)
	require.NoError(t, err)

	return &fixture{
		store:      s,
		users:      service.NewUserService(s),
		login:      service.NewLoginService(s, signer, "authgate", 0, 0),
		enrollment: service.NewEnrollmentService(s, "authgate", false),
		signer:     signer,
	}
}

// enrollUser registers an account and walks it through TOTP enrollment,
// returning the user ID and the shared secret.
func enrollUser(t *testing.T, f *fixture, username, password string) (string, string) {
	t.Helper()
	ctx := context.Background()

	user, err := f.users.Register(ctx, username, password)
	require.NoError(t, err)

	resp, err := f.enrollment.StartEnrollment(ctx, user.ID)
	require.NoError(t, err)

	now := time.Now().UTC()
	code, err := totpx.CodeAt(resp.Secret, now)
	require.NoError(t, err)
	require.NoError(t, f.enrollment.ConfirmEnrollment(ctx, user.ID, code, now))

	return user.ID, resp.Secret
}

func TestSubmitPasswordSingleFactor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Register(ctx, "alice", "correct-horse-battery")
	require.NoError(t, err)

	res, err := f.login.SubmitPassword(ctx, "alice", "correct-horse-battery")
	require.NoError(t, err)
	require.False(t, res.SecondFactorRequired)
	require.Empty(t, res.ChallengeToken)
	require.NotEmpty(t, res.SessionToken)
	require.False(t, res.User.TOTPEnabled)

	claims, err := f.signer.Verifier("authgate", time.Minute).Verify(res.SessionToken)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, []string{jwtx.AMRPassword}, claims.AMR)
}

func TestSubmitPasswordRejectsBadCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Register(ctx, "alice", "correct-horse-battery")
	require.NoError(t, err)

	_, err = f.login.SubmitPassword(ctx, "alice", "wrong-password!")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	// Unknown usernames yield the exact same error.
	_, err = f.login.SubmitPassword(ctx, "mallory", "wrong-password!")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestTwoFactorLoginFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, secret := enrollUser(t, f, "alice", "correct-horse-battery")

	res, err := f.login.SubmitPassword(ctx, "alice", "correct-horse-battery")
	require.NoError(t, err)
	require.True(t, res.SecondFactorRequired)
	require.NotEmpty(t, res.ChallengeToken)
	require.Empty(t, res.SessionToken, "no session until the second factor clears")

	// The confirming code consumed the current time step, so present the
	// next one. It is still within the accepted skew window.
	now := time.Now().UTC()
	code, err := totpx.CodeAt(secret, now.Add(totpx.Period*time.Second))
	require.NoError(t, err)

	final, err := f.login.SubmitSecondFactor(ctx, res.ChallengeToken, code, now)
	require.NoError(t, err)
	require.NotEmpty(t, final.SessionToken)

	claims, err := f.signer.Verifier("authgate", time.Minute).Verify(final.SessionToken)
	require.NoError(t, err)
	require.Equal(t, []string{jwtx.AMRPassword, jwtx.AMROTP}, claims.AMR)
}

func TestSecondFactorRejectsWrongCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	enrollUser(t, f, "alice", "correct-horse-battery")

	res, err := f.login.SubmitPassword(ctx, "alice", "correct-horse-battery")
	require.NoError(t, err)

	now := time.Now().UTC()
	_, err = f.login.SubmitSecondFactor(ctx, res.ChallengeToken, "000000", now)
	require.ErrorIs(t, err, service.ErrInvalidCode)

	// Malformed codes get the same rejection, not a different error.
	_, err = f.login.SubmitSecondFactor(ctx, res.ChallengeToken, "12345", now)
	require.ErrorIs(t, err, service.ErrInvalidCode)
	_, err = f.login.SubmitSecondFactor(ctx, res.ChallengeToken, "12345a", now)
	require.ErrorIs(t, err, service.ErrInvalidCode)
}

func TestChallengeTokenSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, secret := enrollUser(t, f, "alice", "correct-horse-battery")

	res, err := f.login.SubmitPassword(ctx, "alice", "correct-horse-battery")
	require.NoError(t, err)

	now := time.Now().UTC()
	code, err := totpx.CodeAt(secret, now.Add(totpx.Period*time.Second))
	require.NoError(t, err)

	_, err = f.login.SubmitSecondFactor(ctx, res.ChallengeToken, code, now)
	require.NoError(t, err)

	// Replaying the consumed challenge fails regardless of the code.
	_, err = f.login.SubmitSecondFactor(ctx, res.ChallengeToken, code, now)
	require.ErrorIs(t, err, service.ErrChallengeExpired)
}

func TestSecondFactorRejectsReplayedCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, secret := enrollUser(t, f, "alice", "correct-horse-battery")

	now := time.Now().UTC()
	code, err := totpx.CodeAt(secret, now.Add(totpx.Period*time.Second))
	require.NoError(t, err)

	res, err := f.login.SubmitPassword(ctx, "alice", "correct-horse-battery")
	require.NoError(t, err)
	_, err = f.login.SubmitSecondFactor(ctx, res.ChallengeToken, code, now)
	require.NoError(t, err)

	// A second login presenting the very same code must fail even though
	// the code is still inside the validity window.
	res, err = f.login.SubmitPassword(ctx, "alice", "correct-horse-battery")
	require.NoError(t, err)
	_, err = f.login.SubmitSecondFactor(ctx, res.ChallengeToken, code, now)
	require.ErrorIs(t, err, service.ErrInvalidCode)
}

func TestSecondFactorAttemptCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, secret := enrollUser(t, f, "alice", "correct-horse-battery")

	res, err := f.login.SubmitPassword(ctx, "alice", "correct-horse-battery")
	require.NoError(t, err)

	now := time.Now().UTC()
	for i := 0; i < service.MaxChallengeAttempts; i++ {
		_, err = f.login.SubmitSecondFactor(ctx, res.ChallengeToken, "000000", now)
		require.ErrorIs(t, err, service.ErrInvalidCode)
	}

	// The challenge is burned; even the right code no longer helps.
	code, err := totpx.CodeAt(secret, now.Add(totpx.Period*time.Second))
	require.NoError(t, err)
	_, err = f.login.SubmitSecondFactor(ctx, res.ChallengeToken, code, now)
	require.ErrorIs(t, err, service.ErrTooManyAttempts)

	// And the burned challenge is gone entirely.
	_, err = f.login.SubmitSecondFactor(ctx, res.ChallengeToken, code, now)
	require.ErrorIs(t, err, service.ErrChallengeExpired)
}

func TestSecondFactorRejectsExpiredChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, secret := enrollUser(t, f, "alice", "correct-horse-battery")

	res, err := f.login.SubmitPassword(ctx, "alice", "correct-horse-battery")
	require.NoError(t, err)

	// Evaluate the challenge well past its lifetime.
	future := time.Now().UTC().Add(f.login.ChallengeTTL + time.Minute)
	code, err := totpx.CodeAt(secret, future)
	require.NoError(t, err)

	_, err = f.login.SubmitSecondFactor(ctx, res.ChallengeToken, code, future)
	require.ErrorIs(t, err, service.ErrChallengeExpired)
}

func TestSecondFactorRejectsGarbageToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.login.SubmitSecondFactor(context.Background(), "not-a-real-token", "123456", time.Now().UTC())
	require.ErrorIs(t, err, service.ErrChallengeExpired)
}

func TestChallengeInvalidatedByEnrollmentRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	userID, _ := enrollUser(t, f, "alice", "correct-horse-battery")

	res, err := f.login.SubmitPassword(ctx, "alice", "correct-horse-battery")
	require.NoError(t, err)

	// Disabling and re-provisioning bumps the secret generation, which
	// must kill the outstanding challenge.
	now := time.Now().UTC()
	require.NoError(t, f.enrollment.Disable(ctx, userID, now))
	resp, err := f.enrollment.StartEnrollment(ctx, userID)
	require.NoError(t, err)
	code, err := totpx.CodeAt(resp.Secret, now)
	require.NoError(t, err)
	require.NoError(t, f.enrollment.ConfirmEnrollment(ctx, userID, code, now))

	next, err := totpx.CodeAt(resp.Secret, now.Add(totpx.Period*time.Second))
	require.NoError(t, err)
	_, err = f.login.SubmitSecondFactor(ctx, res.ChallengeToken, next, now)
	require.ErrorIs(t, err, service.ErrChallengeExpired)
}
