package domain

import "time"

// LoginChallenge is the server-side record backing a pending second-factor
// step. The client only ever sees the opaque token; the row stores its
// fingerprint.
type LoginChallenge struct {
	ID               string
	UserID           string
	TokenHash        string
	SecretGeneration int64
	Attempts         int
	ConsumedAt       *time.Time
	ExpiresAt        time.Time
	CreatedAt        time.Time
}

// Identity is the public shape of a user returned by the API.
type Identity struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	TOTPEnabled bool   `json:"totp_enabled"`
}

// IdentityOf projects a user into its API shape.
func IdentityOf(u *User) Identity {
	return Identity{
		ID:          u.ID,
		Username:    u.Username,
		TOTPEnabled: u.TOTPActive(),
	}
}

// LoginResult is the outcome of a successful password check. Either the
// session token is present (single-factor account) or a challenge token is
// issued and the second factor is still outstanding.
type LoginResult struct {
	SecondFactorRequired bool
	ChallengeToken       string
	SessionToken         string
	User                 Identity
}
