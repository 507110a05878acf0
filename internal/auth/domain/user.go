// Package domain holds the core authentication types shared by the store,
// service and HTTP layers.
package domain

import "time"

// User is a registered account. TOTP fields track the second-factor
// lifecycle:
//
//   - TOTPSecret is the base32 shared secret, present once enrollment has
//     started and possibly retained after disable for audit purposes.
//   - TOTPEnabled is set when enrollment is confirmed and nil otherwise.
//   - TOTPDisabledAt marks a retained-but-disabled secret so it is never
//     mistaken for a pending enrollment.
//   - TOTPGeneration increments every time a new secret is provisioned,
//     detecting confirmations against a stale secret.
//   - TOTPLastCounter is the highest time-step counter ever accepted for
//     this user; codes at or below it are replays.
type User struct {
	ID              string
	Username        string
	PasswordHash    string
	TOTPSecret      *string
	TOTPEnabled     *time.Time
	TOTPDisabledAt  *time.Time
	TOTPGeneration  int64
	TOTPLastCounter *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TOTPActive reports whether the user must present a second factor at login.
func (u *User) TOTPActive() bool {
	return u.TOTPEnabled != nil && u.TOTPSecret != nil
}
