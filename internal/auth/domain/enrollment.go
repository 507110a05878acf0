package domain

// EnrollmentState describes where a user sits in the TOTP lifecycle.
type EnrollmentState string

const (
	// EnrollmentUnprovisioned means no usable secret exists.
	EnrollmentUnprovisioned EnrollmentState = "unprovisioned"
	// EnrollmentPending means a secret was provisioned but not yet
	// confirmed with a valid code.
	EnrollmentPending EnrollmentState = "pending_confirmation"
	// EnrollmentEnabled means the second factor is active.
	EnrollmentEnabled EnrollmentState = "enabled"
)

// EnrollmentStateOf derives the lifecycle state from the user row. A secret
// retained after disable does not count as pending.
func EnrollmentStateOf(u *User) EnrollmentState {
	switch {
	case u.TOTPActive():
		return EnrollmentEnabled
	case u.TOTPSecret != nil && u.TOTPDisabledAt == nil:
		return EnrollmentPending
	default:
		return EnrollmentUnprovisioned
	}
}

// EnrollmentResponse carries everything a client needs to register the
// secret with an authenticator app. QRCode may be nil when rendering failed;
// Secret and URI always allow manual entry.
type EnrollmentResponse struct {
	Secret  string
	URI     string
	QRCode  []byte
	Issuer  string
	Account string
}
