// Package totpx implements time-based one-time password generation and
// verification (RFC 4226 / RFC 6238) for the second authentication factor.
package totpx

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

const (
	// SecretBytes is the raw entropy of a generated secret (160 bits, the
	// RFC 4226 minimum).
	SecretBytes = 20

	// Digits in every generated code.
	Digits = 6

	// Period is the length of one time step in seconds.
	Period = 30

	// DefaultSkew is the number of adjacent time steps accepted on either
	// side of the current one, tolerating ±30s of clock drift.
	DefaultSkew = 1

	// MaxSkew caps the verification window. A wider window makes codes
	// easier to brute force, so Verify clamps anything above this.
	MaxSkew = 2
)

// ErrBadSecret reports a secret that cannot be decoded as base32. It is
// distinct from a code mismatch so callers can tell a corrupt stored secret
// apart from a wrong code.
var ErrBadSecret = errors.New("totpx: secret is not valid base32")

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateSecret returns a fresh random shared secret encoded as unpadded
// base32, suitable for provisioning URIs and manual transcription.
func GenerateSecret() (string, error) {
	buf := make([]byte, SecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("totpx: generate secret: %w", err)
	}
	return b32.EncodeToString(buf), nil
}

// Counter maps a wall-clock time to its time-step counter.
func Counter(t time.Time) uint64 {
	return uint64(t.Unix() / Period)
}

// Code computes the zero-padded 6-digit code for the given counter using
// HMAC-SHA1 and the standard dynamic truncation rule.
func Code(secret string, counter uint64) (string, error) {
	code, err := hotp.GenerateCodeCustom(secret, counter, hotp.ValidateOpts{
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		if errors.Is(err, otp.ErrValidateSecretInvalidBase32) {
			return "", ErrBadSecret
		}
		return "", err
	}
	return code, nil
}

// CodeAt computes the code for the time step containing t.
func CodeAt(secret string, t time.Time) (string, error) {
	return Code(secret, Counter(t))
}

// Verify checks code against secret for the time step containing at, plus up
// to skew adjacent steps on either side. It returns the counter that matched
// so callers can reject replays of an already-spent code.
//
// Codes that are not exactly six ASCII digits are rejected before any keyed
// hashing happens. Candidate comparison is constant time.
func Verify(secret, code string, at time.Time, skew uint) (counter uint64, ok bool, err error) {
	if !validCode(code) {
		return 0, false, nil
	}
	if skew > MaxSkew {
		skew = MaxSkew
	}

	base := int64(Counter(at))
	for k := -int64(skew); k <= int64(skew); k++ {
		c := base + k
		if c < 0 {
			continue
		}
		want, err := Code(secret, uint64(c))
		if err != nil {
			return 0, false, err
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return uint64(c), true, nil
		}
	}
	return 0, false, nil
}

func validCode(code string) bool {
	if len(code) != Digits {
		return false
	}
	for i := range len(code) {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
