package totpx

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"

	qrcode "github.com/skip2/go-qrcode"
)

// QRSize is the pixel width and height of rendered provisioning QR codes.
const QRSize = 256

// ErrRenderFailed reports a QR rendering failure. The returned Artifact still
// carries the secret and URI, so manual entry keeps working.
var ErrRenderFailed = errors.New("totpx: rendering provisioning QR code failed")

var secretAlphabet = regexp.MustCompile(`^[A-Z2-7]+$`)

// Artifact is the ephemeral output of provisioning a secret. It must not be
// persisted beyond the stored secret itself.
type Artifact struct {
	Secret string // base32, no padding
	URI    string // otpauth:// key URI
	QRCode []byte // PNG image; nil when rendering failed
}

// Provision builds the otpauth key URI for secret and renders it as a
// scannable QR code. Nothing is written anywhere; storing the secret is the
// caller's job.
func Provision(secret, account, issuer string) (Artifact, error) {
	if !secretAlphabet.MatchString(secret) {
		return Artifact{}, ErrBadSecret
	}
	if account == "" || issuer == "" {
		return Artifact{}, errors.New("totpx: account and issuer are required")
	}

	// Query parameter order is fixed; some authenticator apps are picky
	// about it, so the URI is assembled by hand instead of via url.Values.
	uri := fmt.Sprintf(
		"otpauth://totp/%s:%s?secret=%s&issuer=%s&algorithm=SHA1&digits=%d&period=%d",
		url.PathEscape(issuer),
		url.PathEscape(account),
		secret,
		url.QueryEscape(issuer),
		Digits,
		Period,
	)

	art := Artifact{Secret: secret, URI: uri}

	png, err := qrcode.Encode(uri, qrcode.Medium, QRSize)
	if err != nil {
		return art, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	art.QRCode = png
	return art, nil
}
