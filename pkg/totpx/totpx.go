// Package totpx wraps time-based one-time password generation and
// verification for the enrollment and step-up flows.
//
// The period and digit count are fixed once on the Engine and flow into both
// the provisioning URI and verification. Keeping them in one place matters:
// if the QR code advertises one period and verification uses another, codes
// silently fail near step boundaries.
package totpx

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const secretBytes = 20 // 160-bit secrets per RFC 4226 recommendation

var ErrEmptySecret = errors.New("totpx: empty secret")

// Config controls the TOTP parameters shared by provisioning and
// verification.
type Config struct {
	Issuer string
	Period uint // seconds per time step (default 30)
	Digits uint // code length (default 6)
	Skew   uint // accepted steps either side of now (default 0)
}

// Engine computes and verifies TOTP codes with a fixed parameter set.
type Engine struct {
	cfg Config
}

// New returns an Engine, filling in defaults for unset config fields.
func New(cfg Config) *Engine {
	if cfg.Period == 0 {
		cfg.Period = 30
	}
	if cfg.Digits == 0 {
		cfg.Digits = 6
	}
	return &Engine{cfg: cfg}
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// GenerateSecret draws 20 bytes from a cryptographically secure source and
// returns them base32 encoded (RFC 4648, uppercase, no padding). The result
// is suitable as an HMAC key and contains only [A-Z2-7].
func (e *Engine) GenerateSecret() (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("totpx: failed to read random source: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw), nil
}

// ProvisioningURI builds the otpauth:// URI an authenticator app consumes.
// Period and digits are included explicitly so the app and this engine agree
// on the time step.
func (e *Engine) ProvisioningURI(secret, account string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", e.cfg.Issuer)
	v.Set("period", strconv.FormatUint(uint64(e.cfg.Period), 10))
	v.Set("digits", strconv.FormatUint(uint64(e.cfg.Digits), 10))

	label := url.PathEscape(e.cfg.Issuer + ":" + account)
	return "otpauth://totp/" + label + "?" + v.Encode()
}

// ComputeCode returns the code for the time step containing t, left-padded
// to the configured digit count.
func (e *Engine) ComputeCode(secret string, t time.Time) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	code, err := totp.GenerateCodeCustom(secret, t, e.validateOpts())
	if err != nil {
		return "", fmt.Errorf("totpx: failed to compute code: %w", err)
	}
	return code, nil
}

// VerifyCode reports whether candidate matches the code for the time step
// containing t (plus the configured skew window).
func (e *Engine) VerifyCode(secret, candidate string, t time.Time) (bool, error) {
	if secret == "" {
		return false, ErrEmptySecret
	}
	ok, err := totp.ValidateCustom(candidate, secret, t, e.validateOpts())
	if err != nil {
		return false, fmt.Errorf("totpx: failed to verify code: %w", err)
	}
	return ok, nil
}

func (e *Engine) validateOpts() totp.ValidateOpts {
	digits := otp.DigitsSix
	if e.cfg.Digits == 8 {
		digits = otp.DigitsEight
	}
	return totp.ValidateOpts{
		Period:    e.cfg.Period,
		Skew:      e.cfg.Skew,
		Digits:    digits,
		Algorithm: otp.AlgorithmSHA1,
	}
}
