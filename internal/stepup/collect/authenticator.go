package collect

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/stepup/internal/stepup/domain"
)

const authenticatorCodeDigits = 6

// AuthenticatorCodeCollector accepts a 6-digit authenticator entry. There is
// deliberately no local TOTP check: verification happens at the authority
// alongside the rest of the bundle.
type AuthenticatorCodeCollector struct {
	Prompt PromptFunc
}

func (c *AuthenticatorCodeCollector) Kind() domain.FactorKind {
	return domain.FactorAuthenticatorCode
}

func (c *AuthenticatorCodeCollector) Collect(ctx context.Context) (domain.VerificationFactor, error) {
	code, err := c.Prompt(ctx)
	if err != nil {
		return domain.VerificationFactor{}, fmt.Errorf("%w: authenticator prompt: %w", ErrAcquisitionFailed, err)
	}
	if !validDigits(code, authenticatorCodeDigits) {
		return domain.VerificationFactor{}, fmt.Errorf(
			"%w: authenticator code must be %d digits", ErrInputInvalid, authenticatorCodeDigits)
	}
	return domain.AuthenticatorCodeFactor(code), nil
}
