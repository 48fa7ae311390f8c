package collect

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/stepup/internal/stepup/domain"
)

const alternateIdentityDigits = 7

// AlternateIdentityCollector accepts the 7-digit alternate identity number.
// Resolution to a display name is the flow's gating step; this collector only
// guards the format.
type AlternateIdentityCollector struct {
	Prompt PromptFunc
}

func (c *AlternateIdentityCollector) Kind() domain.FactorKind {
	return domain.FactorAlternateIdentity
}

func (c *AlternateIdentityCollector) Collect(ctx context.Context) (domain.VerificationFactor, error) {
	id, err := c.Prompt(ctx)
	if err != nil {
		return domain.VerificationFactor{}, fmt.Errorf("%w: identity prompt: %w", ErrAcquisitionFailed, err)
	}
	if !validDigits(id, alternateIdentityDigits) {
		return domain.VerificationFactor{}, fmt.Errorf(
			"%w: alternate identity must be %d digits", ErrInputInvalid, alternateIdentityDigits)
	}
	return domain.AlternateIdentityFactor(id), nil
}
