package collect

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/stepup/internal/stepup/domain"
)

// PasswordCollector takes literal password input. The only local constraint
// is non-emptiness; everything else is the authority's call.
type PasswordCollector struct {
	Prompt PromptFunc
}

func (c *PasswordCollector) Kind() domain.FactorKind { return domain.FactorPassword }

func (c *PasswordCollector) Collect(ctx context.Context) (domain.VerificationFactor, error) {
	password, err := c.Prompt(ctx)
	if err != nil {
		return domain.VerificationFactor{}, fmt.Errorf("%w: password prompt: %w", ErrAcquisitionFailed, err)
	}
	if password == "" {
		return domain.VerificationFactor{}, fmt.Errorf("%w: password must not be empty", ErrInputInvalid)
	}
	return domain.PasswordFactor(password), nil
}
