package collect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/aussiebroadwan/stepup/internal/stepup/domain"
)

const emailCodeDigits = 6

// ErrResendThrottled reports that a send-code request was refused by the
// local cooldown. The previous code is still valid; the user should wait.
var ErrResendThrottled = errors.New("collect: send code throttled, wait before resending")

// CodeSender triggers the authority to email a one-time code scoped to an
// action.
type CodeSender interface {
	SendEmailCode(ctx context.Context, action, userID string) error
}

// EmailCodeCollector triggers a send-code request and then accepts the digit
// entry. It does not poll; the user reads the code out of their inbox and
// types it in.
type EmailCodeCollector struct {
	Sender CodeSender
	Action domain.Action
	UserID string
	Prompt PromptFunc

	// limiter throttles resend requests: one per minute, matching the
	// authority's own server-side cooldown so the user gets a local error
	// instead of a rejected request.
	limiter *rate.Limiter
}

// NewEmailCodeCollector constructs a collector with the resend cooldown
// armed so the first send is always allowed.
func NewEmailCodeCollector(sender CodeSender, action domain.Action, userID string, prompt PromptFunc) *EmailCodeCollector {
	return &EmailCodeCollector{
		Sender:  sender,
		Action:  action,
		UserID:  userID,
		Prompt:  prompt,
		limiter: rate.NewLimiter(rate.Every(time.Minute), 1),
	}
}

func (c *EmailCodeCollector) Kind() domain.FactorKind { return domain.FactorEmailCode }

// Send asks the authority to email a fresh code. Throttled locally to the
// resend cooldown.
func (c *EmailCodeCollector) Send(ctx context.Context) error {
	if !c.limiter.Allow() {
		return ErrResendThrottled
	}
	if err := c.Sender.SendEmailCode(ctx, string(c.Action), c.UserID); err != nil {
		return fmt.Errorf("%w: send code: %w", ErrAcquisitionFailed, err)
	}
	return nil
}

func (c *EmailCodeCollector) Collect(ctx context.Context) (domain.VerificationFactor, error) {
	if err := c.Send(ctx); err != nil {
		return domain.VerificationFactor{}, err
	}

	code, err := c.Prompt(ctx)
	if err != nil {
		return domain.VerificationFactor{}, fmt.Errorf("%w: email code prompt: %w", ErrAcquisitionFailed, err)
	}
	if !validDigits(code, emailCodeDigits) {
		return domain.VerificationFactor{}, fmt.Errorf(
			"%w: email code must be %d digits", ErrInputInvalid, emailCodeDigits)
	}
	return domain.EmailCodeFactor(code), nil
}
