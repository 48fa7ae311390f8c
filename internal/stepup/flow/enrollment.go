package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/stepup/pkg/totpx"
)

// EnrollmentState is the lifecycle state of a TOTP enrollment attempt.
type EnrollmentState string

const (
	// EnrollmentSetup: no secret issued yet (or the attempt was restarted).
	EnrollmentSetup EnrollmentState = "setup"
	// EnrollmentAwaitingCode: a secret has been issued and shown to the
	// user; waiting for the first authenticator code.
	EnrollmentAwaitingCode EnrollmentState = "awaiting_code"
	// EnrollmentDone: the secret is verified and persisted at the
	// authority.
	EnrollmentDone EnrollmentState = "done"
)

var (
	// ErrEnrollmentState reports a call that does not fit the current
	// enrollment state (e.g. verifying before a secret was issued).
	ErrEnrollmentState = errors.New("flow: operation invalid for enrollment state")

	// ErrCodeMismatch reports a candidate code that does not match the
	// pending secret. The secret is retained so the user can retry.
	ErrCodeMismatch = errors.New("flow: authenticator code does not match")
)

// TotpEnabler persists a verified TOTP secret at the authority.
// *authority.Client satisfies it.
type TotpEnabler interface {
	EnableTotp(ctx context.Context, userID, secret string) error
}

// Enrollment is the TOTP enrollment state machine. The secret is generated
// once per attempt and survives failed verifications; restarting the attempt
// discards it. The authority learns the secret exactly once, after a local
// verification has succeeded, and only then does the enrollment reach Done.
type Enrollment struct {
	engine  *totpx.Engine
	enabler TotpEnabler
	logger  *slog.Logger

	userID  string
	account string

	mu     sync.Mutex
	state  EnrollmentState
	secret string
	uri    string
}

// NewEnrollment starts an enrollment attempt in the Setup state.
func NewEnrollment(engine *totpx.Engine, enabler TotpEnabler, logger *slog.Logger, userID, account string) *Enrollment {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enrollment{
		engine:  engine,
		enabler: enabler,
		logger:  logger.With("user_id", userID),
		userID:  userID,
		account: account,
		state:   EnrollmentSetup,
	}
}

// State returns the current enrollment state.
func (e *Enrollment) State() EnrollmentState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Begin issues the enrollment secret and its provisioning URI. Calling Begin
// again while awaiting a code returns the same secret; a fresh one is only
// drawn after Restart.
func (e *Enrollment) Begin() (secret, uri string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case EnrollmentAwaitingCode:
		return e.secret, e.uri, nil
	case EnrollmentDone:
		return "", "", fmt.Errorf("%w: already done", ErrEnrollmentState)
	}

	secret, err = e.engine.GenerateSecret()
	if err != nil {
		return "", "", err
	}

	e.secret = secret
	e.uri = e.engine.ProvisioningURI(secret, e.account)
	e.state = EnrollmentAwaitingCode

	e.logger.Info("totp enrollment started")
	return e.secret, e.uri, nil
}

// Restart abandons the pending secret and returns to Setup. The next Begin
// draws a fresh secret.
func (e *Enrollment) Restart() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == EnrollmentDone {
		return
	}
	e.secret = ""
	e.uri = ""
	e.state = EnrollmentSetup
	e.logger.Info("totp enrollment restarted")
}

// VerifyAndActivate checks the candidate code against the pending secret
// and, on a match, persists the secret at the authority. A mismatch keeps
// the same secret so the user can simply try the next code; an authority
// failure also leaves the attempt retryable.
func (e *Enrollment) VerifyAndActivate(ctx context.Context, candidate string) error {
	e.mu.Lock()
	if e.state != EnrollmentAwaitingCode {
		state := e.state
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrEnrollmentState, state)
	}
	secret := e.secret
	e.mu.Unlock()

	ok, err := e.engine.VerifyCode(secret, candidate, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		e.logger.Info("totp enrollment code mismatch")
		return ErrCodeMismatch
	}

	if err := e.enabler.EnableTotp(ctx, e.userID, secret); err != nil {
		return fmt.Errorf("failed to persist totp secret: %w", err)
	}

	e.mu.Lock()
	e.state = EnrollmentDone
	e.mu.Unlock()

	e.logger.Info("totp enrollment complete")
	return nil
}
