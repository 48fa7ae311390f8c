package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/stepup/internal/stepup/domain"
	"github.com/aussiebroadwan/stepup/internal/stepup/policy"
	"github.com/aussiebroadwan/stepup/pkg/authority"
	"github.com/aussiebroadwan/stepup/pkg/idx"
)

// Authority is the slice of the remote verification service the orchestrator
// needs. *authority.Client satisfies it.
type Authority interface {
	ValidateCredentials(ctx context.Context, email, password string) error
	LoginWithBiometric(ctx context.Context, email string, image []byte) (*authority.LoginResult, error)
	PollLoginConfirmation(ctx context.Context, email string) (*authority.PollConfirmation, error)
	ResolveAlternateIdentity(ctx context.Context, id string) (string, error)
	LoginAlternateIdentity(ctx context.Context, id, password string) (*authority.LoginResult, error)
	SendEmailCode(ctx context.Context, action, userID string) error
	VerifyAndApply(ctx context.Context, req authority.ApplyRequest) error
	SetFundsLock(ctx context.Context, req authority.SetFundsLockRequest) error
}

// SessionSaver persists the session produced by a successful login.
// store.Sessions satisfies it.
type SessionSaver interface {
	Save(ctx context.Context, s domain.AuthSession) error
}

const (
	defaultPollInterval = 2 * time.Second
	defaultPollMaxWait  = 10 * time.Minute
)

// Orchestrator creates and drives step-up flows. One orchestrator serves the
// whole client; each action attempt gets its own Flow.
type Orchestrator struct {
	Authority Authority
	Sessions  SessionSaver
	Logger    *slog.Logger

	// PollInterval and PollMaxWait govern out-of-band confirmation
	// polling. MaxWait zero means wait until canceled.
	PollInterval time.Duration
	PollMaxWait  time.Duration
}

// New returns an orchestrator with the polling defaults filled in.
func New(auth Authority, sessions SessionSaver, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		Authority:    auth,
		Sessions:     sessions,
		Logger:       logger,
		PollInterval: defaultPollInterval,
		PollMaxWait:  defaultPollMaxWait,
	}
}

// Begin resolves the action's policy against the current account state and
// returns a flow ready to collect factors. Enabling two-factor is refused
// here: its first-code verification runs through Enrollment, not a flow.
func (o *Orchestrator) Begin(action domain.Action, state domain.AccountState, params Params) (*Flow, error) {
	if action == domain.ActionEnableTwoFactor {
		return nil, fmt.Errorf("%w: %s", ErrEnrollmentOwned, action)
	}

	p, err := policy.Resolve(action, state)
	if err != nil {
		return nil, err
	}

	f := &Flow{
		ID:        idx.New(),
		Action:    action,
		Policy:    p,
		Params:    params,
		orch:      o,
		status:    StatusCollecting,
		collected: make(map[domain.FactorKind]domain.VerificationFactor),
		accepted:  make(map[domain.FactorKind]bool),
		done:      make(chan struct{}),
	}
	f.logger = o.Logger.With("flow_id", f.ID.String(), "action", action)
	f.logger.Info("flow started", "required", p.Required, "ordered", p.Ordered)

	return f, nil
}
