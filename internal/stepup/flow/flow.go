// Package flow implements the step-up verification orchestration engine: the
// state machine that collects the factors an action's policy demands,
// submits the complete bundle to the remote authority exactly once, and
// interprets the verdict.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/aussiebroadwan/stepup/internal/stepup/collect"
	"github.com/aussiebroadwan/stepup/internal/stepup/domain"
	"github.com/aussiebroadwan/stepup/internal/stepup/poll"
	"github.com/aussiebroadwan/stepup/pkg/idx"
	"github.com/aussiebroadwan/stepup/pkg/slogx"
)

// Status is the lifecycle state of one flow.
type Status string

const (
	StatusIdle              Status = "idle"
	StatusCollecting        Status = "collecting"
	StatusSubmitting        Status = "submitting"
	StatusAwaitingOutOfBand Status = "awaiting_out_of_band"
	StatusSucceeded         Status = "succeeded"
	StatusFailed            Status = "failed"
	StatusCanceled          Status = "canceled"
)

// terminal reports whether s is an end state: no factor may be provided and
// no submission may start once reached.
func (s Status) terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// Params carries the action's non-factor inputs: the login email, the acting
// user, the funds-lock spot account, and the payload a settings action
// changes (new display name, old and new passwords). Payload values are data
// being changed, not verification evidence.
type Params struct {
	Email   string
	UserID  string
	SpotID  string
	Payload map[string]string
}

// Flow is the mutable state of one in-flight action attempt. All methods are
// safe for concurrent use. A Flow is created by Orchestrator.Begin and is
// destroyed (factors dropped) on terminal success, failure, or cancel.
type Flow struct {
	ID     idx.ID
	Action domain.Action
	Policy domain.ActionPolicy
	Params Params

	orch   *Orchestrator
	logger *slog.Logger

	mu           sync.Mutex
	status       Status
	collected    map[domain.FactorKind]domain.VerificationFactor
	accepted     map[domain.FactorKind]bool
	resolvedName string
	session      *domain.AuthSession
	failure      error
	pollSession  *poll.Session

	done     chan struct{}
	doneOnce sync.Once
}

// Status returns the flow's current state.
func (f *Flow) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Session returns the AuthSession produced by a successful login flow.
func (f *Flow) Session() (domain.AuthSession, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return domain.AuthSession{}, false
	}
	return *f.session, true
}

// Err returns the failure that drove the flow to StatusFailed, or the most
// recent submission rejection while still collecting.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failure
}

// ResolvedName returns the display name the authority resolved for an
// alternate identity, so the UI can confirm the account before the password
// step.
func (f *Flow) ResolvedName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolvedName
}

// Done is closed when the flow reaches any terminal state.
func (f *Flow) Done() <-chan struct{} { return f.done }

// Collected reports whether a locally-valid value for kind is held.
func (f *Flow) Collected(kind domain.FactorKind) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.collected[kind]
	return ok
}

// Provide attaches one factor to the flow. For ordered policies the factor
// must be the next one due, and factors with an authority-side intermediate
// check (credential pre-validation, identity resolution) only count as
// accepted once that check passes.
func (f *Flow) Provide(ctx context.Context, factor domain.VerificationFactor) error {
	f.mu.Lock()
	if err := f.canAcceptLocked(factor); err != nil {
		f.mu.Unlock()
		return err
	}
	f.mu.Unlock()

	if check := f.gateCheck(factor.Kind); check != nil {
		if err := check(ctx, factor); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != StatusCollecting {
		return fmt.Errorf("%w: status %s", ErrFlowTerminal, f.status)
	}
	f.collected[factor.Kind] = factor
	f.accepted[factor.Kind] = true

	f.logger.Debug("factor collected", "kind", factor.Kind)
	return nil
}

// canAcceptLocked validates that the flow can take this factor right now.
func (f *Flow) canAcceptLocked(factor domain.VerificationFactor) error {
	if f.status != StatusCollecting {
		if f.status.terminal() {
			return fmt.Errorf("%w: status %s", ErrFlowTerminal, f.status)
		}
		return fmt.Errorf("%w: cannot provide factors while %s", ErrSubmitInFlight, f.status)
	}
	if factor.IsZero() {
		return fmt.Errorf("%w: %s is empty", ErrInvalidFactor, factor.Kind)
	}
	if !f.Policy.Allows(factor.Kind) {
		return fmt.Errorf("%w: %s", ErrFactorNotAllowed, factor.Kind)
	}

	if !f.Policy.Ordered || !f.Policy.Requires(factor.Kind) {
		return nil
	}

	// Ordered policy: every required factor before this one must already be
	// accepted.
	for _, kind := range f.Policy.Required {
		if kind == factor.Kind {
			return nil
		}
		if !f.accepted[kind] {
			return fmt.Errorf("%w: %s before %s", ErrGateLocked, kind, factor.Kind)
		}
	}
	return nil
}

// Collect drives the registered collectors to gather every required factor.
// Ordered policies run sequentially so each gate resolves before the next
// collector activates; unordered policies collect concurrently.
func (f *Flow) Collect(ctx context.Context, collectors map[domain.FactorKind]collect.Collector) error {
	ctx = slogx.WithFlowID(ctx, f.ID.String())

	missing := func(kind domain.FactorKind) error {
		return fmt.Errorf("flow: no collector registered for %s", kind)
	}

	if f.Policy.Ordered {
		for _, kind := range f.Policy.Required {
			c, ok := collectors[kind]
			if !ok {
				return missing(kind)
			}
			factor, err := c.Collect(ctx)
			if err != nil {
				return err
			}
			if err := f.Provide(ctx, factor); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range f.Policy.Required {
		c, ok := collectors[kind]
		if !ok {
			return missing(kind)
		}
		g.Go(func() error {
			factor, err := c.Collect(gctx)
			if err != nil {
				return err
			}
			return f.Provide(gctx, factor)
		})
	}
	return g.Wait()
}

// Cancel terminates the flow, dropping all collected factors and releasing
// any polling session. A canceled flow never submits; it ends in
// StatusCanceled rather than StatusFailed. Idempotent.
func (f *Flow) Cancel() {
	f.mu.Lock()
	if f.status.terminal() {
		f.mu.Unlock()
		return
	}
	f.logger.Info("flow canceled", "from", f.status)
	ps := f.finishLocked(StatusCanceled, ErrCanceled)
	f.mu.Unlock()

	if ps != nil {
		ps.Stop()
	}
}

// finishLocked moves the flow to a terminal state, clears factors, and
// detaches the poll session (returned so the caller can stop it outside the
// lock). Held factors never survive a terminal transition.
func (f *Flow) finishLocked(status Status, failure error) *poll.Session {
	f.status = status
	f.failure = failure
	f.collected = make(map[domain.FactorKind]domain.VerificationFactor)
	f.accepted = make(map[domain.FactorKind]bool)

	ps := f.pollSession
	f.pollSession = nil

	f.doneOnce.Do(func() { close(f.done) })
	return ps
}
