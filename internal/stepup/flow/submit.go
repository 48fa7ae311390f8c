package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/stepup/internal/stepup/domain"
	"github.com/aussiebroadwan/stepup/internal/stepup/poll"
	"github.com/aussiebroadwan/stepup/pkg/authority"
)

// gateCheck returns the authority-side intermediate check for a factor kind,
// or nil when the factor is accepted on local validation alone.
func (f *Flow) gateCheck(kind domain.FactorKind) func(context.Context, domain.VerificationFactor) error {
	switch {
	case kind == domain.FactorPassword && f.Action == domain.ActionLoginPrimary:
		// Credentials are pre-validated so the user is not marched through
		// a camera capture on a typo'd password.
		return func(ctx context.Context, factor domain.VerificationFactor) error {
			return f.orch.Authority.ValidateCredentials(ctx, f.Params.Email, factor.Text)
		}

	case kind == domain.FactorAlternateIdentity:
		// The identity resolves to a display name before the flow moves
		// on, so the user can confirm they are acting on the right account.
		return func(ctx context.Context, factor domain.VerificationFactor) error {
			name, err := f.orch.Authority.ResolveAlternateIdentity(ctx, factor.Text)
			if err != nil {
				return err
			}
			f.mu.Lock()
			f.resolvedName = name
			f.mu.Unlock()
			return nil
		}
	}
	return nil
}

// submitOutcome is the interpreted result of one authority submission.
type submitOutcome struct {
	// session is set for terminal login successes.
	session *domain.AuthSession

	// awaitEmail is set when the authority demands out-of-band email
	// confirmation before the login completes.
	awaitEmail string
}

// Submit performs the single authoritative submission for the flow. It
// refuses to run while a required factor is missing and suppresses
// re-entrant attempts while one is outstanding.
//
// On an explicit authority rejection the policy's clear-on-reject factors
// are discarded and the flow returns to collecting so the user can re-enter
// only what was wrong. Transport errors leave all factors in place.
func (f *Flow) Submit(ctx context.Context) error {
	f.mu.Lock()
	switch {
	case f.status == StatusSubmitting:
		f.mu.Unlock()
		return ErrSubmitInFlight
	case f.status.terminal():
		f.mu.Unlock()
		return fmt.Errorf("%w: status %s", ErrFlowTerminal, f.status)
	case f.status != StatusCollecting:
		f.mu.Unlock()
		return ErrSubmitInFlight
	}

	for _, kind := range f.Policy.Required {
		if _, ok := f.collected[kind]; !ok {
			f.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrMissingFactor, kind)
		}
	}

	f.status = StatusSubmitting
	bundle := make(map[domain.FactorKind]domain.VerificationFactor, len(f.collected))
	for k, v := range f.collected {
		bundle[k] = v
	}
	f.mu.Unlock()

	f.logger.Info("submitting factor bundle", "factors", len(bundle))
	outcome, err := f.dispatch(ctx, bundle)

	f.mu.Lock()
	if f.status.terminal() {
		// Canceled while the submission was in flight; the verdict is
		// discarded either way.
		f.mu.Unlock()
		return ErrCanceled
	}

	switch {
	case err == nil && outcome.awaitEmail != "":
		f.status = StatusAwaitingOutOfBand
		f.mu.Unlock()
		f.startOutOfBandPoll(outcome.awaitEmail)
		return nil

	case err == nil:
		f.mu.Unlock()
		if !f.succeed(ctx, outcome.session) {
			return ErrCanceled
		}
		return nil

	default:
		var authErr *authority.AuthorityError
		if errors.As(err, &authErr) {
			// Explicit verdict: clear only what the policy says was wrong
			// and let the user retry.
			for _, kind := range f.Policy.ClearOnReject {
				delete(f.collected, kind)
				delete(f.accepted, kind)
			}
			f.logger.Info("authority rejected bundle", "message", authErr.Message)
		} else {
			f.logger.Warn("submission transport failure", "error", err)
		}
		f.status = StatusCollecting
		f.failure = err
		f.mu.Unlock()
		return err
	}
}

// succeed finalizes a successful submission: login flows persist their
// session, every flow drops its factors. A flow that already reached a
// terminal state (canceled while the verdict was in flight) stays there and
// nothing is persisted; succeed reports whether the transition committed.
func (f *Flow) succeed(ctx context.Context, session *domain.AuthSession) bool {
	f.mu.Lock()
	if f.status.terminal() {
		f.mu.Unlock()
		return false
	}
	f.session = session
	ps := f.finishLocked(StatusSucceeded, nil)
	f.mu.Unlock()

	if ps != nil {
		ps.Stop()
	}

	if session != nil && f.orch.Sessions != nil {
		if err := f.orch.Sessions.Save(ctx, *session); err != nil {
			// The login itself succeeded; losing the persisted copy only
			// costs a re-login after restart.
			f.logger.Warn("failed to persist session", "error", err)
		}
	}

	f.logger.Info("flow succeeded", "action", f.Action)
	return true
}

// fail finalizes the flow with a terminal failure.
func (f *Flow) fail(err error) {
	f.mu.Lock()
	if f.status.terminal() {
		f.mu.Unlock()
		return
	}
	ps := f.finishLocked(StatusFailed, err)
	f.mu.Unlock()

	if ps != nil {
		ps.Stop()
	}
	f.logger.Warn("flow failed", "action", f.Action, "error", err)
}

// dispatch builds and performs the authority call for the action.
func (f *Flow) dispatch(ctx context.Context, bundle map[domain.FactorKind]domain.VerificationFactor) (submitOutcome, error) {
	switch f.Action {
	case domain.ActionLoginPrimary:
		result, err := f.orch.Authority.LoginWithBiometric(ctx, f.Params.Email, bundle[domain.FactorBiometricImage].Image)
		if err != nil {
			return submitOutcome{}, err
		}
		if result.EmailVerificationRequired {
			return submitOutcome{awaitEmail: result.Email}, nil
		}
		return submitOutcome{session: sessionFromLogin(result)}, nil

	case domain.ActionLoginAlternateID:
		result, err := f.orch.Authority.LoginAlternateIdentity(ctx,
			bundle[domain.FactorAlternateIdentity].Text,
			bundle[domain.FactorPassword].Text)
		if err != nil {
			return submitOutcome{}, err
		}
		return submitOutcome{session: sessionFromLogin(result)}, nil

	case domain.ActionDisableFundsLock:
		return submitOutcome{}, f.orch.Authority.SetFundsLock(ctx, authority.SetFundsLockRequest{
			UserID:            f.Params.UserID,
			SpotID:            f.Params.SpotID,
			Action:            "disable",
			AuthenticatorCode: bundle[domain.FactorAuthenticatorCode].Text,
		})

	case domain.ActionEnableFundsLock:
		return submitOutcome{}, f.orch.Authority.SetFundsLock(ctx, authority.SetFundsLockRequest{
			UserID:    f.Params.UserID,
			SpotID:    f.Params.SpotID,
			Action:    "enable",
			FaceImage: bundle[domain.FactorBiometricImage].Image,
		})

	case domain.ActionChangeName, domain.ActionChangeFundingPassword, domain.ActionChangePassword:
		return submitOutcome{}, f.orch.Authority.VerifyAndApply(ctx, authority.ApplyRequest{
			Action:            string(f.Action),
			UserID:            f.Params.UserID,
			Code:              bundle[domain.FactorEmailCode].Text,
			AuthenticatorCode: bundle[domain.FactorAuthenticatorCode].Text,
			Payload:           f.Params.Payload,
		})

	default:
		return submitOutcome{}, fmt.Errorf("flow: no submitter for action %q", f.Action)
	}
}

// startOutOfBandPoll begins polling for the emailed confirmation. The poll
// session is owned by the flow: it is stopped on confirmation, timeout, and
// every terminal flow transition.
func (f *Flow) startOutOfBandPoll(email string) {
	interval := f.orch.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	f.logger.Info("awaiting out-of-band confirmation", "interval", interval)

	session := poll.Start(context.Background(), poll.Config{
		Interval: interval,
		MaxWait:  f.orch.PollMaxWait,
		Logger:   f.logger,
	}, func(ctx context.Context) (bool, any, error) {
		resp, err := f.orch.Authority.PollLoginConfirmation(ctx, email)
		if err != nil {
			return false, nil, err
		}
		if !resp.Verified {
			return false, nil, nil
		}
		return true, resp, nil
	})

	f.mu.Lock()
	if f.status != StatusAwaitingOutOfBand {
		// Canceled between the transition and here.
		f.mu.Unlock()
		session.Stop()
		return
	}
	f.pollSession = session
	f.mu.Unlock()

	go func() {
		select {
		case payload := <-session.Confirmed():
			resp := payload.(*authority.PollConfirmation)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			f.succeed(ctx, &domain.AuthSession{
				SessionToken: resp.Token,
				UserID:       resp.UserID,
				DisplayName:  resp.Name,
			})
		case <-session.Done():
			if err := session.Err(); err != nil {
				f.fail(err)
			}
			// Otherwise the session was stopped by a terminal transition
			// (cancel); nothing further to do.
		}
	}()
}

func sessionFromLogin(result *authority.LoginResult) *domain.AuthSession {
	return &domain.AuthSession{
		SessionToken: result.Token,
		UserID:       result.UserID,
		DisplayName:  result.Name,
	}
}
