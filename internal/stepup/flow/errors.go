package flow

import "errors"

var (
	// ErrMissingFactor means a submission was attempted before every
	// required factor was collected. The orchestrator refuses the
	// submission outright; the authority is never contacted.
	ErrMissingFactor = errors.New("flow: required factor missing")

	// ErrSubmitInFlight reports a re-entrant submit while one is already
	// outstanding. The duplicate is dropped, not queued.
	ErrSubmitInFlight = errors.New("flow: submission already in flight")

	// ErrFlowTerminal reports an operation on a flow that already reached
	// a terminal state.
	ErrFlowTerminal = errors.New("flow: flow already terminal")

	// ErrFactorNotAllowed reports a factor kind the action's policy lists
	// neither as required nor optional.
	ErrFactorNotAllowed = errors.New("flow: factor not allowed for this action")

	// ErrGateLocked reports a factor provided out of order: an earlier
	// factor in an ordered policy has not yet been accepted.
	ErrGateLocked = errors.New("flow: previous factor not yet accepted")

	// ErrInvalidFactor reports an empty or mistyped factor value.
	ErrInvalidFactor = errors.New("flow: invalid factor value")

	// ErrCanceled reports that the flow was canceled; collected factors
	// were dropped and nothing was submitted.
	ErrCanceled = errors.New("flow: canceled")

	// ErrEnrollmentOwned reports an action fulfilled by the Enrollment
	// machine, which owns the secret lifecycle; it cannot be driven
	// through a submitted flow.
	ErrEnrollmentOwned = errors.New("flow: action is handled by totp enrollment")
)
