package flow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/stepup/pkg/totpx"
)

type fakeEnabler struct {
	calls   int
	lastKey string
	err     error
}

func (e *fakeEnabler) EnableTotp(_ context.Context, userID, secret string) error {
	e.calls++
	e.lastKey = secret
	return e.err
}

func testEnrollment(t *testing.T, enabler *fakeEnabler) (*Enrollment, *totpx.Engine) {
	t.Helper()
	// Skew 1 so a code computed just before a step boundary still verifies.
	engine := totpx.New(totpx.Config{Issuer: "stepup-test", Skew: 1})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEnrollment(engine, enabler, logger, "u1", "user@example.com"), engine
}

func TestEnrollmentBeginIssuesSecretOnce(t *testing.T) {
	t.Parallel()

	e, _ := testEnrollment(t, &fakeEnabler{})
	require.Equal(t, EnrollmentSetup, e.State())

	secret, uri, err := e.Begin()
	require.NoError(t, err)
	require.NotEmpty(t, secret)
	require.Contains(t, uri, "otpauth://totp/")
	require.Contains(t, uri, secret)
	require.Equal(t, EnrollmentAwaitingCode, e.State())

	// Begin while awaiting a code hands back the same secret.
	again, _, err := e.Begin()
	require.NoError(t, err)
	require.Equal(t, secret, again)
}

func TestEnrollmentMismatchRetainsSecret(t *testing.T) {
	t.Parallel()

	enabler := &fakeEnabler{}
	e, _ := testEnrollment(t, enabler)

	secret, _, err := e.Begin()
	require.NoError(t, err)

	err = e.VerifyAndActivate(context.Background(), "000000")
	require.ErrorIs(t, err, ErrCodeMismatch)
	require.Equal(t, EnrollmentAwaitingCode, e.State())
	require.Equal(t, 0, enabler.calls)

	// The pending secret is unchanged, so the user just types the next code.
	again, _, err := e.Begin()
	require.NoError(t, err)
	require.Equal(t, secret, again)
}

func TestEnrollmentRestartDrawsFreshSecret(t *testing.T) {
	t.Parallel()

	e, _ := testEnrollment(t, &fakeEnabler{})

	first, _, err := e.Begin()
	require.NoError(t, err)

	e.Restart()
	require.Equal(t, EnrollmentSetup, e.State())

	second, _, err := e.Begin()
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestEnrollmentActivatesAfterVerifiedCode(t *testing.T) {
	t.Parallel()

	enabler := &fakeEnabler{}
	e, engine := testEnrollment(t, enabler)

	secret, _, err := e.Begin()
	require.NoError(t, err)

	code, err := engine.ComputeCode(secret, time.Now())
	require.NoError(t, err)

	require.NoError(t, e.VerifyAndActivate(context.Background(), code))
	require.Equal(t, EnrollmentDone, e.State())
	require.Equal(t, 1, enabler.calls)
	require.Equal(t, secret, enabler.lastKey)

	// A finished enrollment refuses further verification.
	err = e.VerifyAndActivate(context.Background(), code)
	require.ErrorIs(t, err, ErrEnrollmentState)
}

func TestEnrollmentAuthorityFailureStaysRetryable(t *testing.T) {
	t.Parallel()

	enabler := &fakeEnabler{err: errors.New("authority unavailable")}
	e, engine := testEnrollment(t, enabler)

	secret, _, err := e.Begin()
	require.NoError(t, err)

	code, err := engine.ComputeCode(secret, time.Now())
	require.NoError(t, err)

	err = e.VerifyAndActivate(context.Background(), code)
	require.Error(t, err)
	require.Equal(t, EnrollmentAwaitingCode, e.State())

	// Once the authority recovers the same secret goes through.
	enabler.err = nil
	code, err = engine.ComputeCode(secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, e.VerifyAndActivate(context.Background(), code))
	require.Equal(t, EnrollmentDone, e.State())
	require.Equal(t, secret, enabler.lastKey)
}

func TestEnrollmentVerifyBeforeBegin(t *testing.T) {
	t.Parallel()

	e, _ := testEnrollment(t, &fakeEnabler{})
	err := e.VerifyAndActivate(context.Background(), "123456")
	require.ErrorIs(t, err, ErrEnrollmentState)
}
