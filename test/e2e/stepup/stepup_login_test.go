package stepup_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/stepup/internal/stepup/app"
	"github.com/aussiebroadwan/stepup/internal/stepup/domain"
	"github.com/aussiebroadwan/stepup/internal/stepup/flow"
	"github.com/aussiebroadwan/stepup/pkg/authority"
)

func TestPrimaryLoginEndToEnd(t *testing.T) {
	fa := newFakeAuthority(t)
	application := newTestApp(t, fa, t.TempDir())
	ctx := context.Background()

	_, restored, err := application.RestoreSession(ctx)
	require.NoError(t, err)
	require.False(t, restored, "fresh state must require login")

	f, err := application.Orchestrator().Begin(
		domain.ActionLoginPrimary, domain.AccountState{}, flow.Params{Email: accountEmail})
	require.NoError(t, err)

	collectors := application.Collectors(domain.ActionLoginPrimary, accountUserID, app.Prompts{
		Password: fixedPrompt(accountPassword),
	}, &stubCamera{frame: []byte{0xCA, 0xFE}})

	require.NoError(t, f.Collect(ctx, collectors))
	require.NoError(t, f.Submit(ctx))
	require.Equal(t, flow.StatusSucceeded, f.Status())

	sess, ok := f.Session()
	require.True(t, ok)
	require.Equal(t, accountUserID, sess.UserID)
	require.Equal(t, accountName, sess.DisplayName)
	require.NotEmpty(t, sess.SessionToken)

	// The session round-trips through the sealed sqlite state store.
	got, restored, err := application.RestoreSession(ctx)
	require.NoError(t, err)
	require.True(t, restored)
	require.Equal(t, sess.SessionToken, got.SessionToken)

	// And logout clears it again.
	require.NoError(t, application.Logout(ctx))
	_, restored, err = application.RestoreSession(ctx)
	require.NoError(t, err)
	require.False(t, restored)
}

func TestPrimaryLoginEmailConfirmation(t *testing.T) {
	fa := newFakeAuthority(t)
	fa.pollsToConfirm = 2
	application := newTestApp(t, fa, t.TempDir())
	ctx := context.Background()

	f, err := application.Orchestrator().Begin(
		domain.ActionLoginPrimary, domain.AccountState{}, flow.Params{Email: accountEmail})
	require.NoError(t, err)

	collectors := application.Collectors(domain.ActionLoginPrimary, accountUserID, app.Prompts{
		Password: fixedPrompt(accountPassword),
	}, &stubCamera{frame: []byte{0xCA, 0xFE}})

	require.NoError(t, f.Collect(ctx, collectors))
	require.NoError(t, f.Submit(ctx))
	require.Equal(t, flow.StatusAwaitingOutOfBand, f.Status())

	select {
	case <-f.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("out-of-band confirmation never completed")
	}

	require.Equal(t, flow.StatusSucceeded, f.Status())
	sess, ok := f.Session()
	require.True(t, ok)
	require.Equal(t, accountUserID, sess.UserID)
	require.Equal(t, 1, fa.loginCount())

	_, restored, err := application.RestoreSession(ctx)
	require.NoError(t, err)
	require.True(t, restored)
}

func TestAlternateLoginWrongPasswordKeepsIdentity(t *testing.T) {
	fa := newFakeAuthority(t)
	application := newTestApp(t, fa, t.TempDir())
	ctx := context.Background()

	f, err := application.Orchestrator().Begin(
		domain.ActionLoginAlternateID, domain.AccountState{}, flow.Params{})
	require.NoError(t, err)

	require.NoError(t, f.Provide(ctx, domain.AlternateIdentityFactor(accountAltID)))
	require.Equal(t, accountName, f.ResolvedName())

	require.NoError(t, f.Provide(ctx, domain.PasswordFactor("wrong password")))
	err = f.Submit(ctx)
	var authErr *authority.AuthorityError
	require.ErrorAs(t, err, &authErr)

	// The resolved identity survives the rejection; only the password is
	// re-entered.
	require.Equal(t, flow.StatusCollecting, f.Status())
	require.True(t, f.Collected(domain.FactorAlternateIdentity))
	require.False(t, f.Collected(domain.FactorPassword))

	require.NoError(t, f.Provide(ctx, domain.PasswordFactor(accountPassword)))
	require.NoError(t, f.Submit(ctx))
	require.Equal(t, flow.StatusSucceeded, f.Status())
	require.Equal(t, 1, fa.loginCount())
}

func TestBiometricRejectionInSuccessBody(t *testing.T) {
	fa := newFakeAuthority(t)
	fa.biometricVerdict = "face not recognized"
	application := newTestApp(t, fa, t.TempDir())
	ctx := context.Background()

	f, err := application.Orchestrator().Begin(
		domain.ActionLoginPrimary, domain.AccountState{}, flow.Params{Email: accountEmail})
	require.NoError(t, err)

	collectors := application.Collectors(domain.ActionLoginPrimary, accountUserID, app.Prompts{
		Password: fixedPrompt(accountPassword),
	}, &stubCamera{frame: []byte{0xCA, 0xFE}})
	require.NoError(t, f.Collect(ctx, collectors))

	// The authority delivers its rejection as a 200 body with a message.
	// That is a verdict, not a login: no session may be minted or stored.
	err = f.Submit(ctx)
	var authErr *authority.AuthorityError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, "face not recognized", authErr.Message)

	require.Equal(t, flow.StatusCollecting, f.Status())
	_, ok := f.Session()
	require.False(t, ok)

	// Clear-on-reject drops the frame; the validated password stays.
	require.False(t, f.Collected(domain.FactorBiometricImage))
	require.True(t, f.Collected(domain.FactorPassword))

	_, restored, err := application.RestoreSession(ctx)
	require.NoError(t, err)
	require.False(t, restored)
}

func TestUnknownAlternateIdentityRejectedBeforePassword(t *testing.T) {
	fa := newFakeAuthority(t)
	application := newTestApp(t, fa, t.TempDir())
	ctx := context.Background()

	f, err := application.Orchestrator().Begin(
		domain.ActionLoginAlternateID, domain.AccountState{}, flow.Params{})
	require.NoError(t, err)

	err = f.Provide(ctx, domain.AlternateIdentityFactor("0000000"))
	var authErr *authority.AuthorityError
	require.ErrorAs(t, err, &authErr)
	require.False(t, f.Collected(domain.FactorAlternateIdentity))
	require.Equal(t, 0, fa.loginCount())
}

func TestExpiredPersistedTokenForcesRelogin(t *testing.T) {
	fa := newFakeAuthority(t)
	fa.tokenTTL = -time.Hour // authority hands out already-expired tokens
	application := newTestApp(t, fa, t.TempDir())
	ctx := context.Background()

	f, err := application.Orchestrator().Begin(
		domain.ActionLoginPrimary, domain.AccountState{}, flow.Params{Email: accountEmail})
	require.NoError(t, err)

	collectors := application.Collectors(domain.ActionLoginPrimary, accountUserID, app.Prompts{
		Password: fixedPrompt(accountPassword),
	}, &stubCamera{frame: []byte{0xCA, 0xFE}})
	require.NoError(t, f.Collect(ctx, collectors))
	require.NoError(t, f.Submit(ctx))
	require.Equal(t, flow.StatusSucceeded, f.Status())

	// The stored token is stale on arrival, so restoring refuses it.
	_, restored, err := application.RestoreSession(ctx)
	require.NoError(t, err)
	require.False(t, restored)
}
