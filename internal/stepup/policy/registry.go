// Package policy maps actions to the verification factors they require.
//
// The base table is static; Resolve applies the account-state dependent
// adjustments (a name change only demands an authenticator code when the
// account already has two-factor enabled) so callers always receive a fully
// concrete ActionPolicy.
package policy

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/stepup/internal/stepup/domain"
)

var ErrUnknownAction = errors.New("policy: unknown action")

// base holds the static requirement table. Entries are copied on resolve so
// callers can never mutate the registry.
var base = map[domain.Action]domain.ActionPolicy{
	domain.ActionLoginPrimary: {
		Action:        domain.ActionLoginPrimary,
		Required:      []domain.FactorKind{domain.FactorPassword, domain.FactorBiometricImage},
		Ordered:       true,
		ClearOnReject: []domain.FactorKind{domain.FactorBiometricImage},
	},
	domain.ActionLoginAlternateID: {
		Action:        domain.ActionLoginAlternateID,
		Required:      []domain.FactorKind{domain.FactorAlternateIdentity, domain.FactorPassword},
		Ordered:       true,
		ClearOnReject: []domain.FactorKind{domain.FactorPassword},
	},
	domain.ActionEnableTwoFactor: {
		Action:        domain.ActionEnableTwoFactor,
		Required:      []domain.FactorKind{domain.FactorAuthenticatorCode},
		ClearOnReject: []domain.FactorKind{domain.FactorAuthenticatorCode},
	},
	domain.ActionChangeName: {
		Action:        domain.ActionChangeName,
		Required:      []domain.FactorKind{domain.FactorEmailCode},
		ClearOnReject: []domain.FactorKind{domain.FactorEmailCode, domain.FactorAuthenticatorCode},
	},
	domain.ActionChangeFundingPassword: {
		Action:        domain.ActionChangeFundingPassword,
		Required:      []domain.FactorKind{domain.FactorEmailCode, domain.FactorAuthenticatorCode},
		ClearOnReject: []domain.FactorKind{domain.FactorEmailCode, domain.FactorAuthenticatorCode},
	},
	domain.ActionChangePassword: {
		Action:        domain.ActionChangePassword,
		Required:      []domain.FactorKind{domain.FactorEmailCode},
		ClearOnReject: []domain.FactorKind{domain.FactorEmailCode},
	},
	domain.ActionDisableFundsLock: {
		Action:        domain.ActionDisableFundsLock,
		Required:      []domain.FactorKind{domain.FactorAlternateIdentity, domain.FactorAuthenticatorCode},
		Ordered:       true,
		ClearOnReject: []domain.FactorKind{domain.FactorAuthenticatorCode},
	},
	domain.ActionEnableFundsLock: {
		Action:        domain.ActionEnableFundsLock,
		Required:      []domain.FactorKind{domain.FactorAlternateIdentity, domain.FactorBiometricImage},
		Ordered:       true,
		ClearOnReject: []domain.FactorKind{domain.FactorBiometricImage},
	},
}

// Resolve returns the concrete policy for an action given the current account
// state. The returned policy is a copy; mutating it does not affect the
// registry.
func Resolve(action domain.Action, state domain.AccountState) (domain.ActionPolicy, error) {
	p, ok := base[action]
	if !ok {
		return domain.ActionPolicy{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	// Copy slices so the registry entry stays immutable.
	out := p
	out.Required = append([]domain.FactorKind(nil), p.Required...)
	out.Optional = append([]domain.FactorKind(nil), p.Optional...)
	out.ClearOnReject = append([]domain.FactorKind(nil), p.ClearOnReject...)

	// A name change is only guarded by an authenticator code when the
	// account has two-factor enabled. This is account state, not static
	// policy.
	if action == domain.ActionChangeName && state.TwoFactorEnabled {
		out.Required = append(out.Required, domain.FactorAuthenticatorCode)
	}

	return out, nil
}

// Actions returns every action known to the registry.
func Actions() []domain.Action {
	out := make([]domain.Action, 0, len(base))
	for a := range base {
		out = append(out, a)
	}
	return out
}
