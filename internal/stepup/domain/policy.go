package domain

// Action identifies a user-requested operation that requires step-up
// verification before the remote authority will apply it.
type Action string

const (
	ActionLoginPrimary          Action = "login_primary"
	ActionLoginAlternateID      Action = "login_alternate_id"
	ActionEnableTwoFactor       Action = "enable_two_factor"
	ActionChangeName            Action = "change_name"
	ActionChangeFundingPassword Action = "change_funding_password"
	ActionChangePassword        Action = "change_password"
	ActionDisableFundsLock      Action = "disable_funds_lock"
	ActionEnableFundsLock       Action = "enable_funds_lock"
)

// ActionPolicy is the immutable factor requirement set for one action.
//
// When Ordered is true the required factors must be supplied in slice order,
// and a factor with an authority-side intermediate check (identity
// resolution, credential pre-validation) gates the next one: the flow refuses
// the next factor until the check has accepted the previous one.
type ActionPolicy struct {
	Action   Action
	Required []FactorKind
	Optional []FactorKind
	Ordered  bool

	// ClearOnReject lists the factor kinds discarded when the authority
	// rejects a submission. Factors it already accepted through an
	// intermediate check (e.g. a resolved alternate identity) stay put so
	// the user only re-enters what was actually wrong.
	ClearOnReject []FactorKind
}

// Requires reports whether kind is listed as a required factor.
func (p ActionPolicy) Requires(kind FactorKind) bool {
	for _, k := range p.Required {
		if k == kind {
			return true
		}
	}
	return false
}

// Allows reports whether kind is either required or optional for the action.
func (p ActionPolicy) Allows(kind FactorKind) bool {
	if p.Requires(kind) {
		return true
	}
	for _, k := range p.Optional {
		if k == kind {
			return true
		}
	}
	return false
}
