package domain

// AuthSession represents an authenticated principal. It is created only from
// a terminal success response of the remote authority, never synthesized
// locally.
type AuthSession struct {
	SessionToken     string
	UserID           string
	DisplayName      string
	TwoFactorEnabled bool
}

// AccountState captures the pieces of account configuration that influence
// policy resolution (e.g. whether a name change additionally requires an
// authenticator code).
type AccountState struct {
	UserID           string
	Email            string
	TwoFactorEnabled bool
}
