package authority

// LoginResult is the terminal outcome of a login submission. Either the
// session fields are populated, or EmailVerificationRequired is set and the
// caller must poll for out-of-band confirmation at Email.
type LoginResult struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`

	EmailVerificationRequired bool   `json:"email_verification"`
	Email                     string `json:"email"`
}

// PollConfirmation is one observation of the out-of-band confirmation state.
// Token/UserID/Name are only populated once Verified is true.
type PollConfirmation struct {
	Verified bool   `json:"verified"`
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
}

// ApplyRequest carries a complete factor bundle for a settings action.
// Payload holds the action's own data (e.g. the new display name, old and new
// passwords) which is changed by the action rather than proving it.
type ApplyRequest struct {
	Action            string            `json:"action"`
	UserID            string            `json:"user_id"`
	Code              string            `json:"code"`
	AuthenticatorCode string            `json:"authenticator_code,omitempty"`
	Payload           map[string]string `json:"payload,omitempty"`
}

// SetFundsLockRequest toggles the funds lock for one spot account. Exactly
// one of AuthenticatorCode or FaceImage is set depending on the direction of
// the toggle.
type SetFundsLockRequest struct {
	UserID            string `json:"user_id"`
	SpotID            string `json:"spot_id"`
	Action            string `json:"action"` // "enable" or "disable"
	AuthenticatorCode string `json:"authenticator_code,omitempty"`
	FaceImage         []byte `json:"face_image,omitempty"`
}

type validateCredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type validateCredentialsResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

type biometricLoginRequest struct {
	Email string `json:"email"`
	Image []byte `json:"image"`
}

// loginResponse widens LoginResult with the message field a rejection
// verdict carries when delivered in a 200 body.
type loginResponse struct {
	LoginResult
	Message string `json:"message"`
}

type resolveIdentityRequest struct {
	ID string `json:"id"`
}

type resolveIdentityResponse struct {
	FullName string `json:"full_name"`
}

type alternateLoginRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

type enableTotpRequest struct {
	UserID string `json:"user_id"`
	Secret string `json:"secret"`
}

type sendEmailCodeRequest struct {
	Action string `json:"action"`
	UserID string `json:"user_id"`
}

type ackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

type fundsLockStateResponse struct {
	FundsLocked bool `json:"funds_locked"`
}
