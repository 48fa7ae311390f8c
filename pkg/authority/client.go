// Package authority is the HTTP client for the remote verification service.
//
// Every call is a JSON request/response pair. Negative verdicts surface as
// *AuthorityError, network failures as *TransportError; callers never need to
// look at status codes.
package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the verification service. The zero value is not usable;
// construct with NewClient.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ValidateCredentials pre-checks an email/password pair before the biometric
// step. A nil error means the credentials are valid; a rejection comes back
// as *AuthorityError.
func (c *Client) ValidateCredentials(ctx context.Context, email, password string) error {
	var out validateCredentialsResponse
	err := c.postJSON(ctx, "/v1/auth/validate", validateCredentialsRequest{
		Email:    email,
		Password: password,
	}, &out)
	if err != nil {
		return err
	}
	if !out.Valid {
		return &AuthorityError{StatusCode: http.StatusOK, Message: orDefault(out.Message, "invalid credentials")}
	}
	return nil
}

// LoginWithBiometric submits the email and captured face frame. The result
// either carries session fields or flags that out-of-band email confirmation
// is required. A rejection verdict comes back as *AuthorityError whether the
// service delivers it as an error status or a 200 body with a message.
func (c *Client) LoginWithBiometric(ctx context.Context, email string, image []byte) (*LoginResult, error) {
	var out loginResponse
	err := c.postJSON(ctx, "/v1/auth/login/biometric", biometricLoginRequest{
		Email: email,
		Image: image,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Token == "" && !out.EmailVerificationRequired {
		return nil, &AuthorityError{StatusCode: http.StatusOK, Message: orDefault(out.Message, "login rejected")}
	}
	return &out.LoginResult, nil
}

// PollLoginConfirmation checks whether the user has confirmed the login via
// the emailed link. Intended to be called repeatedly by a polling session.
func (c *Client) PollLoginConfirmation(ctx context.Context, email string) (*PollConfirmation, error) {
	var out PollConfirmation
	path := "/v1/auth/login/poll?email=" + url.QueryEscape(email)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResolveAlternateIdentity resolves a 7-digit alternate identity to the
// account's display name. The flow uses the resolved name to confirm the user
// is logging into the account they expect before asking for the password.
func (c *Client) ResolveAlternateIdentity(ctx context.Context, id string) (string, error) {
	var out resolveIdentityResponse
	err := c.postJSON(ctx, "/v1/auth/login/alternate/resolve", resolveIdentityRequest{ID: id}, &out)
	if err != nil {
		return "", err
	}
	return out.FullName, nil
}

// LoginAlternateIdentity completes an alternate-identity login with the
// password for the previously resolved identity. As with LoginWithBiometric,
// a tokenless 200 body is a rejection verdict.
func (c *Client) LoginAlternateIdentity(ctx context.Context, id, password string) (*LoginResult, error) {
	var out loginResponse
	err := c.postJSON(ctx, "/v1/auth/login/alternate", alternateLoginRequest{
		ID:       id,
		Password: password,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, &AuthorityError{StatusCode: http.StatusOK, Message: orDefault(out.Message, "login rejected")}
	}
	return &out.LoginResult, nil
}

// EnableTotp persists a verified TOTP secret for the user. Called exactly
// once per successful enrollment, after local verification has passed.
func (c *Client) EnableTotp(ctx context.Context, userID, secret string) error {
	var out ackResponse
	err := c.postJSON(ctx, "/v1/mfa/totp/enable", enableTotpRequest{
		UserID: userID,
		Secret: secret,
	}, &out)
	if err != nil {
		return err
	}
	return out.err()
}

// SendEmailCode asks the service to email a one-time code scoped to the
// given action.
func (c *Client) SendEmailCode(ctx context.Context, action, userID string) error {
	var out ackResponse
	err := c.postJSON(ctx, "/v1/verification/send-code", sendEmailCodeRequest{
		Action: action,
		UserID: userID,
	}, &out)
	if err != nil {
		return err
	}
	return out.err()
}

// VerifyAndApply submits a settings action with its full factor bundle and
// payload in one shot.
func (c *Client) VerifyAndApply(ctx context.Context, req ApplyRequest) error {
	var out ackResponse
	if err := c.postJSON(ctx, "/v1/verification/apply", req, &out); err != nil {
		return err
	}
	return out.err()
}

// GetFundsLockState returns whether the user's funds are currently locked.
func (c *Client) GetFundsLockState(ctx context.Context, userID string) (bool, error) {
	var out fundsLockStateResponse
	path := "/v1/funds-lock?user_id=" + url.QueryEscape(userID)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return false, err
	}
	return out.FundsLocked, nil
}

// SetFundsLock toggles the funds lock with the verification evidence the
// policy demands for the direction of the toggle.
func (c *Client) SetFundsLock(ctx context.Context, req SetFundsLockRequest) error {
	var out ackResponse
	if err := c.postJSON(ctx, "/v1/funds-lock", req, &out); err != nil {
		return err
	}
	return out.err()
}

func (a ackResponse) err() error {
	if a.Success {
		return nil
	}
	msg := a.Message
	if msg == "" {
		msg = a.Error
	}
	return &AuthorityError{StatusCode: http.StatusOK, Message: orDefault(msg, "request rejected")}
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, path, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseErrorResponse(resp, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
