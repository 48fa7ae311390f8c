package authority

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// AuthorityError is an explicit negative verdict from the verification
// service. The message is suitable for direct display to the user.
type AuthorityError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
}

func (e *AuthorityError) Error() string {
	return fmt.Sprintf("authority rejected request: %s", e.Message)
}

// TransportError wraps a network-level failure (connection refused, timeout,
// malformed body). It carries no verdict: the bundle may or may not have been
// seen by the authority.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("authority transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// parseErrorResponse turns a non-2xx response into a typed error. The service
// reports verdicts as {"message": "..."}; anything that fails to parse falls
// back to a generic error carrying the status text.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var errResp struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		msg := errResp.Message
		if msg == "" {
			msg = errResp.Error
		}
		if msg != "" {
			return &AuthorityError{StatusCode: resp.StatusCode, Message: msg}
		}
	}

	return &AuthorityError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
