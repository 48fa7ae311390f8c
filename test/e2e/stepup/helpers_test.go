package stepup_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/stepup/internal/stepup/app"
	"github.com/aussiebroadwan/stepup/internal/stepup/collect"
)

/*
 * Common fixtures and helpers for step-up client end-to-end tests. The
 * verification authority is a local httptest server with one seeded account;
 * the client under test is the fully wired Application (sqlite state store,
 * sealed token, real HTTP).
 */

const (
	accountEmail    = "alex@example.com"
	accountPassword = "Str0ngPassw0rd!"
	accountAltID    = "7654321"
	accountName     = "Alex Chen"
	accountUserID   = "user-001"

	tokenSigningKey = "e2e-signing-key"
)

// fakeAuthority is an in-process stand-in for the verification service,
// speaking the same wire protocol the production client consumes.
type fakeAuthority struct {
	*httptest.Server

	tokenTTL time.Duration

	mu             sync.Mutex
	pollsToConfirm int // 0 disables the email-verification branch
	polls          int
	logins         int

	// biometricVerdict, when set, rejects every biometric login with that
	// message in a 200 body rather than an error status.
	biometricVerdict string
}

func newFakeAuthority(t *testing.T) *fakeAuthority {
	t.Helper()

	fa := &fakeAuthority{tokenTTL: time.Hour}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/validate", fa.handleValidate)
	mux.HandleFunc("POST /v1/auth/login/biometric", fa.handleBiometricLogin)
	mux.HandleFunc("GET /v1/auth/login/poll", fa.handlePoll)
	mux.HandleFunc("POST /v1/auth/login/alternate/resolve", fa.handleResolve)
	mux.HandleFunc("POST /v1/auth/login/alternate", fa.handleAlternateLogin)

	fa.Server = httptest.NewServer(mux)
	t.Cleanup(fa.Close)
	return fa
}

func (fa *fakeAuthority) mintToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": accountUserID,
		"exp": time.Now().Add(fa.tokenTTL).Unix(),
	})
	s, err := token.SignedString([]byte(tokenSigningKey))
	require.NoError(t, err)
	return s
}

func (fa *fakeAuthority) loginCount() int {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return fa.logins
}

func (fa *fakeAuthority) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	valid := req.Email == accountEmail && req.Password == accountPassword
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":   valid,
		"message": messageUnless(valid, "invalid credentials"),
	})
}

func (fa *fakeAuthority) handleBiometricLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Image []byte `json:"image"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.Email != accountEmail || len(req.Image) == 0 {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "face not recognized"})
		return
	}

	fa.mu.Lock()
	verdict := fa.biometricVerdict
	needsEmail := fa.pollsToConfirm > 0
	if verdict == "" && !needsEmail {
		fa.logins++
	}
	fa.mu.Unlock()

	if verdict != "" {
		writeJSON(w, http.StatusOK, map[string]any{"message": verdict})
		return
	}

	if needsEmail {
		writeJSON(w, http.StatusOK, map[string]any{
			"email_verification": true,
			"email":              accountEmail,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":   fa.mintTokenHTTP(),
		"user_id": accountUserID,
		"name":    accountName,
	})
}

func (fa *fakeAuthority) handlePoll(w http.ResponseWriter, r *http.Request) {
	fa.mu.Lock()
	fa.polls++
	confirmed := fa.polls >= fa.pollsToConfirm
	if confirmed {
		fa.logins++
	}
	fa.mu.Unlock()

	if !confirmed {
		writeJSON(w, http.StatusOK, map[string]any{"verified": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"verified": true,
		"token":    fa.mintTokenHTTP(),
		"user_id":  accountUserID,
		"name":     accountName,
	})
}

func (fa *fakeAuthority) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.ID != accountAltID {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "unknown identity"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"full_name": accountName})
}

func (fa *fakeAuthority) handleAlternateLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       string `json:"id"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.ID != accountAltID || req.Password != accountPassword {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "wrong password"})
		return
	}

	fa.mu.Lock()
	fa.logins++
	fa.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"token":   fa.mintTokenHTTP(),
		"user_id": accountUserID,
		"name":    accountName,
	})
}

// mintTokenHTTP mints inside a handler, where no *testing.T is available.
func (fa *fakeAuthority) mintTokenHTTP() string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": accountUserID,
		"exp": time.Now().Add(fa.tokenTTL).Unix(),
	})
	s, _ := token.SignedString([]byte(tokenSigningKey))
	return s
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func messageUnless(ok bool, msg string) string {
	if ok {
		return ""
	}
	return msg
}

// newTestApp wires a full Application against the fake authority, with its
// state database in a per-test temp dir. dbDir is returned so a second
// Application can be opened over the same state.
func newTestApp(t *testing.T, fa *fakeAuthority, dbDir string) *app.Application {
	t.Helper()

	t.Setenv("STEPUP_AUTHORITY_URL", fa.URL)
	t.Setenv("STEPUP_DATABASE_FILE", filepath.Join(dbDir, "stepup.db"))
	t.Setenv("STEPUP_STATE_KEY", "e2e-state-key")
	t.Setenv("STEPUP_POLL_INTERVAL", "20ms")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "text")

	application, err := app.New(app.LoadConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })
	return application
}

// fixedPrompt returns a PromptFunc that always answers with value.
func fixedPrompt(value string) collect.PromptFunc {
	return func(context.Context) (string, error) { return value, nil }
}

// stubCamera yields a single static frame per capture.
type stubCamera struct{ frame []byte }

func (c *stubCamera) Open(context.Context) (collect.Stream, error) {
	return &stubStream{frame: c.frame}, nil
}

type stubStream struct{ frame []byte }

func (s *stubStream) Capture(context.Context) ([]byte, error) { return s.frame, nil }
func (s *stubStream) Close() error                            { return nil }
