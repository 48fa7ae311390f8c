// Package app wires the step-up client together: config, logging, the sealed
// state store, the authority client, and the flow orchestrator.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/stepup/internal/stepup/collect"
	"github.com/aussiebroadwan/stepup/internal/stepup/domain"
	"github.com/aussiebroadwan/stepup/internal/stepup/flow"
	"github.com/aussiebroadwan/stepup/internal/stepup/store"
	"github.com/aussiebroadwan/stepup/internal/stepup/store/drivers/sqlite"
	"github.com/aussiebroadwan/stepup/pkg/authority"
	"github.com/aussiebroadwan/stepup/pkg/cryptox"
	"github.com/aussiebroadwan/stepup/pkg/slogx"
	"github.com/aussiebroadwan/stepup/pkg/totpx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the step-up client with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db        store.Store
	authority *authority.Client
	totp      *totpx.Engine
	orch      *flow.Orchestrator
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "stepup-client",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.authority = authority.NewClient(cfg.AuthorityURL)
	app.totp = totpx.New(totpx.Config{
		Issuer: cfg.TOTPIssuer,
		Period: cfg.TOTPPeriod,
		Digits: cfg.TOTPDigits,
		Skew:   cfg.TOTPSkew,
	})

	app.orch = flow.New(app.authority, app.db.Sessions(), app.logger)
	app.orch.PollInterval = cfg.PollInterval
	app.orch.PollMaxWait = cfg.PollMaxWait

	return app, nil
}

// initDatabase opens the state database and applies migrations. The session
// token is sealed at rest, so the sealer is constructed first.
func (app *Application) initDatabase() error {
	sealer, err := cryptox.NewSealerFromFile(app.cfg.StateKeyFile)
	if err != nil {
		return fmt.Errorf("failed to initialize state sealer: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn, sealer)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// Logger returns the application logger.
func (app *Application) Logger() *slog.Logger { return app.logger }

// Orchestrator returns the flow orchestrator used to begin action attempts.
func (app *Application) Orchestrator() *flow.Orchestrator { return app.orch }

// Authority returns the remote authority client.
func (app *Application) Authority() *authority.Client { return app.authority }

// NewEnrollment starts a TOTP enrollment attempt for the given user.
func (app *Application) NewEnrollment(userID, account string) *flow.Enrollment {
	return flow.NewEnrollment(app.totp, app.authority, app.logger, userID, account)
}

// Collectors builds the factor collectors for one action attempt. The camera
// may be nil when the action's policy has no biometric step.
func (app *Application) Collectors(action domain.Action, userID string, prompts Prompts, camera collect.Camera) map[domain.FactorKind]collect.Collector {
	collectors := map[domain.FactorKind]collect.Collector{
		domain.FactorPassword:          &collect.PasswordCollector{Prompt: prompts.Password},
		domain.FactorAuthenticatorCode: &collect.AuthenticatorCodeCollector{Prompt: prompts.AuthenticatorCode},
		domain.FactorAlternateIdentity: &collect.AlternateIdentityCollector{Prompt: prompts.AlternateIdentity},
		domain.FactorEmailCode:         collect.NewEmailCodeCollector(app.authority, action, userID, prompts.EmailCode),
	}
	if camera != nil {
		collectors[domain.FactorBiometricImage] = &collect.BiometricCollector{Camera: camera}
	}
	return collectors
}

// Prompts carries the text-input callbacks a front end supplies for one
// action attempt.
type Prompts struct {
	Password          collect.PromptFunc
	EmailCode         collect.PromptFunc
	AuthenticatorCode collect.PromptFunc
	AlternateIdentity collect.PromptFunc
}

// RestoreSession loads the persisted session, discarding it when its token
// has expired. Returns false when the user must log in again.
func (app *Application) RestoreSession(ctx context.Context) (domain.AuthSession, bool, error) {
	sess, err := app.db.Sessions().Load(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return domain.AuthSession{}, false, nil
	}
	if err != nil {
		return domain.AuthSession{}, false, fmt.Errorf("failed to load persisted session: %w", err)
	}

	if tokenExpired(sess.SessionToken) {
		app.logger.Info("persisted session expired, clearing", "user_id", sess.UserID)
		if err := app.db.Sessions().Clear(ctx); err != nil {
			app.logger.Warn("failed to clear expired session", "error", err)
		}
		return domain.AuthSession{}, false, nil
	}

	app.logger.Info("session restored", "user_id", sess.UserID)
	return sess, true, nil
}

// tokenExpired peeks at the token's exp claim without verifying the
// signature. Verification is the authority's job; locally the claim only
// decides whether presenting the token is worth trying at all. An unparsable
// token is treated as expired.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return exp.Before(time.Now())
}

// Logout clears the persisted session.
func (app *Application) Logout(ctx context.Context) error {
	if err := app.db.Sessions().Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	app.logger.Info("session cleared")
	return nil
}

// FundsLockState fetches whether the funds lock is currently engaged for the
// user's spot account.
func (app *Application) FundsLockState(ctx context.Context, userID string) (bool, error) {
	return app.authority.GetFundsLockState(ctx, userID)
}

// Close releases the application's resources.
func (app *Application) Close() error {
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}
	app.logger.Info("stepup client stopped")
	return nil
}
