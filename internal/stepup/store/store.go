// Package store defines the persisted client state boundary. The only state
// this client keeps across restarts is the authenticated session (token,
// user id, display name), written on successful login and read at process
// start to short-circuit re-authentication.
package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/stepup/internal/stepup/domain"
)

var ErrNotFound = errors.New("store: not found")

// Store is the root data access interface. Concrete drivers (sqlite)
// implement this.
type Store interface {
	Sessions() Sessions

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

type Sessions interface {
	// Save upserts the persisted session. Only ever called on a terminal
	// successful login.
	Save(ctx context.Context, s domain.AuthSession) error

	// Load returns the persisted session, or ErrNotFound when the user has
	// never logged in (or the state was cleared).
	Load(ctx context.Context) (domain.AuthSession, error)

	// Clear removes the persisted session (logout / expired token).
	Clear(ctx context.Context) error
}
