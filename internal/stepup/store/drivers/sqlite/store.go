package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/stepup/internal/stepup/store"
	"github.com/aussiebroadwan/stepup/pkg/cryptox"

	_ "modernc.org/sqlite"
)

type Store struct {
	db     *sql.DB
	sealer *cryptox.Sealer
	dsn    string
}

// NewStore opens (or creates) the client state database at dsn. The sealer
// encrypts the session token at rest.
func NewStore(dsn string, sealer *cryptox.Sealer) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:     db,
		sealer: sealer,
		dsn:    dsn,
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Sessions() store.Sessions {
	return &sessionsRepo{db: s.db, sealer: s.sealer}
}
