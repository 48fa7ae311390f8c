package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/stepup/internal/stepup/domain"
	"github.com/aussiebroadwan/stepup/internal/stepup/store"
	"github.com/aussiebroadwan/stepup/pkg/cryptox"
)

type sessionsRepo struct {
	db     *sql.DB
	sealer *cryptox.Sealer
}

// The table holds at most one row; the fixed id makes Save an upsert.
const sessionRowID = 1

func (r *sessionsRepo) Save(ctx context.Context, s domain.AuthSession) error {
	sealed, err := r.sealer.Seal([]byte(s.SessionToken))
	if err != nil {
		return fmt.Errorf("failed to seal session token: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO auth_session (id, token_sealed, user_id, display_name, two_factor_enabled, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			token_sealed = excluded.token_sealed,
			user_id = excluded.user_id,
			display_name = excluded.display_name,
			two_factor_enabled = excluded.two_factor_enabled,
			saved_at = excluded.saved_at;`,
		sessionRowID, sealed, s.UserID, s.DisplayName, s.TwoFactorEnabled, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *sessionsRepo) Load(ctx context.Context) (domain.AuthSession, error) {
	var (
		sealed           []byte
		userID           string
		displayName      string
		twoFactorEnabled bool
	)

	row := r.db.QueryRowContext(ctx, `
		SELECT token_sealed, user_id, display_name, two_factor_enabled
		FROM auth_session WHERE id = ?;`, sessionRowID)
	if err := row.Scan(&sealed, &userID, &displayName, &twoFactorEnabled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AuthSession{}, store.ErrNotFound
		}
		return domain.AuthSession{}, fmt.Errorf("failed to load session: %w", err)
	}

	token, err := r.sealer.Open(sealed)
	if err != nil {
		// Key changed or blob corrupted: treat as absent so the user just
		// logs in again rather than seeing a crash.
		return domain.AuthSession{}, store.ErrNotFound
	}

	return domain.AuthSession{
		SessionToken:     string(token),
		UserID:           userID,
		DisplayName:      displayName,
		TwoFactorEnabled: twoFactorEnabled,
	}, nil
}

func (r *sessionsRepo) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM auth_session WHERE id = ?;`, sessionRowID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
