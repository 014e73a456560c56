package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"lattice/internal/types"
)

// SessionRepository provides data access for server-side login sessions.
type SessionRepository struct {
	db DBTX
}

// NewSessionRepository creates a new SessionRepository backed by the given
// database connection (pool or transaction).
func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `s.id, s.user_id, s.ip_address, s.user_agent, s.expires_at, s.created_at`

func scanSession(row pgx.Row) (*types.Session, error) {
	var s types.Session
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.IPAddress,
		&s.UserAgent,
		&s.ExpiresAt,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a new session row.
func (r *SessionRepository) Create(ctx context.Context, session *types.Session) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (id, user_id, ip_address, user_agent, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		session.ID,
		session.UserID,
		session.IPAddress,
		session.UserAgent,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create session", err)
	}
	return nil
}

// GetByID retrieves a session by its opaque identifier.
// Returns ErrCodeAuthSessionInvalid when no such session exists; the caller
// cannot distinguish a forged ID from a deleted one, and should not.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*types.Session, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions s WHERE s.id = $1`,
		id,
	)

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeAuthSessionInvalid, "session not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load session", err)
	}
	return session, nil
}

// Delete removes a session. Deleting an already-absent session is not an
// error; logout must be idempotent.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete session", err)
	}
	return nil
}

// DeleteExpired removes all sessions past their expiry. Intended for a
// periodic sweep; validation already rejects expired sessions on read.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at < NOW()`)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to sweep expired sessions", err)
	}
	return tag.RowsAffected(), nil
}
