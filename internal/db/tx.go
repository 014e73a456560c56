package db

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"lattice/internal/auth"
	"lattice/internal/types"
)

// AuthTxManager implements auth.TxManager on top of a pgx pool. The callback
// receives repositories bound to the transaction connection, so user and
// account creation commit or roll back together.
type AuthTxManager struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewAuthTxManager creates a new AuthTxManager.
func NewAuthTxManager(pool *pgxpool.Pool, logger *slog.Logger) *AuthTxManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthTxManager{pool: pool, logger: logger}
}

// RunInTx executes fn inside a database transaction. The transaction is
// rolled back on error or panic and committed otherwise.
func (m *AuthTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context, users auth.UserRepo, accounts auth.AccountCreator) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to begin transaction", err)
	}
	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback(ctx)
	}()

	txUsers := NewUserRepository(tx)
	txAccounts := NewAccountRepository(tx, m.logger)

	if err := fn(ctx, txUsers, txAccounts); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to commit transaction", err)
	}
	return nil
}
