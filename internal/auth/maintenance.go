package auth

import (
	"context"
	"log/slog"
	"time"
)

// SweeperRepo defines the delete operation the session sweeper needs.
//
// SQL: DELETE FROM sessions WHERE expires_at < NOW()
type SweeperRepo interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionSweeper periodically hard-deletes expired session rows. Validation
// already rejects and deletes expired sessions on read, but sessions whose
// cookie is never presented again would otherwise accumulate forever.
type SessionSweeper struct {
	repo     SweeperRepo
	interval time.Duration
	logger   *slog.Logger
}

// DefaultSweepInterval is how often the sweeper runs when no interval is
// configured.
const DefaultSweepInterval = time.Hour

// NewSessionSweeper creates a SessionSweeper. A non-positive interval falls
// back to DefaultSweepInterval; a nil logger falls back to slog.Default.
func NewSessionSweeper(repo SweeperRepo, interval time.Duration, logger *slog.Logger) *SessionSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionSweeper{
		repo:     repo,
		interval: interval,
		logger:   logger,
	}
}

// Sweep performs one pass, returning the number of sessions deleted.
func (s *SessionSweeper) Sweep(ctx context.Context) (int64, error) {
	deleted, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		s.logger.InfoContext(ctx, "swept expired sessions",
			"deleted", deleted,
		)
	}

	return deleted, nil
}

// Run sweeps once immediately, then on every interval tick until ctx is
// canceled. A failed pass is logged and retried on the next tick; the loop
// itself only stops with the context.
func (s *SessionSweeper) Run(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.ErrorContext(ctx, "session sweep failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.ErrorContext(ctx, "session sweep failed", "error", err)
			}
		}
	}
}
