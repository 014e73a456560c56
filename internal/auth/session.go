// Package auth implements registration, login, and session management for
// the Lattice console API.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"lattice/internal/types"
)

// SessionConfig holds configuration for session management.
type SessionConfig struct {
	// SessionDuration is the lifetime of a new session. Default: 7 days.
	SessionDuration time.Duration

	// SessionIDPrefix is the prefix for session IDs ("sess_").
	SessionIDPrefix string
}

// DefaultSessionConfig returns the default session configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SessionDuration: 7 * 24 * time.Hour,
		SessionIDPrefix: "sess_",
	}
}

// SessionRepo defines the data access methods needed by the SessionService.
type SessionRepo interface {
	Create(ctx context.Context, session *types.Session) error
	GetByID(ctx context.Context, sessionID string) (*types.Session, error)
	Delete(ctx context.Context, sessionID string) error
}

// UserLookup is the minimal user read surface session validation needs to
// attach the actor's email to the request context.
type UserLookup interface {
	GetByID(ctx context.Context, userID string) (*types.User, error)
}

// TokenGenerator abstracts entropy sources for testability.
type TokenGenerator interface {
	GenerateSessionID() (string, error)
}

// randomTokenGenerator is the production TokenGenerator backed by
// crypto/rand.
type randomTokenGenerator struct {
	prefix string
}

// NewTokenGenerator returns a TokenGenerator producing prefixed 128-bit
// hex identifiers.
func NewTokenGenerator(prefix string) TokenGenerator {
	return &randomTokenGenerator{prefix: prefix}
}

func (g *randomTokenGenerator) GenerateSessionID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading session entropy: %w", err)
	}
	return g.prefix + hex.EncodeToString(buf), nil
}

// SessionService creates and validates server-side login sessions. The
// session ID is the only credential the browser holds; everything else
// lives in the sessions table.
type SessionService struct {
	repo     SessionRepo
	users    UserLookup
	tokenGen TokenGenerator
	config   SessionConfig
	clock    types.Clock
	logger   *slog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	repo SessionRepo,
	users UserLookup,
	tokenGen TokenGenerator,
	config SessionConfig,
	clock types.Clock,
	logger *slog.Logger,
) *SessionService {
	if tokenGen == nil {
		tokenGen = NewTokenGenerator(config.SessionIDPrefix)
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		repo:     repo,
		users:    users,
		tokenGen: tokenGen,
		config:   config,
		clock:    clock,
		logger:   logger,
	}
}

// CreateSession creates a new session for the given user and returns it.
// The session ID doubles as the cookie value.
func (s *SessionService) CreateSession(ctx context.Context, userID, ip, userAgent string) (*types.Session, error) {
	sessionID, err := s.tokenGen.GenerateSessionID()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate session ID", err)
	}

	now := s.clock.Now()
	session := &types.Session{
		ID:        sessionID,
		UserID:    userID,
		IPAddress: ip,
		UserAgent: userAgent,
		ExpiresAt: now.Add(s.config.SessionDuration),
		CreatedAt: now,
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("session created",
		"session_id", sessionID,
		"user_id", userID,
	)

	return session, nil
}

// ValidateSession resolves a session ID to an Actor. Implements the
// core.SessionValidator contract used by the auth middleware.
// Expired sessions are rejected and deleted best effort; the sweep catches
// anything missed here.
func (s *SessionService) ValidateSession(ctx context.Context, sessionID string) (types.Actor, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return types.Actor{}, err
	}

	if s.clock.Now().After(session.ExpiresAt) {
		if delErr := s.repo.Delete(ctx, session.ID); delErr != nil {
			s.logger.Warn("failed to delete expired session",
				"session_id", session.ID,
				"error", delErr,
			)
		}
		return types.Actor{}, types.NewAppError(types.ErrCodeAuthSessionExpired, "session has expired", nil)
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return types.Actor{}, err
	}

	return types.Actor{
		UserID:    user.ID,
		Email:     user.Email,
		SessionID: session.ID,
	}, nil
}

// InvalidateSession performs a hard delete of a single session so logout
// takes effect immediately.
func (s *SessionService) InvalidateSession(ctx context.Context, sessionID string) error {
	if err := s.repo.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.logger.Info("session invalidated", "session_id", sessionID)
	return nil
}
