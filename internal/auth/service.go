package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"lattice/internal/types"
)

// bcryptCost is the bcrypt cost factor used for password hashing.
const bcryptCost = 12

// UserRepo defines the data access methods needed by the AuthService for
// user operations.
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (*types.User, error)
	Create(ctx context.Context, user *types.User) error
	RecordLogin(ctx context.Context, id string, at time.Time) error
}

// PasswordHasher abstracts bcrypt operations for testability.
type PasswordHasher interface {
	CompareHashAndPassword(hashedPassword, password string) error
	GenerateFromPassword(password string) (string, error)
}

// bcryptHasher is the production implementation of PasswordHasher.
type bcryptHasher struct{}

func (b *bcryptHasher) CompareHashAndPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func (b *bcryptHasher) GenerateFromPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// TxManager abstracts transactional execution for the AuthService. The
// callback receives transaction-scoped repositories so the user row and its
// account row are created atomically.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, users UserRepo, accounts AccountCreator) error) error
}

// AccountCreator is the single account write registration needs: every new
// user starts with a free-plan account row.
type AccountCreator interface {
	Create(ctx context.Context, userID string) error
}

// AuthService implements registration, login, and logout.
type AuthService struct {
	users     UserRepo
	sessions  *SessionService
	txManager TxManager
	hasher    PasswordHasher
	clock     types.Clock
	logger    *slog.Logger
}

// AuthServiceConfig holds the dependencies for creating an AuthService.
type AuthServiceConfig struct {
	Users     UserRepo
	Sessions  *SessionService
	TxManager TxManager
	Hasher    PasswordHasher
	Clock     types.Clock
	Logger    *slog.Logger
}

// NewAuthService creates a new AuthService. Nil Hasher, Clock, and Logger
// fall back to production defaults.
func NewAuthService(cfg AuthServiceConfig) *AuthService {
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = &bcryptHasher{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:     cfg.Users,
		sessions:  cfg.Sessions,
		txManager: cfg.TxManager,
		hasher:    hasher,
		clock:     clock,
		logger:    logger,
	}
}

// Register creates a user and its free-plan account in one transaction, then
// logs the user in. The account row exists before any billing event can
// arrive for the user, so the reconciler always upserts against a known row.
func (s *AuthService) Register(ctx context.Context, email, password, ip, userAgent string) (*types.User, *types.Session, error) {
	hash, err := s.hasher.GenerateFromPassword(password)
	if err != nil {
		return nil, nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to hash password", err)
	}

	now := s.clock.Now()
	user := &types.User{
		ID:           uuid.NewString(),
		Email:        types.CanonicalizeEmail(email),
		PasswordHash: hash,
		CreatedAt:    now,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context, txUsers UserRepo, txAccounts AccountCreator) error {
		if createErr := txUsers.Create(txCtx, user); createErr != nil {
			return createErr
		}
		return txAccounts.Create(txCtx, user.ID)
	})
	if err != nil {
		return nil, nil, err
	}

	session, err := s.sessions.CreateSession(ctx, user.ID, ip, userAgent)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("user registered",
		"user_id", user.ID,
	)

	return user, session, nil
}

// Login verifies credentials and creates a session.
//
// Enumeration protection: user-not-found and wrong-password both surface the
// same invalid-credentials error.
func (s *AuthService) Login(ctx context.Context, email, password, ip, userAgent string) (*types.User, *types.Session, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundUser {
			return nil, nil, types.NewAppError(types.ErrCodeAuthInvalidCreds, "invalid email or password", nil)
		}
		return nil, nil, err
	}

	if err := s.hasher.CompareHashAndPassword(user.PasswordHash, password); err != nil {
		return nil, nil, types.NewAppError(types.ErrCodeAuthInvalidCreds, "invalid email or password", nil)
	}

	now := s.clock.Now()
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		// Login bookkeeping must not block the user; record and continue.
		s.logger.Warn("failed to record login time",
			"user_id", user.ID,
			"error", err,
		)
	}

	session, err := s.sessions.CreateSession(ctx, user.ID, ip, userAgent)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("user logged in",
		"user_id", user.ID,
	)

	return user, session, nil
}

// Logout deletes the session. Idempotent.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.InvalidateSession(ctx, sessionID)
}
