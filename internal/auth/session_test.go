package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lattice/internal/types"
)

// --- Mock SessionRepo ---

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) Create(ctx context.Context, session *types.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockSessionRepo) GetByID(ctx context.Context, sessionID string) (*types.Session, error) {
	args := m.Called(ctx, sessionID)
	if s := args.Get(0); s != nil {
		return s.(*types.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionRepo) Delete(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

// --- Mock UserLookup ---

type mockUserLookup struct {
	mock.Mock
}

func (m *mockUserLookup) GetByID(ctx context.Context, userID string) (*types.User, error) {
	args := m.Called(ctx, userID)
	if u := args.Get(0); u != nil {
		return u.(*types.User), args.Error(1)
	}
	return nil, args.Error(1)
}

// --- Mock TokenGenerator ---

type mockTokenGenerator struct {
	mock.Mock
}

func (m *mockTokenGenerator) GenerateSessionID() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

// --- Mock Clock ---

type mockClock struct {
	now time.Time
}

func (c *mockClock) Now() time.Time { return c.now }

// --- SessionService Tests ---

func newTestSessionService(repo *mockSessionRepo, users *mockUserLookup, tokenGen *mockTokenGenerator, clock *mockClock) *SessionService {
	return NewSessionService(repo, users, tokenGen, DefaultSessionConfig(), clock, nil)
}

func TestSessionService_CreateSession_Success(t *testing.T) {
	repo := new(mockSessionRepo)
	users := new(mockUserLookup)
	tokenGen := new(mockTokenGenerator)
	clock := &mockClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestSessionService(repo, users, tokenGen, clock)

	tokenGen.On("GenerateSessionID").Return("sess_abc123", nil)

	repo.On("Create", mock.Anything, mock.MatchedBy(func(s *types.Session) bool {
		return s.ID == "sess_abc123" &&
			s.UserID == "user_1" &&
			s.IPAddress == "192.168.1.1" &&
			s.UserAgent == "TestBrowser/1.0" &&
			s.ExpiresAt.Equal(clock.now.Add(7*24*time.Hour)) &&
			s.CreatedAt.Equal(clock.now)
	})).Return(nil)

	session, err := svc.CreateSession(context.Background(), "user_1", "192.168.1.1", "TestBrowser/1.0")
	require.NoError(t, err)
	assert.Equal(t, "sess_abc123", session.ID)
	assert.Equal(t, "user_1", session.UserID)

	repo.AssertExpectations(t)
	tokenGen.AssertExpectations(t)
}

func TestSessionService_CreateSession_TokenGenerationError(t *testing.T) {
	repo := new(mockSessionRepo)
	users := new(mockUserLookup)
	tokenGen := new(mockTokenGenerator)
	clock := &mockClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestSessionService(repo, users, tokenGen, clock)

	tokenGen.On("GenerateSessionID").Return("", errors.New("entropy exhausted"))

	_, err := svc.CreateSession(context.Background(), "user_1", "", "")
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalUnexpected, appErr.Code)
}

func TestSessionService_ValidateSession_Success(t *testing.T) {
	repo := new(mockSessionRepo)
	users := new(mockUserLookup)
	tokenGen := new(mockTokenGenerator)
	clock := &mockClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestSessionService(repo, users, tokenGen, clock)

	repo.On("GetByID", mock.Anything, "sess_abc123").Return(&types.Session{
		ID:        "sess_abc123",
		UserID:    "user_1",
		ExpiresAt: clock.now.Add(time.Hour),
	}, nil)
	users.On("GetByID", mock.Anything, "user_1").Return(&types.User{
		ID:    "user_1",
		Email: "u1@example.com",
	}, nil)

	actor, err := svc.ValidateSession(context.Background(), "sess_abc123")
	require.NoError(t, err)
	assert.Equal(t, "user_1", actor.UserID)
	assert.Equal(t, "u1@example.com", actor.Email)
	assert.Equal(t, "sess_abc123", actor.SessionID)

	repo.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestSessionService_ValidateSession_Expired(t *testing.T) {
	repo := new(mockSessionRepo)
	users := new(mockUserLookup)
	tokenGen := new(mockTokenGenerator)
	clock := &mockClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestSessionService(repo, users, tokenGen, clock)

	repo.On("GetByID", mock.Anything, "sess_old").Return(&types.Session{
		ID:        "sess_old",
		UserID:    "user_1",
		ExpiresAt: clock.now.Add(-time.Minute),
	}, nil)
	repo.On("Delete", mock.Anything, "sess_old").Return(nil)

	_, err := svc.ValidateSession(context.Background(), "sess_old")
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeAuthSessionExpired, appErr.Code)

	// The expired row is removed so it cannot be replayed.
	repo.AssertExpectations(t)
}

func TestSessionService_ValidateSession_ExpiredDeleteFailureStillRejects(t *testing.T) {
	repo := new(mockSessionRepo)
	users := new(mockUserLookup)
	tokenGen := new(mockTokenGenerator)
	clock := &mockClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestSessionService(repo, users, tokenGen, clock)

	repo.On("GetByID", mock.Anything, "sess_old").Return(&types.Session{
		ID:        "sess_old",
		UserID:    "user_1",
		ExpiresAt: clock.now.Add(-time.Minute),
	}, nil)
	repo.On("Delete", mock.Anything, "sess_old").Return(errors.New("db down"))

	_, err := svc.ValidateSession(context.Background(), "sess_old")
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeAuthSessionExpired, appErr.Code)
}

func TestSessionService_ValidateSession_NotFound(t *testing.T) {
	repo := new(mockSessionRepo)
	users := new(mockUserLookup)
	tokenGen := new(mockTokenGenerator)
	clock := &mockClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestSessionService(repo, users, tokenGen, clock)

	repo.On("GetByID", mock.Anything, "sess_missing").Return(nil,
		types.NewAppError(types.ErrCodeAuthSessionInvalid, "session not found", nil))

	_, err := svc.ValidateSession(context.Background(), "sess_missing")
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeAuthSessionInvalid, appErr.Code)
}

func TestSessionService_InvalidateSession(t *testing.T) {
	repo := new(mockSessionRepo)
	users := new(mockUserLookup)
	tokenGen := new(mockTokenGenerator)
	clock := &mockClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestSessionService(repo, users, tokenGen, clock)

	repo.On("Delete", mock.Anything, "sess_abc123").Return(nil)

	err := svc.InvalidateSession(context.Background(), "sess_abc123")
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestRandomTokenGenerator_PrefixAndLength(t *testing.T) {
	gen := NewTokenGenerator("sess_")

	id, err := gen.GenerateSessionID()
	require.NoError(t, err)
	assert.Regexp(t, "^sess_[0-9a-f]{32}$", id)

	other, err := gen.GenerateSessionID()
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}
