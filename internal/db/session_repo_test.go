package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lattice/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Row ---

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

// --- SessionRepository Tests ---

func TestSessionRepository_Create_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	session := &types.Session{
		ID:        "sess_test123",
		UserID:    "user_1",
		IPAddress: "192.168.1.1",
		UserAgent: "TestBrowser/1.0",
		ExpiresAt: now.Add(7 * 24 * time.Hour),
		CreatedAt: now,
	}

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Create(ctx, session)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestSessionRepository_Create_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.Create(ctx, &types.Session{ID: "sess_test123"})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestSessionRepository_GetByID_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*string) = "sess_found"
			*dest[1].(*string) = "user_1"
			*dest[2].(*string) = "192.168.1.1"
			*dest[3].(*string) = "TestBrowser/1.0"
			*dest[4].(*time.Time) = now.Add(time.Hour)
			*dest[5].(*time.Time) = now
			return nil
		},
	}

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	session, err := repo.GetByID(ctx, "sess_found")
	require.NoError(t, err)
	assert.Equal(t, "sess_found", session.ID)
	assert.Equal(t, "user_1", session.UserID)
	assert.True(t, session.ExpiresAt.Equal(now.Add(time.Hour)))
}

func TestSessionRepository_GetByID_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	row := &mockRow{scanErr: pgx.ErrNoRows}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, err := repo.GetByID(ctx, "sess_forged")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeAuthSessionInvalid, appErr.Code)
}

func TestSessionRepository_Delete_AbsentRowIsNotAnError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 0"), nil)

	err := repo.Delete(ctx, "sess_gone")
	require.NoError(t, err)
}

func TestSessionRepository_DeleteExpired(t *testing.T) {
	db := new(mockDBTX)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 42"), nil)

	n, err := repo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}
