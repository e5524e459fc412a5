package auth

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/beacon-tracker/internal/cache/memory"
	"github.com/prn-tf/beacon-tracker/internal/domain"
)

type mockAdminRepository struct {
	mock.Mock
}

func (m *mockAdminRepository) Create(ctx context.Context, admin *domain.Admin) error {
	args := m.Called(ctx, admin)
	return args.Error(0)
}

func (m *mockAdminRepository) GetByID(ctx context.Context, id int64) (*domain.Admin, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Admin), args.Error(1)
}

func (m *mockAdminRepository) GetByUsername(ctx context.Context, username string) (*domain.Admin, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Admin), args.Error(1)
}

func (m *mockAdminRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func newTestAuthService(t *testing.T) (*Service, *mockAdminRepository) {
	t.Helper()

	repo := new(mockAdminRepository)
	cache := memory.NewCache()
	t.Cleanup(cache.Stop)

	// MinCost keeps the bcrypt work cheap in tests.
	svc := NewService(repo, cache, time.Hour, 4, zerolog.Nop())
	return svc, repo
}

func TestService_CreateAdmin(t *testing.T) {
	svc, repo := newTestAuthService(t)

	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Admin")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Admin).ID = 1
		}).Return(nil)

	admin, err := svc.CreateAdmin(context.Background(), "ops", "hunter2hunter2")
	require.NoError(t, err)

	assert.Equal(t, int64(1), admin.ID)
	assert.Equal(t, "ops", admin.Username)
	assert.NotEmpty(t, admin.PasswordHash)
	assert.NotContains(t, admin.PasswordHash, "hunter2")
}

func TestService_CreateAdmin_MissingFields(t *testing.T) {
	svc, repo := newTestAuthService(t)

	_, err := svc.CreateAdmin(context.Background(), "", "password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.CreateAdmin(context.Background(), "ops", "")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_LoginAndAuthenticate(t *testing.T) {
	svc, repo := newTestAuthService(t)
	ctx := context.Background()

	var stored *domain.Admin
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Admin")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*domain.Admin)
			stored.ID = 1
		}).Return(nil)

	_, err := svc.CreateAdmin(ctx, "ops", "correct-password")
	require.NoError(t, err)

	repo.On("GetByUsername", mock.Anything, "ops").Return(stored, nil)
	repo.On("GetByID", mock.Anything, int64(1)).Return(stored, nil)

	token, admin, err := svc.Login(ctx, "ops", "correct-password")
	require.NoError(t, err)
	assert.Len(t, token, 64) // 32 random bytes, hex encoded
	assert.Equal(t, "ops", admin.Username)

	// The token round-trips back to the same admin.
	got, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
}

func TestService_Login_WrongPassword(t *testing.T) {
	svc, repo := newTestAuthService(t)
	ctx := context.Background()

	var stored *domain.Admin
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Admin")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*domain.Admin)
		}).Return(nil)

	_, err := svc.CreateAdmin(ctx, "ops", "correct-password")
	require.NoError(t, err)

	repo.On("GetByUsername", mock.Anything, "ops").Return(stored, nil)

	_, _, err = svc.Login(ctx, "ops", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestService_Login_UnknownUser(t *testing.T) {
	svc, repo := newTestAuthService(t)

	repo.On("GetByUsername", mock.Anything, "ghost").Return(nil, domain.ErrAdminNotFound)

	// Unknown usernames map to the same error as wrong passwords.
	_, _, err := svc.Login(context.Background(), "ghost", "whatever")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestService_Authenticate_BadToken(t *testing.T) {
	svc, _ := newTestAuthService(t)

	_, err := svc.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrSessionExpired)

	_, err = svc.Authenticate(context.Background(), "never-issued")
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestService_Authenticate_AdminDeleted(t *testing.T) {
	svc, repo := newTestAuthService(t)
	ctx := context.Background()

	var stored *domain.Admin
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Admin")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*domain.Admin)
			stored.ID = 1
		}).Return(nil)

	_, err := svc.CreateAdmin(ctx, "ops", "correct-password")
	require.NoError(t, err)

	repo.On("GetByUsername", mock.Anything, "ops").Return(stored, nil)

	token, _, err := svc.Login(ctx, "ops", "correct-password")
	require.NoError(t, err)

	// The account disappears after login; the session dies with it.
	repo.On("GetByID", mock.Anything, int64(1)).Return(nil, domain.ErrAdminNotFound)

	_, err = svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestService_Logout(t *testing.T) {
	svc, repo := newTestAuthService(t)
	ctx := context.Background()

	var stored *domain.Admin
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Admin")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*domain.Admin)
			stored.ID = 1
		}).Return(nil)

	_, err := svc.CreateAdmin(ctx, "ops", "correct-password")
	require.NoError(t, err)

	repo.On("GetByUsername", mock.Anything, "ops").Return(stored, nil)
	repo.On("GetByID", mock.Anything, int64(1)).Return(stored, nil)

	token, _, err := svc.Login(ctx, "ops", "correct-password")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, token))

	_, err = svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)

	// Logging out an empty token is a no-op.
	assert.NoError(t, svc.Logout(ctx, ""))
}
