package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/brightsteps/assistant/internal/domain"
	"github.com/brightsteps/assistant/internal/security"
)

func newAuthService(userRepo *MockUserRepository) *AuthService {
	jwtManager := security.NewJWTManager("test-secret", 15*time.Minute, 7*24*time.Hour)
	return NewAuthService(userRepo, jwtManager)
}

func TestAuthService_Register(t *testing.T) {
	userRepo := new(MockUserRepository)
	svc := newAuthService(userRepo)

	userRepo.On("EmailExists", mock.Anything, "new@example.com").Return(false, nil)
	userRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.Email == "new@example.com" && u.Role == domain.RoleDoctor && u.PasswordHash != "secret-password"
	})).Return(nil)

	user, err := svc.Register(context.Background(), domain.UserCreate{
		Email:       "new@example.com",
		Password:    "secret-password",
		Role:        domain.RoleDoctor,
		DisplayName: "Dr. Kim",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleDoctor, user.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret-password")))
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	userRepo := new(MockUserRepository)
	svc := newAuthService(userRepo)

	userRepo.On("EmailExists", mock.Anything, "taken@example.com").Return(true, nil)

	_, err := svc.Register(context.Background(), domain.UserCreate{
		Email:    "taken@example.com",
		Password: "secret-password",
		Role:     domain.RoleParent,
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
	userRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuthService_Register_UnknownRole(t *testing.T) {
	userRepo := new(MockUserRepository)
	svc := newAuthService(userRepo)

	_, err := svc.Register(context.Background(), domain.UserCreate{
		Email:    "x@example.com",
		Password: "secret-password",
		Role:     domain.Role("admin"),
	})
	assert.Error(t, err)
}

func TestAuthService_Login(t *testing.T) {
	userRepo := new(MockUserRepository)
	svc := newAuthService(userRepo)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret-password"), bcrypt.DefaultCost)
	require.NoError(t, err)

	userRepo.On("GetByEmail", mock.Anything, "parent@example.com").Return(&domain.User{
		ID:           uuid.New(),
		Email:        "parent@example.com",
		PasswordHash: string(hash),
		Role:         domain.RoleParent,
		DisplayName:  "Sam",
	}, nil)

	pair, err := svc.Login(context.Background(), domain.UserLogin{
		Email:    "parent@example.com",
		Password: "secret-password",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Greater(t, pair.ExpiresIn, int64(0))
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	userRepo := new(MockUserRepository)
	svc := newAuthService(userRepo)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret-password"), bcrypt.DefaultCost)
	require.NoError(t, err)

	userRepo.On("GetByEmail", mock.Anything, "parent@example.com").Return(&domain.User{
		ID:           uuid.New(),
		Email:        "parent@example.com",
		PasswordHash: string(hash),
	}, nil)

	_, err = svc.Login(context.Background(), domain.UserLogin{
		Email:    "parent@example.com",
		Password: "wrong",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	userRepo := new(MockUserRepository)
	svc := newAuthService(userRepo)

	userRepo.On("GetByEmail", mock.Anything, "nobody@example.com").Return(nil, domain.ErrNotFound)

	_, err := svc.Login(context.Background(), domain.UserLogin{
		Email:    "nobody@example.com",
		Password: "secret-password",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Refresh(t *testing.T) {
	userRepo := new(MockUserRepository)
	svc := newAuthService(userRepo)
	userID := uuid.New()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret-password"), bcrypt.DefaultCost)
	require.NoError(t, err)

	userRepo.On("GetByEmail", mock.Anything, "parent@example.com").Return(&domain.User{
		ID:           userID,
		Email:        "parent@example.com",
		PasswordHash: string(hash),
		Role:         domain.RoleParent,
	}, nil)
	userRepo.On("GetByID", mock.Anything, userID).Return(&domain.User{
		ID:    userID,
		Email: "parent@example.com",
		Role:  domain.RoleParent,
	}, nil)

	pair, err := svc.Login(context.Background(), domain.UserLogin{
		Email:    "parent@example.com",
		Password: "secret-password",
	})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
}

func TestAuthService_Refresh_InvalidToken(t *testing.T) {
	userRepo := new(MockUserRepository)
	svc := newAuthService(userRepo)

	_, err := svc.Refresh(context.Background(), "not-a-token")
	assert.Error(t, err)
}
