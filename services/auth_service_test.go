package services_test

import (
	"club-chat/auth"
	"club-chat/domain/account"
	"club-chat/domain/chat"
	"club-chat/errors"
	"club-chat/mocks"
	"club-chat/repositories"
	"club-chat/services"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var tokens = auth.NewTokenManager("test-secret", 24*time.Hour)

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := services.NewAuthService(logs.GetLoggerFromLevel(slog.LevelDebug), mockRepo, tokens)

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		request := auth.RegisterRequest{
			Email:         " Test@Example.com ",
			Password:      "ComplexPass123!",
			Name:          "Test User",
			Role:          account.Student,
			EnrolledClubs: []chat.ClubID{"chess"},
		}

		// Expect CreateUser to receive a hash, never the plain password
		mockRepo.EXPECT().
			CreateUser(gomock.Any(), gomock.Any()).
			DoAndReturn(func(user account.User, hashedPassword string) (string, error) {
				req.Equal("test@example.com", user.Email)
				req.NotEqual(request.Password, hashedPassword)
				return "user-uuid", nil
			}).
			Times(1)

		session, err := svc.Register(request)

		req.NoError(err)
		req.NotEmpty(session.Token)
		req.Equal("user-uuid", session.User.UID)
		claims, err := tokens.Validate(session.Token.String())
		req.NoError(err)
		req.Equal("user-uuid", claims.Subject)
		req.Equal(account.Student, claims.Role)
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)
		request := auth.RegisterRequest{
			Email: "test@example.com", Password: "simplesimplesimple", Name: "Test", Role: account.Student,
		}

		// Repository should never be called
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Times(0)

		session, err := svc.Register(request)

		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(session.Token)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)
		request := auth.RegisterRequest{
			Email: "duplicate@example.com", Password: "ComplexPass123!", Name: "Dup", Role: account.Student,
		}

		mockRepo.EXPECT().
			CreateUser(gomock.Any(), gomock.Any()).
			Return("", errors.ErrUserAlreadyExists).
			Times(1)

		_, err := svc.Register(request)

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := services.NewAuthService(logs.GetLoggerFromLevel(slog.LevelDebug), mockRepo, tokens)

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		email := "user@example.com"
		password := "Secret123456!"

		hashedPassword, err := auth.HashPassword(password)
		req.NoError(err)
		storedUser := repositories.User{
			User:         account.User{UID: "uuid-123", Name: "User", Email: email, Role: account.ClubAdmin, ClubID: "chess"},
			PasswordHash: hashedPassword,
		}

		mockRepo.EXPECT().
			GetUserByEmail(email).
			Return(storedUser, nil).
			Times(1)

		session, err := svc.Login(auth.LoginRequest{Email: email, Password: password})

		req.NoError(err)
		claims, err := tokens.Validate(session.Token.String())
		req.NoError(err)
		req.Equal(storedUser.User, claims.User())
	})

	t.Run("should return invalid credentials when password matches nothing", func(t *testing.T) {
		req := require.New(t)
		email := "user@example.com"

		hashedPassword, err := auth.HashPassword("CorrectPassword123!")
		req.NoError(err)
		mockRepo.EXPECT().
			GetUserByEmail(email).
			Return(repositories.User{PasswordHash: hashedPassword}, nil).
			Times(1)

		_, err = svc.Login(auth.LoginRequest{Email: email, Password: "WrongPassword123!"})

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials when user is not found", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetUserByEmail("unknown@example.com").
			Return(repositories.User{}, errors.ErrUserNotFound).
			Times(1)

		_, err := svc.Login(auth.LoginRequest{Email: "unknown@example.com", Password: "anyPassword"})

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should hide storage failures behind invalid credentials", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetUserByEmail("user@example.com").
			Return(repositories.User{}, fmt.Errorf("disk failure")).
			Times(1)

		_, err := svc.Login(auth.LoginRequest{Email: "user@example.com", Password: "anyPassword"})

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should reject malformed requests without a lookup", func(t *testing.T) {
		_, err := svc.Login(auth.LoginRequest{Email: "not-an-email", Password: "x"})

		require.ErrorIs(t, err, errors.ErrInvalidCredentials)
	})
}
