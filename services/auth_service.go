//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"club-chat/auth"
	"club-chat/domain/account"
	"club-chat/errors"
	"club-chat/repositories"
	errs "errors"
	"fmt"
	"log/slog"
	"strings"
)

type IAuthService interface {
	Login(request auth.LoginRequest) (Session, error)
	Register(request auth.RegisterRequest) (Session, error)
}

type AuthService struct {
	log            *slog.Logger
	userRepository repositories.IUserRepository
	tokens         auth.TokenManager
}

type Token string

func (t Token) String() string {
	return string(t)
}

// Session is what a client receives after login or registration.
type Session struct {
	Token Token        `json:"token"`
	User  account.User `json:"user"`
}

func NewAuthService(log *slog.Logger, repo repositories.IUserRepository, tokens auth.TokenManager) IAuthService {
	return &AuthService{log: log, userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(request auth.RegisterRequest) (Session, error) {
	request.Email = strings.ToLower(strings.TrimSpace(request.Email))
	// Business rules first, hashing is expensive
	if err := auth.ValidateRegister(request); err != nil {
		return Session{}, err
	}

	hashedPassword, err := auth.HashPassword(request.Password)
	if err != nil {
		return Session{}, fmt.Errorf("hashing failed: %w", err)
	}

	user := account.User{
		Name:          strings.TrimSpace(request.Name),
		Email:         request.Email,
		Role:          request.Role,
		ClubID:        request.ClubID,
		EnrolledClubs: request.EnrolledClubs,
		ClubRole:      request.ClubRole,
	}
	userID, err := s.userRepository.CreateUser(user, hashedPassword)
	if err != nil {
		return Session{}, err
	}
	user.UID = userID
	s.log.Info("User registered", "user_id", userID, "role", user.Role)
	return s.session(user)
}

func (s *AuthService) Login(request auth.LoginRequest) (Session, error) {
	request.Email = strings.ToLower(strings.TrimSpace(request.Email))
	if err := auth.ValidateLogin(request); err != nil {
		return Session{}, errors.ErrInvalidCredentials
	}

	stored, err := s.userRepository.GetUserByEmail(request.Email)
	if err != nil {
		if !errs.Is(err, errors.ErrUserNotFound) {
			s.log.Warn("User lookup failed", "error", err)
		}
		// Same answer for unknown users and bad passwords
		return Session{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(request.Password, stored.PasswordHash)
	if err != nil || !match {
		return Session{}, errors.ErrInvalidCredentials
	}
	return s.session(stored.User)
}

func (s *AuthService) session(user account.User) (Session, error) {
	token, err := s.tokens.Generate(user)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: Token(token), User: user}, nil
}
