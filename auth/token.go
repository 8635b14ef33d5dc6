package auth

import (
	"club-chat/domain/account"
	"club-chat/domain/chat"
	"club-chat/errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "club-chat"

// Claims carry the whole user so a session can start without a directory lookup.
// Enrolment is re-checked against the directory by the membership checker.
type Claims struct {
	Name          string           `json:"name"`
	Email         string           `json:"email,omitempty"`
	Role          account.Role     `json:"role"`
	ClubID        chat.ClubID      `json:"club_id,omitempty"`
	EnrolledClubs []chat.ClubID    `json:"enrolled_clubs,omitempty"`
	ClubRole      account.ClubRole `json:"club_role,omitempty"`
	jwt.RegisteredClaims
}

func (c Claims) User() account.User {
	return account.User{
		UID:           c.Subject,
		Name:          c.Name,
		Email:         c.Email,
		Role:          c.Role,
		ClubID:        c.ClubID,
		EnrolledClubs: c.EnrolledClubs,
		ClubRole:      c.ClubRole,
	}
}

type TokenManager struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

func NewTokenManager(secret string, duration time.Duration) TokenManager {
	return TokenManager{secret: []byte(secret), duration: duration, now: time.Now}
}

// Generate signs an HS256 token for the user.
func (m TokenManager) Generate(user account.User) (string, error) {
	now := m.now()
	claims := &Claims{
		Name:          user.Name,
		Email:         user.Email,
		Role:          user.Role,
		ClubID:        user.ClubID,
		EnrolledClubs: user.EnrolledClubs,
		ClubRole:      user.ClubRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrTokenGeneration, err)
	}
	return signed, nil
}

// Validate checks signature, algorithm, issuer and expiration.
func (m TokenManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}
