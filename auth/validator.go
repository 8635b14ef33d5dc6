package auth

import (
	"club-chat/domain/account"
	"club-chat/domain/chat"
	"club-chat/errors"
	"fmt"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type RegisterRequest struct {
	Email         string           `json:"email" validate:"required,email"`
	Password      string           `json:"password" validate:"required,min=12,max=72"`
	Name          string           `json:"name" validate:"required,max=100"`
	Role          account.Role     `json:"role" validate:"required,oneof=super_admin college_admin club_admin student"`
	ClubID        chat.ClubID      `json:"clubId,omitempty" validate:"required_if=Role club_admin"`
	EnrolledClubs []chat.ClubID    `json:"enrolledClubs,omitempty" validate:"dive,required"`
	ClubRole      account.ClubRole `json:"clubRole,omitempty" validate:"omitempty,oneof=member lead vice_president president"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	if !isPasswordComplex(req.Password) {
		return errors.ErrInvalidPassword
	}
	return nil
}

func ValidateLogin(req LoginRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return nil
}

func isPasswordComplex(s string) bool {
	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range s {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}
	return hasUpper && hasLower && hasNumber && hasSpecial
}
