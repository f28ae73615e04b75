// package models defines the data model for the reelx client
package models

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/desertthunder/reelx/internal/shared"
)

// Role is the account role reported by the backend.
type Role string

const (
	RoleUser    Role = "user"
	RoleCreator Role = "creator"
	RoleAdmin   Role = "admin"
)

// User is the identity record held by the session.
type User struct {
	ID         string `json:"id" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Name       string `json:"name,omitempty"`
	Role       Role   `json:"role" validate:"omitempty,oneof=user creator admin"`
	IsVerified bool   `json:"isVerified"`
}

// LoginResult is the complete record returned by login and registration confirmation.
type LoginResult struct {
	User         *User  `json:"user" validate:"required"`
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn" validate:"gte=0"`
}

// TokenPair is the refresh endpoint response. RefreshToken is only set when the server rotates it.
type TokenPair struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int    `json:"expiresIn" validate:"gte=0"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks v against its struct tags and wraps failures in [shared.ErrInvalidInput].
func Validate(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s failed on %q", shared.ErrInvalidInput, fe.Namespace(), fe.Tag())
	}
	return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
}
