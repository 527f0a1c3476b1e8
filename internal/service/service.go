// Package service provides business logic for the application.
package service

import (
	"errors"
	"math"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Service errors.
var (
	ErrEmailRequired      = errors.New("users must have an email address")
	ErrPasswordRequired   = errors.New("users must have a password")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("unable to authenticate with provided credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInactiveUser       = errors.New("user account is disabled")
	ErrTokenNotFound      = errors.New("token not found")

	ErrNameRequired      = errors.New("name may not be blank")
	ErrNameTooLong       = errors.New("name is too long")
	ErrNameInvalid       = errors.New("name contains invalid characters")
	ErrAttributeNotFound = errors.New("not found")

	ErrInvalidRecipe    = errors.New("invalid recipe")
	ErrUnknownAttribute = errors.New("unknown tag or ingredient")
	ErrRecipeNotFound   = errors.New("recipe not found")
	ErrInvalidImage     = errors.New("invalid image")
)

const (
	maxNameLength  = 255
	maxTimeMinutes = math.MaxInt32
)

// hasNUL reports whether s holds a NUL byte, which text columns reject.
func hasNUL(s string) bool {
	return strings.IndexByte(s, 0) >= 0
}

// generateID returns a new lexically sortable identifier.
func generateID() string {
	return ulid.Make().String()
}
