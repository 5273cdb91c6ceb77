package auth

import (
	"errors"
	"regexp"
)

// usernamePattern: alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// Role is an operator's authorisation tier.
type Role string

const (
	// RoleViewer can list sessions and identities.
	RoleViewer Role = "viewer"

	// RoleAdmin can also drop sessions and provision identities.
	RoleAdmin Role = "admin"
)

// IsValidRole reports whether r is a known role.
func IsValidRole(r Role) bool {
	return r == RoleViewer || r == RoleAdmin
}

// Operator is a configured admin API account.
type Operator struct {
	Username     string
	PasswordHash string
	Role         Role
}

// Domain errors for the auth package.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrForbidden          = errors.New("insufficient permissions")
)
