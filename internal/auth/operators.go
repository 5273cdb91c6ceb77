package auth

import (
	"fmt"
	"sync"
)

// Authenticator checks operator credentials.
type Authenticator struct {
	operators map[string]Operator

	dummyOnce sync.Once
	dummy     string
}

// NewAuthenticator validates ops and indexes them by username.
func NewAuthenticator(ops []Operator) (*Authenticator, error) {
	a := &Authenticator{operators: make(map[string]Operator, len(ops))}
	for _, op := range ops {
		if !IsValidUsername(op.Username) {
			return nil, fmt.Errorf("operator %q: invalid username", op.Username)
		}
		if !IsValidRole(op.Role) {
			return nil, fmt.Errorf("operator %q: unknown role %q", op.Username, op.Role)
		}
		if _, _, _, err := decodePHC(op.PasswordHash); err != nil {
			return nil, fmt.Errorf("operator %q: %w", op.Username, err)
		}
		if _, dup := a.operators[op.Username]; dup {
			return nil, fmt.Errorf("operator %q: duplicated", op.Username)
		}
		a.operators[op.Username] = op
	}
	return a, nil
}

// Len returns the number of configured operators.
func (a *Authenticator) Len() int { return len(a.operators) }

// Authenticate returns the operator's role or ErrInvalidCredentials.
// Unknown usernames still cost one hash so response time does not reveal them.
func (a *Authenticator) Authenticate(username, password string) (Role, error) {
	op, ok := a.operators[username]
	if !ok {
		a.dummyOnce.Do(func() {
			a.dummy, _ = HashPassword("unused") //nolint:errcheck // a failed dummy hash only skips the delay
		})
		VerifyPassword(password, a.dummy) //nolint:errcheck // result ignored, timing only
		return "", ErrInvalidCredentials
	}

	match, err := VerifyPassword(password, op.PasswordHash)
	if err != nil || !match {
		return "", ErrInvalidCredentials
	}
	return op.Role, nil
}
