package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPasswordVerify(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=1$") {
		t.Errorf("hash = %q, want argon2id PHC prefix", hash)
	}

	tests := []struct {
		password string
		want     bool
	}{
		{"correct-horse-battery-staple", true},
		{"wrong-password", false},
		{"", false},
	}
	for _, tt := range tests {
		got, err := VerifyPassword(tt.password, hash)
		if err != nil {
			t.Fatalf("VerifyPassword(%q) error = %v", tt.password, err)
		}
		if got != tt.want {
			t.Errorf("VerifyPassword(%q) = %v, want %v", tt.password, got, tt.want)
		}
	}
}

func TestHashPasswordUniqueSalts(t *testing.T) {
	h1, err := HashPassword("same")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	h2, err := HashPassword("same")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password share a salt")
	}
}

func TestVerifyPasswordMalformed(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"plaintext", "plaintext"},
		{"wrong algorithm", "$bcrypt$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA"},
		{"wrong version", "$argon2id$v=16$m=65536,t=3,p=1$c2FsdA$aGFzaA"},
		{"too few parts", "$argon2id$v=19$m=65536,t=3,p=1"},
		{"bad salt", "$argon2id$v=19$m=65536,t=3,p=1$!!!$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := VerifyPassword("password", tt.hash); !errors.Is(err, errBadHash) {
				t.Errorf("VerifyPassword() error = %v, want errBadHash", err)
			}
		})
	}
}

// ─── Authenticator ──────────────────────────────────────────────────────────

func TestAuthenticator(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	a, err := NewAuthenticator([]Operator{{Username: "ops", PasswordHash: hash, Role: RoleAdmin}})
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v", err)
	}
	if a.Len() != 1 {
		t.Errorf("Len() = %d, want 1", a.Len())
	}

	role, err := a.Authenticate("ops", "s3cret")
	if err != nil || role != RoleAdmin {
		t.Errorf("Authenticate(valid) = %q, %v, want admin, nil", role, err)
	}
	if _, err := a.Authenticate("ops", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Authenticate(wrong password) error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := a.Authenticate("ghost", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Authenticate(unknown user) error = %v, want ErrInvalidCredentials", err)
	}
}

func TestNewAuthenticatorRejects(t *testing.T) {
	hash, err := HashPassword("x")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name string
		ops  []Operator
	}{
		{"bad username", []Operator{{Username: "a b", PasswordHash: hash, Role: RoleAdmin}}},
		{"bad role", []Operator{{Username: "ops", PasswordHash: hash, Role: "root"}}},
		{"bad hash", []Operator{{Username: "ops", PasswordHash: "plain", Role: RoleAdmin}}},
		{"duplicate", []Operator{
			{Username: "ops", PasswordHash: hash, Role: RoleAdmin},
			{Username: "ops", PasswordHash: hash, Role: RoleViewer},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewAuthenticator(tt.ops); err == nil {
				t.Error("NewAuthenticator() error = nil, want error")
			}
		})
	}
}
