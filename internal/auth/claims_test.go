package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-for-jwt-signing-0123456789"

func TestIssueAndParseToken(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, 10*time.Minute)

	token, err := issuer.Issue("alice", RoleAdmin)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if token == "" {
		t.Fatal("Issue() returned empty token")
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if claims.Subject != "alice" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "alice")
	}
	if claims.Role != RoleAdmin {
		t.Errorf("Role = %q, want %q", claims.Role, RoleAdmin)
	}
	if claims.ID == "" {
		t.Error("ID should not be empty")
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 10*time.Minute {
		t.Errorf("token lifetime = %v, want 10m", got)
	}
}

func TestNewTokenIssuerDefaultTTL(t *testing.T) {
	if got := NewTokenIssuer(testSecret, 0).TTL(); got != 15*time.Minute {
		t.Errorf("TTL() = %v, want 15m", got)
	}
}

func TestParseTokenRejects(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Minute)
	good, err := issuer.Issue("alice", RoleViewer)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	expiredIssuer := NewTokenIssuer(testSecret, time.Minute)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _ := expiredIssuer.Issue("alice", RoleViewer)

	noSubject, _ := issuer.Issue("", RoleViewer)
	badRole, _ := issuer.Issue("alice", Role("owner"))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"},
		Role:             RoleAdmin,
	})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name   string
		token  string
		issuer *TokenIssuer
	}{
		{"wrong secret", good, NewTokenIssuer("another-secret-another-secret-000", time.Minute)},
		{"expired", expired, issuer},
		{"missing subject", noSubject, issuer},
		{"unknown role", badRole, issuer},
		{"alg none", unsigned, issuer},
		{"garbage", "not.a.token", issuer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.issuer.Parse(tt.token); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("Parse() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}
