package httpapi

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/monarena/internal/platform/errors"
)

func fixedNow() time.Time { return time.Date(2026, time.May, 1, 12, 0, 0, 0, time.UTC) }

func TestVerifierAcceptsSignedToken(t *testing.T) {
	t.Parallel()

	v, err := NewVerifier(VerifierConfig{Secret: []byte("s3cret"), Issuer: "arena", Now: fixedNow})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	token, err := v.Sign("referee", RoleAuthority, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	p, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.Subject != "referee" || !p.IsAuthority() {
		t.Fatalf("principal = %+v, want referee with authority", p)
	}
}

func TestVerifierRejects(t *testing.T) {
	t.Parallel()

	secret := []byte("s3cret")
	v, err := NewVerifier(VerifierConfig{Secret: secret, Issuer: "arena", Now: fixedNow})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	now := fixedNow()
	sign := func(method jwt.SigningMethod, key []byte, claims arenaClaims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	valid := func() arenaClaims {
		return arenaClaims{RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "arena",
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}}
	}

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
	early := valid()
	early.NotBefore = jwt.NewNumericDate(now.Add(time.Minute))
	noSub := valid()
	noSub.Subject = ""
	noExp := valid()
	noExp.ExpiresAt = nil
	otherIssuer := valid()
	otherIssuer.Issuer = "elsewhere"

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.jwt"},
		{name: "wrong secret", token: sign(jwt.SigningMethodHS256, []byte("other"), valid())},
		{name: "wrong alg", token: sign(jwt.SigningMethodHS512, secret, valid())},
		{name: "expired", token: sign(jwt.SigningMethodHS256, secret, expired)},
		{name: "not yet valid", token: sign(jwt.SigningMethodHS256, secret, early)},
		{name: "missing sub", token: sign(jwt.SigningMethodHS256, secret, noSub)},
		{name: "missing exp", token: sign(jwt.SigningMethodHS256, secret, noExp)},
		{name: "issuer mismatch", token: sign(jwt.SigningMethodHS256, secret, otherIssuer)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := v.Verify(tt.token)
			if code := apperrors.CodeOf(err); code != apperrors.CodeUnauthenticated {
				t.Fatalf("code = %s, want %s (err %v)", code, apperrors.CodeUnauthenticated, err)
			}
		})
	}
}

func TestNewVerifierNeedsSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewVerifier(VerifierConfig{}); apperrors.CodeOf(err) != apperrors.CodeInvalidConfig {
		t.Fatalf("err = %v, want %s", err, apperrors.CodeInvalidConfig)
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := bearerToken(tt.header); got != tt.want {
			t.Fatalf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestPrincipalContext(t *testing.T) {
	t.Parallel()

	if _, ok := PrincipalFrom(context.Background()); ok {
		t.Fatal("empty context should carry no principal")
	}
	ctx := WithPrincipal(context.Background(), Principal{Subject: "bob"})
	if p, ok := PrincipalFrom(ctx); !ok || p.Subject != "bob" {
		t.Fatalf("principal = %+v, %v", p, ok)
	}
}
