package httpapi

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/monarena/internal/platform/errors"
)

// RoleAuthority is the role claim that grants the trusted submission routes.
const RoleAuthority = "authority"

// Principal is the authenticated caller of a request.
type Principal struct {
	Subject string
	Role    string
}

// IsAuthority reports whether the principal carries the authority role.
func (p Principal) IsAuthority() bool { return p.Role == RoleAuthority }

// VerifierConfig defines how bearer tokens are verified.
type VerifierConfig struct {
	Secret []byte
	// Issuer, when set, must match the token's iss claim.
	Issuer string
	Now    func() time.Time
}

// Verifier checks HS256 bearer tokens.
type Verifier struct {
	cfg VerifierConfig
}

// arenaClaims is the internal claims type used for JWT parsing.
type arenaClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// NewVerifier builds a verifier. An empty secret is a configuration error.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if len(cfg.Secret) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidConfig, "jwt secret is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Verifier{cfg: cfg}, nil
}

// Verify parses token and returns its principal.
func (v *Verifier) Verify(token string) (Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, apperrors.New(apperrors.CodeUnauthenticated, "bearer token is required")
	}

	var parsed arenaClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return v.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Principal{}, mapJWTError(err)
	}

	if v.cfg.Issuer != "" && parsed.Issuer != v.cfg.Issuer {
		return Principal{}, apperrors.WithMetadata(
			apperrors.CodeUnauthenticated,
			"token issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return Principal{}, apperrors.New(apperrors.CodeUnauthenticated, "token sub is required")
	}
	now := v.cfg.Now().UTC()
	if parsed.ExpiresAt == nil {
		return Principal{}, apperrors.New(apperrors.CodeUnauthenticated, "token exp is required")
	}
	if !parsed.ExpiresAt.Time.After(now) {
		return Principal{}, apperrors.New(apperrors.CodeUnauthenticated, "token is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time) {
		return Principal{}, apperrors.New(apperrors.CodeUnauthenticated, "token not active yet")
	}
	return Principal{Subject: parsed.Subject, Role: parsed.Role}, nil
}

// Sign issues a token for subject. It backs the token helper command and
// tests.
func (v *Verifier) Sign(subject, role string, ttl time.Duration) (string, error) {
	now := v.cfg.Now().UTC()
	claims := arenaClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.cfg.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.cfg.Secret)
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return apperrors.New(apperrors.CodeUnauthenticated, "token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeUnauthenticated, "token alg is invalid")
	}
	return apperrors.New(apperrors.CodeUnauthenticated, "token is invalid")
}

type principalKey struct{}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored in ctx.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
