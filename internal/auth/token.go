// ABOUTME: Bearer token verification and minting for API callers
// ABOUTME: HS256 tokens whose subject is the caller's email address

package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the minimum HS256 secret size in bytes.
const MinSecretLength = 32

// Issuer is stamped on minted tokens. Tokens without an issuer are accepted.
const Issuer = "famlink"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
	ErrWeakSecret   = errors.New("jwt secret too short")
)

// TokenVerifier turns a bearer token into the caller's email.
type TokenVerifier interface {
	Verify(tokenString string) (email string, err error)
}

// JWTVerifier verifies and mints HS256 tokens with one shared secret.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTVerifier rejects secrets shorter than MinSecretLength.
func NewJWTVerifier(secret []byte) (*JWTVerifier, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrWeakSecret, len(secret), MinSecretLength)
	}
	return &JWTVerifier{
		secret: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Verify checks signature, expiry and issuer and returns the lowercased
// email held in the subject.
func (v *JWTVerifier) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrExpiredToken
	case err != nil:
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Issuer != "" && claims.Issuer != Issuer {
		return "", fmt.Errorf("%w: issuer %q", ErrInvalidToken, claims.Issuer)
	}

	email := normalizeEmail(claims.Subject)
	if email == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	if !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: subject is not an email", ErrInvalidToken)
	}
	return email, nil
}

// Generate mints a token for email valid for expiresIn.
func (v *JWTVerifier) Generate(email string, expiresIn time.Duration) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   email,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
