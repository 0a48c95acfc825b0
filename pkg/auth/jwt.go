package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mahaj/dupahar-dm/pkg/errors"
	"github.com/mahaj/dupahar-dm/pkg/model"
)

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// UserLookup is the slice of the user store the verifier needs.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (model.User, error)
}

// Verifier turns a bearer token into an authenticated identity. The secret
// is held per instance; there is no package level signing key.
type Verifier struct {
	secret   []byte
	duration time.Duration
	users    UserLookup
	now      func() time.Time
}

func NewVerifier(secret string, duration time.Duration, users UserLookup) *Verifier {
	return &Verifier{secret: []byte(secret), duration: duration, users: users, now: time.Now}
}

// GenerateToken creates a new JWT token for a given user ID
func (v *Verifier) GenerateToken(userID string) (string, error) {
	now := v.now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.duration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// ValidateToken parses and validates a JWT token
func (v *Verifier) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(v.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.ErrInvalidToken
	}

	return claims, nil
}

// Authenticate validates the token and checks that its user still exists.
func (v *Verifier) Authenticate(ctx context.Context, tokenString string) (string, error) {
	if tokenString == "" {
		return "", errors.ErrMissingToken
	}
	claims, err := v.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	if _, err := v.users.FindByID(ctx, claims.UserID); err != nil {
		if errors.IsNotFound(err) {
			return "", errors.ErrUnknownIdentity
		}
		return "", err
	}
	return claims.UserID, nil
}

// BearerToken strips an optional "Bearer " prefix.
func BearerToken(header string) string {
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
