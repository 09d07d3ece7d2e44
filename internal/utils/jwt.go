package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token scopes. A checkout token binds the browser to a single checkout
// session; an ops token unlocks the back-office endpoints.
const (
	ScopeCheckout = "checkout"
	ScopeOps      = "ops"
)

type sessionClaims struct {
	SessionID string `json:"session_id"`
	Scope     string `json:"scope"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for the provided session ID and scope.
func GenerateToken(secret string, sessionID uuid.UUID, scope string, ttl time.Duration) (string, error) {
	claims := &sessionClaims{
		SessionID: sessionID.String(),
		Scope:     scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates the token and returns the embedded session ID and scope.
func ParseToken(secret, tokenString string) (uuid.UUID, string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return uuid.Nil, "", err
	}

	if claims, ok := token.Claims.(*sessionClaims); ok && token.Valid {
		id, err := uuid.Parse(claims.SessionID)
		if err != nil {
			return uuid.Nil, "", err
		}
		return id, claims.Scope, nil
	}

	return uuid.Nil, "", jwt.ErrTokenInvalidClaims
}
