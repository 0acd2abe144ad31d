// Package auth extracts the already-authenticated principal identity
// carried on a connection token. Credential checking and token issuance
// belong to the CRUD API upstream; the relay only reads who the bearer is.
package auth

import (
	"time"

	"chat-relay/domain"

	"github.com/golang-jwt/jwt/v5"
)

// Claims defines the structure of the data stored inside the token.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type TokenParser struct {
	secret []byte
}

func NewTokenParser(secret string) *TokenParser {
	return &TokenParser{secret: []byte(secret)}
}

// Principal parses and validates the signature and expiration of a token
// string and returns the user it identifies.
func (p *TokenParser) Principal(tokenString string) (domain.UserID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return p.secret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", jwt.ErrSignatureInvalid
	}
	return domain.UserID(claims.UserID), nil
}

// GenerateToken creates a signed token for a user. The relay itself never
// issues tokens at runtime; this exists for the probe tool and tests.
func GenerateToken(secret string, user domain.UserID, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID: string(user),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "chat-relay",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
