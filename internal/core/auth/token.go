package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "miniwallet"

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingSecret = errors.New("token secret is not configured")
)

type Claims struct {
	jwt.RegisteredClaims
}

// TokenIssuer signs HS256 tokens whose subject is the wallet owner. Tokens do
// not expire: a customer keeps the token returned by init.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

func NewTokenIssuer(secret string) (*TokenIssuer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &TokenIssuer{secret: []byte(secret), now: time.Now}, nil
}

func (i *TokenIssuer) Issue(ownerID uuid.UUID) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Issuer:   issuer,
			Subject:  ownerID.String(),
			IssuedAt: jwt.NewNumericDate(i.now()),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify checks the signature and issuer and returns the owner the token was
// issued for.
func (i *TokenIssuer) Verify(tokenStr string) (uuid.UUID, error) {
	claims := new(Claims)
	parser := jwt.NewParser(
		jwt.WithIssuer(issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)

	token, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	ownerID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return ownerID, nil
}
