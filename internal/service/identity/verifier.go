// Package identity turns bearer tokens into account ids. Tokens are HS256
// JWTs whose subject is the account uuid and whose id can be revoked.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrRevokedToken = errors.New("token revoked")
)

// RevocationList is backed by revokedTokens.RevokedTokensRepo.
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type Verifier struct {
	secret  []byte
	revoked RevocationList
	now     func() time.Time
}

func New(secret string, revoked RevocationList) *Verifier {
	return &Verifier{secret: []byte(secret), revoked: revoked, now: time.Now}
}

func (v *Verifier) keyFunc(*jwt.Token) (interface{}, error) {
	return v.secret, nil
}

// Issue signs a token for accountID. Production tokens come from the
// identity provider; this serves tooling and tests.
func (v *Verifier) Issue(accountID uuid.UUID, ttl time.Duration) (string, error) {
	now := v.now()
	payload := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   accountID.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(v.secret)
}

func (v *Verifier) parse(token string) (*jwt.RegisteredClaims, error) {
	payload := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, payload, v.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return payload, nil
}

// Verify returns the account id carried by token.
func (v *Verifier) Verify(ctx context.Context, token string) (uuid.UUID, error) {
	payload, err := v.parse(token)
	if err != nil {
		return uuid.Nil, err
	}
	accountID, err := uuid.Parse(payload.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not an account id", ErrInvalidToken)
	}
	if payload.ID != "" && v.revoked != nil {
		revoked, err := v.revoked.IsRevoked(ctx, payload.ID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return uuid.Nil, ErrRevokedToken
		}
	}
	return accountID, nil
}

// Revoke makes token unusable until it expires.
func (v *Verifier) Revoke(ctx context.Context, token string) error {
	payload, err := v.parse(token)
	if err != nil {
		return err
	}
	if payload.ID == "" {
		return fmt.Errorf("%w: token has no id", ErrInvalidToken)
	}
	if err := v.revoked.Revoke(ctx, payload.ID, payload.ExpiresAt.Time); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}
