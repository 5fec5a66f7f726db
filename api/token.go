package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/awnumar/memguard"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jmcleod/adventkey/accesscode"
	"github.com/jmcleod/adventkey/internal/util"
)

const tokenIssuerName = "adventkey"

var errInvalidToken = errors.New("invalid session token")

// sessionClaims is the JWT payload. The registered "jti" claim carries the
// session ID.
type sessionClaims struct {
	jwt.RegisteredClaims
	UserType accesscode.UserType `json:"user_type"`
}

// tokenIssuer signs and parses HS256 session tokens. The key lives in a
// memguard enclave and is only decrypted for the duration of each call.
type tokenIssuer struct {
	key *memguard.Enclave
}

func newTokenIssuer(key []byte) (*tokenIssuer, error) {
	if len(key) < 32 {
		return nil, fmt.Errorf("signing key must be at least 32 bytes, got %d", len(key))
	}
	return &tokenIssuer{key: memguard.NewEnclave(util.CopyBytes(key))}, nil
}

func (ti *tokenIssuer) withKey(fn func(key []byte) error) error {
	buf, err := ti.key.Open()
	if err != nil {
		return fmt.Errorf("opening signing key: %w", err)
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

func (ti *tokenIssuer) issue(sessionID string, userType accesscode.UserType, now, expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Issuer:    tokenIssuerName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserType: userType,
	}
	var signed string
	err := ti.withKey(func(key []byte) error {
		var err error
		signed, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

func (ti *tokenIssuer) parse(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	err := ti.withKey(func(key []byte) error {
		_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
			return key, nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuerName),
			jwt.WithExpirationRequired(),
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing session id", errInvalidToken)
	}
	return claims, nil
}
