package adminlink

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

type Action string

const (
	ActionApproveClaim      Action = "approve_claim"
	ActionRejectClaim       Action = "reject_claim"
	ActionProcessWithdrawal Action = "process_withdrawal"
	ActionRejectWithdrawal  Action = "reject_withdrawal"
)

var ErrInvalidToken = errors.New("invalid admin link token")

type claims struct {
	Action Action `json:"act"`
	jwt.RegisteredClaims
}

// Sign returns a token authorizing one action on one entity until ttl elapses.
func Sign(secret string, action Action, entityID string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("admin link secret is not configured")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Action: action,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   entityID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString([]byte(secret))
}

// Verify checks the signature and expiry and that the token was issued for
// the given action and entity.
func Verify(secret, tokenString string, action Action, entityID string) error {
	if secret == "" {
		return ErrInvalidToken
	}

	var c claims
	_, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return errors.Wrap(ErrInvalidToken, err.Error())
	}
	if c.Action != action || c.Subject != entityID {
		return ErrInvalidToken
	}
	return nil
}
