// Package passtoken issues the QR pass shown at the door. A pass is an HS256
// JWT over (registration, event, attendee) with no time-based claims, so the
// same registration always derives the same token and nothing is stored.
package passtoken

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenType = "pass"

var ErrInvalidPass = errors.New("invalid pass token")

type Pass struct {
	RegistrationID uuid.UUID
	EventID        uuid.UUID
	AttendeeID     uuid.UUID
}

type claims struct {
	RegistrationID string `json:"rid"`
	EventID        string `json:"eid"`
	AttendeeID     string `json:"aid"`
	Type           string `json:"typ"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
}

func NewIssuer(secret string) Issuer {
	return Issuer{secret: []byte(secret)}
}

// Issue derives the pass token for a registration.
func (i Issuer) Issue(p Pass) (string, error) {
	if len(i.secret) == 0 {
		return "", errors.New("pass token secret is not configured")
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegistrationID: p.RegistrationID.String(),
		EventID:        p.EventID.String(),
		AttendeeID:     p.AttendeeID.String(),
		Type:           tokenType,
	}).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign pass: %w", err)
	}
	return token, nil
}

// Verify checks the signature and returns the ids the pass was issued for.
func (i Issuer) Verify(token string) (Pass, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid || c.Type != tokenType {
		return Pass{}, ErrInvalidPass
	}

	var p Pass
	if p.RegistrationID, err = uuid.Parse(c.RegistrationID); err != nil {
		return Pass{}, ErrInvalidPass
	}
	if p.EventID, err = uuid.Parse(c.EventID); err != nil {
		return Pass{}, ErrInvalidPass
	}
	if p.AttendeeID, err = uuid.Parse(c.AttendeeID); err != nil {
		return Pass{}, ErrInvalidPass
	}
	return p, nil
}
