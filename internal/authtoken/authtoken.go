// Package authtoken validates bearer access tokens issued by the hosted
// backend. Issuing tokens is the backend's job; this package only verifies.
package authtoken

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"pkt.systems/studiosync/schema"
)

// Claims are the token claims the daemon reads.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Subject is a validated token subject.
type Subject struct {
	User      schema.UserID
	Email     string
	Name      string
	ExpiresAt time.Time
}

// Validator verifies HS256 tokens signed with a shared secret.
type Validator struct {
	secret []byte
	parser *jwt.Parser
}

// NewValidator builds a Validator. An empty issuer accepts any issuer.
func NewValidator(secret, issuer string) (*Validator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if issuer = strings.TrimSpace(issuer); issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &Validator{secret: []byte(secret), parser: jwt.NewParser(opts...)}, nil
}

// Validate parses and verifies a raw token.
func (v *Validator) Validate(raw string) (Subject, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Subject{}, schema.ErrInvalidToken
	}
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return Subject{}, fmt.Errorf("%w: %v", schema.ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Subject{}, fmt.Errorf("%w: missing subject", schema.ErrInvalidToken)
	}
	subject := Subject{
		User:  schema.UserID(claims.Subject),
		Email: claims.Email,
		Name:  claims.Name,
	}
	if claims.ExpiresAt != nil {
		subject.ExpiresAt = claims.ExpiresAt.Time
	}
	return subject, nil
}

// ValidateRequest validates the bearer token of r.
func (v *Validator) ValidateRequest(r *http.Request) (Subject, error) {
	token, ok := BearerToken(r)
	if !ok {
		return Subject{}, schema.ErrInvalidToken
	}
	return v.Validate(token)
}

// BearerToken extracts the token from an Authorization: Bearer header.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
