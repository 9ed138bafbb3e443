package authtoken

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"pkt.systems/studiosync/schema"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func validClaims() Claims {
	return Claims{
		Email: "u1@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "U1",
			Issuer:    "studio",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestValidateAcceptsSignedToken(t *testing.T) {
	v, err := NewValidator("s3cret", "studio")
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	subject, err := v.Validate(sign(t, jwt.SigningMethodHS256, []byte("s3cret"), validClaims()))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if subject.User != "U1" || subject.Email != "u1@example.com" || subject.ExpiresAt.IsZero() {
		t.Fatalf("unexpected subject: %+v", subject)
	}
}

func TestValidateRejects(t *testing.T) {
	v, err := NewValidator("s3cret", "studio")
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil
	otherIssuer := validClaims()
	otherIssuer.Issuer = "elsewhere"
	noSubject := validClaims()
	noSubject.Subject = ""

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not.a.token",
		"wrong secret": sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims()),
		"wrong alg":    sign(t, jwt.SigningMethodHS512, []byte("s3cret"), validClaims()),
		"expired":      sign(t, jwt.SigningMethodHS256, []byte("s3cret"), expired),
		"no expiry":    sign(t, jwt.SigningMethodHS256, []byte("s3cret"), noExpiry),
		"issuer":       sign(t, jwt.SigningMethodHS256, []byte("s3cret"), otherIssuer),
		"no subject":   sign(t, jwt.SigningMethodHS256, []byte("s3cret"), noSubject),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Validate(token); !errors.Is(err, schema.ErrInvalidToken) {
				t.Fatalf("expected invalid token, got %v", err)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/validate", nil)
	if _, ok := BearerToken(req); ok {
		t.Fatalf("expected no token")
	}
	req.Header.Set("Authorization", "bearer abc")
	if token, ok := BearerToken(req); !ok || token != "abc" {
		t.Fatalf("expected abc, got %q", token)
	}
	req.Header.Set("Authorization", "Basic abc")
	if _, ok := BearerToken(req); ok {
		t.Fatalf("did not expect basic auth to be accepted")
	}
}

func TestNewValidatorRequiresSecret(t *testing.T) {
	if _, err := NewValidator(" ", ""); err == nil {
		t.Fatalf("expected error")
	}
}
