package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTServiceRoundTrip(t *testing.T) {
	svc := NewJWTService("super-secret", time.Hour)

	tokenString, err := svc.Issue("ops-cli")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := svc.Parse(tokenString)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "ops-cli" {
		t.Fatalf("expected subject ops-cli, got %q", claims.Subject)
	}
	if claims.TokenType != "ops" {
		t.Fatalf("expected ops token type, got %q", claims.TokenType)
	}
	if claims.ID == "" {
		t.Fatalf("expected a jti")
	}
}

func TestJWTServiceRejectsWrongSecret(t *testing.T) {
	issuer := NewJWTService("secret-a", time.Hour)
	verifier := NewJWTService("secret-b", time.Hour)

	tokenString, err := issuer.Issue("ops-cli")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Parse(tokenString); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid, got %v", err)
	}
}

func TestJWTServiceRejectsExpired(t *testing.T) {
	svc := NewJWTService("super-secret", time.Millisecond)

	tokenString, err := svc.Issue("ops-cli")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := svc.Parse(tokenString); !errors.Is(err, ErrJWTExpired) {
		t.Fatalf("expected ErrJWTExpired, got %v", err)
	}
}

func TestJWTServiceRejectsForeignTokenType(t *testing.T) {
	secret := "super-secret"
	claims := Claims{
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "geminibot",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	svc := NewJWTService(secret, time.Hour)
	if _, err := svc.Parse(tokenString); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for non-ops token, got %v", err)
	}
}

func TestJWTServiceEmptySecret(t *testing.T) {
	svc := NewJWTService("", time.Hour)
	if _, err := svc.Issue("ops-cli"); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid on issue, got %v", err)
	}
	if _, err := svc.Parse("whatever"); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid on parse, got %v", err)
	}
}
