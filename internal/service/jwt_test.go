package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTRoundTrip(t *testing.T) {
	InitJWT("test-secret")

	token, err := GenerateJWT(4242)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	id, err := ParseJWT(token)
	if err != nil || id != 4242 {
		t.Fatalf("parse: id=%d err=%v", id, err)
	}

	if _, err := ParseJWT(token + "x"); err == nil {
		t.Fatalf("tampered token accepted")
	}
}

func TestJWTRejectsExpiredAndForeign(t *testing.T) {
	InitJWT("test-secret")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	s, _ := expired.SignedString([]byte("test-secret"))
	if _, err := ParseJWT(s); err == nil {
		t.Fatalf("expired token accepted")
	}

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, _ = foreign.SignedString([]byte("other-secret"))
	if _, err := ParseJWT(s); err == nil {
		t.Fatalf("token signed with another secret accepted")
	}
}
