package jwtutil

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndParse(t *testing.T) {
	token, err := GenerateToken("secret", time.Hour, 42, "alice")
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token")
	}

	claims, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestGenerateDistinctWithinSameSecond(t *testing.T) {
	first, err := GenerateToken("secret", time.Hour, 42, "alice")
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	second, err := GenerateToken("secret", time.Hour, 42, "alice")
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if first == second {
		t.Fatalf("tokens issued back-to-back must differ")
	}

	claims, err := ParseToken("secret", first)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if claims.ID == "" {
		t.Fatalf("expected a jti claim")
	}
}

func TestParseWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret", time.Hour, 1, "bob")
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if _, err := ParseToken("other-secret", token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseExpired(t *testing.T) {
	token, err := GenerateToken("secret", -time.Minute, 1, "bob")
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	if _, err := ParseToken("secret", token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseMalformed(t *testing.T) {
	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, err := ParseToken("secret", token); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("token %q: expected ErrTokenInvalid, got %v", token, err)
		}
	}
}
