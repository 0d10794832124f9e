package auth

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	sec := "secret123"
	room := "guild-1"
	exp := time.Now().Add(5 * time.Minute).Unix()

	tok, err := GenerateStreamToken(sec, room, exp)
	if err != nil {
		t.Fatalf("gen: %v", err)
	}

	gotRoom, gotExp, err := ValidateStreamToken(sec, tok, room, time.Now(), 60)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if gotRoom != room || gotExp != exp {
		t.Fatalf("mismatch: %s/%d", gotRoom, gotExp)
	}
}

func TestBadSignature(t *testing.T) {
	sec := "secret123"
	exp := time.Now().Add(5 * time.Minute).Unix()
	tok, _ := GenerateStreamToken(sec, "abc", exp)

	if _, _, err := ValidateStreamToken("other", tok, "abc", time.Now(), 60); !errors.Is(err, ErrTokenSig) {
		t.Fatalf("expected signature error, got %v", err)
	}
	if _, _, err := ValidateStreamToken(sec, "%%%", "abc", time.Now(), 60); !errors.Is(err, ErrTokenFormat) {
		t.Fatalf("expected format error, got %v", err)
	}
}

func TestRoomMismatchAndExpiry(t *testing.T) {
	sec := "s"
	now := time.Unix(1_700_000_000, 0)
	tok, _ := GenerateStreamToken(sec, "a.b", now.Unix())

	if _, _, err := ValidateStreamToken(sec, tok, "other", now, 0); !errors.Is(err, ErrTokenRoom) {
		t.Fatalf("expected room mismatch, got %v", err)
	}
	if room, _, err := ValidateStreamToken(sec, tok, "a.b", now.Add(30*time.Second), 60); err != nil || room != "a.b" {
		t.Fatalf("token within skew rejected: %v", err)
	}
	if _, _, err := ValidateStreamToken(sec, tok, "a.b", now.Add(2*time.Minute), 60); !errors.Is(err, ErrTokenExp) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestMissingSecret(t *testing.T) {
	if _, err := GenerateStreamToken("", "r", 1); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	if tok, ok := BearerToken("Bearer abc"); !ok || tok != "abc" {
		t.Fatalf("unexpected %q %v", tok, ok)
	}
	for _, h := range []string{"", "Basic abc", "Bearer "} {
		if _, ok := BearerToken(h); ok {
			t.Fatalf("header %q should not yield a token", h)
		}
	}
}
