// Package auth mints and checks the HMAC tokens that guard room event streams.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTokenFormat = errors.New("invalid token format")
	ErrTokenSig    = errors.New("invalid token signature")
	ErrTokenExp    = errors.New("token expired")
	ErrTokenRoom   = errors.New("room mismatch")
	ErrNoSecret    = errors.New("stream token secret not configured")
)

// GenerateStreamToken builds a token for room that expires at expUnix.
// Format: base64url(room + "." + exp_unix + "." + hex(hmac_sha256(secret, room+"."+exp)))
func GenerateStreamToken(secret, room string, expUnix int64) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	msg := room + "." + strconv.FormatInt(expUnix, 10)
	raw := msg + "." + hex.EncodeToString(sign(secret, msg))
	return base64.RawURLEncoding.EncodeToString([]byte(raw)), nil
}

// ValidateStreamToken parses and checks token. A non-empty expectRoom must
// match the embedded room. The token stays valid up to skewSeconds past its
// expiry. It returns the embedded room and expiry.
func ValidateStreamToken(secret, token, expectRoom string, now time.Time, skewSeconds int) (string, int64, error) {
	if secret == "" {
		return "", 0, ErrNoSecret
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", 0, ErrTokenFormat
	}
	// rooms may contain dots, so split from the right
	s := string(b)
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return "", 0, ErrTokenFormat
	}
	msg, sigHex := s[:i], s[i+1:]
	j := strings.LastIndexByte(msg, '.')
	if j < 0 {
		return "", 0, ErrTokenFormat
	}
	room, expStr := msg[:j], msg[j+1:]
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return "", 0, ErrTokenFormat
	}
	got, err := hex.DecodeString(sigHex)
	if err != nil {
		return "", 0, ErrTokenFormat
	}
	if !hmac.Equal(sign(secret, msg), got) {
		return "", 0, ErrTokenSig
	}
	if expectRoom != "" && room != expectRoom {
		return "", 0, ErrTokenRoom
	}
	if now.Unix() > exp+int64(skewSeconds) {
		return "", 0, ErrTokenExp
	}
	return room, exp, nil
}

// BearerToken extracts the token from an "Authorization: Bearer ..." value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return tok, tok != ""
}

// Expiry returns the unix expiry for a token minted now with ttl.
func Expiry(now time.Time, ttl time.Duration) int64 {
	return now.Add(ttl).Unix()
}

func sign(secret, msg string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}
