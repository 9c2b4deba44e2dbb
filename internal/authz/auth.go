// Package authz gates the one mutating-ish HTTP endpoint (node ignore
// toggle) and the send-text endpoint behind an authenticated operator,
// per SPEC_FULL.md §13. Grounded on backend/auth/auth.go's bcrypt +
// hand-rolled HMAC token pair.
package authz

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidToken = errors.New("authz: invalid token")

// HashPassword hashes a password with bcrypt, for CreateOperator.
func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

// CheckPassword compares a bcrypt hash against a plain password.
func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// GenerateToken issues a lightweight HMAC-signed token, format
// b64(subject)|expUnix|sig, matching the teacher's GenerateJWT shape with
// the role field dropped (this system has exactly one operator role).
func GenerateToken(subject string, ttl time.Duration, secret string) string {
	exp := time.Now().Add(ttl).Unix()
	parts := []string{
		base64.RawStdEncoding.EncodeToString([]byte(subject)),
		fmt.Sprintf("%d", exp),
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(parts, "|")))
	sig := base64.RawStdEncoding.EncodeToString(mac.Sum(nil))
	parts = append(parts, sig)
	return strings.Join(parts, "|")
}

// ParseToken verifies the signature and expiry, returning the subject.
func ParseToken(tok, secret string) (subject string, err error) {
	parts := strings.Split(tok, "|")
	if len(parts) != 3 {
		return "", ErrInvalidToken
	}
	subjectBytes, err := base64.RawStdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", ErrInvalidToken
	}
	var expUnix int64
	if _, err := fmt.Sscanf(parts[1], "%d", &expUnix); err != nil {
		return "", ErrInvalidToken
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(parts[:2], "|")))
	expected := base64.RawStdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(parts[2])) {
		return "", ErrInvalidToken
	}
	if time.Now().After(time.Unix(expUnix, 0)) {
		return "", ErrInvalidToken
	}
	return string(subjectBytes), nil
}
