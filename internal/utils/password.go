package utils

import (
	"crypto/rand"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// NormalizeAnswer is the canonical form of a security answer: trimmed and
// lower-cased, so "Paris " and "paris" hash alike.
func NormalizeAnswer(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// HashAnswer hashes the normalized security answer.
func HashAnswer(answer string, cost int) (string, error) {
	return HashPassword(NormalizeAnswer(answer), cost)
}

// VerifyAnswer compares a security answer with its stored hash.
func VerifyAnswer(hash, answer string) bool {
	return VerifyPassword(hash, NormalizeAnswer(answer))
}

// RandomDigits returns n uniformly random decimal digits.
func RandomDigits(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
