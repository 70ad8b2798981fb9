// Package crypto provides cryptographic utilities for corefacility:
// secret generation from declared alphabets, one-way hashing of passwords
// and tokens, and content hashes for public file URLs.
package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Alphabets for secret generation.
const (
	// SmallLatin contains the lowercase latin letters.
	SmallLatin = "abcdefghijklmnopqrstuvwxyz"

	// BigLatin contains the uppercase latin letters.
	BigLatin = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// Digits contains the decimal digits.
	Digits = "0123456789"

	// Special contains the admissible punctuation symbols.
	Special = "!@#$%^&*()_+=-~`\";:'/?.>,<"

	// All is the union of every alphabet above.
	All = SmallLatin + BigLatin + Digits + Special
)

// GenerateSecret draws length symbols uniformly from the alphabet using the
// system entropy source. Rejection sampling keeps the distribution uniform
// regardless of the alphabet size.
func GenerateSecret(alphabet string, length int) (string, error) {
	if len(alphabet) == 0 || length <= 0 {
		return "", fmt.Errorf("secret generation needs a non-empty alphabet and a positive length")
	}
	result := make([]byte, 0, length)
	limit := 256 - 256%len(alphabet)
	buf := make([]byte, 1)
	for len(result) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		if int(buf[0]) >= limit {
			continue
		}
		result = append(result, alphabet[int(buf[0])%len(alphabet)])
	}
	return string(result), nil
}

// HashSecret produces a one-way bcrypt hash of a password, token or
// activation code. The cleartext is never stored.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hash), nil
}

// CheckSecret verifies a candidate against a stored hash. An empty stored
// hash never verifies.
func CheckSecret(storedHash, candidate string) bool {
	if storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(candidate)) == nil
}
