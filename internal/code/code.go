// Package code generates the short shareable identifiers that name sessions.
package code

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// MinLength and MaxLength bound the code lengths a registry may request.
const (
	MinLength = 4
	MaxLength = 12
)

// New returns a random alphanumeric code of exactly length characters.
// Uniqueness is the caller's concern; New only promises unpredictability.
func New(length int) (string, error) {
	if length < MinLength || length > MaxLength {
		return "", fmt.Errorf("code length %d out of range [%d,%d]", length, MinLength, MaxLength)
	}
	out := make([]byte, length)
	size := big.NewInt(int64(len(alphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("reading randomness: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
