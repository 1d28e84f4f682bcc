package cryptox

import (
	"crypto/rand"
	"fmt"
)

const alphanumerics = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// RandomAlphanumeric generates a uniformly random alphanumeric string of
// length n. Returns an error if the random number generator fails.
func RandomAlphanumeric(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", n)
	}

	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			// 248 is the largest multiple of 62 below 256; rejecting
			// bytes above it keeps the draw uniform over the alphabet.
			if int(b) >= 248 {
				continue
			}
			out = append(out, alphanumerics[int(b)%len(alphanumerics)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// MustRandomAlphanumeric is like RandomAlphanumeric but panics on error.
// Use this only in contexts where entropy failure is unrecoverable.
func MustRandomAlphanumeric(n int) string {
	s, err := RandomAlphanumeric(n)
	if err != nil {
		panic(fmt.Sprintf("cryptox: failed to generate token: %v", err))
	}
	return s
}
