package cryptox

import (
	"crypto/sha512"
	"encoding/hex"
)

// HashPassword returns the lowercase hex SHA-512 digest of the plaintext
// password. The digest is deterministic on purpose: login resolves a user
// with a single lookup on (username, digest), so salted schemes cannot be
// used here.
func HashPassword(password string) string {
	sum := sha512.Sum512([]byte(password))
	return hex.EncodeToString(sum[:])
}
