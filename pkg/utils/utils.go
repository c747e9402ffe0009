package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

// DefaultBcryptCost is used when no cost is configured.
const DefaultBcryptCost = 12

// credentialIterations is the PBKDF2 work factor for client-side derivation.
const credentialIterations = 100_000

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{2,63}$`)

// HashPassword hashes a credential using bcrypt at the given cost.
// A cost outside bcrypt's range falls back to DefaultBcryptCost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

// CheckPasswordHash compares a credential with a bcrypt hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// DeriveCredential turns a plaintext password into the credential sent over
// the wire, salted with the username, so the ledger never sees the password.
func DeriveCredential(username, password string) string {
	key := pbkdf2.Key([]byte(password), []byte("ledger:"+username), credentialIterations, 32, sha256.New)
	return hex.EncodeToString(key)
}

// IsUsername returns true if s is a valid login name.
func IsUsername(s string) bool {
	return usernamePattern.MatchString(s)
}
