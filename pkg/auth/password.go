package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashPassword returns the hex SHA-256 of password followed by salt.
func HashPassword(password, salt string) string {
	sum := sha256.Sum256([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}

// VerifyPassword reports whether password hashes to hash under salt.
func VerifyPassword(password, salt, hash string) bool {
	if hash == "" {
		return false
	}
	got := HashPassword(password, salt)
	return subtle.ConstantTimeCompare([]byte(got), []byte(hash)) == 1
}

func RandomHex(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// NewCredentials picks a random salt and hashes password with it.
func NewCredentials(password string) (hash, salt string, err error) {
	salt, err = RandomHex(16)
	if err != nil {
		return "", "", err
	}
	return HashPassword(password, salt), salt, nil
}
