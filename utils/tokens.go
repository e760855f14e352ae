package utils

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

// GenerateSecureToken returns a 256-bit random token, hex encoded. Used for
// invite tokens and public share tokens; the value carries no embedded
// identity and is only usable as a lookup key.
func GenerateSecureToken() (string, error) {
	token := make([]byte, 32)
	if _, err := rand.Read(token); err != nil {
		return "", err
	}
	return hex.EncodeToString(token), nil
}

// GenerateRandomPassword returns a random password for auto-provisioned
// accounts. It is surfaced exactly once to the inviter and stored only as a
// bcrypt hash.
func GenerateRandomPassword() (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%"
	password := make([]byte, 16)

	for i := range password {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		password[i] = charset[num.Int64()]
	}

	return string(password), nil
}
