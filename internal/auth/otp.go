package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

// generateOTPCode returns a uniformly random 6-digit decimal code in
// [100000, 999999].
func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate OTP: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// hashOTPHex returns SHA-256(email:code:salt) as hex for storage on the user row.
func hashOTPHex(email, code, salt string) string {
	data := fmt.Sprintf("%s:%s:%s", email, code, salt)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// otpHashMatches compares a computed hash against the stored one in constant time.
func otpHashMatches(computedHex, storedHex string) bool {
	return subtle.ConstantTimeCompare([]byte(computedHex), []byte(storedHex)) == 1
}
