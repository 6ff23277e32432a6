package usecase

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// otpBytes is the number of random bytes in a recovery code (hex-encoded to 6 characters).
	otpBytes = 3
	// OTPLifetime is how long an issued recovery code stays valid.
	OTPLifetime = 10 * time.Minute
)

// generateOTP returns a fresh recovery code and the digest that is persisted in its place.
func generateOTP() (code, digest string, err error) {
	b := make([]byte, otpBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate reset code: %w", err)
	}
	code = hex.EncodeToString(b)
	return code, hashOTP(code), nil
}

// hashOTP returns the hex SHA-256 digest of a recovery code.
func hashOTP(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
