package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// NewVerificationCode returns a 6-digit numeric code uniformly sampled in
// [100000, 999999].
func NewVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// NewResetToken returns a 32-byte random token (hex-encoded) together with its
// fingerprint. Only the fingerprint is ever persisted; the raw token goes into
// the reset link.
func NewResetToken() (raw, fingerprint string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate reset token: %w", err)
	}
	raw = hex.EncodeToString(b)
	return raw, Fingerprint(raw), nil
}

// Fingerprint returns the deterministic SHA-256 digest of a raw token,
// hex-encoded. It lets the store be queried for a presented token without
// storing the token itself.
func Fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
