package password

import "golang.org/x/crypto/bcrypt"

// Hash returns the bcrypt hash of a plaintext secret. Each call salts
// independently, so two hashes of the same input differ.
func Hash(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify reports whether plain matches the stored bcrypt hash. Malformed
// hashes verify false rather than erroring.
func Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
