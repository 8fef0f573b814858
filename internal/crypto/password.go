package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	passwordIterations = 200_000
	passwordSaltLen    = 16
	passwordKeyLen     = 32
	passwordAlgo       = "pbkdf2_sha256"
)

// HashPassword derives a salted PBKDF2-SHA256 hash in the
// "pbkdf2_sha256$iterations$salt$hash" format, salt and hash url-safe
// base64 without padding.
func HashPassword(password string) (string, error) {
	salt := make([]byte, passwordSaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	derived := pbkdf2.Key([]byte(password), salt, passwordIterations, passwordKeyLen, sha256.New)
	return fmt.Sprintf("%s$%d$%s$%s",
		passwordAlgo,
		passwordIterations,
		base64.RawURLEncoding.EncodeToString(salt),
		base64.RawURLEncoding.EncodeToString(derived),
	), nil
}

// VerifyPassword checks password against a hash produced by HashPassword.
// Any malformed hash verifies false rather than erroring.
func VerifyPassword(password, hash string) bool {
	parts := strings.SplitN(hash, "$", 4)
	if len(parts) != 4 || parts[0] != passwordAlgo {
		return false
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false
	}
	salt, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}
	expected, err := base64.RawURLEncoding.DecodeString(parts[3])
	if err != nil {
		return false
	}
	got := pbkdf2.Key([]byte(password), salt, iterations, len(expected), sha256.New)
	return hmac.Equal(got, expected)
}
