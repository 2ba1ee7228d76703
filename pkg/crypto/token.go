package crypto

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateToken returns a URL-safe random token of the requested byte length.
func GenerateToken(length int) (string, error) {
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}
