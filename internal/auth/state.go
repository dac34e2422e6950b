package auth

import (
	"crypto/rand"
	"encoding/hex"
)

// DefaultStateLength is the length of the state parameter sent with a login redirect.
const DefaultStateLength = 16

// RandomState returns exactly length lowercase hex characters from crypto/rand.
//
// crypto/rand never fails on supported platforms; an entropy failure crashes the process.
func RandomState(length int) string {
	if length <= 0 {
		return ""
	}
	buf := make([]byte, (length+1)/2)
	rand.Read(buf)
	return hex.EncodeToString(buf)[:length]
}
