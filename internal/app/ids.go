package app

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

func newID() string {
	return uuid.NewString()
}

// newPrivateToken returns an opaque secret for private listings. Falls back
// to a UUID if the entropy source fails, which never happens in practice.
func newPrivateToken() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(b)
}
