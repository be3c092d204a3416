package main

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashPassword returns the unsalted SHA-256 hex digest of a password.
// Every stored credential uses this exact scheme, so changing it requires a
// migration. Note: no salt and no work factor makes this substandard for
// new credential storage.
func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
