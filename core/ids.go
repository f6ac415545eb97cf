package core

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewSessionID returns a random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// NewCorrelationID returns a short id tying together the log lines and
// history rows of one file's processing.
func NewCorrelationID() string {
	return uuid.NewString()[:8]
}

// ContentHash returns the hex SHA-256 of data. Extraction results are a pure
// function of the bytes, so this is the cache key.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
