package db

import (
	"crypto/rand"
	"encoding/hex"
)

const projectIDPrefix = "pr-"

// idGenerator is the function used to generate project IDs.
// It can be replaced in tests to control ID generation.
var idGenerator = defaultGenerateID

// defaultGenerateID generates a unique project ID using crypto/rand
func defaultGenerateID() (string, error) {
	bytes := make([]byte, 3) // 6 hex characters
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return projectIDPrefix + hex.EncodeToString(bytes), nil
}
