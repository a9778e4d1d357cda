package helper

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// GenerateUUID creates a random unique UUID string
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %v", err)
	}
	return id.String(), nil
}

// ShortID returns the first 8 hex characters of a random UUID, used for
// temp file names and collection suffixes.
func ShortID() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:4])
}

// CreateFolder creates a directory and its parents if they do not exist.
func CreateFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %s: %v", path, err)
	}
	return nil
}
