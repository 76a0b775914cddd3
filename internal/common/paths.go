package common

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CleanPath resolves a user supplied path to a clean absolute path
func CleanPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("invalid path: empty")
	}
	if strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("invalid path: contains NUL byte")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	return filepath.Clean(abs), nil
}
