// Package credentials persists the OpenRouter API key in a single durable slot.
package credentials

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SlotKey is the name of the durable entry holding the API key.
const SlotKey = "openrouter-api-key"

// Slot is a single named string value in durable storage.
// A missing value loads as "" with a nil error.
type Slot interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, value string) error
	Delete(ctx context.Context) error
	Close() error
}

// GetDBPath returns the default database location under the XDG data directory.
func GetDBPath() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "orchat", "orchat.db"), nil
}

// Mask returns a display-safe form of a key: its prefix and last four characters.
func Mask(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	prefix := ""
	if i := strings.LastIndex(key[:min(len(key)-4, 8)], "-"); i >= 0 {
		prefix = key[:i+1]
	}
	return prefix + "…" + key[len(key)-4:]
}
