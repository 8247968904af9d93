package conf

import (
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/tphakala/myconet/internal/errors"
)

// GetDefaultConfigPaths returns the directories searched for config.yaml:
// the working directory, ~/.config/myconet and /etc/myconet. A directory
// that already holds a config file is returned alone.
func GetDefaultConfigPaths() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	paths := []string{".", filepath.Join(home, ".config", "myconet"), "/etc/myconet"}
	for _, p := range paths {
		if _, err := os.Stat(filepath.Join(p, configFileName)); err == nil {
			return []string{p}, nil
		}
	}
	return paths, nil
}

// GenerateRandomSecret returns 32 random bytes as unpadded URL-safe base64,
// 43 characters.
func GenerateRandomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b) // never fails since Go 1.24
	return base64.RawURLEncoding.EncodeToString(b)
}
