// Package conf loads Myco-Net settings from config.yaml, a .env file and
// MYCONET_ environment variables, in increasing order of precedence.
package conf

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/myconet/internal/logger"
)

const configFileName = "config.yaml"

// defaultConfig is written to the first search path when no config exists.
//
//go:embed config.yaml
var defaultConfig []byte

var (
	current   *Settings
	currentMu sync.RWMutex
)

// Load reads settings from the default search paths.
func Load() (*Settings, error) {
	paths, err := GetDefaultConfigPaths()
	if err != nil {
		return nil, fmt.Errorf("error getting default config paths: %w", err)
	}
	return loadFromPaths(paths)
}

// GetSettings returns the settings of the last successful Load, or nil.
func GetSettings() *Settings {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}

func loadFromPaths(paths []string) (*Settings, error) {
	if err := LoadDotEnv(dotEnvFile); err != nil {
		return nil, err
	}
	if err := readConfig(paths); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	// Without a configured secret sessions do not survive a restart.
	if settings.WebServer.SessionSecret == "" {
		settings.WebServer.SessionSecret = GenerateRandomSecret()
	}
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	currentMu.Lock()
	current = settings
	currentMu.Unlock()
	return settings, nil
}

// readConfig registers defaults and env bindings on viper, then reads
// config.yaml from the first path that has one. When none does, the
// embedded default is written to paths[0] and read back.
func readConfig(paths []string) error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	for _, p := range paths {
		viper.AddConfigPath(p)
	}
	setDefaultConfig()
	bindEnvVars()

	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		return nil
	case !errors.As(err, &notFound):
		return fmt.Errorf("error reading config file: %w", err)
	case len(paths) == 0:
		return errors.New("no config file found and no path to create one")
	}

	path := filepath.Join(paths[0], configFileName)
	if err := os.MkdirAll(paths[0], 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	if err := os.WriteFile(path, defaultConfig, 0o644); err != nil { //nolint:gosec // config is not secret
		return fmt.Errorf("error writing default config file: %w", err)
	}
	logger.Global().Module("config").Info("created default config file", logger.String("path", path))

	return viper.ReadInConfig()
}

// SaveYAMLConfig replaces configPath with settings marshaled as YAML.
// Comments in the existing file are lost.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// The temp file lives next to the target so the rename stays on one filesystem.
	tmp, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("error writing temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}
	if err := os.Rename(tmp.Name(), configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
