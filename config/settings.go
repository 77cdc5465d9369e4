package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// LoadUserConfig reads ~/.config/ember/config.toml, creating a commented
// template on first run. A nil return with nil error means no file and
// template creation failed quietly enough to continue on defaults.
func LoadUserConfig() (*UserConfig, error) {
	path := GetConfigFilePath()

	if !FileExists(path) {
		if err := CreateDefaultConfigFile(); err != nil {
			return nil, fmt.Errorf("failed to create config file: %w", err)
		}
		return nil, nil
	}

	cfg := &UserConfig{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// SaveUserConfig writes the config file with user-only permissions.
func SaveUserConfig(cfg *UserConfig) error {
	if err := EnsureDir(GetConfigDir()); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(GetConfigFilePath(), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// CreateDefaultConfigFile writes the commented template if no config
// exists yet.
func CreateDefaultConfigFile() error {
	if err := EnsureDir(GetConfigDir()); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	path := GetConfigFilePath()
	if FileExists(path) {
		return nil
	}
	if err := os.WriteFile(path, []byte(GenerateConfigTemplate()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
