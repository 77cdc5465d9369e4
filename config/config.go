package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// UserConfig is the on-disk TOML shape of ~/.config/ember/config.toml.
type UserConfig struct {
	DataDirectory string `toml:"data_directory"`
	OllamaHost    string `toml:"ollama_host"`
	ContainerURL  string `toml:"container_url"`
	DefaultModel  string `toml:"default_model"`
}

// Config is the resolved runtime configuration.
type Config struct {
	DataDirectory string
	OllamaHost    string
	ContainerURL  string
	DefaultModel  string
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) applyEnvOverrides() {
	if host := os.Getenv("EMBER_OLLAMA_HOST"); host != "" {
		c.OllamaHost = host
	}
	if url := os.Getenv("EMBER_CONTAINER_URL"); url != "" {
		c.ContainerURL = url
	}
	if m := os.Getenv("EMBER_MODEL"); m != "" {
		c.DefaultModel = m
	}
	if dataDir := os.Getenv("EMBER_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
}

func CheckDebug() bool {
	debug := os.Getenv("EMBER_DEBUG")
	return debug == "true" || debug == "1"
}

// InitDebugLog opens the debug log in the data directory when
// EMBER_DEBUG is set. Persistence and title-generation failures land
// here; they are never raised to the user mid-chat.
func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600 - the log may contain prompt text
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (EMBER_DEBUG=%s) ===", os.Getenv("EMBER_DEBUG"))
}

// Load resolves configuration: defaults, then the config file if present,
// then environment overrides. The data directory is created on the way
// out.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	userCfg, err := LoadUserConfig()
	if err != nil {
		return nil, err
	}
	if userCfg != nil {
		if userCfg.DataDirectory != "" {
			cfg.DataDirectory = userCfg.DataDirectory
		}
		if userCfg.OllamaHost != "" {
			cfg.OllamaHost = userCfg.OllamaHost
		}
		if userCfg.ContainerURL != "" {
			cfg.ContainerURL = userCfg.ContainerURL
		}
		if userCfg.DefaultModel != "" {
			cfg.DefaultModel = userCfg.DefaultModel
		}
	}

	cfg.applyEnvOverrides()

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return cfg, nil
}
