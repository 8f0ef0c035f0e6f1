// Package config loads environment-based configuration, optionally from
// a .env file.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for vault-share.
type Config struct {
	// Registry service endpoint (required).
	RegistryURL string `env:"VAULT_REGISTRY_URL"`

	// Notify service WebSocket endpoint. Empty disables the change
	// channel; the poll interval then carries all remote updates.
	NotifyURL string `env:"VAULT_NOTIFY_URL"`

	// Account identity and API token (required).
	User  string `env:"VAULT_USER"`
	Token string `env:"VAULT_TOKEN"`

	// Vault encryption password (required). Never sent to any service;
	// only the derived key hash is stored locally.
	VaultPassword string `env:"VAULT_PASSWORD"`

	// BlobDir is where sealed content blobs are written. Defaults to
	// ~/.vault-share/blobs.
	BlobDir string `env:"VAULT_BLOB_DIR"`

	// StatePath is the local state database. Defaults to
	// ~/.vault-share/state.db.
	StatePath string `env:"VAULT_STATE_PATH"`

	// Scheduler tuning.
	PollInterval time.Duration `env:"VAULT_POLL_INTERVAL" envDefault:"60s"`
	SyncDebounce time.Duration `env:"VAULT_SYNC_DEBOUNCE" envDefault:"300ms"`

	// Import drop directory. Empty disables the importer.
	ImportDir string `env:"VAULT_IMPORT_DIR"`

	// ImportRules is the YAML file mapping drop subdirectories to vault
	// folders. Missing file means everything imports to the vault root.
	ImportRules string `env:"VAULT_IMPORT_RULES" envDefault:"import-rules.yaml"`

	// Environment controls log format.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.RegistryURL == "" {
		return fmt.Errorf("VAULT_REGISTRY_URL is required")
	}

	if c.User == "" {
		return fmt.Errorf("VAULT_USER is required")
	}

	if c.Token == "" {
		return fmt.Errorf("VAULT_TOKEN is required")
	}

	if c.VaultPassword == "" {
		return fmt.Errorf("VAULT_PASSWORD is required")
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("VAULT_POLL_INTERVAL must be positive")
	}

	if c.SyncDebounce <= 0 {
		return fmt.Errorf("VAULT_SYNC_DEBOUNCE must be positive")
	}

	return nil
}

// resolvePaths fills in the home-relative defaults and resolves every
// configured path to absolute form, so later prefix checks and relative
// path computations behave regardless of the working directory.
func (c *Config) resolvePaths() error {
	if c.BlobDir == "" || c.StatePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("determining home directory: %w", err)
		}

		if c.BlobDir == "" {
			c.BlobDir = filepath.Join(home, ".vault-share", "blobs")
		}

		if c.StatePath == "" {
			c.StatePath = filepath.Join(home, ".vault-share", "state.db")
		}
	}

	for _, p := range []*string{&c.BlobDir, &c.StatePath, &c.ImportDir, &c.ImportRules} {
		if *p == "" {
			continue
		}

		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("resolving path %q: %w", *p, err)
		}

		*p = abs
	}

	return nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
