package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// MigrationConfig holds the full TOML-driven migration configuration.
// Secrets never live here; they come from the environment (see credentials).
type MigrationConfig struct {
	DataDir      string          `toml:"data_dir"`
	Baserow      BaserowConfig   `toml:"baserow"`
	Source       SourceConfig    `toml:"source"`
	SourceTables []SourceTable   `toml:"source_tables"`
	Provision    ProvisionConfig `toml:"provision"`

	// configDir is the directory containing the TOML file, used to resolve
	// relative data and schema paths.
	configDir string
}

// BaserowConfig identifies the destination database and its throttling.
type BaserowConfig struct {
	BaseURL      string `toml:"base_url"`
	DatabaseID   int    `toml:"database_id"`
	RateLimitMS  int    `toml:"rate_limit_ms"`  // minimum interval between API requests
	TablePauseMS int    `toml:"table_pause_ms"` // pause between table imports
}

// SourceConfig identifies the NocoDB instance exports are fetched from.
type SourceConfig struct {
	BaseURL         string `toml:"base_url"`
	PageDelayMS     int    `toml:"page_delay_ms"`
	RetryAttempts   int    `toml:"retry_attempts"`
	MaxRetryDelayMS int    `toml:"max_retry_delay_ms"`
	TableDelayMS    int    `toml:"table_delay_ms"`
}

// SourceTable maps a dataset table name to its NocoDB table identifier for
// the fetch subcommand.
type SourceTable struct {
	Name string `toml:"name"`
	ID   string `toml:"id"`
}

// ProvisionConfig points at the field layout file used by the one-time
// provisioning pass.
type ProvisionConfig struct {
	SchemasFile string `toml:"schemas_file"`
}

// credentials are the secrets read from the environment (or a .env file).
type credentials struct {
	APIToken     string // Baserow database token, required for data operations
	UserEmail    string // operator login for JWT structural operations
	UserPassword string
	SourceToken  string // NocoDB xc-token, required only for fetch
}

// loadConfig reads a TOML config file and returns a MigrationConfig with
// defaults applied. Unknown keys are rejected.
func loadConfig(path string) (*MigrationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := MigrationConfig{
		DataDir: filepath.Join("data", "JSON"),
		Baserow: BaserowConfig{
			RateLimitMS:  100,
			TablePauseMS: 2000,
		},
		Source: SourceConfig{
			PageDelayMS:     1000,
			RetryAttempts:   5,
			MaxRetryDelayMS: 10000,
			TableDelayMS:    5000,
		},
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.configDir = filepath.Dir(absPath)

	cfg.Baserow.BaseURL = strings.TrimSpace(cfg.Baserow.BaseURL)
	if cfg.Baserow.BaseURL == "" {
		return nil, fmt.Errorf("baserow.base_url is required")
	}
	if cfg.Baserow.DatabaseID <= 0 {
		return nil, fmt.Errorf("baserow.database_id is required")
	}
	if cfg.Baserow.RateLimitMS < 0 || cfg.Baserow.TablePauseMS < 0 {
		return nil, fmt.Errorf("baserow throttle intervals must not be negative")
	}
	if cfg.Source.RetryAttempts < 1 {
		return nil, fmt.Errorf("source.retry_attempts must be at least 1")
	}

	seen := make(map[string]bool, len(cfg.SourceTables))
	for _, st := range cfg.SourceTables {
		if st.Name == "" || st.ID == "" {
			return nil, fmt.Errorf("source_tables entries need both name and id")
		}
		if seen[st.Name] {
			return nil, fmt.Errorf("source_tables lists %q twice", st.Name)
		}
		seen[st.Name] = true
	}

	return &cfg, nil
}

// resolvePath resolves a path relative to the config file directory.
func (c *MigrationConfig) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.configDir, p)
}

func (c *MigrationConfig) rateLimitInterval() time.Duration {
	return time.Duration(c.Baserow.RateLimitMS) * time.Millisecond
}

func (c *MigrationConfig) tablePause() time.Duration {
	return time.Duration(c.Baserow.TablePauseMS) * time.Millisecond
}

// loadCredentials reads secrets from the environment, first merging in a
// .env file when one exists alongside the working directory.
func loadCredentials() credentials {
	_ = godotenv.Load() // absent .env is fine; the environment may be set directly
	return credentials{
		APIToken:     os.Getenv("API_TOKEN"),
		UserEmail:    os.Getenv("USER_EMAIL"),
		UserPassword: os.Getenv("USER_PASSWORD"),
		SourceToken:  os.Getenv("NOCODB_TOKEN"),
	}
}
