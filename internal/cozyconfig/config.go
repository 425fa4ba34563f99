// Package cozyconfig holds the daemon's on-disk configuration, loaded via
// spf13/viper + joho/godotenv, grounded on internal/client/config's
// Config/Validate/Save shape but re-pointed at this engine's S3-backed
// remote instead of a bespoke HTTP API.
package cozyconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".cozysync", "config.json")
	DefaultDataDir    = filepath.Join(home, "CozySync")
	DefaultStorePath  = filepath.Join(home, ".cozysync", "store.db")
	DefaultLogPath    = filepath.Join(home, ".cozysync", "logs", "cozysync.log")
)

var ErrInvalidConfig = errors.New("cozyconfig: invalid configuration")

// Config is the full set of knobs the daemon needs to start a sync pair.
type Config struct {
	DataDir      string `json:"data_dir" mapstructure:"data_dir"`
	StorePath    string `json:"store_path" mapstructure:"store_path"`
	S3Bucket     string `json:"s3_bucket" mapstructure:"s3_bucket"`
	S3Prefix     string `json:"s3_prefix,omitempty" mapstructure:"s3_prefix"`
	S3Region     string `json:"s3_region,omitempty" mapstructure:"s3_region"`
	S3Endpoint   string `json:"s3_endpoint,omitempty" mapstructure:"s3_endpoint"`
	IDCase       string `json:"id_case,omitempty" mapstructure:"id_case"`
	Path         string `json:"-" mapstructure:"config_path"`
}

// Save persists the config as JSON, creating parent directories as needed.
func (c *Config) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(c.Path, data, 0o644)
}

// Validate fills in defaults and rejects a config missing required fields.
func (c *Config) Validate() error {
	if c.Path == "" {
		c.Path = DefaultConfigPath
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.StorePath == "" {
		c.StorePath = DefaultStorePath
	}
	if c.IDCase == "" {
		c.IDCase = "case-sensitive"
	}
	if c.S3Bucket == "" {
		return fmt.Errorf("%w: s3_bucket is required", ErrInvalidConfig)
	}

	abs, err := filepath.Abs(c.DataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	c.DataDir = abs

	return nil
}
