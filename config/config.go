// Package config loads the JobStore's connection and timing options from
// disk, the same way the teacher's config/config.go loads SMTPConfig:
// os.Open + json.NewDecoder, then setDefaults and validate as separate
// passes. LoadConfig never terminates the process; callers handle the
// returned error.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// RedisConfig describes how to reach the KV cluster (spec §6's "endpoint
// list, credentials, database index, primary discovery config").
type RedisConfig struct {
	Addrs    []string `json:"addrs"`
	Username string   `json:"username,omitempty"`
	Password string   `json:"password,omitempty"`
	DB       int      `json:"db"`
	UseTLS   bool      `json:"use_tls"`
}

// LogConfig mirrors the teacher's LogConfig, unchanged in shape: the
// ambient logging concern does not change across domains.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// AppConfig is the JobStore's full configuration (spec §6's
// Configuration table).
type AppConfig struct {
	Redis RedisConfig `json:"redis"`
	Log   LogConfig   `json:"log"`

	KeyPrefix          string        `json:"key_prefix"`
	KeyDelimiter       string        `json:"key_delimiter"`
	InstanceID         string        `json:"instance_id"`
	RedisLockTimeout   time.Duration `json:"redis_lock_timeout"`
	TriggerLockTimeout time.Duration `json:"trigger_lock_timeout"`
	MisfireThreshold   time.Duration `json:"misfire_threshold"`
}

// LoadConfig reads JSON config from disk and returns a parsed AppConfig.
func LoadConfig(path string) (*AppConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("warning: failed to close config file: %v\n", closeErr)
		}
	}()

	var cfg AppConfig
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config JSON: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// setDefaults applies spec §6's documented defaults to missing values.
func (c *AppConfig) setDefaults() {
	if c.KeyDelimiter == "" {
		c.KeyDelimiter = ":"
	}
	if c.RedisLockTimeout == 0 {
		c.RedisLockTimeout = 5 * time.Second
	}
	if c.TriggerLockTimeout == 0 {
		c.TriggerLockTimeout = 5 * time.Minute
	}
	if c.InstanceID == "" {
		c.InstanceID = newInstanceID()
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Redis.DB < 0 {
		c.Redis.DB = 0
	}
}

func (c *AppConfig) validate() error {
	if len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("redis.addrs is required")
	}
	if c.RedisLockTimeout <= 0 {
		return fmt.Errorf("redis_lock_timeout must be positive")
	}
	if c.TriggerLockTimeout <= 0 {
		return fmt.Errorf("trigger_lock_timeout must be positive")
	}
	if c.MisfireThreshold < 0 {
		return fmt.Errorf("misfire_threshold cannot be negative")
	}
	return nil
}
