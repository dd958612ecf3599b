// Package config holds the options recognised by the feelback SDK.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Storage drivers understood by the SDK
const (
	StorageBolt   = "bolt"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config holds every SDK option. Field names on disk match the option names
// used by the mobile SDKs so one file can configure all platforms.
type Config struct {
	EnableAutoFrustrationDetection bool   `yaml:"enableAutoFrustrationDetection" toml:"enableAutoFrustrationDetection"`
	FrustrationThreshold           int    `yaml:"frustrationThreshold" toml:"frustrationThreshold"`
	RageTapThreshold               int    `yaml:"rageTapThreshold" toml:"rageTapThreshold"`
	RageTapWindowMs                int    `yaml:"rageTapWindowMs" toml:"rageTapWindowMs"`
	EnableAutoIntervention         bool   `yaml:"enableAutoIntervention" toml:"enableAutoIntervention"`
	InterventionDelayMs            int    `yaml:"interventionDelayMs" toml:"interventionDelayMs"`
	ReviewPromptMinimumSessions    int    `yaml:"reviewPromptMinimumSessions" toml:"reviewPromptMinimumSessions"`
	ReviewPromptCooldownDays       int    `yaml:"reviewPromptCooldownDays" toml:"reviewPromptCooldownDays"`
	EventBatchSize                 int    `yaml:"eventBatchSize" toml:"eventBatchSize"`
	EventFlushIntervalMs           int    `yaml:"eventFlushIntervalMs" toml:"eventFlushIntervalMs"`
	DebugLogging                   bool   `yaml:"debugLogging" toml:"debugLogging"`
	Environment                    string `yaml:"environment" toml:"environment"`

	// Delivery and storage
	Endpoint        string `yaml:"endpoint" toml:"endpoint"`
	DataDir         string `yaml:"dataDir" toml:"dataDir"`
	StorageDriver   string `yaml:"storageDriver" toml:"storageDriver"`
	MaxQueueSize    int    `yaml:"maxQueueSize" toml:"maxQueueSize"`
	CompressBatches bool   `yaml:"compressBatches" toml:"compressBatches"`
	HTTPTimeoutMs   int    `yaml:"httpTimeoutMs" toml:"httpTimeoutMs"`
}

// Default returns the documented defaults
func Default() Config {
	return Config{
		EnableAutoFrustrationDetection: true,
		FrustrationThreshold:           70,
		RageTapThreshold:               6,
		RageTapWindowMs:                2000,
		EnableAutoIntervention:         true,
		InterventionDelayMs:            1000,
		ReviewPromptMinimumSessions:    3,
		ReviewPromptCooldownDays:       90,
		EventBatchSize:                 20,
		EventFlushIntervalMs:           30000,
		DebugLogging:                   false,
		Environment:                    "production",

		Endpoint:        "https://collector.feelback.dev",
		DataDir:         "./feelback-data",
		StorageDriver:   StorageBolt,
		MaxQueueSize:    1000,
		CompressBatches: false,
		HTTPTimeoutMs:   10000,
	}
}

// Load reads a YAML or TOML file on top of the defaults. The format is chosen
// by extension; anything other than .toml is parsed as YAML.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	return cfg, nil
}

// ApplyEnv overrides deployment-specific options from FEELBACK_* variables
func (c *Config) ApplyEnv() {
	c.Endpoint = getEnv("FEELBACK_ENDPOINT", c.Endpoint)
	c.Environment = getEnv("FEELBACK_ENVIRONMENT", c.Environment)
	c.DataDir = getEnv("FEELBACK_DATA_DIR", c.DataDir)
	c.StorageDriver = getEnv("FEELBACK_STORAGE_DRIVER", c.StorageDriver)
	c.DebugLogging = getBoolEnv("FEELBACK_DEBUG", c.DebugLogging)
	c.EventBatchSize = getIntEnv("FEELBACK_EVENT_BATCH_SIZE", c.EventBatchSize)
}

// Validate reports options that would break the SDK's invariants
func (c Config) Validate() error {
	var errs []error

	if c.RageTapThreshold < 1 {
		errs = append(errs, fmt.Errorf("rageTapThreshold must be at least 1, got %d", c.RageTapThreshold))
	}
	if c.RageTapWindowMs <= 0 {
		errs = append(errs, fmt.Errorf("rageTapWindowMs must be positive, got %d", c.RageTapWindowMs))
	}
	if c.FrustrationThreshold < 0 || c.FrustrationThreshold > 100 {
		errs = append(errs, fmt.Errorf("frustrationThreshold must be within 0-100, got %d", c.FrustrationThreshold))
	}
	if c.InterventionDelayMs < 0 {
		errs = append(errs, fmt.Errorf("interventionDelayMs must not be negative, got %d", c.InterventionDelayMs))
	}
	if c.ReviewPromptMinimumSessions < 0 {
		errs = append(errs, fmt.Errorf("reviewPromptMinimumSessions must not be negative, got %d", c.ReviewPromptMinimumSessions))
	}
	if c.ReviewPromptCooldownDays < 0 {
		errs = append(errs, fmt.Errorf("reviewPromptCooldownDays must not be negative, got %d", c.ReviewPromptCooldownDays))
	}
	if c.EventBatchSize < 1 {
		errs = append(errs, fmt.Errorf("eventBatchSize must be at least 1, got %d", c.EventBatchSize))
	}
	if c.EventFlushIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("eventFlushIntervalMs must be positive, got %d", c.EventFlushIntervalMs))
	}
	switch {
	case c.MaxQueueSize < 0:
		errs = append(errs, fmt.Errorf("maxQueueSize must not be negative, got %d", c.MaxQueueSize))
	case c.MaxQueueSize > 0 && c.MaxQueueSize < c.EventBatchSize:
		errs = append(errs, fmt.Errorf("maxQueueSize (%d) must be 0 (unbounded) or at least eventBatchSize (%d)", c.MaxQueueSize, c.EventBatchSize))
	}
	switch c.StorageDriver {
	case StorageBolt, StorageSQLite, StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storageDriver %q", c.StorageDriver))
	}
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint is required"))
	}

	return errors.Join(errs...)
}

// RageTapWindow returns rageTapWindowMs as a duration
func (c Config) RageTapWindow() time.Duration {
	return time.Duration(c.RageTapWindowMs) * time.Millisecond
}

// InterventionDelay returns interventionDelayMs as a duration
func (c Config) InterventionDelay() time.Duration {
	return time.Duration(c.InterventionDelayMs) * time.Millisecond
}

// FlushInterval returns eventFlushIntervalMs as a duration
func (c Config) FlushInterval() time.Duration {
	return time.Duration(c.EventFlushIntervalMs) * time.Millisecond
}

// HTTPTimeout returns httpTimeoutMs as a duration
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutMs) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
