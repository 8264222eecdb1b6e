// Copyright 2025 Certen Protocol
//
// Configuration - environment-variable loading for a vault node. Per
// SPEC_FULL.md's AMBIENT STACK: a flat Config struct with typed
// accessors and defaults, adapted from the teacher's pkg/config/config.go
// (getEnv/getEnvInt/getEnvBool/getEnvDuration helper family, Load/Validate
// shape) onto VMS's own settings instead of the teacher's Ethereum/
// Accumulate/CometBFT ones.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// StoreBackend names which ContentStore implementation a node uses.
type StoreBackend string

const (
	StoreBackendMemory   StoreBackend = "memory"
	StoreBackendCometBFT StoreBackend = "cometbft"
	StoreBackendPostgres StoreBackend = "postgres"
)

// Config holds all configuration for a VMS vault node.
type Config struct {
	// Storage
	DataDir        string
	StoreBackend   StoreBackend
	CometDBPath    string
	CometDBName    string
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Identity and signing
	OwnerPrincipalID string
	Ed25519KeyPath   string

	// RED engine
	RedDimensions   uint32
	RedLearningRate float64

	// Sync protocol
	ListenAddr      string
	DialTimeout     time.Duration
	ProbeTimeout    time.Duration
	TransferTimeout time.Duration

	// Observability
	MetricsAddr string
	LogLevel    string
}

// Load reads configuration from environment variables, applying the
// same safe-default-with-explicit-override policy the teacher's Load
// uses (getEnv with a default, never a silent zero value).
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:        getEnv("VMS_DATA_DIR", "./data"),
		StoreBackend:   StoreBackend(getEnv("VMS_STORE_BACKEND", string(StoreBackendMemory))),
		CometDBPath:    getEnv("VMS_COMETDB_PATH", "./data/store"),
		CometDBName:    getEnv("VMS_COMETDB_NAME", "vms"),
		DatabaseURL:    getEnv("VMS_DATABASE_URL", ""),
		DBMaxOpenConns: getEnvInt("VMS_DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("VMS_DB_MAX_IDLE_CONNS", 5),

		OwnerPrincipalID: getEnv("VMS_OWNER_PRINCIPAL_ID", ""),
		Ed25519KeyPath:   getEnv("VMS_ED25519_KEY_PATH", ""),

		RedDimensions:   uint32(getEnvInt("VMS_RED_DIMENSIONS", 65536)),
		RedLearningRate: getEnvFloat("VMS_RED_LEARNING_RATE", 0.1),

		ListenAddr:      getEnv("VMS_LISTEN_ADDR", "0.0.0.0:7420"),
		DialTimeout:     getEnvDuration("VMS_SYNC_DIAL_TIMEOUT", 10*time.Second),
		ProbeTimeout:    getEnvDuration("VMS_SYNC_PROBE_TIMEOUT", 30*time.Second),
		TransferTimeout: getEnvDuration("VMS_SYNC_TRANSFER_TIMEOUT", 5*time.Minute),

		MetricsAddr: getEnv("VMS_METRICS_ADDR", "0.0.0.0:9464"),
		LogLevel:    getEnv("VMS_LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent and
// that any values required by the selected store backend are present.
func (c *Config) Validate() error {
	var errs []string

	if c.OwnerPrincipalID == "" {
		errs = append(errs, "VMS_OWNER_PRINCIPAL_ID is required but not set")
	}

	switch c.StoreBackend {
	case StoreBackendMemory:
		// no further requirements
	case StoreBackendCometBFT:
		if c.CometDBPath == "" {
			errs = append(errs, "VMS_COMETDB_PATH is required when VMS_STORE_BACKEND=cometbft")
		}
	case StoreBackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, "VMS_DATABASE_URL is required when VMS_STORE_BACKEND=postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("VMS_STORE_BACKEND %q is not one of memory, cometbft, postgres", c.StoreBackend))
	}

	if c.RedDimensions == 0 {
		errs = append(errs, "VMS_RED_DIMENSIONS must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Helper functions for environment variable parsing, matching the
// teacher's getEnv/getEnvInt/getEnvBool/getEnvDuration family.

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
