// Copyright 2025 Certen Protocol
//
// File configuration - loads a static deployment config from YAML, with
// ${VAR_NAME} / ${VAR_NAME:-default} environment substitution. Adapted
// from the teacher's pkg/config/anchor_config.go (its Duration wrapper
// type, substituteEnvVars regex, and Load-then-applyDefaults shape),
// retargeted from CometBFT/Ethereum/governance settings onto a vault
// node's storage/signing/RED/sync/observability settings.

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config but as a YAML document, for static
// deployment configuration rather than one-process-per-env-var-set
// operation.
type FileConfig struct {
	Environment string `yaml:"environment"`

	Storage StorageSettings `yaml:"storage"`
	Signer  SignerSettings  `yaml:"signer"`
	Red     RedSettings     `yaml:"red"`
	Sync    SyncSettings    `yaml:"sync"`
	Monitoring MonitoringSettings `yaml:"monitoring"`
}

// StorageSettings configures the content store backend.
type StorageSettings struct {
	Backend        string `yaml:"backend"`
	DataDir        string `yaml:"data_dir"`
	CometDBPath    string `yaml:"cometdb_path"`
	CometDBName    string `yaml:"cometdb_name"`
	DatabaseURL    string `yaml:"database_url"`
	DBMaxOpenConns int    `yaml:"db_max_open_conns"`
	DBMaxIdleConns int    `yaml:"db_max_idle_conns"`
}

// SignerSettings configures the vault's signing identity.
type SignerSettings struct {
	OwnerPrincipalID string `yaml:"owner_principal_id"`
	Ed25519KeyPath   string `yaml:"ed25519_key_path"`
}

// RedSettings configures the salience engine's tunables.
type RedSettings struct {
	Dimensions   uint32  `yaml:"dimensions"`
	LearningRate float64 `yaml:"learning_rate"`
}

// SyncSettings configures the peer sync protocol's network surface.
type SyncSettings struct {
	ListenAddr      string   `yaml:"listen_addr"`
	DialTimeout     Duration `yaml:"dial_timeout"`
	ProbeTimeout    Duration `yaml:"probe_timeout"`
	TransferTimeout Duration `yaml:"transfer_timeout"`
}

// MonitoringSettings configures metrics and logging.
type MonitoringSettings struct {
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Duration wraps time.Duration for YAML unmarshaling as a duration
// string ("30s", "5m") rather than a raw nanosecond integer.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// LoadFile loads a FileConfig from a YAML file, substituting
// ${VAR_NAME} / ${VAR_NAME:-default} references against the process
// environment before parsing.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := substituteEnvVars(string(data))

	var cfg FileConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in zero-valued fields with the same defaults Load
// uses for the environment-variable path, so the two loading paths agree
// when a field is left unset.
func (c *FileConfig) applyDefaults() {
	if c.Storage.Backend == "" {
		c.Storage.Backend = string(StoreBackendMemory)
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "./data"
	}
	if c.Storage.CometDBPath == "" {
		c.Storage.CometDBPath = "./data/store"
	}
	if c.Storage.CometDBName == "" {
		c.Storage.CometDBName = "vms"
	}
	if c.Storage.DBMaxOpenConns == 0 {
		c.Storage.DBMaxOpenConns = 25
	}
	if c.Storage.DBMaxIdleConns == 0 {
		c.Storage.DBMaxIdleConns = 5
	}
	if c.Red.Dimensions == 0 {
		c.Red.Dimensions = 65536
	}
	if c.Red.LearningRate == 0 {
		c.Red.LearningRate = 0.1
	}
	if c.Sync.ListenAddr == "" {
		c.Sync.ListenAddr = "0.0.0.0:7420"
	}
	if c.Sync.DialTimeout == 0 {
		c.Sync.DialTimeout = Duration(10 * time.Second)
	}
	if c.Sync.ProbeTimeout == 0 {
		c.Sync.ProbeTimeout = Duration(30 * time.Second)
	}
	if c.Sync.TransferTimeout == 0 {
		c.Sync.TransferTimeout = Duration(5 * time.Minute)
	}
	if c.Monitoring.MetricsAddr == "" {
		c.Monitoring.MetricsAddr = "0.0.0.0:9464"
	}
	if c.Monitoring.LogLevel == "" {
		c.Monitoring.LogLevel = "info"
	}
}

// ToConfig converts a FileConfig into the runtime Config shape shared
// with the environment-variable loading path.
func (c *FileConfig) ToConfig() *Config {
	return &Config{
		DataDir:          c.Storage.DataDir,
		StoreBackend:     StoreBackend(c.Storage.Backend),
		CometDBPath:      c.Storage.CometDBPath,
		CometDBName:      c.Storage.CometDBName,
		DatabaseURL:      c.Storage.DatabaseURL,
		DBMaxOpenConns:   c.Storage.DBMaxOpenConns,
		DBMaxIdleConns:   c.Storage.DBMaxIdleConns,
		OwnerPrincipalID: c.Signer.OwnerPrincipalID,
		Ed25519KeyPath:   c.Signer.Ed25519KeyPath,
		RedDimensions:    c.Red.Dimensions,
		RedLearningRate:  c.Red.LearningRate,
		ListenAddr:       c.Sync.ListenAddr,
		DialTimeout:      c.Sync.DialTimeout.Duration(),
		ProbeTimeout:     c.Sync.ProbeTimeout.Duration(),
		TransferTimeout:  c.Sync.TransferTimeout.Duration(),
		MetricsAddr:      c.Monitoring.MetricsAddr,
		LogLevel:         c.Monitoring.LogLevel,
	}
}

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// substituteEnvVars replaces ${VAR_NAME} with environment variable
// values, falling back to an inline default or the empty string.
func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}

		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}
