// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Engine() EngineConfig
	Analysis() AnalysisConfig
	Store() StoreConfig
	Scan() ScanConfig
	SetScanConfig(sc ScanConfig)
	Validate() error

	// Engine Setters
	SetEngineWorkerConcurrency(int)

	// Analysis Setters
	SetAnalysisRegistryOverlay(path string)

	// Store Setters
	SetStoreEnabled(bool)
}

// Config holds the entire application configuration. Fields stay exported so
// viper can unmarshal into them; consumers go through the Interface's getter
// methods instead of reaching into the struct.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	EngineCfg   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	AnalysisCfg AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	StoreCfg    StoreConfig    `mapstructure:"store" yaml:"store"`
	// ScanCfg gets its marching orders from CLI flags, not the config file.
	ScanCfg ScanConfig `mapstructure:"-" yaml:"-"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Engine() EngineConfig     { return c.EngineCfg }
func (c *Config) Analysis() AnalysisConfig { return c.AnalysisCfg }
func (c *Config) Store() StoreConfig       { return c.StoreCfg }
func (c *Config) Scan() ScanConfig         { return c.ScanCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetScanConfig(sc ScanConfig) { c.ScanCfg = sc }

func (c *Config) SetEngineWorkerConcurrency(w int) { c.EngineCfg.WorkerConcurrency = w }

func (c *Config) SetAnalysisRegistryOverlay(path string) { c.AnalysisCfg.RegistryOverlay = path }

func (c *Config) SetStoreEnabled(b bool) { c.StoreCfg.Enabled = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// EngineConfig configures the batch analysis engine. The size and nesting
// bounds are enforced before a unit is handed to the analyzer, which itself
// has no internal limits.
type EngineConfig struct {
	WorkerConcurrency  int           `mapstructure:"worker_concurrency" yaml:"worker_concurrency"`
	QueueSize          int           `mapstructure:"queue_size" yaml:"queue_size"`
	MaxFileSizeBytes   int64         `mapstructure:"max_file_size_bytes" yaml:"max_file_size_bytes"`
	MaxNestingDepth    int           `mapstructure:"max_nesting_depth" yaml:"max_nesting_depth"`
	DefaultTaskTimeout time.Duration `mapstructure:"default_task_timeout" yaml:"default_task_timeout"`
}

// AnalysisConfig configures the taint analysis itself.
type AnalysisConfig struct {
	// RegistryOverlay is an optional YAML file layered over the built-in
	// source/sink/sanitizer registries.
	RegistryOverlay string `mapstructure:"registry_overlay" yaml:"registry_overlay"`
	// Languages restricts which language front ends are active. Empty means
	// all built-in languages.
	Languages []string `mapstructure:"languages" yaml:"languages"`
	// CrossFile enables summary sharing across units of one scan.
	CrossFile bool `mapstructure:"cross_file" yaml:"cross_file"`
}

// StoreConfig holds the connection details for the findings store.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"-"`
}

// ScanConfig holds settings populated from CLI flags for a specific scan job.
type ScanConfig struct {
	Targets     []string
	Output      string
	Format      string
	Concurrency int
}

// NewDefaultConfig creates a new configuration struct populated with default
// values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration
// parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "lancet")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Engine --
	v.SetDefault("engine.worker_concurrency", 0) // 0 means GOMAXPROCS
	v.SetDefault("engine.queue_size", 1000)
	v.SetDefault("engine.max_file_size_bytes", 2*1024*1024)
	v.SetDefault("engine.max_nesting_depth", 200)
	v.SetDefault("engine.default_task_timeout", "5m")

	// -- Analysis --
	v.SetDefault("analysis.registry_overlay", "")
	v.SetDefault("analysis.languages", []string{})
	v.SetDefault("analysis.cross_file", true)

	// -- Store --
	v.SetDefault("store.enabled", false)
}

// NewConfigFromViper creates a new configuration instance from a viper
// object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	v.BindEnv("store.url", "LANCET_DB_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the URL if Unmarshal didn't pick it up.
	if cfg.StoreCfg.Enabled && cfg.StoreCfg.URL == "" {
		cfg.StoreCfg.URL = os.Getenv("LANCET_DB_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.EngineCfg.WorkerConcurrency < 0 {
		return fmt.Errorf("engine.worker_concurrency must not be negative")
	}
	if c.EngineCfg.MaxFileSizeBytes <= 0 {
		return fmt.Errorf("engine.max_file_size_bytes must be a positive integer")
	}
	if c.EngineCfg.MaxNestingDepth <= 0 {
		return fmt.Errorf("engine.max_nesting_depth must be a positive integer")
	}
	if c.StoreCfg.Enabled && c.StoreCfg.URL == "" {
		return fmt.Errorf("store is enabled but no connection URL is set. Ensure LANCET_DB_URL is set")
	}
	return nil
}
