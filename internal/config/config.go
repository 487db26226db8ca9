package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/tour-planner/internal/catalog/source"
)

const (
	defaultPort            = "8080"
	defaultRateLimitRPS    = 25.0
	defaultRateLimitBurst  = 50
	defaultCatalogSource   = source.KindYAML
	defaultCatalogDSN      = "data/catalog.yaml"
	defaultLoadConcurrency = 4
	defaultMaxTours        = 24
	defaultSearchTimeout   = 10 * time.Second
	defaultLogLevel        = "info"
	defaultMaxBodyBytes    = 1 << 20
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
	MaxBodyBytes         int64
	LogLevel             string

	CatalogSource          string
	CatalogDSN             string
	CatalogLoadConcurrency int

	MaxToursPerRegion int
	SearchTimeout     time.Duration
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	MaxBodyBytes         *int64        `yaml:"max_body_bytes"`
	LogLevel             string        `yaml:"log_level"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
	Catalog              yamlCatalog   `yaml:"catalog"`
	Optimizer            yamlOptimizer `yaml:"optimizer"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

type yamlCatalog struct {
	Source          string `yaml:"source"`
	DSN             string `yaml:"dsn"`
	LoadConcurrency *int   `yaml:"load_concurrency"`
}

type yamlOptimizer struct {
	MaxTours      *int   `yaml:"max_tours"`
	SearchTimeout string `yaml:"search_timeout"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Port           *string
	CatalogSource  *string
	CatalogDSN     *string
	MaxTours       *int
	LogLevel       *string
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Apply environment variables
	applyEnvConfig(&cfg)

	// Load from YAML file if specified (overrides env)
	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	// Apply CLI overrides (highest precedence)
	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	// Validate final configuration
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                   defaultPort,
		ShutdownGracePeriod:    10 * time.Second,
		ReadHeaderTimeout:      5 * time.Second,
		WriteTimeout:           15 * time.Second,
		IdleTimeout:            60 * time.Second,
		EnableRequestLogging:   true,
		RateLimitRPS:           defaultRateLimitRPS,
		RateLimitBurst:         defaultRateLimitBurst,
		MaxBodyBytes:           defaultMaxBodyBytes,
		LogLevel:               defaultLogLevel,
		CatalogSource:          defaultCatalogSource,
		CatalogDSN:             defaultCatalogDSN,
		CatalogLoadConcurrency: defaultLoadConcurrency,
		MaxToursPerRegion:      defaultMaxTours,
		SearchTimeout:          defaultSearchTimeout,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}

	durations := []struct {
		raw    string
		target *time.Duration
		name   string
	}{
		{yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod, "shutdown_grace_period"},
		{yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout, "read_header_timeout"},
		{yamlCfg.WriteTimeout, &cfg.WriteTimeout, "write_timeout"},
		{yamlCfg.IdleTimeout, &cfg.IdleTimeout, "idle_timeout"},
		{yamlCfg.Optimizer.SearchTimeout, &cfg.SearchTimeout, "optimizer.search_timeout"},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.target = parsed
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}
	if yamlCfg.MaxBodyBytes != nil {
		cfg.MaxBodyBytes = *yamlCfg.MaxBodyBytes
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}

	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}

	if yamlCfg.Catalog.Source != "" {
		cfg.CatalogSource = yamlCfg.Catalog.Source
	}
	if yamlCfg.Catalog.DSN != "" {
		cfg.CatalogDSN = yamlCfg.Catalog.DSN
	}
	if yamlCfg.Catalog.LoadConcurrency != nil {
		cfg.CatalogLoadConcurrency = *yamlCfg.Catalog.LoadConcurrency
	}
	if yamlCfg.Optimizer.MaxTours != nil {
		cfg.MaxToursPerRegion = *yamlCfg.Optimizer.MaxTours
	}

	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) {
	if port := env("PORT"); port != "" {
		cfg.Port = port
	}

	if rps := env("RATE_LIMIT_RPS"); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := env("RATE_LIMIT_BURST"); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}

	if level := env("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if src := env("CATALOG_SOURCE"); src != "" {
		cfg.CatalogSource = src
	}

	if dsn := env("CATALOG_DSN"); dsn != "" {
		cfg.CatalogDSN = dsn
	}

	if n := env("CATALOG_LOAD_CONCURRENCY"); n != "" {
		if value, err := strconv.Atoi(n); err == nil && value > 0 {
			cfg.CatalogLoadConcurrency = value
		}
	}

	if n := env("MAX_TOURS_PER_REGION"); n != "" {
		if value, err := strconv.Atoi(n); err == nil && value >= 0 {
			cfg.MaxToursPerRegion = value
		}
	}

	if timeout := env("SEARCH_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			cfg.SearchTimeout = d
		}
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.CatalogSource != nil && *overrides.CatalogSource != "" {
		cfg.CatalogSource = *overrides.CatalogSource
	}

	if overrides.CatalogDSN != nil && *overrides.CatalogDSN != "" {
		cfg.CatalogDSN = *overrides.CatalogDSN
	}

	if overrides.MaxTours != nil && *overrides.MaxTours >= 0 {
		cfg.MaxToursPerRegion = *overrides.MaxTours
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if !slices.Contains(source.Kinds(), cfg.CatalogSource) {
		return fmt.Errorf("catalog source must be one of %s, got %q", strings.Join(source.Kinds(), ", "), cfg.CatalogSource)
	}
	if strings.TrimSpace(cfg.CatalogDSN) == "" {
		return fmt.Errorf("catalog DSN cannot be empty")
	}
	if cfg.CatalogLoadConcurrency < 1 {
		return fmt.Errorf("catalog load concurrency must be >= 1")
	}
	if cfg.MaxToursPerRegion < 0 {
		return fmt.Errorf("MAX_TOURS_PER_REGION must be >= 0")
	}
	if cfg.SearchTimeout <= 0 {
		return fmt.Errorf("search timeout must be positive")
	}
	if cfg.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
