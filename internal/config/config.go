// Package config provides configuration loading and management for the application.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/route-optimizer-ea/internal/types"
)

// Config holds all application configuration. Routing parameters and
// the chain/bridge catalog can come from a TOML file; operational
// settings are environment-only and tagged toml:"-".
type Config struct {
	// HTTP server settings
	Port           string        `toml:"-"`
	RequestTimeout time.Duration `toml:"-"`
	RateLimitRPS   float64       `toml:"-"`
	RateLimitBurst int           `toml:"-"`
	BatchLimit     int           `toml:"-"`
	EnableMetrics  bool          `toml:"-"`

	// Logging
	LogLevel  string `toml:"-"`
	LogFormat string `toml:"-"`

	// OpenTelemetry endpoint for observability
	OtelEndpoint string `toml:"-"`

	// Routing parameters
	Objective         string  `toml:"objective"`
	MaxHops           int     `toml:"max_hops"`
	SlippageTolerance float64 `toml:"slippage_tolerance"`
	GasMultiplier     float64 `toml:"gas_multiplier"`

	// Balance-objective normalization constants
	BalanceCostWeight float64       `toml:"balance_cost_weight"`
	ReferenceCost     float64       `toml:"reference_cost_usd"`
	ReferenceTime     time.Duration `toml:"-"`

	// Gas pipeline settings
	GasSources     []string      `toml:"-"` // simulated, static, http, rpc
	GasStrategy    string        `toml:"-"` // weighted, median, trimmed_mean
	GasTrimPercent float64       `toml:"-"`
	GasJitter      float64       `toml:"-"`
	GasCacheTTL    time.Duration `toml:"-"`

	// Redis cache (optional, disabled when addr is empty)
	RedisAddr     string `toml:"-"`
	RedisPassword string `toml:"-"`
	RedisDB       int    `toml:"-"`

	// Circuit breaker settings for the gas pipeline
	EnableBreaker     bool          `toml:"-"`
	MaxGasPrice       float64       `toml:"-"`
	MaxGasChange      float64       `toml:"-"`
	MinGasSources     int           `toml:"-"`
	BreakerResetDelay time.Duration `toml:"-"`

	// Analytics export
	ExportEnabled   bool          `toml:"-"`
	ExportBatchSize int           `toml:"-"`
	ExportInterval  time.Duration `toml:"-"`
	WebhookURL      string        `toml:"-"`
	WebhookAPIKey   string        `toml:"-"`

	// Quote signing
	SignQuotes        bool          `toml:"-"`
	SignatureValidity time.Duration `toml:"-"`

	// Chain/bridge catalog
	Chains  map[types.Chain]types.ChainSettings   `toml:"chains"`
	Bridges map[types.Bridge]types.BridgeSettings `toml:"bridges"`
}

// Defaults returns the configuration used when no file or environment
// overrides are present.
func Defaults() Config {
	return Config{
		Port:           "8080",
		RequestTimeout: 10 * time.Second,
		RateLimitRPS:   50,
		RateLimitBurst: 100,
		BatchLimit:     20,
		EnableMetrics:  true,

		LogLevel:  "info",
		LogFormat: "json",

		Objective:         "balance",
		MaxHops:           3,
		SlippageTolerance: 0.005,
		GasMultiplier:     1.0,

		BalanceCostWeight: 0.5,
		ReferenceCost:     10.0,
		ReferenceTime:     10 * time.Minute,

		GasSources:     []string{"simulated"},
		GasStrategy:    "weighted",
		GasTrimPercent: 0.1,
		GasJitter:      0.1,
		GasCacheTTL:    15 * time.Second,

		EnableBreaker:     true,
		MaxGasPrice:       500.0,
		MaxGasChange:      3.0,
		MinGasSources:     1,
		BreakerResetDelay: time.Minute,

		ExportBatchSize: 100,
		ExportInterval:  time.Minute,

		SignatureValidity: 5 * time.Minute,

		Chains:  types.DefaultChainSettings(),
		Bridges: types.DefaultBridgeSettings(),
	}
}

// Validate checks the operational settings, collecting every problem
// into a single error. Catalog and routing parameters are validated
// separately when the route catalog is constructed.
func (c Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("port must not be empty"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.RateLimitRPS <= 0 {
		errs = append(errs, errors.New("rate limit rps must be positive"))
	}
	if c.RateLimitBurst < 1 {
		errs = append(errs, errors.New("rate limit burst must be at least 1"))
	}
	if c.BatchLimit < 1 {
		errs = append(errs, errors.New("batch limit must be at least 1"))
	}
	if len(c.GasSources) == 0 {
		errs = append(errs, errors.New("at least one gas source must be configured"))
	}
	for _, s := range c.GasSources {
		switch s {
		case "simulated", "static", "http", "rpc":
		default:
			errs = append(errs, fmt.Errorf("unknown gas source %q", s))
		}
	}
	switch c.GasStrategy {
	case "weighted", "median", "trimmed_mean":
	default:
		errs = append(errs, fmt.Errorf("unknown gas strategy %q", c.GasStrategy))
	}
	if c.GasJitter < 0 || c.GasJitter >= 1 {
		errs = append(errs, errors.New("gas jitter must be in [0,1)"))
	}
	if c.ExportEnabled && c.WebhookURL == "" {
		errs = append(errs, errors.New("export enabled but no webhook url configured"))
	}

	return errors.Join(errs...)
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetEnvAsSlice retrieves a comma-separated environment variable as a
// string slice with a default value
func GetEnvAsSlice(key string, defaultValue []string) []string {
	if value, exists := GetEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
