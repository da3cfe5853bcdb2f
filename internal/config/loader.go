package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load builds the effective configuration: defaults, then the TOML
// catalog file if one is present, then environment overrides. A .env
// file in the working directory is honored but never required.
func Load() (Config, error) {
	cfg := Defaults()

	_ = godotenv.Load()

	path := GetEnvOrDefault("ROUTER_CONFIG_FILE", "")
	if path == "" {
		if _, err := os.Stat("config.toml"); err == nil {
			path = "config.toml"
		}
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over both defaults
// and file values.
func applyEnvOverrides(cfg *Config) {
	cfg.Port = GetEnvOrDefault("PORT", cfg.Port)
	cfg.RequestTimeout = GetEnvAsDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.RateLimitRPS = GetEnvAsFloat("RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.RateLimitBurst = GetEnvAsInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)
	cfg.BatchLimit = GetEnvAsInt("BATCH_LIMIT", cfg.BatchLimit)
	cfg.EnableMetrics = GetEnvAsBool("ENABLE_METRICS", cfg.EnableMetrics)

	cfg.LogLevel = GetEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = GetEnvOrDefault("LOG_FORMAT", cfg.LogFormat)
	cfg.OtelEndpoint = GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OtelEndpoint)

	cfg.Objective = GetEnvOrDefault("ROUTER_OBJECTIVE", cfg.Objective)
	cfg.MaxHops = GetEnvAsInt("ROUTER_MAX_HOPS", cfg.MaxHops)
	cfg.SlippageTolerance = GetEnvAsFloat("ROUTER_SLIPPAGE_TOLERANCE", cfg.SlippageTolerance)
	cfg.GasMultiplier = GetEnvAsFloat("ROUTER_GAS_MULTIPLIER", cfg.GasMultiplier)
	cfg.BalanceCostWeight = GetEnvAsFloat("ROUTER_BALANCE_COST_WEIGHT", cfg.BalanceCostWeight)
	cfg.ReferenceCost = GetEnvAsFloat("ROUTER_REFERENCE_COST", cfg.ReferenceCost)
	cfg.ReferenceTime = GetEnvAsDuration("ROUTER_REFERENCE_TIME", cfg.ReferenceTime)

	cfg.GasSources = GetEnvAsSlice("GAS_SOURCES", cfg.GasSources)
	cfg.GasStrategy = GetEnvOrDefault("GAS_STRATEGY", cfg.GasStrategy)
	cfg.GasTrimPercent = GetEnvAsFloat("GAS_TRIM_PERCENT", cfg.GasTrimPercent)
	cfg.GasJitter = GetEnvAsFloat("GAS_JITTER", cfg.GasJitter)
	cfg.GasCacheTTL = GetEnvAsDuration("GAS_CACHE_TTL", cfg.GasCacheTTL)

	cfg.RedisAddr = GetEnvOrDefault("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = GetEnvOrDefault("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = GetEnvAsInt("REDIS_DB", cfg.RedisDB)

	cfg.EnableBreaker = GetEnvAsBool("ENABLE_CIRCUIT_BREAKER", cfg.EnableBreaker)
	cfg.MaxGasPrice = GetEnvAsFloat("MAX_GAS_PRICE", cfg.MaxGasPrice)
	cfg.MaxGasChange = GetEnvAsFloat("MAX_GAS_CHANGE", cfg.MaxGasChange)
	cfg.MinGasSources = GetEnvAsInt("MIN_GAS_SOURCES", cfg.MinGasSources)
	cfg.BreakerResetDelay = GetEnvAsDuration("CIRCUIT_RESET_DELAY", cfg.BreakerResetDelay)

	cfg.ExportEnabled = GetEnvAsBool("EXPORT_ENABLED", cfg.ExportEnabled)
	cfg.ExportBatchSize = GetEnvAsInt("EXPORT_BATCH_SIZE", cfg.ExportBatchSize)
	cfg.ExportInterval = GetEnvAsDuration("EXPORT_INTERVAL", cfg.ExportInterval)
	cfg.WebhookURL = GetEnvOrDefault("WEBHOOK_URL", cfg.WebhookURL)
	cfg.WebhookAPIKey = GetEnvOrDefault("WEBHOOK_API_KEY", cfg.WebhookAPIKey)

	cfg.SignQuotes = GetEnvAsBool("SIGN_QUOTES", cfg.SignQuotes)
	cfg.SignatureValidity = GetEnvAsDuration("SIGNATURE_VALIDITY", cfg.SignatureValidity)
}
