package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultAppName         = "CardLedger"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultJournalStream   = "card_ledger:journal"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultDBMaxConns      = 4
	defaultBackendTimeout  = 2 * time.Second
	configFileEnvVar       = "CONFIG_FILE"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	backendSecondsEnvVar   = "BACKEND_TIMEOUT_SECONDS"
	backendDurationEnvVar  = "BACKEND_TIMEOUT"
)

// Config captures application runtime configuration. Values come from an
// optional YAML file named by CONFIG_FILE, overridden by environment variables.
type Config struct {
	AppName        string        `yaml:"app_name"`
	AppEnv         string        `yaml:"app_env"`
	Port           string        `yaml:"port"`
	LogLevel       string        `yaml:"log_level"`
	DatabaseURL    string        `yaml:"database_url"`
	DBMaxConns     int32         `yaml:"database_max_conns"`
	RedisURL       string        `yaml:"redis_url"`
	JournalStream  string        `yaml:"journal_stream"`
	JournalPepper  string        `yaml:"journal_pepper"`
	ShutdownPeriod time.Duration `yaml:"shutdown_timeout"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
	// BackendTimeout bounds the startup ping to Postgres and Redis.
	BackendTimeout time.Duration `yaml:"backend_timeout"`
}

// Load reads the optional config file and then the environment.
func Load() (Config, error) {
	cfg := Config{
		AppName:        defaultAppName,
		AppEnv:         defaultAppEnv,
		Port:           defaultPort,
		LogLevel:       defaultLogLevel,
		JournalStream:  defaultJournalStream,
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
		DBMaxConns:     defaultDBMaxConns,
		BackendTimeout: defaultBackendTimeout,
	}

	if path := os.Getenv(configFileEnvVar); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", configFileEnvVar, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.AppName = getEnv("APP_NAME", cfg.AppName)
	cfg.AppEnv = getEnv("APP_ENV", cfg.AppEnv)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", cfg.LogLevel))
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.JournalStream = getEnv("JOURNAL_STREAM", cfg.JournalStream)
	cfg.JournalPepper = getEnv("JOURNAL_PEPPER", cfg.JournalPepper)

	period, err := durationFromEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod)
	if err != nil {
		return Config{}, err
	}
	cfg.ShutdownPeriod = period

	ttl, err := durationFromEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.IdempotencyTTL = ttl

	if v := os.Getenv("DATABASE_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DATABASE_MAX_CONNS: %w", err)
		}
		cfg.DBMaxConns = int32(n)
	}
	if cfg.DBMaxConns < 1 {
		return Config{}, fmt.Errorf("DATABASE_MAX_CONNS must be positive, got %d", cfg.DBMaxConns)
	}

	timeout, err := durationFromEnv(backendSecondsEnvVar, backendDurationEnvVar, cfg.BackendTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.BackendTimeout = timeout

	if cfg.JournalStream == "" {
		return Config{}, fmt.Errorf("JOURNAL_STREAM must not be empty")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a local environment where Postgres
// and Redis are optional.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// durationFromEnv prefers the integer seconds variable over the Go duration one.
func durationFromEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
