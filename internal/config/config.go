// Package config centralizes environment-derived settings. Both binaries
// call Load once at startup and thread the result through constructors;
// nothing else in the tree reads the process environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pfennig-app/pfennig/internal/errors"
	"github.com/pfennig-app/pfennig/internal/models"
)

const basePlaceholder = "{base}"

// Config holds every tunable of the exchange-rate core.
type Config struct {
	Env        string
	ServerPort string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Provider
	ProviderURL     string // contains {base}
	ProviderTimeout time.Duration

	// Currencies
	BaseCurrency     string   // pivot B
	BaseCurrencies   []string // refresh loop bases
	TargetCurrencies []string // the configured set S

	// Rate windows
	RecentWindow        time.Duration // staleness horizon for "current"
	NearestWindowDays   int           // conversion interpolation window
	MigrationWindowDays int           // migrator nearest-rate window

	// Cache and workers
	CacheCapacity        int
	HousekeepingInterval time.Duration
	RefreshCheckInterval time.Duration
	CaptureTimeout       time.Duration

	// Migrator files
	MigrationStateFile string
	MigrationLogFile   string
}

// Load reads the environment, applies defaults, and validates. Malformed
// values are configuration errors and should be fatal at startup.
func Load() (*Config, error) {
	cfg := &Config{
		Env:                getEnv("APP_ENV", getEnv("LOG_ENV", "development")),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             getEnv("DB_PORT", "5432"),
		DBUser:             getEnv("DB_USER", "pfennig_user"),
		DBPassword:         getEnv("DB_PASSWORD", "pfennig_password"),
		DBName:             getEnv("DB_NAME", "pfennig"),
		DBSSLMode:          getEnv("DB_SSL_MODE", "disable"),
		ProviderURL:        getEnv("FX_PROVIDER_URL", "https://api.exchangerate-api.com/v4/latest/"+basePlaceholder),
		BaseCurrency:       strings.ToUpper(getEnv("FX_BASE_CURRENCY", "EUR")),
		MigrationStateFile: getEnv("MIGRATION_STATE_FILE", "migration-state.json"),
		MigrationLogFile:   getEnv("MIGRATION_LOG_FILE", "migration.log"),
	}

	var err error
	if cfg.ProviderTimeout, err = getDuration("FX_PROVIDER_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.RecentWindow, err = getDuration("FX_RECENT_WINDOW", time.Hour); err != nil {
		return nil, err
	}
	if cfg.HousekeepingInterval, err = getDuration("CACHE_HOUSEKEEPING_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshCheckInterval, err = getDuration("REFRESH_CHECK_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.CaptureTimeout, err = getDuration("CAPTURE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.NearestWindowDays, err = getInt("FX_NEAREST_WINDOW_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.MigrationWindowDays, err = getInt("FX_MIGRATION_WINDOW_DAYS", 30); err != nil {
		return nil, err
	}
	if cfg.CacheCapacity, err = getInt("CACHE_CAPACITY", 2000); err != nil {
		return nil, err
	}

	cfg.BaseCurrencies = getCurrencyList("FX_BASE_CURRENCIES", []string{"EUR", "USD"})
	cfg.TargetCurrencies = getCurrencyList("FX_TARGET_CURRENCIES",
		[]string{"EUR", "USD", "GBP", "CHF", "ZAR", "JPY", "AUD", "CAD"})

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if !strings.Contains(c.ProviderURL, basePlaceholder) {
		return &errors.ErrConfiguration{Key: "FX_PROVIDER_URL", Message: "must contain the " + basePlaceholder + " placeholder"}
	}
	if c.CacheCapacity <= 0 {
		return &errors.ErrConfiguration{Key: "CACHE_CAPACITY", Message: "must be positive"}
	}
	for _, code := range c.TargetCurrencies {
		if !models.ValidCurrencyCode(code) {
			return &errors.ErrConfiguration{Key: "FX_TARGET_CURRENCIES", Message: "invalid currency code " + code}
		}
	}
	if !contains(c.TargetCurrencies, c.BaseCurrency) {
		return &errors.ErrConfiguration{Key: "FX_BASE_CURRENCY", Message: c.BaseCurrency + " is not in FX_TARGET_CURRENCIES"}
	}
	for _, base := range c.BaseCurrencies {
		if !contains(c.TargetCurrencies, base) {
			return &errors.ErrConfiguration{Key: "FX_BASE_CURRENCIES", Message: base + " is not in FX_TARGET_CURRENCIES"}
		}
	}
	return nil
}

// ProviderURLFor expands the {base} placeholder.
func (c *Config) ProviderURLFor(base string) string {
	return strings.ReplaceAll(c.ProviderURL, basePlaceholder, base)
}

// Supported reports whether code belongs to the configured set S.
func (c *Config) Supported(code string) bool {
	return contains(c.TargetCurrencies, strings.ToUpper(code))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, &errors.ErrConfiguration{Key: key, Message: "invalid duration " + raw}
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &errors.ErrConfiguration{Key: key, Message: "invalid integer " + raw}
	}
	return n, nil
}

func getCurrencyList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if code := strings.ToUpper(strings.TrimSpace(p)); code != "" {
			out = append(out, code)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func contains(list []string, code string) bool {
	for _, c := range list {
		if c == code {
			return true
		}
	}
	return false
}
