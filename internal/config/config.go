package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Defaults
const (
	DefaultDriver            = "sqlite3"
	DefaultDatabaseURL       = "data/lexicon.db"
	DefaultLogLevel          = "info"
	DefaultReconcileInterval = 10 * time.Minute
)

// Config represents the configuration of the service
type Config struct {
	// Database driver, sqlite3 or postgres
	DBDriver string
	// Driver-specific data source name
	DatabaseURL string
	LogLevel    string
	LogPretty   bool
	// Telegram notifications are disabled when empty
	TelegramToken string
	// Time between reconciliation passes
	ReconcileInterval time.Duration
	// Address for the Prometheus endpoint, disabled when empty
	MetricsAddr string
	// Actors seeded as admins on start
	PrivilegedActorIDs []string
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DBDriver:          DefaultDriver,
		DatabaseURL:       DefaultDatabaseURL,
		LogLevel:          DefaultLogLevel,
		ReconcileInterval: DefaultReconcileInterval,
	}
}

// Load reads envFile if it exists, then the environment. Invalid values
// keep their defaults and are reported as warnings on log.
func Load(envFile string, log zerolog.Logger) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return FromLookup(os.LookupEnv, log), nil
}

// FromLookup builds a configuration from a variable lookup function
func FromLookup(lookup func(string) (string, bool), log zerolog.Logger) *Config {
	cfg := DefaultConfig()
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	switch driver := get("DB_DRIVER"); driver {
	case "":
	case "sqlite3", "postgres":
		cfg.DBDriver = driver
	default:
		log.Warn().Str("DB_DRIVER", driver).Msg("unknown database driver, using sqlite3")
	}
	if v := get("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := get("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := get("LOG_PRETTY"); v != "" {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			log.Warn().Str("LOG_PRETTY", v).Msg("invalid boolean, ignoring")
		}
		cfg.LogPretty = pretty
	}
	cfg.TelegramToken = get("TELEGRAM_BOT_TOKEN")
	if v := get("RECONCILE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil && d > 0 {
			cfg.ReconcileInterval = d
		} else {
			log.Warn().Str("RECONCILE_INTERVAL", v).Dur("default", cfg.ReconcileInterval).Msg("invalid interval, using default")
		}
	}
	cfg.MetricsAddr = get("METRICS_ADDR")

	for _, id := range strings.Split(get("PRIVILEGED_ACTOR_IDS"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			cfg.PrivilegedActorIDs = append(cfg.PrivilegedActorIDs, id)
		}
	}
	return cfg
}
