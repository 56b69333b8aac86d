package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Flag names shared between RegisterFlags and LoadConfig.
const (
	flagConfig     = "config"
	flagAPI        = "api"
	flagStore      = "store"
	flagDB         = "db"
	flagRedis      = "redis"
	flagTokenKey   = "token-key"
	flagDebounce   = "debounce"
	flagPoll       = "poll"
	flagTimeout    = "timeout"
	flagGrace      = "deletion-grace"
	flagFailClosed = "fail-closed"
	flagLogLevel   = "log-level"
)

// RegisterFlags declares the configuration flags on fs. Defaults shown in
// help output come from (*Config).LoadDefaults.
func RegisterFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()

	fs.StringP(flagConfig, "c", "", "path to JSON config file")
	fs.StringP(flagAPI, "a", d.APIBaseURL, "backend API base URL")
	fs.String(flagStore, d.StoreBackend, "token store backend (sqlite|redis|memory)")
	fs.String(flagDB, d.StoreDSN, "SQLite database file for the token store")
	fs.String(flagRedis, d.RedisAddr, "Redis address for the token store")
	fs.String(flagTokenKey, d.TokenKey, "storage key of the bearer token")
	fs.Duration(flagDebounce, d.DebounceInterval, "minimum interval between identity fetches")
	fs.Duration(flagPoll, d.SyncPollInterval, "SQLite store change poll interval")
	fs.Duration(flagTimeout, d.RequestTimeout, "backend request timeout")
	fs.Duration(flagGrace, d.DeletionGraceWindow, "account deletion grace window shown to users")
	fs.Bool(flagFailClosed, d.FailClosed, "treat network errors as logged out")
	fs.String(flagLogLevel, d.LogLevel, "log level (debug|info|warn|error)")
}

// parseFlags overlays cfg with every flag the user set explicitly.
// Flags left at their defaults do not override JSON values.
func parseFlags(cfg *Config, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case flagAPI:
			cfg.APIBaseURL, err = fs.GetString(flagAPI)
		case flagStore:
			cfg.StoreBackend, err = fs.GetString(flagStore)
		case flagDB:
			cfg.StoreDSN, err = fs.GetString(flagDB)
		case flagRedis:
			cfg.RedisAddr, err = fs.GetString(flagRedis)
		case flagTokenKey:
			cfg.TokenKey, err = fs.GetString(flagTokenKey)
		case flagDebounce:
			cfg.DebounceInterval, err = fs.GetDuration(flagDebounce)
		case flagPoll:
			cfg.SyncPollInterval, err = fs.GetDuration(flagPoll)
		case flagTimeout:
			cfg.RequestTimeout, err = fs.GetDuration(flagTimeout)
		case flagGrace:
			cfg.DeletionGraceWindow, err = fs.GetDuration(flagGrace)
		case flagFailClosed:
			cfg.FailClosed, err = fs.GetBool(flagFailClosed)
		case flagLogLevel:
			cfg.LogLevel, err = fs.GetString(flagLogLevel)
		}
		if err != nil {
			err = fmt.Errorf("flag --%s: %w", f.Name, err)
		}
	})
	return err
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the JSON file named by --config (if any) and explicitly set flags. Later
// sources take precedence over earlier ones.
func LoadConfig(fs *pflag.FlagSet) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	path, err := fs.GetString(flagConfig)
	if err != nil {
		return nil, err
	}
	if err := parseJson(cfg, path); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, fs); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
