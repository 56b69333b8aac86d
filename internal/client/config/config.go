package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/songbook/songbook-session/internal/common"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds runtime settings for the session client.
//
// DebounceInterval and DeletionGraceWindow are product policy values; the
// defaults preserve the web front-end's behavior. FailClosed switches the
// session manager from the optimistic network-error policy to logging the
// user out locally (the token is still kept).
type Config struct {
	APIBaseURL          string
	StoreBackend        string
	StoreDSN            string
	RedisAddr           string
	TokenKey            string
	DebounceInterval    time.Duration
	SyncPollInterval    time.Duration
	RequestTimeout      time.Duration
	DeletionGraceWindow time.Duration
	FailClosed          bool
	LogLevel            string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8000/api"
	c.StoreBackend = BackendSQLite
	c.StoreDSN = "session.db"
	c.RedisAddr = "127.0.0.1:6379"
	c.TokenKey = common.DefaultTokenKey
	c.DebounceInterval = common.DefaultDebounceInterval
	c.SyncPollInterval = time.Second
	c.RequestTimeout = 10 * time.Second
	c.DeletionGraceWindow = common.DefaultDeletionGraceWindow
	c.FailClosed = false
	c.LogLevel = "info"
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.APIBaseURL == "" {
		return errors.New("api base url is required")
	}
	if c.TokenKey == "" {
		return errors.New("token key is required")
	}
	if c.DebounceInterval < 0 {
		return errors.New("debounce interval must not be negative")
	}
	if c.SyncPollInterval <= 0 {
		return errors.New("sync poll interval must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	if c.DeletionGraceWindow <= 0 {
		return errors.New("deletion grace window must be positive")
	}
	return nil
}
