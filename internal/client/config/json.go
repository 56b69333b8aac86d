package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/songbook/songbook-session/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer and
// zero-value fields that are absent from the document leave the runtime
// Config untouched.
type JsonConfig struct {
	APIBaseURL          string          `json:"api_base_url"`
	StoreBackend        string          `json:"store_backend"`
	StoreDSN            string          `json:"store_dsn"`
	RedisAddr           string          `json:"redis_addr"`
	TokenKey            string          `json:"token_key"`
	DebounceInterval    *timex.Duration `json:"debounce_interval"`
	SyncPollInterval    *timex.Duration `json:"sync_poll_interval"`
	RequestTimeout      *timex.Duration `json:"request_timeout"`
	DeletionGraceWindow *timex.Duration `json:"deletion_grace_window"`
	FailClosed          *bool           `json:"fail_closed"`
	LogLevel            string          `json:"log_level"`
}

// parseJson overlays cfg with values loaded from the JSON file at path.
// An empty path is a no-op.
func parseJson(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.APIBaseURL, jc.APIBaseURL)
	setString(&cfg.StoreBackend, jc.StoreBackend)
	setString(&cfg.StoreDSN, jc.StoreDSN)
	setString(&cfg.RedisAddr, jc.RedisAddr)
	setString(&cfg.TokenKey, jc.TokenKey)
	setString(&cfg.LogLevel, jc.LogLevel)

	if jc.DebounceInterval != nil {
		cfg.DebounceInterval = jc.DebounceInterval.Duration
	}
	if jc.SyncPollInterval != nil {
		cfg.SyncPollInterval = jc.SyncPollInterval.Duration
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.DeletionGraceWindow != nil {
		cfg.DeletionGraceWindow = jc.DeletionGraceWindow.Duration
	}
	if jc.FailClosed != nil {
		cfg.FailClosed = *jc.FailClosed
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
