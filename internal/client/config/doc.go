// Package config loads runtime configuration for the songbook session client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c / --config.
//  3. Command-line flags registered by RegisterFlags, applied only when the
//     user set them explicitly.
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be strings like "5s" or integer
// nanoseconds:
//
//	{
//	  "api_base_url": "https://songbook.example/api",
//	  "store_backend": "redis",
//	  "redis_addr": "127.0.0.1:6379",
//	  "debounce_interval": "5s",
//	  "deletion_grace_window": "24h"
//	}
//
// Environment variables are not read; use the JSON file or flags.
package config
