// Package common contains shared constants and sentinel errors used across
// songbook session components.
package common

import "time"

// DefaultTokenKey is the storage key under which the bearer token lives.
const DefaultTokenKey = "token"

// Product policy defaults.
const (
	DefaultDebounceInterval    = 5 * time.Second
	DefaultDeletionGraceWindow = 24 * time.Hour
)
