package session

import (
	"time"

	"github.com/songbook/songbook-session/internal/client/models"
)

// Phase is the coarse position of the session state machine.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseLoading
	PhaseAuthenticated
	PhaseAnonymous
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseLoading:
		return "loading"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// State is a snapshot of the session as consumers see it. User is a copy;
// mutating it does not affect the manager.
//
// User != nil implies Authenticated. Authenticated may be true with a nil
// User when the first identity fetch failed transiently while a token was
// present.
type State struct {
	Phase         Phase
	Authenticated bool
	User          *models.User
	Loading       bool
	LastFetch     time.Time
}

// IsAdmin reports whether the cached identity carries the admin flag.
func (s State) IsAdmin() bool {
	return s.User != nil && s.User.IsAdmin
}
