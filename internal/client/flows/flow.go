// Package flows implements the token-bearing account lifecycle requests:
// password reset, email verification, email change and account deletion
// confirmation.
//
// Each flow value is a small state machine (idle, loading, then success,
// error or expired) owned by one caller. Input is validated before any
// network call, and backend failures are normalized into a Result whose
// Kind tells the caller which recovery path to offer.
package flows

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/songbook/songbook-session/internal/client/client"
	"github.com/songbook/songbook-session/internal/client/models"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusExpired Status = "expired"
)

// Kind classifies a finished flow for the caller.
type Kind string

const (
	KindNone       Kind = ""
	KindValidation Kind = "validation"
	// KindTerminal means the page cannot proceed at all, e.g. a missing
	// token. It is never retried automatically.
	KindTerminal Kind = "terminal"
	KindExpired  Kind = "expired"
	KindRejected Kind = "rejected"
	KindNetwork  Kind = "network"
)

var (
	ErrValidation       = errors.New("invalid input")
	ErrMissingToken     = errors.New("missing token")
	ErrExpired          = errors.New("link expired")
	ErrInFlight         = errors.New("request already in progress")
	ErrAlreadySubmitted = errors.New("already submitted")
)

const (
	msgNetwork  = "Could not reach the server. Please try again."
	msgGeneric  = "Something went wrong. Please try again."
	msgExpired  = "This link has expired. Please request a new one."
	msgNoToken  = "The link is incomplete: no token was provided."
	msgRejected = "The request was rejected."
)

// expiryMarkers are matched case-insensitively against backend details.
var expiryMarkers = []string{"expired", "expirado"}

// Result is the observable outcome of a flow.
type Result struct {
	Status  Status
	Kind    Kind
	Message string
}

// Backend is the subset of the API a flow needs.
type Backend interface {
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, password string) (string, error)
	VerifyResetToken(ctx context.Context, token string) (models.ResetTokenCheck, error)
	VerifyEmail(ctx context.Context, token string) (string, error)
	ResendVerification(ctx context.Context, email string) (string, error)
	ConfirmEmailChange(ctx context.Context, token string) (string, error)
	ConfirmAccountDeletion(ctx context.Context, token string) (models.DeletionConfirmation, error)
}

var _ Backend = (*client.HTTPClient)(nil)

// state is embedded by every flow.
type state struct {
	mu     sync.Mutex
	result Result
}

func (s *state) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result.Status == StatusLoading {
		return ErrInFlight
	}
	s.result = Result{Status: StatusLoading}
	return nil
}

func (s *state) settle(r Result) Result {
	s.mu.Lock()
	s.result = r
	s.mu.Unlock()
	return r
}

// reject records a result produced before any request was sent. A request
// already in flight keeps its loading state.
func (s *state) reject(r Result, err error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result.Status == StatusLoading {
		return r, err
	}
	s.result = r
	return r, err
}

// Result returns the latest outcome; a fresh flow reports StatusIdle.
func (s *state) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result.Status == "" {
		return Result{Status: StatusIdle}
	}
	return s.result
}

// Reset returns the flow to idle so it can be submitted again.
func (s *state) Reset() {
	s.mu.Lock()
	s.result = Result{}
	s.mu.Unlock()
}

func success(msg string) Result {
	return Result{Status: StatusSuccess, Message: msg}
}

func invalid(err error) (Result, error) {
	return Result{Status: StatusError, Kind: KindValidation, Message: err.Error()}, errors.Join(ErrValidation, err)
}

func missingToken() (Result, error) {
	return Result{Status: StatusError, Kind: KindTerminal, Message: msgNoToken}, ErrMissingToken
}

func hasExpiryMarker(detail string) bool {
	d := strings.ToLower(detail)
	for _, m := range expiryMarkers {
		if strings.Contains(d, m) {
			return true
		}
	}
	return false
}

// classify turns a backend failure into a Result. With detectExpiry set, a
// 400 whose detail carries an expiry marker becomes StatusExpired.
func classify(err error, detectExpiry bool) (Result, error) {
	switch {
	case errors.Is(err, context.Canceled):
		return Result{Status: StatusError, Kind: KindNetwork, Message: msgGeneric}, err
	case errors.Is(err, client.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return Result{Status: StatusError, Kind: KindNetwork, Message: msgNetwork}, err
	}

	status := client.StatusOf(err)
	if status == 0 {
		return Result{Status: StatusError, Kind: KindNetwork, Message: msgGeneric}, err
	}

	detail := client.DetailOf(err)
	if detectExpiry && status == http.StatusBadRequest && hasExpiryMarker(detail) {
		return Result{Status: StatusExpired, Kind: KindExpired, Message: msgExpired}, errors.Join(ErrExpired, err)
	}
	if detail == "" {
		detail = msgRejected
	}
	return Result{Status: StatusError, Kind: KindRejected, Message: detail}, err
}
