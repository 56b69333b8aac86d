package flows

import (
	"context"
	"strings"

	"github.com/songbook/songbook-session/internal/logging"
)

const msgEmailChanged = "Your email address has been updated. Please verify the new address."

// EmailChangeConfirm applies a pending email change with the token from the
// confirmation link sent to the new address.
type EmailChangeConfirm struct {
	state
	backend Backend
	log     logging.Logger
}

func NewEmailChangeConfirm(backend Backend, log logging.Logger) *EmailChangeConfirm {
	return &EmailChangeConfirm{backend: backend, log: log.With("flow", "email_change_confirm")}
}

func (f *EmailChangeConfirm) Submit(ctx context.Context, token string) (Result, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return f.reject(missingToken())
	}
	if err := f.begin(); err != nil {
		return f.Result(), err
	}

	msg, err := f.backend.ConfirmEmailChange(ctx, token)
	if err != nil {
		f.log.Warn(ctx, "email change confirmation failed", "error", err)
		r, err := classify(err, true)
		return f.settle(r), err
	}
	if msg == "" {
		msg = msgEmailChanged
	}
	return f.settle(success(msg)), nil
}
