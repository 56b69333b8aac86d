package flows

import (
	"context"
	"strings"

	"github.com/songbook/songbook-session/internal/logging"
)

// MsgResetRequested is shown after every accepted reset request, whether or
// not the address belongs to an account.
const MsgResetRequested = "If an account exists for that email, a password reset link has been sent."

const (
	msgPasswordChanged = "Your password has been updated. You can now log in."
	msgResetTokenValid = "The reset link is valid. Choose a new password."
)

type PasswordResetRequest struct {
	state
	backend Backend
	log     logging.Logger
}

func NewPasswordResetRequest(backend Backend, log logging.Logger) *PasswordResetRequest {
	return &PasswordResetRequest{backend: backend, log: log.With("flow", "password_reset_request")}
}

// Submit asks the backend to mail a reset link. Backend failures are shown
// generically so the outcome never hints at whether the account exists.
func (f *PasswordResetRequest) Submit(ctx context.Context, email string) (Result, error) {
	email = strings.TrimSpace(email)
	if err := ValidateEmail(email); err != nil {
		return f.reject(invalid(err))
	}
	if err := f.begin(); err != nil {
		return f.Result(), err
	}

	if _, err := f.backend.ForgotPassword(ctx, email); err != nil {
		f.log.Warn(ctx, "password reset request failed", "error", err)
		r, err := classify(err, false)
		if r.Kind == KindRejected {
			r.Message = msgGeneric
		}
		return f.settle(r), err
	}
	return f.settle(success(MsgResetRequested)), nil
}

type PasswordResetConfirm struct {
	state
	backend Backend
	log     logging.Logger
}

func NewPasswordResetConfirm(backend Backend, log logging.Logger) *PasswordResetConfirm {
	return &PasswordResetConfirm{backend: backend, log: log.With("flow", "password_reset_confirm")}
}

// CheckToken asks the backend whether the reset token is still usable, so
// the caller can bail out before collecting a password. A usable token
// leaves the flow idle with a prompt message; an expired or invalid one
// yields StatusExpired.
func (f *PasswordResetConfirm) CheckToken(ctx context.Context, token string) (Result, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return f.reject(missingToken())
	}
	if err := f.begin(); err != nil {
		return f.Result(), err
	}

	check, err := f.backend.VerifyResetToken(ctx, token)
	if err != nil {
		f.log.Warn(ctx, "reset token check failed", "error", err)
		r, err := classify(err, true)
		return f.settle(r), err
	}
	if !check.Valid {
		return f.settle(Result{Status: StatusExpired, Kind: KindExpired, Message: msgExpired}), ErrExpired
	}

	msg := msgResetTokenValid
	if check.Email != "" {
		msg = "The reset link is valid for " + check.Email + ". Choose a new password."
	}
	return f.settle(Result{Status: StatusIdle, Message: msg}), nil
}

// Submit sets a new password with the token from the reset link. The token
// is checked by the backend; an expired one yields StatusExpired.
func (f *PasswordResetConfirm) Submit(ctx context.Context, token, password, confirm string) (Result, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return f.reject(missingToken())
	}
	if err := ValidatePassword(password); err != nil {
		return f.reject(invalid(err))
	}
	if err := ValidateConfirmation(password, confirm); err != nil {
		return f.reject(invalid(err))
	}
	if err := f.begin(); err != nil {
		return f.Result(), err
	}

	msg, err := f.backend.ResetPassword(ctx, token, password)
	if err != nil {
		f.log.Warn(ctx, "password reset failed", "error", err)
		r, err := classify(err, true)
		return f.settle(r), err
	}
	if msg == "" {
		msg = msgPasswordChanged
	}
	return f.settle(success(msg)), nil
}
