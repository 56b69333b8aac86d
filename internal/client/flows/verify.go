package flows

import (
	"context"
	"strings"

	"github.com/songbook/songbook-session/internal/logging"
)

const (
	msgVerified = "Your email has been verified."
	// MsgVerificationResent never reveals whether the address is registered.
	MsgVerificationResent = "If that email needs verification, a new link has been sent."
)

// EmailVerification submits a verification token at most once. Reset does
// not re-arm it.
type EmailVerification struct {
	state
	backend   Backend
	log       logging.Logger
	submitted bool
}

func NewEmailVerification(backend Backend, log logging.Logger) *EmailVerification {
	return &EmailVerification{backend: backend, log: log.With("flow", "email_verification")}
}

func (f *EmailVerification) Submit(ctx context.Context, token string) (Result, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return f.reject(missingToken())
	}

	f.mu.Lock()
	if f.submitted {
		f.mu.Unlock()
		return f.Result(), ErrAlreadySubmitted
	}
	f.submitted = true
	f.result = Result{Status: StatusLoading}
	f.mu.Unlock()

	msg, err := f.backend.VerifyEmail(ctx, token)
	if err != nil {
		f.log.Warn(ctx, "email verification failed", "error", err)
		r, err := classify(err, false)
		return f.settle(r), err
	}
	if msg == "" {
		msg = msgVerified
	}
	return f.settle(success(msg)), nil
}

// ResendVerification asks the backend to mail a fresh verification link.
type ResendVerification struct {
	state
	backend Backend
	log     logging.Logger
}

func NewResendVerification(backend Backend, log logging.Logger) *ResendVerification {
	return &ResendVerification{backend: backend, log: log.With("flow", "resend_verification")}
}

func (f *ResendVerification) Submit(ctx context.Context, email string) (Result, error) {
	email = strings.TrimSpace(email)
	if err := ValidateEmail(email); err != nil {
		return f.reject(invalid(err))
	}
	if err := f.begin(); err != nil {
		return f.Result(), err
	}

	if _, err := f.backend.ResendVerification(ctx, email); err != nil {
		f.log.Warn(ctx, "resend verification failed", "error", err)
		r, err := classify(err, false)
		if r.Kind == KindRejected {
			r.Message = msgGeneric
		}
		return f.settle(r), err
	}
	return f.settle(success(MsgVerificationResent)), nil
}
