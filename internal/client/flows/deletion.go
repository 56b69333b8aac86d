package flows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/songbook/songbook-session/internal/common"
	"github.com/songbook/songbook-session/internal/logging"
)

// AccountDeletionConfirm confirms a scheduled account deletion. The backend
// keeps the account for a grace window; logging in during it cancels the
// deletion. The flow only tells the user so.
type AccountDeletionConfirm struct {
	state
	backend     Backend
	log         logging.Logger
	grace       time.Duration
	scheduledAt time.Time
}

// NewAccountDeletionConfirm uses common.DefaultDeletionGraceWindow when
// grace is not positive.
func NewAccountDeletionConfirm(backend Backend, grace time.Duration, log logging.Logger) *AccountDeletionConfirm {
	if grace <= 0 {
		grace = common.DefaultDeletionGraceWindow
	}
	return &AccountDeletionConfirm{
		backend: backend,
		grace:   grace,
		log:     log.With("flow", "account_deletion_confirm"),
	}
}

func (f *AccountDeletionConfirm) Submit(ctx context.Context, token string) (Result, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return f.reject(missingToken())
	}
	if err := f.begin(); err != nil {
		return f.Result(), err
	}

	conf, err := f.backend.ConfirmAccountDeletion(ctx, token)
	if err != nil {
		f.log.Warn(ctx, "account deletion confirm failed", "error", err)
		r, err := classify(err, true)
		return f.settle(r), err
	}

	f.mu.Lock()
	f.scheduledAt = conf.ScheduledAt
	f.mu.Unlock()

	f.log.Info(ctx, "account deletion scheduled", "at", conf.ScheduledAt)
	return f.settle(success(deletionMessage(f.grace, conf.ScheduledAt))), nil
}

// ScheduledAt returns the deletion time reported by the backend, zero when
// it was not reported or the flow has not succeeded.
func (f *AccountDeletionConfirm) ScheduledAt() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scheduledAt
}

func deletionMessage(grace time.Duration, at time.Time) string {
	msg := "Your account will be deleted in " + humanizeWindow(grace)
	if !at.IsZero() {
		msg += fmt.Sprintf(" (on %s)", at.UTC().Format("2006-01-02 15:04 MST"))
	}
	return msg + ". Log in before then to cancel the deletion."
}

func humanizeWindow(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int64(d/time.Hour))
	case d%time.Minute == 0 && d < time.Hour:
		return fmt.Sprintf("%d minutes", int64(d/time.Minute))
	default:
		return d.String()
	}
}
