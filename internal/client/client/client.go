package client

import (
	"context"

	"github.com/songbook/songbook-session/internal/client/models"
)

// Client is the backend API surface used by the session manager and the
// lifecycle flows. All methods honor context cancellation.
type Client interface {
	Login(ctx context.Context, username, password string) (models.TokenResponse, error)
	Me(ctx context.Context, token string) (*models.User, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, password string) (string, error)
	VerifyResetToken(ctx context.Context, token string) (models.ResetTokenCheck, error)
	VerifyEmail(ctx context.Context, token string) (string, error)
	ResendVerification(ctx context.Context, email string) (string, error)
	ConfirmEmailChange(ctx context.Context, token string) (string, error)
	ConfirmAccountDeletion(ctx context.Context, token string) (models.DeletionConfirmation, error)
}
