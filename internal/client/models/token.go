package models

import "time"

// TokenResponse is the result of a credential exchange.
type TokenResponse struct {
	AccessToken string
	TokenType   string
	Expiry      time.Time
}

// DeletionConfirmation is the backend's answer to a confirmed account
// deletion. ScheduledAt is zero when the backend omits it.
type DeletionConfirmation struct {
	Message     string
	ScheduledAt time.Time
}

// ResetTokenCheck is the backend's verdict on a password reset token
// before the new password is entered.
type ResetTokenCheck struct {
	Valid   bool
	Email   string
	Message string
}
