package cli

import (
	"context"

	"github.com/songbook/songbook-session/internal/client/flows"
	"github.com/songbook/songbook-session/internal/common"
)

// printResult writes a flow outcome and, where one exists, the next step.
func (a *App) printResult(r flows.Result) {
	a.printf("%s: %s\n", r.Status, r.Message)
	switch r.Kind {
	case flows.KindExpired:
		a.printf("Request a new link and try again.\n")
	case flows.KindTerminal:
		a.printf("Open the link from your email again, or log in.\n")
	}
}

func (a *App) VerifyEmail(ctx context.Context, token string) error {
	r, err := flows.NewEmailVerification(a.api, a.log).Submit(ctx, token)
	a.printResult(r)
	return err
}

func (a *App) ResendVerification(ctx context.Context, email string) error {
	if email == "" {
		var err error
		if email, err = getSimpleText(a.reader, "Enter email", a.out); err != nil {
			return err
		}
	}
	r, err := flows.NewResendVerification(a.api, a.log).Submit(ctx, email)
	a.printResult(r)
	return err
}

func (a *App) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		var err error
		if email, err = getSimpleText(a.reader, "Enter email", a.out); err != nil {
			return err
		}
	}
	r, err := flows.NewPasswordResetRequest(a.api, a.log).Submit(ctx, email)
	a.printResult(r)
	return err
}

func (a *App) ConfirmEmailChange(ctx context.Context, token string) error {
	r, err := flows.NewEmailChangeConfirm(a.api, a.log).Submit(ctx, token)
	a.printResult(r)
	if r.Status == flows.StatusSuccess {
		a.printf("Run `songbook resend-verification` if the verification email does not arrive.\n")
	}
	return err
}

// ResetPassword checks the token from the reset link, then prompts for the
// new password twice and submits it.
func (a *App) ResetPassword(ctx context.Context, token string) error {
	flow := flows.NewPasswordResetConfirm(a.api, a.log)
	r, err := flow.CheckToken(ctx, token)
	if err != nil {
		a.printResult(r)
		return err
	}
	a.printf("%s\n", r.Message)

	password, err := getPassword(a.out, "New password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := getPassword(a.out, "Repeat new password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	r, err = flow.Submit(ctx, token, string(password), string(confirm))
	a.printResult(r)
	return err
}

func (a *App) ConfirmDeletion(ctx context.Context, token string) error {
	r, err := flows.NewAccountDeletionConfirm(a.api, a.config.DeletionGraceWindow, a.log).Submit(ctx, token)
	a.printResult(r)
	if r.Status == flows.StatusSuccess {
		a.printf("Run `songbook login` to keep your account.\n")
	}
	return err
}
