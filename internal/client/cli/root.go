package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/songbook/songbook-session/internal/buildinfo"
	"github.com/songbook/songbook-session/internal/client/config"
)

// buildApp is a test seam; commands obtain their App through it.
var buildApp = func(cmd *cobra.Command) (*App, error) {
	cfg, err := config.LoadConfig(cmd.Flags())
	if err != nil {
		return nil, err
	}
	return NewApp(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), cmd.InOrStdin())
}

// withApp builds the App, runs fn and closes the App afterwards.
func withApp(fn func(ctx context.Context, a *App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), a)
	}
}

// NewRootCommand creates the songbook command tree. Configuration flags are
// persistent so every subcommand accepts them.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "songbook",
		Short:         "Songbook session client",
		Long:          "Sign in to the songbook API, inspect and watch the session, and complete account emails (verification, password reset, deletion).",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newLoginCommand(),
		newLogoutCommand(),
		newStatusCommand(),
		newRefreshCommand(),
		newWatchCommand(),
		newShellCommand(),
		newVerifyEmailCommand(),
		newResendVerificationCommand(),
		newForgotPasswordCommand(),
		newResetPasswordCommand(),
		newConfirmDeletionCommand(),
		newConfirmEmailChangeCommand(),
		newVersionCommand(),
	)
	return cmd
}

func newLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *App) error {
			return a.Login(ctx)
		}),
	}
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session token",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *App) error {
			return a.Logout(ctx)
		}),
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *App) error {
			return a.Status(ctx)
		}),
	}
}

func newRefreshCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Re-validate the session against the API",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *App) error {
			return a.Refresh(ctx, force)
		}),
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "ignore the debounce window")
	return cmd
}

func newWatchCommand() *cobra.Command {
	var revalidate time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print session changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *App) error {
			return a.Watch(ctx, revalidate)
		}),
	}
	cmd.Flags().DurationVar(&revalidate, "revalidate", time.Minute, "refresh interval, 0 disables")
	return cmd
}

func newShellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive session shell",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *App) error {
			printlnFn("Songbook session shell (type 'help' for commands)")
			if err := a.session.Initialize(ctx); err != nil {
				a.log.Warn(ctx, "initial session load failed", "error", err)
			}
			runREPL(ctx, a, a.getStatus, a.reader)
			return nil
		}),
	}
}

func newVerifyEmailCommand() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "verify-email",
		Short: "Confirm an email address with the token from the verification link",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *App) error {
			return a.VerifyEmail(ctx, token)
		}),
	}
	cmd.Flags().StringVar(&token, "token", "", "verification token")
	return cmd
}

func newConfirmEmailChangeCommand() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "confirm-email-change",
		Short: "Apply an email change with the token from the confirmation link",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *App) error {
			return a.ConfirmEmailChange(ctx, token)
		}),
	}
	cmd.Flags().StringVar(&token, "token", "", "email change token")
	return cmd
}

func newResendVerificationCommand() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "resend-verification",
		Short: "Ask for a new verification email",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *App) error {
			return a.ResendVerification(ctx, email)
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "account email (prompted when empty)")
	return cmd
}

func newForgotPasswordCommand() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Request a password reset link",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *App) error {
			return a.ForgotPassword(ctx, email)
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "account email (prompted when empty)")
	return cmd
}

func newResetPasswordCommand() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with the token from the reset link",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *App) error {
			return a.ResetPassword(ctx, token)
		}),
	}
	cmd.Flags().StringVar(&token, "token", "", "password reset token")
	return cmd
}

func newConfirmDeletionCommand() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "confirm-deletion",
		Short: "Confirm account deletion with the token from the email",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *App) error {
			return a.ConfirmDeletion(ctx, token)
		}),
	}
	cmd.Flags().StringVar(&token, "token", "", "account deletion token")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			buildinfo.PrintBuildData(cmd.OutOrStdout())
		},
	}
}
