package cli

import (
	"context"
	"errors"
	"time"

	"github.com/songbook/songbook-session/internal/client/client"
	"github.com/songbook/songbook-session/internal/client/session"
	"github.com/songbook/songbook-session/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// now is the clock used for token expiry hints.
var now = time.Now

// Login prompts for a username (or email) and password and signs in.
//
// Wrong credentials are reported to the user and returned. A network error
// during the identity fetch that follows a successful exchange is only a
// warning: the token is stored and the session is kept.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username or email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	err = a.session.Login(ctx, userName, string(password))
	switch {
	case err == nil:
	case errors.Is(err, client.ErrInvalidCredentials):
		a.printf("Login unsuccessful: wrong username or password\n")
		return err
	case errors.Is(err, session.ErrNetwork):
		a.printf("Logged in, but the profile could not be loaded (server unreachable)\n")
		return nil
	case errors.Is(err, client.ErrUnavailable):
		a.printf("Login unsuccessful: server unavailable\n")
		return err
	default:
		a.printf("Login unsuccessful: %s\n", err.Error())
		return err
	}

	s := a.session.State()
	if s.User != nil {
		a.printf("Logged in as %s\n", s.User.Username)
	} else {
		a.printf("Logged in\n")
	}
	return nil
}

// Logout forgets the token locally. No request is made.
func (a *App) Logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	a.printf("Logged out\n")
	return nil
}

// Status loads the session and prints it.
func (a *App) Status(ctx context.Context) error {
	if err := a.session.Initialize(ctx); err != nil {
		if !errors.Is(err, session.ErrNetwork) {
			return err
		}
		a.printf("warning: server unreachable, showing cached session\n")
	}
	return a.printStatus(ctx)
}

// Refresh re-validates the session. Without force it honors the debounce
// window.
func (a *App) Refresh(ctx context.Context, force bool) error {
	if err := a.session.Refresh(ctx, force); err != nil {
		if !errors.Is(err, session.ErrNetwork) {
			return err
		}
		a.printf("warning: server unreachable, session kept\n")
	}
	return a.printStatus(ctx)
}

func (a *App) printStatus(ctx context.Context) error {
	s := a.session.State()
	a.printf("status: %s\n", s.Phase)
	if s.User != nil {
		a.printf("user:   %s <%s>\n", s.User.Username, s.User.Email)
		a.printf("admin:  %t\n", s.IsAdmin())
		if !s.User.IsVerified {
			a.printf("email:  not verified\n")
		}
	}
	if !s.LastFetch.IsZero() {
		a.printf("checked: %s\n", s.LastFetch.Format(time.RFC3339))
	}

	token, ok, err := a.store.Get(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	info, ok := client.InspectToken(token)
	switch {
	case !ok || info.ExpiresAt.IsZero():
		a.printf("token:  present\n")
	case info.Expired(now()):
		a.printf("token:  expired at %s\n", info.ExpiresAt.Format(time.RFC3339))
	default:
		a.printf("token:  expires %s (in %s)\n", info.ExpiresAt.Format(time.RFC3339), info.ExpiresAt.Sub(now()).Round(time.Second))
	}
	return nil
}

// getStatus renders the shell prompt suffix.
func (a *App) getStatus() string {
	s := a.session.State()
	if s.User != nil {
		return "(" + s.User.Username + ")"
	}
	return "(" + s.Phase.String() + ")"
}
