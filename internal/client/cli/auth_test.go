package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songbook/songbook-session/internal/client/client"
	"github.com/songbook/songbook-session/internal/client/flows"
	"github.com/songbook/songbook-session/internal/client/models"
)

func stubPasswords(t *testing.T, pws ...string) *[]string {
	t.Helper()
	var prompts []string
	orig := getPassword
	getPassword = func(_ io.Writer, prompt string) ([]byte, error) {
		prompts = append(prompts, prompt)
		if len(pws) == 0 {
			return nil, errors.New("no more passwords")
		}
		pw := pws[0]
		pws = pws[1:]
		return []byte(pw), nil
	}
	t.Cleanup(func() { getPassword = orig })
	return &prompts
}

func stubInputs(t *testing.T, username string, password string) {
	t.Helper()
	origST := getSimpleText
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) { return username, nil }
	t.Cleanup(func() { getSimpleText = origST })
	stubPasswords(t, password)
}

func TestLogin_Success(t *testing.T) {
	stubInputs(t, "alice", "Secr3t!x")
	api := &fakeAPI{LoginToken: "tok-1", User: &models.User{Username: "alice"}}
	a, store, out := newTestApp(t, api, "")

	require.NoError(t, a.Login(context.Background()))

	assert.Equal(t, "alice", api.LastUsername)
	assert.Equal(t, "Secr3t!x", api.LastPassword)
	tok, ok, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-1", tok)
	assert.Contains(t, out.String(), "Logged in as alice")
	assert.True(t, a.isLoggedIn())
	assert.Equal(t, "(alice)", a.getStatus())
}

func TestLogin_WrongCredentials(t *testing.T) {
	stubInputs(t, "alice", "nope")
	api := &fakeAPI{LoginErr: client.ErrInvalidCredentials}
	a, store, out := newTestApp(t, api, "")

	err := a.Login(context.Background())
	require.ErrorIs(t, err, client.ErrInvalidCredentials)

	assert.Contains(t, out.String(), "wrong username or password")
	_, ok, _ := store.Get(context.Background())
	assert.False(t, ok)
	assert.Empty(t, api.MeTokens)
	assert.Equal(t, "(uninitialized)", a.getStatus())
}

func TestLogin_ProfileUnreachable(t *testing.T) {
	stubInputs(t, "alice", "Secr3t!x")
	api := &fakeAPI{LoginToken: "tok-1", MeErr: client.ErrUnavailable}
	a, store, out := newTestApp(t, api, "")

	require.NoError(t, a.Login(context.Background()))

	assert.Contains(t, out.String(), "profile could not be loaded")
	_, ok, _ := store.Get(context.Background())
	assert.True(t, ok)
	assert.True(t, a.isLoggedIn())
}

func TestLogin_PromptReadsFromAppReader(t *testing.T) {
	stubPasswords(t, "Secr3t!x")
	api := &fakeAPI{LoginToken: "tok-1", User: &models.User{Username: "bob"}}
	a, _, _ := newTestApp(t, api, "bob\n")

	require.NoError(t, a.Login(context.Background()))
	assert.Equal(t, "bob", api.LastUsername)
}

func TestLogout(t *testing.T) {
	api := &fakeAPI{User: &models.User{Username: "alice"}}
	a, store, out := newTestApp(t, api, "")
	require.NoError(t, store.Set(context.Background(), "tok-1"))
	require.NoError(t, a.session.Initialize(context.Background()))

	require.NoError(t, runCommand(t, a, "logout"))

	assert.Contains(t, out.String(), "Logged out")
	_, ok, _ := store.Get(context.Background())
	assert.False(t, ok)
	assert.Len(t, api.MeTokens, 1, "logout makes no request")
}

func TestRefresh_UnauthorizedClearsToken(t *testing.T) {
	api := &fakeAPI{MeErr: &client.APIError{StatusCode: 401, Detail: "Token inválido o expirado"}}
	a, store, out := newTestApp(t, api, "")
	require.NoError(t, store.Set(context.Background(), "tok-1"))

	require.NoError(t, runCommand(t, a, "refresh", "--force"))

	assert.Contains(t, out.String(), "status: anonymous")
	_, ok, _ := store.Get(context.Background())
	assert.False(t, ok)
}

func TestRefresh_NetworkErrorKeepsSession(t *testing.T) {
	api := &fakeAPI{MeErr: client.ErrUnavailable}
	a, store, out := newTestApp(t, api, "")
	require.NoError(t, store.Set(context.Background(), "tok-1"))

	require.NoError(t, a.Refresh(context.Background(), false))

	assert.Contains(t, out.String(), "server unreachable")
	assert.Contains(t, out.String(), "status: authenticated")
	assert.Contains(t, out.String(), "token:  present")
}

func TestStartRevalidation_StopsOnCancel(t *testing.T) {
	api := &fakeAPI{User: &models.User{Username: "alice"}}
	a, store, _ := newTestApp(t, api, "")
	require.NoError(t, store.Set(context.Background(), "tok-1"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.StartRevalidation(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return a.session.State().Authenticated
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestResetPassword_PromptsTwice(t *testing.T) {
	prompts := stubPasswords(t, "Secr3t!x", "Secr3t!x")
	api := &fakeAPI{Msg: "Contraseña actualizada"}
	a, _, out := newTestApp(t, api, "")

	require.NoError(t, runCommand(t, a, "reset-password", "--token", "reset-tok"))

	assert.Equal(t, []string{"New password", "Repeat new password"}, *prompts)
	assert.Equal(t, 1, api.TokenChecks)
	assert.Contains(t, out.String(), "valid for alice@example.com")
	assert.Equal(t, "reset-tok", api.LastToken)
	assert.Equal(t, "Secr3t!x", api.LastNewPass)
	assert.Contains(t, out.String(), "success: Contraseña actualizada")
}

func TestResetPassword_WeakPasswordNoRequest(t *testing.T) {
	stubPasswords(t, "weakpass", "weakpass")
	api := &fakeAPI{}
	a, _, out := newTestApp(t, api, "")

	err := runCommand(t, a, "reset-password", "--token", "reset-tok")
	require.ErrorIs(t, err, flows.ErrValidation)
	assert.Zero(t, api.FlowRequests)
	assert.Contains(t, out.String(), "error:")
}

func TestResetPassword_Expired(t *testing.T) {
	stubPasswords(t, "Secr3t!x", "Secr3t!x")
	api := &fakeAPI{FlowErr: &client.APIError{StatusCode: 400, Detail: "Token expirado"}}
	a, _, out := newTestApp(t, api, "")

	err := runCommand(t, a, "reset-password", "--token", "reset-tok")
	require.ErrorIs(t, err, flows.ErrExpired)
	assert.Contains(t, out.String(), "expired:")
	assert.Contains(t, out.String(), "Request a new link")
}

func TestResetPassword_ExpiredLinkSkipsPrompts(t *testing.T) {
	prompts := stubPasswords(t, "Secr3t!x", "Secr3t!x")
	api := &fakeAPI{InvalidResetToken: true}
	a, _, out := newTestApp(t, api, "")

	err := runCommand(t, a, "reset-password", "--token", "reset-tok")
	require.ErrorIs(t, err, flows.ErrExpired)
	assert.Empty(t, *prompts)
	assert.Zero(t, api.FlowRequests)
	assert.Contains(t, out.String(), "Request a new link")
}

func TestConfirmEmailChange(t *testing.T) {
	api := &fakeAPI{Msg: "Correo actualizado correctamente"}
	a, _, out := newTestApp(t, api, "")

	require.NoError(t, runCommand(t, a, "confirm-email-change", "--token", "ec-tok"))
	assert.Equal(t, "ec-tok", api.LastToken)
	assert.Contains(t, out.String(), "success: Correo actualizado correctamente")
	assert.Contains(t, out.String(), "songbook resend-verification")
}

func TestConfirmEmailChange_Expired(t *testing.T) {
	api := &fakeAPI{FlowErr: &client.APIError{StatusCode: 400, Detail: "Token inválido o expirado"}}
	a, _, out := newTestApp(t, api, "")

	err := runCommand(t, a, "confirm-email-change", "--token", "ec-tok")
	require.ErrorIs(t, err, flows.ErrExpired)
	assert.Contains(t, out.String(), "expired:")
}

func TestVerifyEmail_MissingToken(t *testing.T) {
	api := &fakeAPI{}
	a, _, out := newTestApp(t, api, "")

	err := runCommand(t, a, "verify-email")
	require.ErrorIs(t, err, flows.ErrMissingToken)
	assert.Zero(t, api.FlowRequests)
	assert.Contains(t, out.String(), "Open the link from your email again")
}

func TestVerifyEmail_Success(t *testing.T) {
	api := &fakeAPI{Msg: "Email verificado"}
	a, _, out := newTestApp(t, api, "")

	require.NoError(t, runCommand(t, a, "verify-email", "--token", "v-tok"))
	assert.Equal(t, "v-tok", api.LastToken)
	assert.Contains(t, out.String(), "success: Email verificado")
}

func TestForgotPassword_PromptsForEmail(t *testing.T) {
	api := &fakeAPI{}
	a, _, out := newTestApp(t, api, "alice@example.com\n")

	require.NoError(t, runCommand(t, a, "forgot-password"))
	assert.Equal(t, "alice@example.com", api.LastEmail)
	assert.Contains(t, out.String(), flows.MsgResetRequested)
}

func TestResendVerification_Flag(t *testing.T) {
	api := &fakeAPI{}
	a, _, out := newTestApp(t, api, "")

	require.NoError(t, runCommand(t, a, "resend-verification", "--email", "alice@example.com"))
	assert.Equal(t, "alice@example.com", api.LastEmail)
	assert.Contains(t, out.String(), flows.MsgVerificationResent)
}

func TestConfirmDeletion(t *testing.T) {
	at := time.Date(2026, 10, 20, 9, 30, 0, 0, time.UTC)
	api := &fakeAPI{Deletion: models.DeletionConfirmation{Message: "ok", ScheduledAt: at}}
	a, _, out := newTestApp(t, api, "")

	require.NoError(t, runCommand(t, a, "confirm-deletion", "--token", "del-tok"))

	s := out.String()
	assert.Contains(t, s, "24 hours")
	assert.Contains(t, s, "2026-10-20 09:30 UTC")
	assert.Contains(t, s, "songbook login")
	assert.Equal(t, "del-tok", api.LastToken)
}
