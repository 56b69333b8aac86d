// Package cli provides the songbook session command-line client.
//
// It wires configuration, the token store, the API client and the session
// manager, and exposes them as cobra commands: login, logout, status,
// refresh, watch, an interactive shell, and the account email flows
// (verify-email, resend-verification, forgot-password, reset-password,
// confirm-deletion).
//
// Every command builds an App through buildApp and closes it when done.
// See App, StartRevalidation and runREPL for details.
package cli
