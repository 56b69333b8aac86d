package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/songbook/songbook-session/internal/client/client"
	"github.com/songbook/songbook-session/internal/client/config"
	"github.com/songbook/songbook-session/internal/client/session"
	"github.com/songbook/songbook-session/internal/client/tokenstore"
	"github.com/songbook/songbook-session/internal/filex"
	"github.com/songbook/songbook-session/internal/logging"
)

// App wires configuration, the token store, the API client and the session
// manager for one CLI process.
type App struct {
	config  *config.Config
	log     logging.Logger
	store   tokenstore.Store
	api     client.Client
	session *session.Manager
	out     io.Writer
	reader  *bufio.Reader
}

// NewApp opens the configured token store and builds the session manager
// on top of it. Logs go to errOut.
func NewApp(ctx context.Context, c *config.Config, out, errOut io.Writer, in io.Reader) (*App, error) {
	log, err := logging.NewTextLogger(errOut, c.LogLevel)
	if err != nil {
		return nil, err
	}

	apiClient, err := client.NewHTTPClient(c.APIBaseURL, c.RequestTimeout)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, c, log)
	if err != nil {
		log.Error(ctx, "error opening token store", "backend", c.StoreBackend, "error", err)
		return nil, err
	}

	return newApp(c, log, store, apiClient, out, in), nil
}

func newApp(c *config.Config, log logging.Logger, store tokenstore.Store, api client.Client, out io.Writer, in io.Reader) *App {
	m := session.NewManager(store, api, api, session.Options{
		Debounce:   c.DebounceInterval,
		FailClosed: c.FailClosed,
		Logger:     log,
	})
	return &App{
		config:  c,
		log:     log,
		store:   store,
		api:     api,
		session: m,
		out:     out,
		reader:  bufio.NewReader(in),
	}
}

func openStore(ctx context.Context, c *config.Config, log logging.Logger) (tokenstore.Store, error) {
	switch c.StoreBackend {
	case config.BackendSQLite:
		if p := sqlitePath(c.StoreDSN); p != "" {
			if err := filex.EnsureParentDir(p); err != nil {
				return nil, err
			}
		}
		s, err := tokenstore.OpenSQLite(ctx, c.StoreDSN, c.TokenKey, c.SyncPollInterval, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendRedis:
		s, err := tokenstore.OpenRedis(ctx, c.RedisAddr, c.TokenKey, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendMemory:
		return tokenstore.NewSharedMemory().Tab(c.TokenKey), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
}

// sqlitePath extracts the file path from a SQLite DSN; in-memory databases
// yield "".
func sqlitePath(dsn string) string {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" || p == ":memory:" {
		return ""
	}
	return p
}

// Close stops the session manager and releases the token store.
func (a *App) Close() error {
	a.session.Close()
	return a.store.Close()
}

func (a *App) isLoggedIn() bool {
	return a.session.State().Authenticated
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// StartRevalidation refreshes the session every interval until ctx is done.
// Refreshes are not forced, so the debounce window still applies.
func (a *App) StartRevalidation(ctx context.Context, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rctx, cancel := context.WithTimeout(ctx, a.config.RequestTimeout)
			err := a.session.Refresh(rctx, false)
			cancel()

			if err != nil && ctx.Err() == nil {
				if errors.Is(err, session.ErrNetwork) {
					a.log.Warn(ctx, "server unreachable, keeping session", "error", err)
				} else {
					a.log.Error(ctx, "revalidation failed", "error", err)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}
