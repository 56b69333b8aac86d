package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/songbook/songbook-session/internal/client/client"
	"github.com/songbook/songbook-session/internal/client/models"
	"github.com/songbook/songbook-session/internal/client/tokenstore"
	"github.com/songbook/songbook-session/internal/common"
	"github.com/songbook/songbook-session/internal/logging"
)

var (
	// ErrNetwork is returned by Refresh when the identity fetch failed for a
	// reason other than an unauthorized token. The session is kept.
	ErrNetwork = errors.New("identity fetch failed")
	ErrClosed  = errors.New("session manager closed")
)

// IdentityFetcher resolves a token to the user it belongs to. It must
// return an error matching client.ErrUnauthorized when the token is not
// accepted.
type IdentityFetcher interface {
	Me(ctx context.Context, token string) (*models.User, error)
}

// Authenticator exchanges credentials for a token.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (models.TokenResponse, error)
}

// Clock is the time source of the debounce guard.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Options tunes a Manager. A zero Debounce disables debouncing.
type Options struct {
	Debounce time.Duration
	// FailClosed drops to anonymous on network errors instead of keeping the
	// session. The stored token is left in place either way.
	FailClosed bool
	Clock      Clock
	Logger     logging.Logger
}

// DefaultOptions returns the web front-end's policy: five second debounce,
// optimistic on network errors.
func DefaultOptions() Options {
	return Options{Debounce: common.DefaultDebounceInterval}
}

// Manager owns the in-memory session state. It is safe for concurrent use;
// no lock is held across network calls or store writes.
//
// Every identity fetch is stamped with a sequence number taken before the
// call. A completion is applied only if no newer result (or local logout)
// has been applied since, so slow responses never overwrite newer state.
type Manager struct {
	store   tokenstore.Store
	fetcher IdentityFetcher
	auth    Authenticator
	opts    Options
	log     logging.Logger

	mu            sync.Mutex
	authenticated bool
	user          *models.User
	resolved      bool
	lastFetch     time.Time
	lastAttempt   time.Time
	attempts      int64
	issued        int64
	applied       int64
	inflight      int
	initialized   bool
	closed        bool
	unsubscribe   func()
	watchers      map[int]*watcher
	nextWatcher   int
	version       uint64

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewManager(store tokenstore.Store, fetcher IdentityFetcher, auth Authenticator, opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:    store,
		fetcher:  fetcher,
		auth:     auth,
		opts:     opts,
		log:      opts.Logger.With("component", "session", "origin", store.Origin()),
		watchers: make(map[int]*watcher),
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// Initialize subscribes to cross-tab token changes and forces the first
// identity fetch. Later calls are no-ops.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.initialized {
		m.mu.Unlock()
		return nil
	}
	m.initialized = true
	m.unsubscribe = m.store.Subscribe(m.onStoreChange)
	m.mu.Unlock()

	return m.Refresh(ctx, true)
}

// State returns the current snapshot.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() State {
	s := State{
		Authenticated: m.authenticated,
		User:          m.user.Clone(),
		Loading:       m.inflight > 0,
		LastFetch:     m.lastFetch,
	}
	switch {
	case s.Loading:
		s.Phase = PhaseLoading
	case !m.resolved:
		s.Phase = PhaseUninitialized
	case m.authenticated:
		s.Phase = PhaseAuthenticated
	default:
		s.Phase = PhaseAnonymous
	}
	return s
}

// Watch registers fn to receive a snapshot after every state change. The
// returned function deregisters it.
//
// Calls to fn never overlap and snapshots arrive in the order the changes
// happened. While fn is busy, newer snapshots coalesce into the latest one.
func (m *Manager) Watch(fn func(State)) func() {
	m.mu.Lock()
	id := m.nextWatcher
	m.nextWatcher++
	m.watchers[id] = &watcher{fn: fn}
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watchers, id)
			m.mu.Unlock()
		})
	}
}

func (m *Manager) emit() {
	m.mu.Lock()
	m.version++
	v := m.version
	s := m.snapshotLocked()
	ws := make([]*watcher, 0, len(m.watchers))
	for _, w := range m.watchers {
		ws = append(ws, w)
	}
	m.mu.Unlock()

	for _, w := range ws {
		w.deliver(v, s)
	}
}

// watcher serializes delivery to one callback. Snapshots carry the version
// they were taken at; anything not newer than the last delivered is dropped.
type watcher struct {
	fn func(State)

	mu       sync.Mutex
	busy     bool
	last     uint64
	pending  State
	pendingV uint64
}

func (w *watcher) deliver(v uint64, s State) {
	w.mu.Lock()
	if w.busy {
		// The goroutine inside fn picks this up when it returns.
		if v > w.pendingV {
			w.pending, w.pendingV = s, v
		}
		w.mu.Unlock()
		return
	}
	if v <= w.last {
		w.mu.Unlock()
		return
	}
	w.busy = true
	for {
		w.last = v
		w.mu.Unlock()
		w.fn(s)
		w.mu.Lock()
		if w.pendingV <= w.last {
			w.busy = false
			w.mu.Unlock()
			return
		}
		v, s = w.pendingV, w.pending
	}
}

func (m *Manager) debouncedLocked(now time.Time) bool {
	return !m.lastAttempt.IsZero() && now.Sub(m.lastAttempt) < m.opts.Debounce
}

// Refresh re-reads the token and, when one is present, fetches the identity
// it belongs to. Without force the call is a no-op if a fetch was attempted
// within the debounce interval.
//
// An unauthorized token is cleared and the session becomes anonymous; that
// is not reported as an error. Any other fetch failure keeps the session and
// returns an error matching ErrNetwork.
func (m *Manager) Refresh(ctx context.Context, force bool) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if !force && m.debouncedLocked(m.opts.Clock.Now()) {
		m.mu.Unlock()
		m.log.Debug(ctx, "refresh debounced")
		return nil
	}
	m.mu.Unlock()

	token, ok, err := m.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	if !ok {
		m.becomeAnonymous(ctx, "no token")
		return nil
	}

	m.mu.Lock()
	now := m.opts.Clock.Now()
	// A concurrent caller may have started a fetch since the first check.
	if !force && m.debouncedLocked(now) {
		m.mu.Unlock()
		return nil
	}
	m.issued++
	seq := m.issued
	prevAttempt := m.lastAttempt
	m.lastAttempt = now
	m.attempts++
	a := attempt{seq: seq, id: m.attempts, prev: prevAttempt}
	m.inflight++
	m.mu.Unlock()
	m.emit()

	user, fetchErr := m.fetcher.Me(ctx, token)

	return m.complete(ctx, a, token, user, fetchErr)
}

// attempt identifies one issued fetch.
type attempt struct {
	seq  int64
	id   int64
	prev time.Time
}

func (m *Manager) complete(ctx context.Context, a attempt, token string, user *models.User, fetchErr error) error {
	seq := a.seq
	m.mu.Lock()
	m.inflight--

	// The caller gave up on a canceled fetch; its outcome says nothing about
	// the token. Unless a newer attempt exists it must not hold back the next
	// refresh either.
	if errors.Is(fetchErr, context.Canceled) {
		if m.attempts == a.id {
			m.lastAttempt = a.prev
		}
		m.mu.Unlock()
		m.emit()
		return fetchErr
	}
	if seq <= m.applied {
		m.mu.Unlock()
		m.emit()
		m.log.Debug(ctx, "stale identity result dropped", "seq", seq)
		return nil
	}
	m.applied = seq
	m.resolved = true

	switch {
	case fetchErr == nil:
		m.authenticated = true
		m.user = user.Clone()
		m.lastFetch = m.opts.Clock.Now()
		m.mu.Unlock()
		m.emit()
		m.log.Debug(ctx, "session refreshed", "user", user.Username, "seq", seq)
		return nil

	case errors.Is(fetchErr, client.ErrUnauthorized):
		m.authenticated = false
		m.user = nil
		m.mu.Unlock()
		m.clearIfUnchanged(ctx, token)
		m.emit()
		m.log.Info(ctx, "token rejected, session is anonymous", "seq", seq)
		return nil

	default:
		if m.opts.FailClosed {
			m.authenticated = false
			m.user = nil
		} else {
			m.authenticated = true
		}
		m.mu.Unlock()
		m.emit()
		m.log.Warn(ctx, "identity fetch failed, session kept", "error", fetchErr, "fail_closed", m.opts.FailClosed)
		return fmt.Errorf("%w: %w", ErrNetwork, fetchErr)
	}
}

// clearIfUnchanged removes the token only when it is still the one that was
// rejected, so a token written meanwhile by another tab survives.
func (m *Manager) clearIfUnchanged(ctx context.Context, rejected string) {
	current, ok, err := m.store.Get(ctx)
	if err != nil {
		m.log.Warn(ctx, "read token before clear failed", "error", err)
		return
	}
	if !ok || current != rejected {
		return
	}
	if err := m.store.Clear(ctx); err != nil {
		m.log.Warn(ctx, "clear rejected token failed", "error", err)
	}
}

// becomeAnonymous applies a local anonymous state that supersedes every
// fetch issued so far.
func (m *Manager) becomeAnonymous(ctx context.Context, reason string) {
	m.mu.Lock()
	m.issued++
	m.applied = m.issued
	m.resolved = true
	m.authenticated = false
	m.user = nil
	m.mu.Unlock()
	m.emit()
	m.log.Debug(ctx, "session is anonymous", "reason", reason)
}

// Login exchanges credentials, stores the token and forces a refresh. On a
// failed exchange neither the store nor the session state is touched.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	if m.isClosed() {
		return ErrClosed
	}
	resp, err := m.auth.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, resp.AccessToken); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	m.log.Info(ctx, "logged in", "username", username)
	return m.Refresh(ctx, true)
}

// Logout clears the token and makes the session anonymous without any
// network call. The state changes even if the store fails to clear.
func (m *Manager) Logout(ctx context.Context) error {
	if m.isClosed() {
		return ErrClosed
	}
	err := m.store.Clear(ctx)
	m.becomeAnonymous(ctx, "logout")
	if err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

func (m *Manager) onStoreChange(c tokenstore.Change) {
	ctx := m.baseCtx
	if !c.Present {
		m.becomeAnonymous(ctx, "cross-tab logout")
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		m.log.Debug(ctx, "cross-tab login observed", "from", c.Origin)
		if err := m.Refresh(ctx, true); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrClosed) {
			m.log.Warn(ctx, "cross-tab refresh failed", "error", err)
		}
	}()
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close stops listening for cross-tab changes and waits for refreshes they
// started. The token store is not closed.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	unsubscribe := m.unsubscribe
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	m.cancel()
	m.wg.Wait()
}
