package session

import (
	"context"
	"sync"
	"time"

	"github.com/songbook/songbook-session/internal/client/models"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeFetcher answers identity fetches from Script. Calls are numbered from
// 1; a call whose number has a gate blocks until the gate is closed.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   int
	Tokens  []string
	Script  func(call int, token string) (*models.User, error)
	Gates   map[int]chan struct{}
	Started chan int
}

func (f *fakeFetcher) Me(ctx context.Context, token string) (*models.User, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.Tokens = append(f.Tokens, token)
	gate := f.Gates[n]
	script := f.Script
	f.mu.Unlock()

	if f.Started != nil {
		f.Started <- n
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if script == nil {
		return &models.User{ID: 1, Username: "alice"}, nil
	}
	return script(n, token)
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAuth struct {
	Token        string
	Err          error
	Calls        int
	LastUsername string
	LastPassword string
}

func (a *fakeAuth) Login(ctx context.Context, username, password string) (models.TokenResponse, error) {
	a.Calls++
	a.LastUsername = username
	a.LastPassword = password
	if a.Err != nil {
		return models.TokenResponse{}, a.Err
	}
	return models.TokenResponse{AccessToken: a.Token, TokenType: "bearer"}, nil
}

// stateLog records every snapshot delivered to a watcher.
type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) record(s State) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.mu.Unlock()
}

func (l *stateLog) all() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}
