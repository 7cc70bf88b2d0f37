package room

import (
	"context"
	"errors"
	"sync"

	"splitroom/internal/log"
)

var (
	// ErrAccessDenied means the submitted code did not match the room's
	// shared secret. The challenge stays pending; resubmission is allowed.
	ErrAccessDenied = errors.New("access denied")

	// ErrNoChallenge means Submit or Cancel was called with nothing pending.
	ErrNoChallenge = errors.New("no pending challenge")

	// ErrSettingsLocked means a fixed-rate write was attempted before the
	// settings-unlock challenge succeeded for this session.
	ErrSettingsLocked = errors.New("settings locked")
)

// Action is a deferred mutation executed when its challenge is approved.
type Action func(ctx context.Context) error

// GuardStatus is a copy-out view of the guard for the presentation layer.
type GuardStatus struct {
	Pending          bool
	Label            string
	Failures         int
	SettingsUnlocked bool
}

// Guard gates destructive and settings-altering mutations behind a shared
// numeric code. It is a two-state machine: idle, or holding exactly one
// pending action. Issuing a new challenge while one is pending replaces the
// stored action; wrong codes never execute anything and failure counts reset
// with each new challenge.
type Guard struct {
	mu               sync.Mutex
	code             string
	pending          Action
	label            string
	failures         int
	settingsUnlocked bool
	logger           *log.Logger
}

func NewGuard(code string, logger *log.Logger) *Guard {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Guard{
		code:   code,
		logger: logger.WithComponent(log.ComponentGuard),
	}
}

// RequestChallenge stores an action awaiting approval. Last request wins.
func (g *Guard) RequestChallenge(label string, action Action) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending != nil {
		g.logger.Info("Replacing pending challenge", "previous", g.label, "next", label)
	}
	g.pending = action
	g.label = label
	g.failures = 0
}

// Submit checks the code against the shared secret. On a match the stored
// action runs exactly once and the guard returns to idle; the action's error
// (if any) is returned to the caller. On a mismatch the challenge stays
// pending with an incremented failure count.
func (g *Guard) Submit(ctx context.Context, code string) error {
	g.mu.Lock()
	if g.pending == nil {
		g.mu.Unlock()
		return ErrNoChallenge
	}
	if code != g.code {
		g.failures++
		failures := g.failures
		label := g.label
		g.mu.Unlock()
		g.logger.Warn("Challenge code rejected", "action", label, "failures", failures)
		return ErrAccessDenied
	}
	action := g.pending
	label := g.label
	g.pending = nil
	g.label = ""
	g.failures = 0
	g.mu.Unlock()

	g.logger.Info("Challenge approved", "action", label)
	return action(ctx)
}

// Cancel discards the pending action without executing it.
func (g *Guard) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = nil
	g.label = ""
	g.failures = 0
}

// Status returns the guard's current state.
func (g *Guard) Status() GuardStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GuardStatus{
		Pending:          g.pending != nil,
		Label:            g.label,
		Failures:         g.failures,
		SettingsUnlocked: g.settingsUnlocked,
	}
}

// SettingsUnlocked reports whether the fixed-rate field has been unlocked
// for this session.
func (g *Guard) SettingsUnlocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.settingsUnlocked
}

func (g *Guard) unlockSettings() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settingsUnlocked = true
}
