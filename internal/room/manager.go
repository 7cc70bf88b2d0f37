package room

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"
	"time"

	"splitroom/internal/log"
	"splitroom/internal/store"
)

const roomIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewRoomID returns a fresh shareable room identifier such as "trip-x4k9q2".
func NewRoomID() string {
	buf := make([]byte, 6)
	max := big.NewInt(int64(len(roomIDAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken.
			panic(err)
		}
		buf[i] = roomIDAlphabet[n.Int64()]
	}
	return "trip-" + string(buf)
}

// Session bundles everything a connected room needs: the materialized model,
// the mutation gateway, and the shared access guard.
type Session struct {
	Model   *Model
	Gateway *Gateway
	Guard   *Guard

	lastUsed time.Time
}

// Manager hands out room sessions on demand and evicts idle ones. Sessions
// are shared: every caller of the same room id gets the same model and
// guard, so a challenge staged by one client is visible to all of them.
type Manager struct {
	ledger     *store.Ledger
	accessCode string
	idleTTL    time.Duration
	logger     *log.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	done      chan struct{}
	closeOnce sync.Once
}

// NewManager starts the idle sweep and returns the manager. idleTTL bounds
// how long an untouched session keeps its feed subscriptions alive; sessions
// with an active watcher never count as idle.
func NewManager(ledger *store.Ledger, accessCode string, idleTTL time.Duration, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	m := &Manager{
		ledger:     ledger,
		accessCode: accessCode,
		idleTTL:    idleTTL,
		logger:     logger.WithComponent(log.ComponentRoom),
		sessions:   make(map[string]*Session),
		done:       make(chan struct{}),
	}
	go m.sweep()
	return m
}

// Session returns the live session for roomID, opening one on first use.
func (m *Manager) Session(ctx context.Context, roomID string) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[roomID]; ok {
		s.lastUsed = time.Now()
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	// Open outside the lock: first contact lists three feeds from the store.
	model, err := OpenModel(ctx, m.ledger, roomID, m.logger)
	if err != nil {
		return nil, err
	}
	guard := NewGuard(m.accessCode, m.logger.With(log.FieldRoomID, roomID))
	s := &Session{
		Model:    model,
		Gateway:  NewGateway(m.ledger, model, guard, m.logger),
		Guard:    guard,
		lastUsed: time.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[roomID]; ok {
		// Lost the race to another opener.
		model.Close()
		existing.lastUsed = time.Now()
		return existing, nil
	}
	m.sessions[roomID] = s
	m.logger.Info("room session opened", log.FieldRoomID, roomID)
	return s, nil
}

func (m *Manager) sweep() {
	interval := m.idleTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictIdle(time.Now())
		}
	}
}

func (m *Manager) evictIdle(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for roomID, s := range m.sessions {
		if s.Model.Watchers() > 0 {
			// A live stream pins the session; idleness restarts once the
			// last watcher detaches.
			s.lastUsed = now
			continue
		}
		if now.Sub(s.lastUsed) < m.idleTTL {
			continue
		}
		s.Model.Close()
		delete(m.sessions, roomID)
		m.logger.Info("idle room session evicted", log.FieldRoomID, roomID)
	}
}

// Close stops the sweep and releases every open session.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		m.mu.Lock()
		defer m.mu.Unlock()
		for roomID, s := range m.sessions {
			s.Model.Close()
			delete(m.sessions, roomID)
		}
	})
}
