// Package room ties one shared room together: the materialized state model,
// the mutation gateway, the access guard, and the per-room session manager.
package room

import (
	"context"
	"sync"

	"splitroom/internal/core"
	"splitroom/internal/log"
	"splitroom/internal/store"
)

// Model is the locally materialized view of one room. It owns the only
// mutable projection of store state: each feed notification replaces the
// matching projection wholesale and synchronously recomputes the settlement
// summary. There is one writer (the notification loop) and any number of
// readers, which always get copies.
type Model struct {
	roomID string
	logger *log.Logger

	mu           sync.RWMutex
	expenses     []core.Expense
	participants []core.Participant
	settings     core.Settings
	summary      core.Summary

	subExpenses     *store.Subscription[store.ExpensesSnapshot]
	subParticipants *store.Subscription[store.ParticipantsSnapshot]
	subSettings     *store.Subscription[store.SettingsSnapshot]

	watchMu  sync.Mutex
	watchers map[int]chan struct{}
	nextID   int

	done      chan struct{}
	closeOnce sync.Once
}

// OpenModel subscribes to the room's three feeds and starts the notification
// loop. A subscription failure opens nothing: acquired feeds are released
// and the store error is surfaced to the caller.
func OpenModel(ctx context.Context, ledger *store.Ledger, roomID string, logger *log.Logger) (*Model, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	m := &Model{
		roomID:   roomID,
		logger:   logger.WithComponent(log.ComponentRoom).With(log.FieldRoomID, roomID),
		settings: core.DefaultSettings(),
		watchers: make(map[int]chan struct{}),
		done:     make(chan struct{}),
	}

	var err error
	m.subExpenses, err = ledger.SubscribeExpenses(ctx, roomID)
	if err != nil {
		return nil, err
	}
	m.subParticipants, err = ledger.SubscribeParticipants(ctx, roomID)
	if err != nil {
		m.subExpenses.Unsubscribe()
		return nil, err
	}
	m.subSettings, err = ledger.SubscribeSettings(ctx, roomID)
	if err != nil {
		m.subExpenses.Unsubscribe()
		m.subParticipants.Unsubscribe()
		return nil, err
	}

	// Consume the initial snapshots before returning so the first read
	// already reflects stored state.
	m.applyExpenses(<-m.subExpenses.C)
	m.applyParticipants(<-m.subParticipants.C)
	m.applySettings(<-m.subSettings.C)

	go m.loop()
	return m, nil
}

// loop is the single writer. Feeds carry no cross-feed ordering guarantee;
// a transiently mixed-age view is expected and each projection is
// individually consistent.
func (m *Model) loop() {
	for {
		select {
		case <-m.done:
			return
		case snap, ok := <-m.subExpenses.C:
			if ok {
				m.applyExpenses(snap)
			}
		case snap, ok := <-m.subParticipants.C:
			if ok {
				m.applyParticipants(snap)
			}
		case snap, ok := <-m.subSettings.C:
			if ok {
				m.applySettings(snap)
			}
		}
	}
}

func (m *Model) applyExpenses(snap store.ExpensesSnapshot) {
	m.mu.Lock()
	m.expenses = snap.Records
	m.recompute()
	m.mu.Unlock()
	m.notifyWatchers()
}

func (m *Model) applyParticipants(snap store.ParticipantsSnapshot) {
	m.mu.Lock()
	m.participants = snap.Records
	m.recompute()
	m.mu.Unlock()
	m.notifyWatchers()
}

func (m *Model) applySettings(snap store.SettingsSnapshot) {
	m.mu.Lock()
	m.settings = snap.Settings
	m.recompute()
	m.mu.Unlock()
	m.notifyWatchers()
}

// recompute runs under the write lock. It is synchronous and never suspends.
func (m *Model) recompute() {
	m.summary = core.Compute(core.Snapshot{
		RoomID:       m.roomID,
		Expenses:     m.expenses,
		Participants: m.participants,
		Settings:     m.settings,
	})
}

// RoomID returns the identifier scoping this model.
func (m *Model) RoomID() string {
	return m.roomID
}

// Snapshot returns a copy of the current projections.
func (m *Model) Snapshot() core.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return core.Snapshot{
		RoomID:       m.roomID,
		Expenses:     append([]core.Expense(nil), m.expenses...),
		Participants: append([]core.Participant(nil), m.participants...),
		Settings:     m.settings,
	}
}

// Summary returns the settlement summary derived from the latest projections.
// Like Snapshot, the result is a copy the caller may keep.
func (m *Model) Summary() core.Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := m.summary
	sum.Statuses = append([]core.ParticipantStatus(nil), sum.Statuses...)
	return sum
}

// HasExpense reports whether the id exists in the current projection.
func (m *Model) HasExpense(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.expenses {
		if e.ID == id {
			return true
		}
	}
	return false
}

// HasParticipant reports whether the id exists in the current projection.
func (m *Model) HasParticipant(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.participants {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Watch returns a coalescing change signal: the channel fires after any
// projection replacement. The returned cancel func releases the watcher.
func (m *Model) Watch() (<-chan struct{}, func()) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	id := m.nextID
	m.nextID++
	ch := make(chan struct{}, 1)
	m.watchers[id] = ch
	return ch, func() {
		m.watchMu.Lock()
		defer m.watchMu.Unlock()
		delete(m.watchers, id)
	}
}

// Watchers reports how many watch channels are currently registered.
func (m *Model) Watchers() int {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	return len(m.watchers)
}

func (m *Model) notifyWatchers() {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	for _, ch := range m.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close stops the notification loop and releases all three subscriptions.
func (m *Model) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		m.subExpenses.Unsubscribe()
		m.subParticipants.Unsubscribe()
		m.subSettings.Unsubscribe()
	})
}
