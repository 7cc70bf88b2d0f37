package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"splitroom/internal/core"
	"splitroom/internal/log"
)

// Subscription is a live feed handle. Values arrive on C; Unsubscribe stops
// delivery immediately and releases the slot. Each value is a complete
// snapshot, never a diff, and revisions never go backwards. A slow consumer
// only ever loses intermediate snapshots, never ordering.
type Subscription[T any] struct {
	C      <-chan T
	cancel func()
	once   sync.Once
}

// Unsubscribe detaches the subscription. Safe to call more than once.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(s.cancel)
}

// feedHub fans one room feed out to its subscribers. Channels are buffered
// with capacity one and publish replaces any undelivered snapshot, so a
// subscriber always observes the newest state it has not consumed yet.
type feedHub[T any] struct {
	mu   sync.Mutex
	rev  uint64
	next int
	subs map[int]chan T
}

func newFeedHub[T any]() *feedHub[T] {
	return &feedHub[T]{subs: make(map[int]chan T)}
}

func (h *feedHub[T]) subscribe() *Subscription[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan T, 1)
	h.subs[id] = ch
	return &Subscription[T]{
		C: ch,
		cancel: func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
		},
	}
}

// publish assigns the next revision, builds the snapshot, and delivers it,
// replacing any snapshot a subscriber has not picked up yet.
func (h *feedHub[T]) publish(build func(rev uint64) T) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rev++
	v := build(h.rev)
	for _, ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
	return h.rev
}

// deliver sends the current state to a single fresh subscriber without
// advancing the revision.
func (h *feedHub[T]) deliver(sub *Subscription[T], build func(rev uint64) T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v := build(h.rev)
	ch := (chan T)(nil)
	for _, c := range h.subs {
		if c == sub.C {
			ch = c
			break
		}
	}
	if ch == nil {
		return
	}
	select {
	case ch <- v:
	default:
	}
}

// roomFeeds holds the three hubs of one room. refreshMu serializes
// list-and-publish and new subscriptions per feed so snapshot content
// always matches the revision order subscribers observe.
type roomFeeds struct {
	expenses     *feedHub[ExpensesSnapshot]
	participants *feedHub[ParticipantsSnapshot]
	settings     *feedHub[SettingsSnapshot]
	refreshMu    [3]sync.Mutex
}

// Ledger is the replicated, subscribable room collection. All writes go
// through it: it commits to the Repository, rebuilds the affected feed's
// snapshot, broadcasts it, and tells the relay (if any) so peer instances
// refresh too.
type Ledger struct {
	repo   Repository
	logger *log.Logger

	relayMu sync.RWMutex
	relay   Relay

	mu    sync.Mutex
	rooms map[string]*roomFeeds
}

func NewLedger(repo Repository, logger *log.Logger) *Ledger {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Ledger{
		repo:   repo,
		logger: logger.WithComponent(log.ComponentLedger),
		rooms:  make(map[string]*roomFeeds),
	}
}

// SetRelay attaches a cross-instance relay. May be called once at startup.
func (l *Ledger) SetRelay(r Relay) {
	l.relayMu.Lock()
	defer l.relayMu.Unlock()
	l.relay = r
}

func (l *Ledger) room(roomID string) *roomFeeds {
	l.mu.Lock()
	defer l.mu.Unlock()
	rf, ok := l.rooms[roomID]
	if !ok {
		rf = &roomFeeds{
			expenses:     newFeedHub[ExpensesSnapshot](),
			participants: newFeedHub[ParticipantsSnapshot](),
			settings:     newFeedHub[SettingsSnapshot](),
		}
		l.rooms[roomID] = rf
	}
	return rf
}

// SubscribeExpenses opens the expense feed of a room. The current snapshot
// is delivered immediately; later deliveries follow every committed change.
// The feed's refresh lock covers list, registration, and initial delivery,
// so a write committing concurrently always reaches the new subscriber as a
// later snapshot.
func (l *Ledger) SubscribeExpenses(ctx context.Context, roomID string) (*Subscription[ExpensesSnapshot], error) {
	rf := l.room(roomID)
	rf.refreshMu[0].Lock()
	defer rf.refreshMu[0].Unlock()
	records, err := l.repo.ListExpenses(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: list expenses: %v", ErrUnavailable, err)
	}
	sub := rf.expenses.subscribe()
	rf.expenses.deliver(sub, func(rev uint64) ExpensesSnapshot {
		return ExpensesSnapshot{Revision: rev, Records: records}
	})
	return sub, nil
}

// SubscribeParticipants opens the participant feed of a room.
func (l *Ledger) SubscribeParticipants(ctx context.Context, roomID string) (*Subscription[ParticipantsSnapshot], error) {
	rf := l.room(roomID)
	rf.refreshMu[1].Lock()
	defer rf.refreshMu[1].Unlock()
	records, err := l.repo.ListParticipants(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: list participants: %v", ErrUnavailable, err)
	}
	sub := rf.participants.subscribe()
	rf.participants.deliver(sub, func(rev uint64) ParticipantsSnapshot {
		return ParticipantsSnapshot{Revision: rev, Records: records}
	})
	return sub, nil
}

// SubscribeSettings opens the settings feed of a room.
func (l *Ledger) SubscribeSettings(ctx context.Context, roomID string) (*Subscription[SettingsSnapshot], error) {
	rf := l.room(roomID)
	rf.refreshMu[2].Lock()
	defer rf.refreshMu[2].Unlock()
	settings, err := l.repo.GetSettings(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: get settings: %v", ErrUnavailable, err)
	}
	sub := rf.settings.subscribe()
	rf.settings.deliver(sub, func(rev uint64) SettingsSnapshot {
		return SettingsSnapshot{Revision: rev, Settings: settings}
	})
	return sub, nil
}

// CreateExpense commits a new expense and broadcasts the refreshed feed.
// The returned id is store-assigned and opaque.
func (l *Ledger) CreateExpense(ctx context.Context, roomID string, e core.Expense) (string, error) {
	e.CreatedAt = time.Now()
	id, err := l.repo.CreateExpense(ctx, roomID, e)
	if err != nil {
		return "", fmt.Errorf("%w: create expense: %v", ErrUnavailable, err)
	}
	l.refreshExpenses(ctx, roomID, true)
	return id, nil
}

func (l *Ledger) UpdateExpense(ctx context.Context, roomID, id, description string, amount float64) error {
	if err := l.repo.UpdateExpense(ctx, roomID, id, description, amount); err != nil {
		return wrapWriteErr("update expense", err)
	}
	l.refreshExpenses(ctx, roomID, true)
	return nil
}

func (l *Ledger) DeleteExpense(ctx context.Context, roomID, id string) error {
	if err := l.repo.DeleteExpense(ctx, roomID, id); err != nil {
		return wrapWriteErr("delete expense", err)
	}
	l.refreshExpenses(ctx, roomID, true)
	return nil
}

func (l *Ledger) CreateParticipant(ctx context.Context, roomID string, p core.Participant) (string, error) {
	p.CreatedAt = time.Now()
	id, err := l.repo.CreateParticipant(ctx, roomID, p)
	if err != nil {
		return "", fmt.Errorf("%w: create participant: %v", ErrUnavailable, err)
	}
	l.refreshParticipants(ctx, roomID, true)
	return id, nil
}

func (l *Ledger) UpdateParticipant(ctx context.Context, roomID, id, name string, amountPaid float64, mode core.PaymentMode, headCount int) error {
	if err := l.repo.UpdateParticipant(ctx, roomID, id, name, amountPaid, mode, headCount); err != nil {
		return wrapWriteErr("update participant", err)
	}
	l.refreshParticipants(ctx, roomID, true)
	return nil
}

func (l *Ledger) DeleteParticipant(ctx context.Context, roomID, id string) error {
	if err := l.repo.DeleteParticipant(ctx, roomID, id); err != nil {
		return wrapWriteErr("delete participant", err)
	}
	l.refreshParticipants(ctx, roomID, true)
	return nil
}

// MergeSettings merge-writes the settings singleton: unset patch fields
// keep their stored values.
func (l *Ledger) MergeSettings(ctx context.Context, roomID string, patch core.SettingsPatch) error {
	if err := l.repo.MergeSettings(ctx, roomID, patch); err != nil {
		return fmt.Errorf("%w: merge settings: %v", ErrUnavailable, err)
	}
	l.refreshSettings(ctx, roomID, true)
	return nil
}

// ApplyRemote refreshes one room feed after a peer instance reported a
// change. It broadcasts locally but never republishes to the relay.
func (l *Ledger) ApplyRemote(ctx context.Context, roomID string, feed Feed) {
	switch feed {
	case FeedExpenses:
		l.refreshExpenses(ctx, roomID, false)
	case FeedParticipants:
		l.refreshParticipants(ctx, roomID, false)
	case FeedSettings:
		l.refreshSettings(ctx, roomID, false)
	default:
		l.logger.Warn("Ignoring remote change for unknown feed", log.FieldFeed, string(feed), log.FieldRoomID, roomID)
	}
}

func (l *Ledger) refreshExpenses(ctx context.Context, roomID string, local bool) {
	rf := l.room(roomID)
	rf.refreshMu[0].Lock()
	defer rf.refreshMu[0].Unlock()
	records, err := l.repo.ListExpenses(ctx, roomID)
	if err != nil {
		l.logger.Error("Failed to refresh expense feed", log.FieldRoomID, roomID, log.FieldError, err)
		return
	}
	rev := rf.expenses.publish(func(rev uint64) ExpensesSnapshot {
		return ExpensesSnapshot{Revision: rev, Records: records}
	})
	l.notifyRelay(ctx, roomID, FeedExpenses, rev, local)
}

func (l *Ledger) refreshParticipants(ctx context.Context, roomID string, local bool) {
	rf := l.room(roomID)
	rf.refreshMu[1].Lock()
	defer rf.refreshMu[1].Unlock()
	records, err := l.repo.ListParticipants(ctx, roomID)
	if err != nil {
		l.logger.Error("Failed to refresh participant feed", log.FieldRoomID, roomID, log.FieldError, err)
		return
	}
	rev := rf.participants.publish(func(rev uint64) ParticipantsSnapshot {
		return ParticipantsSnapshot{Revision: rev, Records: records}
	})
	l.notifyRelay(ctx, roomID, FeedParticipants, rev, local)
}

func (l *Ledger) refreshSettings(ctx context.Context, roomID string, local bool) {
	rf := l.room(roomID)
	rf.refreshMu[2].Lock()
	defer rf.refreshMu[2].Unlock()
	settings, err := l.repo.GetSettings(ctx, roomID)
	if err != nil {
		l.logger.Error("Failed to refresh settings feed", log.FieldRoomID, roomID, log.FieldError, err)
		return
	}
	rev := rf.settings.publish(func(rev uint64) SettingsSnapshot {
		return SettingsSnapshot{Revision: rev, Settings: settings}
	})
	l.notifyRelay(ctx, roomID, FeedSettings, rev, local)
}

func (l *Ledger) notifyRelay(ctx context.Context, roomID string, feed Feed, rev uint64, local bool) {
	if !local {
		return
	}
	l.relayMu.RLock()
	relay := l.relay
	l.relayMu.RUnlock()
	if relay != nil {
		relay.RoomChanged(ctx, roomID, feed, rev)
	}
}

func wrapWriteErr(op string, err error) error {
	if errors.Is(err, core.ErrUnknownRecord) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
