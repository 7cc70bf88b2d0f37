// Package store implements the replicated room ledger: a Repository port for
// the persistence backends plus the Ledger, which layers snapshot
// subscriptions and cross-instance change propagation on top of any backend.
package store

import (
	"context"
	"errors"

	"splitroom/internal/core"
)

// Feed names one of the three logical change feeds of a room.
type Feed string

const (
	FeedExpenses     Feed = "expenses"
	FeedParticipants Feed = "participants"
	FeedSettings     Feed = "settings"
)

// ErrUnavailable reports that the backing store could not be reached.
// Callers keep their last good projection and may resubmit; the ledger
// never retries on its own.
var ErrUnavailable = errors.New("ledger store unavailable")

// Repository is the persistence port implemented by the memory, sqlite, and
// postgres backends. Rooms come into existence on first write; listing a
// room nobody wrote to returns empty sets and default settings.
//
// List order is newest-first by creation time; the order only matters for
// display, never for settlement.
type Repository interface {
	ListExpenses(ctx context.Context, roomID string) ([]core.Expense, error)
	CreateExpense(ctx context.Context, roomID string, e core.Expense) (id string, err error)
	UpdateExpense(ctx context.Context, roomID, id, description string, amount float64) error
	DeleteExpense(ctx context.Context, roomID, id string) error

	ListParticipants(ctx context.Context, roomID string) ([]core.Participant, error)
	CreateParticipant(ctx context.Context, roomID string, p core.Participant) (id string, err error)
	UpdateParticipant(ctx context.Context, roomID, id, name string, amountPaid float64, mode core.PaymentMode, headCount int) error
	DeleteParticipant(ctx context.Context, roomID, id string) error

	GetSettings(ctx context.Context, roomID string) (core.Settings, error)
	MergeSettings(ctx context.Context, roomID string, patch core.SettingsPatch) error

	Close() error
}

// Relay propagates committed local changes to other instances. The AMQP
// client implements it; a nil relay means single-instance operation.
type Relay interface {
	RoomChanged(ctx context.Context, roomID string, feed Feed, revision uint64)
}

type (
	// ExpensesSnapshot is one full delivery of a room's expense set.
	// Revision is monotonic per room feed per ledger instance.
	ExpensesSnapshot struct {
		Revision uint64
		Records  []core.Expense
	}

	// ParticipantsSnapshot is one full delivery of a room's participant set.
	ParticipantsSnapshot struct {
		Revision uint64
		Records  []core.Participant
	}

	// SettingsSnapshot is one full delivery of the room settings singleton.
	SettingsSnapshot struct {
		Revision uint64
		Settings core.Settings
	}
)
