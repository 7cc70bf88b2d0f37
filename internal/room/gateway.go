package room

import (
	"context"
	"fmt"
	"strings"

	"splitroom/internal/core"
	"splitroom/internal/log"
	"splitroom/internal/store"
)

// Gateway is the single entry point for room mutations. Plain writes are
// validated and handed to the ledger; destructive or settings writes are
// staged on the guard and run only after a successful code challenge.
type Gateway struct {
	ledger *store.Ledger
	model  *Model
	guard  *Guard
	logger *log.Logger
}

// NewGateway wires the gateway for one room.
func NewGateway(ledger *store.Ledger, model *Model, guard *Guard, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Gateway{
		ledger: ledger,
		model:  model,
		guard:  guard,
		logger: logger.WithComponent(log.ComponentRoom).With(log.FieldRoomID, model.RoomID()),
	}
}

// CreateExpense records a new expense. The amount is coerced the tolerant
// way, so "12,50" becomes 12.5 and garbage becomes 0. Only an empty
// description rejects the write.
func (g *Gateway) CreateExpense(ctx context.Context, description, amount string) error {
	description = strings.TrimSpace(description)
	e := core.Expense{
		Description: description,
		Amount:      core.ParseAmount(amount),
	}
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := g.ledger.CreateExpense(ctx, g.model.RoomID(), e)
	return err
}

// CreateParticipant records a new participant. Amount and head count are
// coerced tolerantly; an unknown payment mode falls back to online.
func (g *Gateway) CreateParticipant(ctx context.Context, name, amountPaid, mode, headCount string) error {
	name = strings.TrimSpace(name)
	p := core.Participant{
		Name:       name,
		AmountPaid: core.ParseAmount(amountPaid),
		Mode:       parseMode(mode),
		HeadCount:  core.ParseHeadCount(headCount),
	}
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := g.ledger.CreateParticipant(ctx, g.model.RoomID(), p)
	return err
}

// UpdateExpense stages an edit of an existing expense behind the guard.
// Unlike creation, edits parse the amount strictly: a value that is not a
// number rejects the request instead of silently writing zero.
func (g *Gateway) UpdateExpense(ctx context.Context, id, description, amount string) error {
	if !g.model.HasExpense(id) {
		return fmt.Errorf("expense %s: %w", id, core.ErrUnknownRecord)
	}
	description = strings.TrimSpace(description)
	parsed, err := core.ParseStrictAmount(amount)
	if err != nil {
		return err
	}
	draft := core.Expense{ID: id, Description: description, Amount: parsed}
	if err := draft.Validate(); err != nil {
		return err
	}
	roomID := g.model.RoomID()
	g.guard.RequestChallenge("update expense", func(ctx context.Context) error {
		return g.ledger.UpdateExpense(ctx, roomID, id, description, parsed)
	})
	return nil
}

// DeleteExpense stages the removal of an expense behind the guard.
func (g *Gateway) DeleteExpense(ctx context.Context, id string) error {
	if !g.model.HasExpense(id) {
		return fmt.Errorf("expense %s: %w", id, core.ErrUnknownRecord)
	}
	roomID := g.model.RoomID()
	g.guard.RequestChallenge("delete expense", func(ctx context.Context) error {
		return g.ledger.DeleteExpense(ctx, roomID, id)
	})
	return nil
}

// UpdateParticipant stages an edit of an existing participant behind the
// guard, with the same strict amount parsing as expense edits.
func (g *Gateway) UpdateParticipant(ctx context.Context, id, name, amountPaid, mode, headCount string) error {
	if !g.model.HasParticipant(id) {
		return fmt.Errorf("participant %s: %w", id, core.ErrUnknownRecord)
	}
	name = strings.TrimSpace(name)
	parsed, err := core.ParseStrictAmount(amountPaid)
	if err != nil {
		return err
	}
	pm := parseMode(mode)
	heads := core.ParseHeadCount(headCount)
	draft := core.Participant{ID: id, Name: name, AmountPaid: parsed, Mode: pm, HeadCount: heads}
	if err := draft.Validate(); err != nil {
		return err
	}
	roomID := g.model.RoomID()
	g.guard.RequestChallenge("update participant", func(ctx context.Context) error {
		return g.ledger.UpdateParticipant(ctx, roomID, id, name, parsed, pm, heads)
	})
	return nil
}

// DeleteParticipant stages the removal of a participant behind the guard.
func (g *Gateway) DeleteParticipant(ctx context.Context, id string) error {
	if !g.model.HasParticipant(id) {
		return fmt.Errorf("participant %s: %w", id, core.ErrUnknownRecord)
	}
	roomID := g.model.RoomID()
	g.guard.RequestChallenge("delete participant", func(ctx context.Context) error {
		return g.ledger.DeleteParticipant(ctx, roomID, id)
	})
	return nil
}

// SetSettlementMode stages a settlement mode switch behind the guard. A
// switch to the mode already in effect is a no-op and stages nothing.
func (g *Gateway) SetSettlementMode(ctx context.Context, mode string) error {
	m := core.SettlementMode(mode)
	if !m.Valid() {
		return fmt.Errorf("settlement mode %q: %w", mode, core.ErrInvalidMode)
	}
	if g.model.Snapshot().Settings.Mode == m {
		return nil
	}
	roomID := g.model.RoomID()
	g.guard.RequestChallenge("change settlement mode", func(ctx context.Context) error {
		return g.ledger.MergeSettings(ctx, roomID, core.SettingsPatch{Mode: &m})
	})
	return nil
}

// SetFixedRate writes the fixed cost per head. The settings panel must have
// been unlocked through RequestUnlockSettings first; otherwise the write is
// refused without touching the store.
func (g *Gateway) SetFixedRate(ctx context.Context, rate string) error {
	if !g.guard.SettingsUnlocked() {
		return ErrSettingsLocked
	}
	parsed, err := core.ParseStrictAmount(rate)
	if err != nil {
		return err
	}
	return g.ledger.MergeSettings(ctx, g.model.RoomID(), core.SettingsPatch{FixedRate: &parsed})
}

// RequestUnlockSettings stages a challenge that, once passed, unlocks the
// settings panel for the rest of the session.
func (g *Gateway) RequestUnlockSettings() {
	g.guard.RequestChallenge("unlock settings", func(ctx context.Context) error {
		g.guard.unlockSettings()
		return nil
	})
}

func parseMode(mode string) core.PaymentMode {
	if core.PaymentMode(mode) == core.ModeCash {
		return core.ModeCash
	}
	return core.ModeOnline
}
