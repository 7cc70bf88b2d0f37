package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	ModeCash   PaymentMode = "cash"
	ModeOnline PaymentMode = "online"
)

const (
	SettlementAuto  SettlementMode = "auto"
	SettlementFixed SettlementMode = "fixed"
)

type (
	// PaymentMode records how a participant handed over their contribution.
	PaymentMode string

	// SettlementMode selects how the per-head cost is derived.
	SettlementMode string

	// Expense is a single shared cost entry in a room.
	Expense struct {
		ID          string
		Description string
		Amount      float64
		CreatedAt   time.Time
	}

	// Participant is one contribution entry. HeadCount lets a single entry
	// cover several people (a family paying together).
	Participant struct {
		ID         string
		Name       string
		AmountPaid float64
		Mode       PaymentMode
		HeadCount  int
		CreatedAt  time.Time
	}

	// Settings is the room's settlement configuration singleton.
	// An absent record means DefaultSettings.
	Settings struct {
		Mode      SettlementMode
		FixedRate float64
	}

	// SettingsPatch is a merge-write: nil fields leave the stored value alone,
	// so writing the mode never clobbers the fixed rate and vice versa.
	SettingsPatch struct {
		Mode      *SettlementMode
		FixedRate *float64
	}

	// Snapshot is the full materialized state of one room at a point in time.
	Snapshot struct {
		RoomID       string
		Expenses     []Expense
		Participants []Participant
		Settings     Settings
	}
)

var (
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidMode      = errors.New("invalid payment mode")
	ErrTooLong          = errors.New("value too long")
	ErrUnknownRecord    = errors.New("unknown record")
)

// DefaultSettings returns the settings a room has before anyone writes them.
func DefaultSettings() Settings {
	return Settings{Mode: SettlementAuto, FixedRate: 0}
}

func (m PaymentMode) Valid() bool {
	return m == ModeCash || m == ModeOnline
}

func (m SettlementMode) Valid() bool {
	return m == SettlementAuto || m == SettlementFixed
}

func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return fmt.Errorf("description too long (max 200 characters): %w", ErrTooLong)
	}
	if e.Amount < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (p Participant) Validate() error {
	if len(strings.TrimSpace(p.Name)) == 0 {
		return ErrEmptyName
	}
	if len(p.Name) > 200 {
		return fmt.Errorf("name too long (max 200 characters): %w", ErrTooLong)
	}
	if p.AmountPaid < 0 {
		return ErrInvalidAmount
	}
	if !p.Mode.Valid() {
		return ErrInvalidMode
	}
	return nil
}

// Heads returns the participant's head count normalized to at least one.
func (p Participant) Heads() int {
	if p.HeadCount < 1 {
		return 1
	}
	return p.HeadCount
}
