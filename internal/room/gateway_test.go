package room

import (
	"context"
	"errors"
	"strings"
	"testing"

	"splitroom/internal/core"
)

func testExpense(description string, amount float64) core.Expense {
	return core.Expense{Description: description, Amount: amount}
}

func openTestSession(t *testing.T, roomID string) (*Session, *Model) {
	t.Helper()
	ledger := newTestLedger(t)
	m, err := OpenModel(context.Background(), ledger, roomID, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(m.Close)
	guard := NewGuard("4670", nil)
	return &Session{
		Model:   m,
		Gateway: NewGateway(ledger, m, guard, nil),
		Guard:   guard,
	}, m
}

func TestGatewayCreateExpenseTolerantAmount(t *testing.T) {
	ctx := context.Background()
	s, m := openTestSession(t, "trip-gw0001")

	if err := s.Gateway.CreateExpense(ctx, "Groceries", "12,50"); err != nil {
		t.Fatal(err)
	}
	if err := s.Gateway.CreateExpense(ctx, "Mystery", "not a number"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(m.Snapshot().Expenses) == 2 })

	if got := m.Summary().TotalExpenses; got != 12.5 {
		t.Fatalf("TotalExpenses = %v, want 12.5 (garbage coerces to 0)", got)
	}
}

func TestGatewayCreateExpenseRejectsEmptyDescription(t *testing.T) {
	s, _ := openTestSession(t, "trip-gw0002")
	err := s.Gateway.CreateExpense(context.Background(), "   ", "10")
	if !errors.Is(err, core.ErrEmptyDescription) {
		t.Fatalf("blank description = %v, want ErrEmptyDescription", err)
	}
}

func TestGatewayCreateParticipantDefaults(t *testing.T) {
	ctx := context.Background()
	s, m := openTestSession(t, "trip-gw0003")

	if err := s.Gateway.CreateParticipant(ctx, "Anna", "abc", "carrier pigeon", "zero"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(m.Snapshot().Participants) == 1 })

	p := m.Snapshot().Participants[0]
	if p.AmountPaid != 0 {
		t.Fatalf("AmountPaid = %v, want 0", p.AmountPaid)
	}
	if p.Mode != core.ModeOnline {
		t.Fatalf("Mode = %q, want online fallback", p.Mode)
	}
	if p.Heads() != 1 {
		t.Fatalf("Heads = %d, want 1", p.Heads())
	}
}

func TestGatewayUpdateExpenseStrictAmount(t *testing.T) {
	ctx := context.Background()
	s, m := openTestSession(t, "trip-gw0004")

	if err := s.Gateway.CreateExpense(ctx, "Hotel", "300"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(m.Snapshot().Expenses) == 1 })
	id := m.Snapshot().Expenses[0].ID

	err := s.Gateway.UpdateExpense(ctx, id, "Hotel", "garbage")
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("strict parse on update = %v, want ErrInvalidAmount", err)
	}
	if s.Guard.Status().Pending {
		t.Fatal("rejected update still staged a challenge")
	}
}

func TestGatewayUpdateUnknownRecord(t *testing.T) {
	s, _ := openTestSession(t, "trip-gw0005")
	err := s.Gateway.UpdateExpense(context.Background(), "no-such-id", "x", "1")
	if !errors.Is(err, core.ErrUnknownRecord) {
		t.Fatalf("update of unknown id = %v, want ErrUnknownRecord", err)
	}
	err = s.Gateway.DeleteParticipant(context.Background(), "no-such-id")
	if !errors.Is(err, core.ErrUnknownRecord) {
		t.Fatalf("delete of unknown id = %v, want ErrUnknownRecord", err)
	}
}

func TestGatewayDeleteExpenseRunsAfterChallenge(t *testing.T) {
	ctx := context.Background()
	s, m := openTestSession(t, "trip-gw0006")

	if err := s.Gateway.CreateExpense(ctx, "Hotel", "300"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(m.Snapshot().Expenses) == 1 })
	id := m.Snapshot().Expenses[0].ID

	if err := s.Gateway.DeleteExpense(ctx, id); err != nil {
		t.Fatal(err)
	}
	// The record survives until the challenge passes.
	if !m.HasExpense(id) {
		t.Fatal("expense deleted before the code was submitted")
	}
	st := s.Guard.Status()
	if !st.Pending || !strings.Contains(st.Label, "delete") {
		t.Fatalf("guard status = %+v, want pending delete", st)
	}

	if err := s.Guard.Submit(ctx, "9999"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("wrong code = %v, want ErrAccessDenied", err)
	}
	if !m.HasExpense(id) {
		t.Fatal("expense deleted despite wrong code")
	}

	if err := s.Guard.Submit(ctx, "4670"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return !m.HasExpense(id) })
}

func TestGatewaySettlementModeGating(t *testing.T) {
	ctx := context.Background()
	s, m := openTestSession(t, "trip-gw0007")

	if err := s.Gateway.SetSettlementMode(ctx, "banana"); !errors.Is(err, core.ErrInvalidMode) {
		t.Fatalf("invalid mode = %v, want ErrInvalidMode", err)
	}

	// Switching to the mode already in effect stages nothing.
	if err := s.Gateway.SetSettlementMode(ctx, "auto"); err != nil {
		t.Fatal(err)
	}
	if s.Guard.Status().Pending {
		t.Fatal("no-op mode switch staged a challenge")
	}

	if err := s.Gateway.SetSettlementMode(ctx, "fixed"); err != nil {
		t.Fatal(err)
	}
	if !s.Guard.Status().Pending {
		t.Fatal("mode switch did not stage a challenge")
	}
	if err := s.Guard.Submit(ctx, "4670"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return m.Snapshot().Settings.Mode == core.SettlementFixed })
}

func TestGatewayFixedRateRequiresUnlock(t *testing.T) {
	ctx := context.Background()
	s, m := openTestSession(t, "trip-gw0008")

	if err := s.Gateway.SetFixedRate(ctx, "150"); !errors.Is(err, ErrSettingsLocked) {
		t.Fatalf("locked fixed-rate write = %v, want ErrSettingsLocked", err)
	}

	s.Gateway.RequestUnlockSettings()
	if err := s.Guard.Submit(ctx, "4670"); err != nil {
		t.Fatal(err)
	}

	if err := s.Gateway.SetFixedRate(ctx, "-5"); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("negative fixed rate = %v, want ErrInvalidAmount", err)
	}
	if err := s.Gateway.SetFixedRate(ctx, "150"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return m.Snapshot().Settings.FixedRate == 150 })
	// Mode is untouched by a fixed-rate merge.
	if got := m.Snapshot().Settings.Mode; got != core.SettlementAuto {
		t.Fatalf("mode clobbered by fixed-rate write: %q", got)
	}
}

func TestNewRoomIDFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := NewRoomID()
		if !strings.HasPrefix(id, "trip-") || len(id) != len("trip-")+6 {
			t.Fatalf("malformed room id %q", id)
		}
		for _, r := range id[len("trip-"):] {
			if !strings.ContainsRune(roomIDAlphabet, r) {
				t.Fatalf("room id %q contains %q outside the alphabet", id, r)
			}
		}
		seen[id] = true
	}
	if len(seen) < 2 {
		t.Fatal("room ids are not random")
	}
}
