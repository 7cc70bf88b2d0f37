package memory

import (
	"context"
	"testing"
	"time"

	"splitroom/internal/core"
)

func TestExpenseCRUD(t *testing.T) {
	s := New()
	ctx := context.Background()

	id, err := s.CreateExpense(ctx, "room-1", core.Expense{Description: "food", Amount: 300, CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == "" {
		t.Fatal("create should assign an id")
	}

	list, err := s.ListExpenses(ctx, "room-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %v, %v; want 1 record", list, err)
	}
	if list[0].Description != "food" || list[0].Amount != 300 {
		t.Fatalf("stored record mismatch: %+v", list[0])
	}

	if err := s.UpdateExpense(ctx, "room-1", id, "drinks", 120); err != nil {
		t.Fatalf("update: %v", err)
	}
	list, _ = s.ListExpenses(ctx, "room-1")
	if list[0].Description != "drinks" || list[0].Amount != 120 {
		t.Fatalf("update not applied: %+v", list[0])
	}

	if err := s.UpdateExpense(ctx, "room-1", "missing", "x", 1); err != core.ErrUnknownRecord {
		t.Fatalf("update missing = %v, want ErrUnknownRecord", err)
	}

	if err := s.DeleteExpense(ctx, "room-1", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteExpense(ctx, "room-1", id); err != core.ErrUnknownRecord {
		t.Fatalf("double delete = %v, want ErrUnknownRecord", err)
	}
}

func TestListOrderNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Now()
	for i, desc := range []string{"first", "second", "third"} {
		_, err := s.CreateExpense(ctx, "r", core.Expense{
			Description: desc, Amount: 1, CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("create %s: %v", desc, err)
		}
	}
	list, _ := s.ListExpenses(ctx, "r")
	if list[0].Description != "third" || list[2].Description != "first" {
		t.Fatalf("wrong order: %v, %v, %v", list[0].Description, list[1].Description, list[2].Description)
	}
}

func TestRoomsAreIsolated(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.CreateParticipant(ctx, "a", core.Participant{Name: "x", Mode: core.ModeCash, HeadCount: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}
	other, err := s.ListParticipants(ctx, "b")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("room b should be empty, got %d records", len(other))
	}
}

func TestSettingsMerge(t *testing.T) {
	s := New()
	ctx := context.Background()

	got, err := s.GetSettings(ctx, "r")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != core.DefaultSettings() {
		t.Fatalf("fresh room settings = %+v, want defaults", got)
	}

	rate := 75.0
	if err := s.MergeSettings(ctx, "r", core.SettingsPatch{FixedRate: &rate}); err != nil {
		t.Fatalf("merge rate: %v", err)
	}
	mode := core.SettlementFixed
	if err := s.MergeSettings(ctx, "r", core.SettingsPatch{Mode: &mode}); err != nil {
		t.Fatalf("merge mode: %v", err)
	}

	got, _ = s.GetSettings(ctx, "r")
	if got.Mode != core.SettlementFixed || got.FixedRate != 75 {
		t.Fatalf("merge clobbered a field: %+v", got)
	}
}
