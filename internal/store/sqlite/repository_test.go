package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"splitroom/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "rooms.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestExpenseCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	id, err := repo.CreateExpense(ctx, "trip-sq0001", core.Expense{
		Description: "Hotel",
		Amount:      300,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := repo.ListExpenses(ctx, "trip-sq0001")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != id || got[0].Amount != 300 {
		t.Fatalf("ListExpenses = %+v", got)
	}

	if err := repo.UpdateExpense(ctx, "trip-sq0001", id, "Hotel + tax", 320); err != nil {
		t.Fatal(err)
	}
	got, _ = repo.ListExpenses(ctx, "trip-sq0001")
	if got[0].Description != "Hotel + tax" || got[0].Amount != 320 {
		t.Fatalf("after update: %+v", got[0])
	}

	if err := repo.DeleteExpense(ctx, "trip-sq0001", id); err != nil {
		t.Fatal(err)
	}
	got, _ = repo.ListExpenses(ctx, "trip-sq0001")
	if len(got) != 0 {
		t.Fatalf("expense not deleted: %+v", got)
	}
}

func TestUnknownRecordErrors(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if err := repo.UpdateExpense(ctx, "trip-sq0002", "missing", "x", 1); !errors.Is(err, core.ErrUnknownRecord) {
		t.Fatalf("update missing expense = %v, want ErrUnknownRecord", err)
	}
	if err := repo.DeleteParticipant(ctx, "trip-sq0002", "missing"); !errors.Is(err, core.ErrUnknownRecord) {
		t.Fatalf("delete missing participant = %v, want ErrUnknownRecord", err)
	}
}

func TestNewestFirstOrdering(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	base := time.Now()
	for i, desc := range []string{"first", "second", "third"} {
		_, err := repo.CreateExpense(ctx, "trip-sq0003", core.Expense{
			Description: desc,
			Amount:      float64(i + 1),
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.ListExpenses(ctx, "trip-sq0003")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].Description != "third" || got[2].Description != "first" {
		t.Fatalf("ordering = %+v", got)
	}
}

func TestRoomIsolation(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, err := repo.CreateParticipant(ctx, "trip-sq000a", core.Participant{
		Name: "Anna", AmountPaid: 50, Mode: core.ModeCash, HeadCount: 2, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	other, err := repo.ListParticipants(ctx, "trip-sq000b")
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Fatalf("participant leaked across rooms: %+v", other)
	}

	own, _ := repo.ListParticipants(ctx, "trip-sq000a")
	if len(own) != 1 || own[0].Name != "Anna" || own[0].HeadCount != 2 || own[0].Mode != core.ModeCash {
		t.Fatalf("ListParticipants = %+v", own)
	}
}

func TestSettingsMerge(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	s, err := repo.GetSettings(ctx, "trip-sq0004")
	if err != nil {
		t.Fatal(err)
	}
	if s != core.DefaultSettings() {
		t.Fatalf("unset settings = %+v, want defaults", s)
	}

	rate := 150.0
	if err := repo.MergeSettings(ctx, "trip-sq0004", core.SettingsPatch{FixedRate: &rate}); err != nil {
		t.Fatal(err)
	}
	mode := core.SettlementFixed
	if err := repo.MergeSettings(ctx, "trip-sq0004", core.SettingsPatch{Mode: &mode}); err != nil {
		t.Fatal(err)
	}

	s, err = repo.GetSettings(ctx, "trip-sq0004")
	if err != nil {
		t.Fatal(err)
	}
	// The second merge must not clobber the rate written by the first.
	if s.Mode != core.SettlementFixed || s.FixedRate != 150 {
		t.Fatalf("merged settings = %+v", s)
	}
}
