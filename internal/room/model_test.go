package room

import (
	"context"
	"testing"
	"time"

	"splitroom/internal/core"
	"splitroom/internal/store"
	"splitroom/internal/store/memory"
)

func newTestLedger(t *testing.T) *store.Ledger {
	t.Helper()
	repo := memory.New()
	t.Cleanup(func() { _ = repo.Close() })
	return store.NewLedger(repo, nil)
}

func waitForChange(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for model change signal")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestModelInitialStateIsEmpty(t *testing.T) {
	ledger := newTestLedger(t)
	m, err := OpenModel(context.Background(), ledger, "trip-aaaaaa", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	snap := m.Snapshot()
	if len(snap.Expenses) != 0 || len(snap.Participants) != 0 {
		t.Fatalf("fresh room not empty: %+v", snap)
	}
	if got := m.Summary().TotalExpenses; got != 0 {
		t.Fatalf("fresh room total = %v, want 0", got)
	}
}

func TestModelTracksLedgerWrites(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)
	m, err := OpenModel(ctx, ledger, "trip-bbbbbb", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	ch, cancel := m.Watch()
	defer cancel()

	id, err := ledger.CreateExpense(ctx, "trip-bbbbbb", testExpense("Hotel", 300))
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return m.HasExpense(id) })
	waitForChange(t, ch)

	if got := m.Summary().TotalExpenses; got != 300 {
		t.Fatalf("TotalExpenses = %v, want 300", got)
	}

	if err := ledger.DeleteExpense(ctx, "trip-bbbbbb", id); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return !m.HasExpense(id) })
	if got := m.Summary().TotalExpenses; got != 0 {
		t.Fatalf("TotalExpenses after delete = %v, want 0", got)
	}
}

func TestModelIsolatedPerRoom(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)
	a, err := OpenModel(ctx, ledger, "trip-room-a", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := OpenModel(ctx, ledger, "trip-room-b", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	id, err := ledger.CreateExpense(ctx, "trip-room-a", testExpense("Fuel", 80))
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return a.HasExpense(id) })
	if b.HasExpense(id) {
		t.Fatal("expense leaked into the other room's model")
	}
}

func TestModelCloseStopsDelivery(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)
	m, err := OpenModel(ctx, ledger, "trip-cccccc", nil)
	if err != nil {
		t.Fatal(err)
	}
	m.Close()
	m.Close() // idempotent

	if _, err := ledger.CreateExpense(ctx, "trip-cccccc", testExpense("Dinner", 45)); err != nil {
		t.Fatal(err)
	}
	// The closed model must keep its last state.
	time.Sleep(50 * time.Millisecond)
	if len(m.Snapshot().Expenses) != 0 {
		t.Fatal("closed model kept applying feed updates")
	}
}

func TestModelSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)
	m, err := OpenModel(ctx, ledger, "trip-dddddd", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	id, err := ledger.CreateExpense(ctx, "trip-dddddd", testExpense("Taxi", 20))
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return m.HasExpense(id) })

	snap := m.Snapshot()
	snap.Expenses[0].Amount = 9999
	if got := m.Summary().TotalExpenses; got != 20 {
		t.Fatalf("mutating a returned snapshot changed the model: total = %v", got)
	}
}

func TestModelSummaryIsACopy(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)
	m, err := OpenModel(ctx, ledger, "trip-eeeeee", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	id, err := ledger.CreateParticipant(ctx, "trip-eeeeee", core.Participant{
		Name: "Ana", AmountPaid: 50, Mode: core.ModeOnline, HeadCount: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return m.HasParticipant(id) })

	sum := m.Summary()
	if len(sum.Statuses) != 1 {
		t.Fatalf("Statuses = %d, want 1", len(sum.Statuses))
	}
	sum.Statuses[0].Due = 12345
	if got := m.Summary().Statuses[0].Due; got == 12345 {
		t.Fatal("mutating a returned summary changed the model")
	}
}
