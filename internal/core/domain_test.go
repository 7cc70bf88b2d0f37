package core

import (
	"strings"
	"testing"
)

func TestExpenseValidate(t *testing.T) {
	good := Expense{Description: "food", Amount: 12.5}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		e    Expense
	}{
		{"empty description", Expense{Description: "  ", Amount: 1}},
		{"too long", Expense{Description: strings.Repeat("x", 201), Amount: 1}},
		{"negative amount", Expense{Description: "a", Amount: -1}},
	}
	for _, tc := range cases {
		if err := tc.e.Validate(); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestParticipantValidate(t *testing.T) {
	good := Participant{Name: "A", AmountPaid: 10, Mode: ModeOnline, HeadCount: 1}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		p    Participant
	}{
		{"empty name", Participant{Name: "", Mode: ModeCash}},
		{"negative paid", Participant{Name: "a", AmountPaid: -1, Mode: ModeCash}},
		{"bad mode", Participant{Name: "a", Mode: PaymentMode("iou")}},
	}
	for _, tc := range cases {
		if err := tc.p.Validate(); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestParticipantHeads(t *testing.T) {
	if got := (Participant{HeadCount: 0}).Heads(); got != 1 {
		t.Errorf("Heads() with 0 = %d, want 1", got)
	}
	if got := (Participant{HeadCount: -2}).Heads(); got != 1 {
		t.Errorf("Heads() with -2 = %d, want 1", got)
	}
	if got := (Participant{HeadCount: 3}).Heads(); got != 3 {
		t.Errorf("Heads() with 3 = %d, want 3", got)
	}
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if s.Mode != SettlementAuto || s.FixedRate != 0 {
		t.Fatalf("DefaultSettings() = %+v, want auto/0", s)
	}
}
