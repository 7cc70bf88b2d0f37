package core

import (
	"math"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"12.34", 12.34},
		{"12,34", 12.34},
		{" 300 ", 300},
		{"0", 0},
		{"", 0},
		{"abc", 0},
		{"-5", 0},
		{"NaN", 0},
		{"Inf", 0},
	}
	for _, tc := range cases {
		if got := ParseAmount(tc.in); got != tc.want {
			t.Errorf("ParseAmount(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseStrictAmount(t *testing.T) {
	if v, err := ParseStrictAmount("45,50"); err != nil || v != 45.5 {
		t.Fatalf("ParseStrictAmount(45,50) = %v, %v", v, err)
	}
	if v, err := ParseStrictAmount("0"); err != nil || v != 0 {
		t.Fatalf("ParseStrictAmount(0) = %v, %v", v, err)
	}
	for _, in := range []string{"", "abc", "-1", "NaN", "+Inf"} {
		if _, err := ParseStrictAmount(in); err == nil {
			t.Errorf("ParseStrictAmount(%q) expected error", in)
		}
	}
}

func TestParseHeadCount(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"1", 1},
		{"4", 4},
		{"", 1},
		{"0", 1},
		{"-3", 1},
		{"x", 1},
		{"2.5", 1},
	}
	for _, tc := range cases {
		if got := ParseHeadCount(tc.in); got != tc.want {
			t.Errorf("ParseHeadCount(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeAmount(t *testing.T) {
	if got := SanitizeAmount(math.NaN()); got != 0 {
		t.Errorf("NaN should sanitize to 0, got %v", got)
	}
	if got := SanitizeAmount(math.Inf(1)); got != 0 {
		t.Errorf("+Inf should sanitize to 0, got %v", got)
	}
	if got := SanitizeAmount(-10); got != 0 {
		t.Errorf("negative should sanitize to 0, got %v", got)
	}
	if got := SanitizeAmount(99.5); got != 99.5 {
		t.Errorf("valid amount should pass through, got %v", got)
	}
}
