// Package core provides the room domain model and the settlement engine.
//
// This file contains the tolerant numeric normalization applied at every
// boundary where user input or stored values enter an aggregate. The policy
// is deliberately forgiving: a value that fails to parse contributes zero
// (or one head) instead of poisoning a displayed total.
package core

import (
	"math"
	"strconv"
	"strings"
)

// ParseAmount converts a decimal string to a non-negative amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Anything that does not parse as a finite non-negative number collapses
// to 0. Aggregates therefore never see NaN, Inf, or negatives.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34
//	ParseAmount("12,34") -> 12.34
//	ParseAmount("abc")   -> 0
//	ParseAmount("-5")    -> 0
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return SanitizeAmount(v)
}

// ParseStrictAmount parses a decimal string without the tolerant collapse.
// Updates use it: an edit is a considered correction, so a value that does
// not parse as a finite non-negative number is an error, not a zero.
func ParseStrictAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// ParseHeadCount converts a string to a head count of at least one.
// Non-numeric and non-positive values normalize to 1.
func ParseHeadCount(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// SanitizeAmount clamps a stored or computed value to a finite non-negative
// number. Records written by older or foreign clients pass through here
// before entering any aggregate.
func SanitizeAmount(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
