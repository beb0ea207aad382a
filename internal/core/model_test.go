package core

import (
	"errors"
	"sort"
	"testing"
)

func TestParseBloodType(t *testing.T) {
	for _, bt := range AllBloodTypes() {
		parsed, err := ParseBloodType(string(bt))
		if err != nil {
			t.Errorf("%s: unexpected error: %v", bt, err)
		}
		if parsed != bt {
			t.Errorf("expected %s, got %s", bt, parsed)
		}
	}

	for _, bad := range []string{"", "C+", "o+", "AB", "A +"} {
		if _, err := ParseBloodType(bad); !errors.Is(err, ErrValidation) {
			t.Errorf("%q: expected ErrValidation, got %v", bad, err)
		}
	}
}

func TestAllBloodTypes_AscendingOrder(t *testing.T) {
	types := AllBloodTypes()
	if len(types) != 8 {
		t.Fatalf("expected 8 blood types, got %d", len(types))
	}
	if !sort.SliceIsSorted(types, func(i, j int) bool {
		return types[i] < types[j]
	}) {
		t.Errorf("blood types not in ascending code order: %v", types)
	}
}

func TestLedgerEntry_Available(t *testing.T) {
	remaining := 40
	tracked := LedgerEntry{QuantityAdded: 100, RemainingQuantity: &remaining}
	if got := tracked.Available(); got != 40 {
		t.Errorf("expected 40, got %d", got)
	}

	legacy := LedgerEntry{QuantityAdded: 100}
	if got := legacy.Available(); got != 100 {
		t.Errorf("legacy entry: expected 100, got %d", got)
	}

	zero := 0
	exhausted := LedgerEntry{QuantityAdded: 100, RemainingQuantity: &zero}
	if !exhausted.Exhausted() {
		t.Error("entry with zero remaining should be exhausted")
	}
	if tracked.Exhausted() || legacy.Exhausted() {
		t.Error("entries with availability should not be exhausted")
	}
}
