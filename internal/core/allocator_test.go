package core

import (
	"errors"
	"testing"
	"time"
)

func additionEntry(id int64, bt BloodType, added, remaining int, expiry string) LedgerEntry {
	e := LedgerEntry{
		ID:            id,
		BloodType:     bt,
		Operation:     OperationAddition,
		QuantityAdded: added,
	}
	e.RemainingQuantity = &remaining
	if expiry != "" {
		d, err := time.Parse("2006-01-02", expiry)
		if err != nil {
			panic(err)
		}
		e.ExpiryDate = &d
	}
	return e
}

func TestAllocate_SingleEntry(t *testing.T) {
	entries := []LedgerEntry{
		additionEntry(1, OPositive, 1000, 1000, "2025-06-01"),
	}

	plan, err := Allocate(entries, OPositive, 600)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan) != 1 {
		t.Fatalf("expected 1 deduction, got %d", len(plan))
	}
	if plan[0].EntryID != 1 || plan[0].Amount != 600 {
		t.Errorf("expected {1, 600}, got %+v", plan[0])
	}
}

func TestAllocate_EarliestExpiryFirst(t *testing.T) {
	// Entry 2 expires sooner and must be consumed first even though it was
	// added later.
	entries := []LedgerEntry{
		additionEntry(1, OPositive, 1000, 400, "2025-06-01"),
		additionEntry(2, OPositive, 200, 200, "2025-05-01"),
	}

	plan, err := Allocate(entries, OPositive, 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan) != 2 {
		t.Fatalf("expected 2 deductions, got %d", len(plan))
	}
	if plan[0].EntryID != 2 || plan[0].Amount != 200 {
		t.Errorf("expected {2, 200} first, got %+v", plan[0])
	}
	if plan[1].EntryID != 1 || plan[1].Amount != 100 {
		t.Errorf("expected {1, 100} second, got %+v", plan[1])
	}
}

func TestAllocate_ConservesQuantity(t *testing.T) {
	entries := []LedgerEntry{
		additionEntry(1, APositive, 100, 70, "2025-03-01"),
		additionEntry(2, APositive, 100, 100, "2025-01-01"),
		additionEntry(3, APositive, 100, 30, "2025-02-01"),
	}

	plan, err := Allocate(entries, APositive, 150)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	total := 0
	for _, d := range plan {
		total += d.Amount
	}
	if total != 150 {
		t.Errorf("plan deducts %d units, requested 150", total)
	}

	// FEFO: entry 2 (Jan) fully consumed, then entry 3 (Feb), entry 1 untouched.
	if plan[0].EntryID != 2 || plan[0].Amount != 100 {
		t.Errorf("expected {2, 100} first, got %+v", plan[0])
	}
	if plan[1].EntryID != 3 || plan[1].Amount != 30 {
		t.Errorf("expected {3, 30} second, got %+v", plan[1])
	}
	if plan[2].EntryID != 1 || plan[2].Amount != 20 {
		t.Errorf("expected {1, 20} third, got %+v", plan[2])
	}
}

func TestAllocate_TiesBreakOnID(t *testing.T) {
	entries := []LedgerEntry{
		additionEntry(7, BNegative, 50, 50, "2025-04-01"),
		additionEntry(3, BNegative, 50, 50, "2025-04-01"),
	}

	plan, err := Allocate(entries, BNegative, 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan[0].EntryID != 3 {
		t.Errorf("expected entry 3 first on expiry tie, got %d", plan[0].EntryID)
	}
	if plan[1].EntryID != 7 || plan[1].Amount != 10 {
		t.Errorf("expected {7, 10} second, got %+v", plan[1])
	}
}

func TestAllocate_NilExpirySortsLast(t *testing.T) {
	noExpiry := additionEntry(1, OPositive, 100, 100, "")
	withExpiry := additionEntry(2, OPositive, 100, 100, "2030-01-01")

	plan, err := Allocate([]LedgerEntry{noExpiry, withExpiry}, OPositive, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan[0].EntryID != 2 {
		t.Errorf("expected dated entry before undated, got entry %d first", plan[0].EntryID)
	}
}

func TestAllocate_LegacyEntryFullyAvailable(t *testing.T) {
	// Pre-tracking entries have no remaining_quantity and count as fully
	// available.
	legacy := LedgerEntry{
		ID:            1,
		BloodType:     OPositive,
		Operation:     OperationAddition,
		QuantityAdded: 500,
	}

	plan, err := Allocate([]LedgerEntry{legacy}, OPositive, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan[0].Amount != 500 {
		t.Errorf("expected 500 units from legacy entry, got %d", plan[0].Amount)
	}
}

func TestAllocate_InsufficientSelection(t *testing.T) {
	entries := []LedgerEntry{
		additionEntry(1, OPositive, 100, 100, "2025-06-01"),
	}

	_, err := Allocate(entries, OPositive, 101)
	if !errors.Is(err, ErrInsufficientSelection) {
		t.Errorf("expected ErrInsufficientSelection, got %v", err)
	}
}

func TestAllocate_RejectsExhaustedEntry(t *testing.T) {
	entries := []LedgerEntry{
		additionEntry(1, OPositive, 100, 100, "2025-06-01"),
		additionEntry(2, OPositive, 100, 0, "2025-05-01"),
	}

	_, err := Allocate(entries, OPositive, 50)
	if !errors.Is(err, ErrInsufficientSelection) {
		t.Errorf("expected ErrInsufficientSelection for exhausted entry, got %v", err)
	}
}

func TestAllocate_RejectsForeignBloodType(t *testing.T) {
	entries := []LedgerEntry{
		additionEntry(1, ANegative, 100, 100, "2025-06-01"),
	}

	_, err := Allocate(entries, OPositive, 50)
	if !errors.Is(err, ErrInsufficientSelection) {
		t.Errorf("expected ErrInsufficientSelection for foreign blood type, got %v", err)
	}
}

func TestAllocate_RejectsIssuanceEntry(t *testing.T) {
	issuance := LedgerEntry{
		ID:            1,
		BloodType:     OPositive,
		Operation:     OperationIssuance,
		QuantityAdded: -100,
	}

	_, err := Allocate([]LedgerEntry{issuance}, OPositive, 50)
	if !errors.Is(err, ErrInsufficientSelection) {
		t.Errorf("expected ErrInsufficientSelection for issuance entry, got %v", err)
	}
}

func TestAllocate_RejectsNonPositiveQuantity(t *testing.T) {
	entries := []LedgerEntry{
		additionEntry(1, OPositive, 100, 100, "2025-06-01"),
	}

	for _, q := range []int{0, -5} {
		if _, err := Allocate(entries, OPositive, q); !errors.Is(err, ErrValidation) {
			t.Errorf("quantity %d: expected ErrValidation, got %v", q, err)
		}
	}
}

func TestAllocate_ExactFitStopsEarly(t *testing.T) {
	entries := []LedgerEntry{
		additionEntry(1, OPositive, 100, 100, "2025-01-01"),
		additionEntry(2, OPositive, 100, 100, "2025-02-01"),
	}

	plan, err := Allocate(entries, OPositive, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan) != 1 {
		t.Fatalf("expected 1 deduction for exact fit, got %d", len(plan))
	}
	if plan[0].EntryID != 1 {
		t.Errorf("expected earliest-expiring entry consumed, got %d", plan[0].EntryID)
	}
}

func TestAllocate_DoesNotMutateInput(t *testing.T) {
	entries := []LedgerEntry{
		additionEntry(2, OPositive, 100, 100, "2025-02-01"),
		additionEntry(1, OPositive, 100, 100, "2025-01-01"),
	}

	if _, err := Allocate(entries, OPositive, 150); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entries[0].ID != 2 || entries[1].ID != 1 {
		t.Error("input slice order changed")
	}
	if *entries[0].RemainingQuantity != 100 || *entries[1].RemainingQuantity != 100 {
		t.Error("input entry quantities changed")
	}
}
