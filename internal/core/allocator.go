package core

import (
	"fmt"
	"sort"
)

// Deduction is one step of an allocation plan: take Amount units from the
// addition entry identified by EntryID.
type Deduction struct {
	EntryID int64 `json:"entry_id"`
	Amount  int   `json:"amount_deducted"`
}

// Allocate computes how to satisfy an issuance of quantity units of bloodType
// from the caller-selected addition entries, consuming earliest-expiring stock
// first (FEFO, the clinically mandated policy for perishable blood products).
//
// It performs no I/O. The caller applies the returned plan transactionally.
//
// The candidate set is taken as-is: if the selection does not cover quantity,
// the call fails with ErrInsufficientSelection even when other unselected
// entries of the same blood type would cover it. Operators must select
// entries explicitly so stock reserved for other purposes is never consumed
// by accident.
func Allocate(entries []LedgerEntry, bloodType BloodType, quantity int) ([]Deduction, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: issuance quantity must be positive", ErrValidation)
	}

	total := 0
	for i := range entries {
		e := &entries[i]
		if e.Operation != OperationAddition {
			return nil, fmt.Errorf("%w: entry %d is not an addition", ErrInsufficientSelection, e.ID)
		}
		if e.BloodType != bloodType {
			return nil, fmt.Errorf("%w: entry %d belongs to blood type %s", ErrInsufficientSelection, e.ID, e.BloodType)
		}
		if e.Exhausted() {
			return nil, fmt.Errorf("%w: entry %d is exhausted", ErrInsufficientSelection, e.ID)
		}
		total += e.Available()
	}
	if total < quantity {
		return nil, fmt.Errorf("%w: selected %d units, requested %d", ErrInsufficientSelection, total, quantity)
	}

	// Earliest expiry first; entries without an expiry date sort last.
	// Ties break on entry ID so the plan is deterministic.
	sorted := make([]LedgerEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := &sorted[i], &sorted[j]
		switch {
		case a.ExpiryDate == nil && b.ExpiryDate == nil:
			return a.ID < b.ID
		case a.ExpiryDate == nil:
			return false
		case b.ExpiryDate == nil:
			return true
		case a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ID < b.ID
		default:
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
	})

	var plan []Deduction
	remaining := quantity
	for i := range sorted {
		if remaining == 0 {
			break
		}
		e := &sorted[i]
		take := e.Available()
		if take > remaining {
			take = remaining
		}
		plan = append(plan, Deduction{EntryID: e.ID, Amount: take})
		remaining -= take
	}

	return plan, nil
}
