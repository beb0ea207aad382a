package core

import (
	"fmt"
	"time"
)

// BloodType is one of the eight ABO/Rh blood groups. It is the partition
// key for both the aggregate and ledger tables.
type BloodType string

const (
	APositive  BloodType = "A+"
	ANegative  BloodType = "A-"
	ABPositive BloodType = "AB+"
	ABNegative BloodType = "AB-"
	BPositive  BloodType = "B+"
	BNegative  BloodType = "B-"
	OPositive  BloodType = "O+"
	ONegative  BloodType = "O-"
)

// AllBloodTypes returns the closed set of blood types in ascending code order,
// matching the sort order of the stock listing endpoint.
func AllBloodTypes() []BloodType {
	return []BloodType{
		APositive, ANegative, ABPositive, ABNegative,
		BPositive, BNegative, OPositive, ONegative,
	}
}

// ParseBloodType validates a raw blood group string against the closed enum.
func ParseBloodType(s string) (BloodType, error) {
	bt := BloodType(s)
	switch bt {
	case APositive, ANegative, ABPositive, ABNegative,
		BPositive, BNegative, OPositive, ONegative:
		return bt, nil
	}
	return "", fmt.Errorf("%w: unknown blood type %q", ErrValidation, s)
}

// OperationType distinguishes the two kinds of ledger movements.
type OperationType string

const (
	OperationAddition OperationType = "addition"
	OperationIssuance OperationType = "issuance"
)

// StockAggregate is the single running-total record per blood type.
// Quantity always equals the sum of effective availability over all
// addition ledger entries of the same blood type.
type StockAggregate struct {
	BloodType      BloodType  `json:"blood_type"`
	Quantity       int        `json:"quantity"`
	UpdatedBy      string     `json:"updated_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastLabelID    string     `json:"last_label_id,omitempty"`
	LastExpiryDate *time.Time `json:"last_expiry_date,omitempty"`
}

// LedgerEntry is one immutable audit record of a stock movement.
// Addition entries carry LabelID/ExpiryDate/RemainingQuantity; issuance
// entries carry IssuedTo and a negative QuantityAdded. Only
// RemainingQuantity is ever mutated after creation, by issuance deductions.
type LedgerEntry struct {
	ID                int64         `json:"id"`
	BloodType         BloodType     `json:"blood_type"`
	Operation         OperationType `json:"operation_type"`
	UpdatedBy         string        `json:"updated_by"`
	UpdatedAt         time.Time     `json:"updated_at"`
	PreviousQuantity  int           `json:"previous_quantity"`
	NewQuantity       int           `json:"new_quantity"`
	QuantityAdded     int           `json:"quantity_added"`
	RemainingQuantity *int          `json:"remaining_quantity,omitempty"`
	LabelID           string        `json:"label_id,omitempty"`
	ExpiryDate        *time.Time    `json:"expiry_date,omitempty"`
	IssuedTo          string        `json:"issued_to,omitempty"`
}

// Available returns the effective availability of an addition entry.
// Entries created before remaining_quantity existed are treated as fully
// available. This is the only place the legacy nil case is handled.
func (e *LedgerEntry) Available() int {
	if e.RemainingQuantity != nil {
		return *e.RemainingQuantity
	}
	return e.QuantityAdded
}

// Exhausted reports whether an addition entry has been fully consumed and
// must no longer be selectable for issuance.
func (e *LedgerEntry) Exhausted() bool {
	return e.Available() <= 0
}
