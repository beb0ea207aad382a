package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"bloodbank/internal/metrics"
)

// LowStockThreshold is the aggregate quantity below which an issuance
// triggers a low-stock alert. A single global constant shared across all
// blood types; per-type configuration is a possible future parameterization.
const LowStockThreshold = 500

// writeTimeout bounds every persistence write sequence so a wedged store
// surfaces as a retryable error instead of hanging the caller.
const writeTimeout = 5 * time.Second

// AlertSink receives low-stock notifications. Implementations must not
// block: dispatch happens after the issuance is durably committed and its
// failure never propagates to the issuance caller.
type AlertSink interface {
	NotifyLowStock(bloodType BloodType, remaining int)
}

// AddStockRequest is the input for recording a stock addition.
type AddStockRequest struct {
	BloodType  string    `json:"blood_type"`
	Quantity   int       `json:"quantity"`
	UpdatedBy  string    `json:"updated_by"`
	LabelID    string    `json:"label_id"`
	ExpiryDate time.Time `json:"expiry_date"`
}

// IssueStockRequest is the input for issuing stock against an explicit
// selection of addition entries.
type IssueStockRequest struct {
	BloodType string  `json:"blood_type"`
	Quantity  int     `json:"quantity"`
	UpdatedBy string  `json:"updated_by"`
	IssuedTo  string  `json:"issued_to"`
	EntryIDs  []int64 `json:"entry_ids"`
}

// IssueResult is the caller-visible outcome of a successful issuance.
type IssueResult struct {
	BloodType      BloodType `json:"blood_type"`
	Quantity       int       `json:"quantity"`
	IssuedTo       string    `json:"issued_to"`
	RemainingStock int       `json:"remaining_stock"`
}

// InventoryService orchestrates the stock addition and issuance use cases,
// enforcing the aggregate/ledger invariants across both stores. It is the
// sole writer of both tables.
type InventoryService interface {
	// AddStock records an addition and returns the updated aggregate.
	AddStock(ctx context.Context, req AddStockRequest) (*StockAggregate, error)

	// IssueStock deducts stock FEFO-first from the selected entries. The
	// whole operation commits atomically or not at all.
	IssueStock(ctx context.Context, req IssueStockRequest) (*IssueResult, error)

	// GetStocks returns all aggregates in ascending blood-type code order.
	GetStocks(ctx context.Context) ([]StockAggregate, error)

	// GetHistory returns movement records, optionally filtered by blood
	// type and operation type.
	GetHistory(ctx context.Context, bloodType, operationType string) ([]LedgerEntry, error)

	// GetAvailableEntries returns the non-exhausted addition entries for a
	// blood type, earliest expiry first. This is the candidate set an
	// operator selects from before issuing.
	GetAvailableEntries(ctx context.Context, bloodType string) ([]LedgerEntry, error)
}

type inventoryService struct {
	pool       *pgxpool.Pool
	aggregates *AggregateStore
	ledger     *LedgerStore
	alerts     AlertSink
	log        *slog.Logger
}

// NewInventoryService wires the engine with its stores and alert boundary.
// alerts may be nil when alerting is disabled.
func NewInventoryService(pool *pgxpool.Pool, aggregates *AggregateStore,
	ledger *LedgerStore, alerts AlertSink, log *slog.Logger) InventoryService {
	return &inventoryService{
		pool:       pool,
		aggregates: aggregates,
		ledger:     ledger,
		alerts:     alerts,
		log:        log,
	}
}

func (s *inventoryService) AddStock(ctx context.Context, req AddStockRequest) (*StockAggregate, error) {
	bt, err := ParseBloodType(req.BloodType)
	if err != nil {
		return nil, err
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive, got %d", ErrValidation, req.Quantity)
	}
	if req.UpdatedBy == "" {
		return nil, fmt.Errorf("%w: updated_by is required", ErrValidation)
	}
	if req.LabelID == "" {
		return nil, fmt.Errorf("%w: label_id is required", ErrValidation)
	}
	if req.ExpiryDate.IsZero() {
		return nil, fmt.Errorf("%w: expiry_date is required", ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	expiry := req.ExpiryDate
	agg, err := s.aggregates.UpsertIncrement(ctx, tx, bt, req.Quantity, req.UpdatedBy, req.LabelID, &expiry)
	if err != nil {
		return nil, err
	}

	remaining := req.Quantity
	entry := &LedgerEntry{
		BloodType:         bt,
		Operation:         OperationAddition,
		UpdatedBy:         req.UpdatedBy,
		PreviousQuantity:  agg.Quantity - req.Quantity,
		NewQuantity:       agg.Quantity,
		QuantityAdded:     req.Quantity,
		RemainingQuantity: &remaining,
		LabelID:           req.LabelID,
		ExpiryDate:        &expiry,
	}
	if _, err := s.ledger.Append(ctx, tx, entry); err != nil {
		return nil, err
	}

	// Aggregate increment and ledger append land together or not at all.
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit stock addition: %w", err)
	}

	metrics.StockAdditions.WithLabelValues(string(bt)).Inc()
	metrics.StockUnits.WithLabelValues(string(bt)).Set(float64(agg.Quantity))
	s.log.Info("stock added",
		"blood_type", bt, "quantity", req.Quantity,
		"label_id", req.LabelID, "new_total", agg.Quantity, "updated_by", req.UpdatedBy)

	return agg, nil
}

func (s *inventoryService) IssueStock(ctx context.Context, req IssueStockRequest) (*IssueResult, error) {
	bt, err := ParseBloodType(req.BloodType)
	if err != nil {
		return nil, err
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive, got %d", ErrValidation, req.Quantity)
	}
	if req.UpdatedBy == "" {
		return nil, fmt.Errorf("%w: updated_by is required", ErrValidation)
	}
	if req.IssuedTo == "" {
		return nil, fmt.Errorf("%w: issued_to is required", ErrValidation)
	}
	if len(req.EntryIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one ledger entry must be selected", ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// The aggregate row lock serializes issuances per blood type: a second
	// issuance for the same type blocks here until this one commits or
	// rolls back, so both can never observe the same available stock.
	agg, err := s.aggregates.GetForUpdate(ctx, tx, bt)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: no %s stock on hand", ErrInsufficientStock, bt)
	}
	if err != nil {
		return nil, err
	}

	entries, err := s.ledger.SelectForUpdate(ctx, tx, bt, req.EntryIDs)
	if err != nil {
		return nil, err
	}
	if len(entries) != len(req.EntryIDs) {
		return nil, fmt.Errorf("%w: selected entries invalid or unavailable", ErrInsufficientSelection)
	}

	if agg.Quantity < req.Quantity {
		return nil, fmt.Errorf("%w: %d units of %s on hand, %d requested",
			ErrInsufficientStock, agg.Quantity, bt, req.Quantity)
	}

	// Pure planning step: no writes have happened yet, so any failure here
	// leaves the store untouched.
	plan, err := Allocate(entries, bt, req.Quantity)
	if err != nil {
		return nil, err
	}

	for _, d := range plan {
		if _, err := s.ledger.DecrementRemaining(ctx, tx, d.EntryID, d.Amount); err != nil {
			metrics.IssuanceConflicts.WithLabelValues(string(bt)).Inc()
			return nil, err
		}
	}

	newAgg, err := s.aggregates.Decrement(ctx, tx, bt, req.Quantity, req.UpdatedBy)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			metrics.IssuanceConflicts.WithLabelValues(string(bt)).Inc()
		}
		return nil, err
	}

	entry := &LedgerEntry{
		BloodType:        bt,
		Operation:        OperationIssuance,
		UpdatedBy:        req.UpdatedBy,
		PreviousQuantity: agg.Quantity,
		NewQuantity:      newAgg.Quantity,
		QuantityAdded:    -req.Quantity,
		IssuedTo:         req.IssuedTo,
	}
	if _, err := s.ledger.Append(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit stock issuance: %w", err)
	}

	metrics.StockIssuances.WithLabelValues(string(bt)).Inc()
	metrics.StockUnits.WithLabelValues(string(bt)).Set(float64(newAgg.Quantity))
	s.log.Info("stock issued",
		"blood_type", bt, "quantity", req.Quantity,
		"issued_to", req.IssuedTo, "remaining", newAgg.Quantity, "updated_by", req.UpdatedBy)

	// Alerting happens only after the issuance is durably committed.
	if newAgg.Quantity < LowStockThreshold && s.alerts != nil {
		s.alerts.NotifyLowStock(bt, newAgg.Quantity)
	}

	return &IssueResult{
		BloodType:      bt,
		Quantity:       req.Quantity,
		IssuedTo:       req.IssuedTo,
		RemainingStock: newAgg.Quantity,
	}, nil
}

func (s *inventoryService) GetStocks(ctx context.Context) ([]StockAggregate, error) {
	return s.aggregates.List(ctx)
}

func (s *inventoryService) GetHistory(ctx context.Context, bloodType, operationType string) ([]LedgerEntry, error) {
	var btFilter *BloodType
	if bloodType != "" {
		bt, err := ParseBloodType(bloodType)
		if err != nil {
			return nil, err
		}
		btFilter = &bt
	}
	var opFilter *OperationType
	if operationType != "" {
		op := OperationType(operationType)
		if op != OperationAddition && op != OperationIssuance {
			return nil, fmt.Errorf("%w: unknown operation type %q", ErrValidation, operationType)
		}
		opFilter = &op
	}
	return s.ledger.ListHistory(ctx, btFilter, opFilter)
}

func (s *inventoryService) GetAvailableEntries(ctx context.Context, bloodType string) ([]LedgerEntry, error) {
	bt, err := ParseBloodType(bloodType)
	if err != nil {
		return nil, err
	}
	return s.ledger.FindAvailableAdditions(ctx, bt, nil)
}
