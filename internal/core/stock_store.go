package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AggregateStore persists the one running-total record per blood type.
// Standalone reads go through the pool; mutations are TX-scoped so the
// InventoryService can commit them atomically with ledger writes.
type AggregateStore struct {
	pool *pgxpool.Pool
}

func NewAggregateStore(pool *pgxpool.Pool) *AggregateStore {
	return &AggregateStore{pool: pool}
}

const aggregateColumns = `blood_type, quantity, updated_by, created_at, updated_at,
	COALESCE(last_label_id, ''), last_expiry_date`

func scanAggregate(row pgx.Row) (*StockAggregate, error) {
	var a StockAggregate
	err := row.Scan(&a.BloodType, &a.Quantity, &a.UpdatedBy, &a.CreatedAt,
		&a.UpdatedAt, &a.LastLabelID, &a.LastExpiryDate)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns every existing aggregate in ascending blood-type code order.
func (s *AggregateStore) List(ctx context.Context) ([]StockAggregate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+aggregateColumns+` FROM stock_aggregates ORDER BY blood_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock aggregates: %w", err)
	}
	defer rows.Close()

	var aggregates []StockAggregate
	for rows.Next() {
		a, err := scanAggregate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock aggregate: %w", err)
		}
		aggregates = append(aggregates, *a)
	}
	return aggregates, rows.Err()
}

// Get fetches a single aggregate, returning ErrNotFound if the blood type
// has never been stocked.
func (s *AggregateStore) Get(ctx context.Context, bt BloodType) (*StockAggregate, error) {
	a, err := scanAggregate(s.pool.QueryRow(ctx,
		`SELECT `+aggregateColumns+` FROM stock_aggregates WHERE blood_type = $1`, bt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, bt)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stock aggregate: %w", err)
	}
	return a, nil
}

// GetForUpdate locks the aggregate row for the duration of the transaction.
// The row lock is what serializes concurrent issuances of the same blood
// type; operations on different blood types proceed in parallel.
func (s *AggregateStore) GetForUpdate(ctx context.Context, tx pgx.Tx, bt BloodType) (*StockAggregate, error) {
	a, err := scanAggregate(tx.QueryRow(ctx,
		`SELECT `+aggregateColumns+` FROM stock_aggregates WHERE blood_type = $1 FOR UPDATE`, bt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, bt)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock stock aggregate: %w", err)
	}
	return a, nil
}

// UpsertIncrement atomically applies quantity += delta and refreshes the
// metadata fields, creating the record on first addition of a blood type.
func (s *AggregateStore) UpsertIncrement(ctx context.Context, tx pgx.Tx, bt BloodType,
	delta int, updatedBy, labelID string, expiryDate *time.Time) (*StockAggregate, error) {

	a, err := scanAggregate(tx.QueryRow(ctx, `
		INSERT INTO stock_aggregates (blood_type, quantity, updated_by, last_label_id, last_expiry_date)
		VALUES ($1, GREATEST($2, 0), $3, $4, $5)
		ON CONFLICT (blood_type) DO UPDATE SET
			quantity         = stock_aggregates.quantity + $2,
			updated_by       = EXCLUDED.updated_by,
			updated_at       = NOW(),
			last_label_id    = EXCLUDED.last_label_id,
			last_expiry_date = EXCLUDED.last_expiry_date
		RETURNING `+aggregateColumns,
		bt, delta, updatedBy, nullIfEmpty(labelID), expiryDate))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert stock aggregate: %w", err)
	}
	return a, nil
}

// Decrement subtracts an issued quantity, conditioned on sufficient stock.
// Zero rows affected means a concurrent writer got there first; the caller
// must abort the whole transaction.
func (s *AggregateStore) Decrement(ctx context.Context, tx pgx.Tx, bt BloodType,
	quantity int, updatedBy string) (*StockAggregate, error) {

	a, err := scanAggregate(tx.QueryRow(ctx, `
		UPDATE stock_aggregates
		SET quantity = quantity - $2, updated_by = $3, updated_at = NOW()
		WHERE blood_type = $1 AND quantity >= $2
		RETURNING `+aggregateColumns,
		bt, quantity, updatedBy))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: aggregate for %s changed underneath the issuance", ErrConflict, bt)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decrement stock aggregate: %w", err)
	}
	return a, nil
}

// LedgerStore persists the append-only movement records. Entries are never
// deleted; only remaining_quantity decays as additions are consumed.
type LedgerStore struct {
	pool *pgxpool.Pool
}

func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

const ledgerColumns = `id, blood_type, operation_type, updated_by, updated_at,
	previous_quantity, new_quantity, quantity_added, remaining_quantity,
	COALESCE(label_id, ''), expiry_date, COALESCE(issued_to, '')`

func scanLedgerEntry(row pgx.Row) (*LedgerEntry, error) {
	var e LedgerEntry
	err := row.Scan(&e.ID, &e.BloodType, &e.Operation, &e.UpdatedBy, &e.UpdatedAt,
		&e.PreviousQuantity, &e.NewQuantity, &e.QuantityAdded, &e.RemainingQuantity,
		&e.LabelID, &e.ExpiryDate, &e.IssuedTo)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Append inserts a movement record within the caller's transaction and
// returns the assigned entry ID.
func (s *LedgerStore) Append(ctx context.Context, tx pgx.Tx, e *LedgerEntry) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO stock_ledger (blood_type, operation_type, updated_by,
			previous_quantity, new_quantity, quantity_added, remaining_quantity,
			label_id, expiry_date, issued_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		e.BloodType, e.Operation, e.UpdatedBy,
		e.PreviousQuantity, e.NewQuantity, e.QuantityAdded, e.RemainingQuantity,
		nullIfEmpty(e.LabelID), e.ExpiryDate, nullIfEmpty(e.IssuedTo),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to append ledger entry: %w", err)
	}
	e.ID = id
	return id, nil
}

// FindAvailableAdditions returns addition entries with effective availability
// above zero, earliest expiry first. ids, when non-empty, restricts the
// result to the caller-supplied selection.
func (s *LedgerStore) FindAvailableAdditions(ctx context.Context, bt BloodType, ids []int64) ([]LedgerEntry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM stock_ledger
		WHERE blood_type = $1
		  AND operation_type = 'addition'
		  AND COALESCE(remaining_quantity, quantity_added) > 0`
	args := []any{bt}
	if len(ids) > 0 {
		query += ` AND id = ANY($2)`
		args = append(args, ids)
	}
	query += ` ORDER BY expiry_date ASC NULLS LAST, id ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query available additions: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// SelectForUpdate locks the selected addition entries in ID order (a fixed
// lock acquisition order avoids deadlocks between concurrent issuances) and
// returns only those that belong to the blood type and are not exhausted.
func (s *LedgerStore) SelectForUpdate(ctx context.Context, tx pgx.Tx, bt BloodType, ids []int64) ([]LedgerEntry, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+ledgerColumns+`
		FROM stock_ledger
		WHERE id = ANY($1)
		  AND blood_type = $2
		  AND operation_type = 'addition'
		  AND COALESCE(remaining_quantity, quantity_added) > 0
		ORDER BY id ASC
		FOR UPDATE`, ids, bt)
	if err != nil {
		return nil, fmt.Errorf("failed to lock selected entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// DecrementRemaining consumes amount units from an addition entry,
// conditioned on its effective availability. Zero rows affected means a
// concurrent deduction raced ahead and surfaces as ErrConflict.
func (s *LedgerStore) DecrementRemaining(ctx context.Context, tx pgx.Tx, entryID int64, amount int) (int, error) {
	var newRemaining int
	err := tx.QueryRow(ctx, `
		UPDATE stock_ledger
		SET remaining_quantity = COALESCE(remaining_quantity, quantity_added) - $2
		WHERE id = $1
		  AND operation_type = 'addition'
		  AND COALESCE(remaining_quantity, quantity_added) >= $2
		RETURNING remaining_quantity`, entryID, amount).Scan(&newRemaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: entry %d has fewer than %d units left", ErrConflict, entryID, amount)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to decrement entry %d: %w", entryID, err)
	}
	return newRemaining, nil
}

// ListHistory returns movement records for audit and reporting, newest
// first. Both filters are optional.
func (s *LedgerStore) ListHistory(ctx context.Context, bt *BloodType, op *OperationType) ([]LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM stock_ledger`
	var args []any
	var where []string
	if bt != nil {
		args = append(args, *bt)
		where = append(where, fmt.Sprintf("blood_type = $%d", len(args)))
	}
	if op != nil {
		args = append(args, *op)
		where = append(where, fmt.Sprintf("operation_type = $%d", len(args)))
	}
	for i, cond := range where {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY updated_at DESC, id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger history: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) ([]LedgerEntry, error) {
	var entries []LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// nullIfEmpty maps empty strings to SQL NULL so optional text columns stay
// NULL instead of accumulating empty strings.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
