package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/pos/internal/clock"
	"github.com/roach88/pos/internal/domain"
	"github.com/roach88/pos/internal/money"
	"github.com/roach88/pos/internal/store"
)

// NewBatch describes stock being received.
type NewBatch struct {
	MenuItemID    int64      `json:"menu_item_id"`
	Quantity      int        `json:"quantity"`
	UnitCostCents int64      `json:"unit_cost_cents"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty"`
}

// Validate checks b before any write.
func (b NewBatch) Validate() error {
	switch {
	case b.MenuItemID <= 0:
		return domain.NewValidationError(0, "menu item id must be positive, got %d", b.MenuItemID)
	case b.Quantity <= 0:
		return domain.NewValidationError(0, "batch quantity must be positive, got %d", b.Quantity)
	case b.Quantity > domain.MaxQuantity:
		return domain.NewValidationError(0, "batch quantity %d exceeds %d", b.Quantity, domain.MaxQuantity)
	case b.UnitCostCents < 0:
		return domain.NewValidationError(0, "unit cost must not be negative, got %d", b.UnitCostCents)
	case b.UnitCostCents > money.MaxAmount:
		return domain.NewValidationError(0, "unit cost %d exceeds %d", b.UnitCostCents, money.MaxAmount)
	}
	return nil
}

// AddBatch receives a batch in its own transaction.
func AddBatch(ctx context.Context, s *store.Store, clk clock.Clock, b NewBatch) (domain.InventoryBatch, error) {
	if err := b.Validate(); err != nil {
		return domain.InventoryBatch{}, err
	}

	var out domain.InventoryBatch
	err := s.WithTx(ctx, func(tx *store.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM menu_item WHERE id = ?)", b.MenuItemID).Scan(&exists)
		if err != nil {
			return store.Classify("check menu item", err)
		}
		if !exists {
			return domain.NewValidationError(0, "unknown menu item %d", b.MenuItemID)
		}
		out, err = Receive(ctx, tx, clk.Now(), b)
		return err
	})
	return out, err
}

// Receive inserts a batch and its "receive" ledger entry on q.
// The caller owns the transaction.
func Receive(ctx context.Context, q store.Querier, now time.Time, b NewBatch) (domain.InventoryBatch, error) {
	if err := b.Validate(); err != nil {
		return domain.InventoryBatch{}, err
	}

	batch := domain.InventoryBatch{
		MenuItemID:    b.MenuItemID,
		Quantity:      b.Quantity,
		UnitCostCents: b.UnitCostCents,
		ExpiryDate:    b.ExpiryDate,
		CreatedAt:     now.UTC(),
	}
	err := q.QueryRowContext(ctx,
		`INSERT INTO inventory_batch (menu_item_id, quantity, unit_cost_cents, expiry_date, created_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`,
		batch.MenuItemID, batch.Quantity, batch.UnitCostCents,
		store.FormatDate(batch.ExpiryDate), store.FormatTime(batch.CreatedAt),
	).Scan(&batch.ID)
	if err != nil {
		return domain.InventoryBatch{}, store.Classify("insert batch", err)
	}

	batchID := batch.ID
	_, err = AppendLedger(ctx, q, domain.LedgerEntry{
		MenuItemID:     batch.MenuItemID,
		BatchID:        &batchID,
		QuantityChange: batch.Quantity,
		Reason:         domain.ReasonReceive,
		RefType:        domain.RefBatch,
		RefID:          batch.ID,
		CreatedAt:      batch.CreatedAt,
	})
	if err != nil {
		return domain.InventoryBatch{}, err
	}
	return batch, nil
}

// Batches lists the batches of one item in FIFO order, including empty ones.
func Batches(ctx context.Context, q store.Querier, itemID int64) ([]domain.InventoryBatch, error) {
	rows, err := q.QueryContext(ctx, `
SELECT id, menu_item_id, quantity, unit_cost_cents, expiry_date, created_at
FROM inventory_batch
WHERE menu_item_id = ?
ORDER BY expiry_date ASC NULLS LAST, created_at ASC, id ASC`, itemID)
	if err != nil {
		return nil, store.Classify("list batches", err)
	}
	defer rows.Close()

	var out []domain.InventoryBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify("list batches", err)
	}
	return out, nil
}

// GetBatch returns one batch by id.
func GetBatch(ctx context.Context, q store.Querier, id int64) (domain.InventoryBatch, error) {
	row := q.QueryRowContext(ctx, `
SELECT id, menu_item_id, quantity, unit_cost_cents, expiry_date, created_at
FROM inventory_batch WHERE id = ?`, id)
	b, err := scanBatch(row)
	if store.IsNotFound(err) {
		return domain.InventoryBatch{}, fmt.Errorf("batch %d: %w", id, domain.ErrNotFound)
	}
	return b, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(r rowScanner) (domain.InventoryBatch, error) {
	var (
		b       domain.InventoryBatch
		expiry  sql.NullString
		created string
	)
	if err := r.Scan(&b.ID, &b.MenuItemID, &b.Quantity, &b.UnitCostCents, &expiry, &created); err != nil {
		if store.IsNotFound(err) {
			return b, err
		}
		return b, store.Classify("scan batch", err)
	}
	var err error
	if b.ExpiryDate, err = store.ParseDate(expiry); err != nil {
		return b, domain.NewIntegrityError("batch %d: %v", b.ID, err)
	}
	if b.CreatedAt, err = store.ParseTime(created); err != nil {
		return b, domain.NewIntegrityError("batch %d: %v", b.ID, err)
	}
	return b, nil
}

// ParseExpiry parses an optional YYYY-MM-DD expiry date. Empty means none.
func ParseExpiry(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(store.DateLayout, s)
	if err != nil {
		return nil, domain.NewValidationError(0, "expiry date %q: want YYYY-MM-DD", s)
	}
	return &d, nil
}
