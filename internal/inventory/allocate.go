package inventory

import (
	"context"
	"fmt"

	"github.com/roach88/pos/internal/domain"
	"github.com/roach88/pos/internal/store"
)

// Allocation is the quantity taken from one batch.
type Allocation struct {
	BatchID  int64 `json:"batch_id"`
	Quantity int   `json:"quantity"`
}

// Total returns the summed quantity of allocs.
func Total(allocs []Allocation) int {
	n := 0
	for _, a := range allocs {
		n += a.Quantity
	}
	return n
}

type candidate struct {
	id       int64
	quantity int
}

const candidatesQuery = `
SELECT id, quantity
FROM inventory_batch
WHERE menu_item_id = ? AND quantity > 0
ORDER BY expiry_date ASC NULLS LAST, created_at ASC, id ASC`

// Allocate consumes quantity units of itemID from its batches in FIFO order
// and returns the per-batch breakdown.
//
// It must run inside the caller's transaction. Candidates are read in full
// (and row-locked on PostgreSQL) before any batch is decremented. Each
// decrement is guarded by quantity >= consumed, so a concurrent debit that
// slipped past the lock surfaces as a TRANSACTION_FAILURE rather than a
// negative quantity.
//
// If the batches cannot cover quantity, Allocate returns an INSUFFICIENT_STOCK
// error and issues no updates. Allocate never writes ledger entries.
func Allocate(ctx context.Context, q store.Querier, itemID int64, quantity int) ([]Allocation, error) {
	if quantity <= 0 {
		return nil, domain.NewValidationError(0, "allocate: quantity must be positive, got %d", quantity)
	}

	candidates, err := loadCandidates(ctx, q, itemID)
	if err != nil {
		return nil, err
	}

	plan, available := planFIFO(candidates, quantity)
	if plan == nil {
		return nil, domain.NewInsufficientStockError(itemID, quantity, available)
	}

	for _, a := range plan {
		res, err := q.ExecContext(ctx,
			"UPDATE inventory_batch SET quantity = quantity - ? WHERE id = ? AND quantity >= ?",
			a.Quantity, a.BatchID, a.Quantity,
		)
		if err != nil {
			return nil, store.Classify("decrement batch", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, store.Classify("decrement batch", err)
		}
		if n != 1 {
			return nil, domain.NewTransactionError("decrement batch",
				fmt.Errorf("batch %d changed during allocation", a.BatchID))
		}
	}
	return plan, nil
}

func loadCandidates(ctx context.Context, q store.Querier, itemID int64) ([]candidate, error) {
	rows, err := q.QueryContext(ctx, candidatesQuery+q.Dialect().ForUpdate(), itemID)
	if err != nil {
		return nil, store.Classify("select batches", err)
	}
	defer rows.Close()

	var out []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.quantity); err != nil {
			return nil, store.Classify("scan batch", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify("select batches", err)
	}
	return out, nil
}

// planFIFO walks candidates in order, taking min(remaining, needed) from each.
// It returns nil and the total available when the candidates run out first.
func planFIFO(candidates []candidate, quantity int) ([]Allocation, int) {
	var plan []Allocation
	needed := quantity
	available := 0
	for _, c := range candidates {
		available += c.quantity
		if needed == 0 {
			continue
		}
		take := min(c.quantity, needed)
		plan = append(plan, Allocation{BatchID: c.id, Quantity: take})
		needed -= take
	}
	if needed > 0 {
		return nil, available
	}
	return plan, available
}
