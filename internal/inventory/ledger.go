package inventory

import (
	"context"
	"database/sql"

	"github.com/roach88/pos/internal/domain"
	"github.com/roach88/pos/internal/store"
)

// AppendLedger inserts one ledger entry and returns its id.
// The ledger is append-only; the schema rejects UPDATE and DELETE.
func AppendLedger(ctx context.Context, q store.Querier, e domain.LedgerEntry) (int64, error) {
	if e.QuantityChange == 0 {
		return 0, domain.NewValidationError(0, "ledger entry for item %d has zero change", e.MenuItemID)
	}
	var batchID any
	if e.BatchID != nil {
		batchID = *e.BatchID
	}

	var id int64
	err := q.QueryRowContext(ctx,
		`INSERT INTO inventory_ledger (menu_item_id, batch_id, quantity_change, reason, ref_type, ref_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		e.MenuItemID, batchID, e.QuantityChange, e.Reason, e.RefType, e.RefID, store.FormatTime(e.CreatedAt),
	).Scan(&id)
	if err != nil {
		return 0, store.Classify("append ledger", err)
	}
	return id, nil
}

// LedgerFor returns the entries that reference (refType, refID) in insertion order.
func LedgerFor(ctx context.Context, q store.Querier, refType string, refID int64) ([]domain.LedgerEntry, error) {
	rows, err := q.QueryContext(ctx, `
SELECT id, menu_item_id, batch_id, quantity_change, reason, ref_type, ref_id, created_at
FROM inventory_ledger
WHERE ref_type = ? AND ref_id = ?
ORDER BY id`, refType, refID)
	if err != nil {
		return nil, store.Classify("list ledger", err)
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var (
			e       domain.LedgerEntry
			batchID sql.NullInt64
			created string
		)
		if err := rows.Scan(&e.ID, &e.MenuItemID, &batchID, &e.QuantityChange, &e.Reason, &e.RefType, &e.RefID, &created); err != nil {
			return nil, store.Classify("scan ledger", err)
		}
		if batchID.Valid {
			id := batchID.Int64
			e.BatchID = &id
		}
		if e.CreatedAt, err = store.ParseTime(created); err != nil {
			return nil, domain.NewIntegrityError("ledger entry %d: %v", e.ID, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify("list ledger", err)
	}
	return out, nil
}

// Discrepancy is an item whose ledger sum differs from its batch quantities.
type Discrepancy struct {
	MenuItemID int64  `json:"menu_item_id"`
	Name       string `json:"name"`
	LedgerSum  int64  `json:"ledger_sum"`
	BatchSum   int64  `json:"batch_sum"`
}

// Reconcile compares, per menu item, the sum of ledger changes against the
// remaining batch quantity. It returns only mismatching items, ordered by name.
func Reconcile(ctx context.Context, q store.Querier) ([]Discrepancy, error) {
	rows, err := q.QueryContext(ctx, `
SELECT mi.id, mi.name,
       COALESCE((SELECT SUM(l.quantity_change) FROM inventory_ledger l WHERE l.menu_item_id = mi.id), 0),
       COALESCE((SELECT SUM(b.quantity) FROM inventory_batch b WHERE b.menu_item_id = mi.id), 0)
FROM menu_item mi
ORDER BY mi.name, mi.id`)
	if err != nil {
		return nil, store.Classify("reconcile", err)
	}
	defer rows.Close()

	var out []Discrepancy
	for rows.Next() {
		var d Discrepancy
		if err := rows.Scan(&d.MenuItemID, &d.Name, &d.LedgerSum, &d.BatchSum); err != nil {
			return nil, store.Classify("scan reconcile", err)
		}
		if d.LedgerSum != d.BatchSum {
			out = append(out, d)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify("reconcile", err)
	}
	return out, nil
}
