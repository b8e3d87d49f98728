package inventory

import (
	"context"

	"github.com/roach88/pos/internal/store"
)

// StockLevel is the remaining quantity of one menu item across all batches.
type StockLevel struct {
	MenuItemID int64  `json:"menu_item_id"`
	Name       string `json:"name"`
	Quantity   int64  `json:"quantity"`
}

// StockLevels returns every menu item with its summed batch quantity,
// zero for items without batches, ordered by name.
func StockLevels(ctx context.Context, q store.Querier) ([]StockLevel, error) {
	rows, err := q.QueryContext(ctx, `
SELECT mi.id, mi.name, COALESCE(SUM(ib.quantity), 0) AS qty
FROM menu_item mi
LEFT JOIN inventory_batch ib ON mi.id = ib.menu_item_id
GROUP BY mi.id, mi.name
ORDER BY mi.name`)
	if err != nil {
		return nil, store.Classify("stock levels", err)
	}
	defer rows.Close()

	var out []StockLevel
	for rows.Next() {
		var l StockLevel
		if err := rows.Scan(&l.MenuItemID, &l.Name, &l.Quantity); err != nil {
			return nil, store.Classify("scan stock level", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify("stock levels", err)
	}
	return out, nil
}

// Available returns the remaining quantity of one item.
func Available(ctx context.Context, q store.Querier, itemID int64) (int64, error) {
	var n int64
	err := q.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(quantity), 0) FROM inventory_batch WHERE menu_item_id = ?", itemID,
	).Scan(&n)
	if err != nil {
		return 0, store.Classify("available stock", err)
	}
	return n, nil
}
