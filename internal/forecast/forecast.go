// Package forecast projects next month's unit sales per menu item.
package forecast

import (
	"context"
	"sort"
	"time"

	"github.com/roach88/pos/internal/domain"
	"github.com/roach88/pos/internal/store"
)

// DefaultMonths is the look-back window used when callers pass none.
const DefaultMonths = 3

// Forecast is the projected quantity of one menu item.
type Forecast struct {
	MenuItemID int64  `json:"menu_item_id"`
	Name       string `json:"name"`
	Quantity   int64  `json:"forecast_quantity"`
	Months     int    `json:"months_with_sales"`
}

// NextMonth returns, for every item sold since now minus months, the moving
// average of its monthly sold quantity. Only months with sales count toward
// the average, which is rounded half up. Results are ordered by forecast
// descending, then name.
func NextMonth(ctx context.Context, q store.Querier, months int, now time.Time) ([]Forecast, error) {
	if months <= 0 {
		return nil, domain.NewValidationError(0, "forecast window must be positive, got %d", months)
	}
	now = now.UTC()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, -months, 0)

	rows, err := q.QueryContext(ctx, `
SELECT mi.id, mi.name, substr(o.created_at, 1, 7) AS ym, SUM(oi.quantity) AS qty
FROM orders o
JOIN order_item oi ON o.id = oi.order_id
JOIN menu_item mi ON mi.id = oi.menu_item_id
WHERE o.created_at >= ?
GROUP BY mi.id, mi.name, ym
ORDER BY mi.id, ym`, cutoff.Format(store.DateLayout))
	if err != nil {
		return nil, store.Classify("forecast", err)
	}
	defer rows.Close()

	type acc struct {
		name   string
		sum    int64
		months int64
	}
	byItem := map[int64]*acc{}
	var order []int64
	for rows.Next() {
		var (
			id   int64
			name string
			ym   string
			qty  int64
		)
		if err := rows.Scan(&id, &name, &ym, &qty); err != nil {
			return nil, store.Classify("scan forecast", err)
		}
		a, ok := byItem[id]
		if !ok {
			a = &acc{name: name}
			byItem[id] = a
			order = append(order, id)
		}
		a.sum += qty
		a.months++
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify("forecast", err)
	}

	out := make([]Forecast, 0, len(order))
	for _, id := range order {
		a := byItem[id]
		out = append(out, Forecast{
			MenuItemID: id,
			Name:       a.name,
			Quantity:   roundDiv(a.sum, a.months),
			Months:     int(a.months),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// roundDiv returns n/d rounded half up for non-negative n and positive d.
func roundDiv(n, d int64) int64 {
	return (2*n + d) / (2 * d)
}
