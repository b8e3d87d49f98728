package order

import (
	"context"
	"fmt"

	"github.com/roach88/pos/internal/catalog"
	"github.com/roach88/pos/internal/domain"
	"github.com/roach88/pos/internal/store"
)

// DefaultListLimit bounds ListRecent when the caller passes no limit.
const DefaultListLimit = 200

// InsertOrder writes the order header and sets o.ID.
func InsertOrder(ctx context.Context, q store.Querier, o *domain.Order) error {
	if o.Status == "" {
		o.Status = domain.StatusPaid
	}
	err := q.QueryRowContext(ctx,
		`INSERT INTO orders (checkout_id, created_at, subtotal_cents, discount_cents, tax_cents,
		 total_cents, tax_rate_bps, payment_method, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		o.CheckoutID, store.FormatTime(o.CreatedAt), o.Subtotal, o.Discount, o.Tax,
		o.Total, o.TaxRateBps, o.PaymentMethod, o.Status,
	).Scan(&o.ID)
	if err != nil {
		return store.Classify("insert order", err)
	}
	return nil
}

// InsertLine writes cart line lineNo (1-based) of orderID with its name and
// price snapshots.
func InsertLine(ctx context.Context, q store.Querier, orderID int64, lineNo int, line domain.CartLine) (domain.OrderLine, error) {
	ol := domain.OrderLine{
		OrderID:        orderID,
		LineNo:         lineNo,
		MenuItemID:     line.MenuItemID,
		Name:           catalog.NormalizeName(line.Name),
		Quantity:       line.Quantity,
		UnitPriceCents: line.UnitPriceCents,
		LineTotalCents: LineTotal(line),
	}
	err := q.QueryRowContext(ctx,
		`INSERT INTO order_item (order_id, line_no, menu_item_id, name, quantity, unit_price_cents, line_total_cents)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		ol.OrderID, ol.LineNo, ol.MenuItemID, ol.Name, ol.Quantity, ol.UnitPriceCents, ol.LineTotalCents,
	).Scan(&ol.ID)
	if err != nil {
		return domain.OrderLine{}, store.Classify(fmt.Sprintf("insert order line %d", lineNo), err)
	}
	return ol, nil
}

// InsertPayment writes the single payment of an order and sets p.ID.
func InsertPayment(ctx context.Context, q store.Querier, p *domain.Payment) error {
	err := q.QueryRowContext(ctx,
		"INSERT INTO payment (order_id, amount_cents, method, created_at) VALUES (?, ?, ?, ?) RETURNING id",
		p.OrderID, p.AmountCents, p.Method, store.FormatTime(p.CreatedAt),
	).Scan(&p.ID)
	if err != nil {
		return store.Classify("insert payment", err)
	}
	return nil
}

const orderColumns = `id, checkout_id, created_at, subtotal_cents, discount_cents, tax_cents,
total_cents, tax_rate_bps, payment_method, status`

// Get returns the order header. A missing id yields an error matching domain.ErrNotFound.
func Get(ctx context.Context, q store.Querier, id int64) (domain.Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = ?", id))
	if store.IsNotFound(err) {
		return domain.Order{}, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}
	return o, err
}

// GetByCheckout returns the order placed under checkoutID.
func GetByCheckout(ctx context.Context, q store.Querier, checkoutID string) (domain.Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE checkout_id = ?", checkoutID))
	if store.IsNotFound(err) {
		return domain.Order{}, fmt.Errorf("checkout %q: %w", checkoutID, domain.ErrNotFound)
	}
	return o, err
}

// ListRecent returns up to limit orders, newest first.
func ListRecent(ctx context.Context, q store.Querier, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := q.QueryContext(ctx, "SELECT "+orderColumns+" FROM orders ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, store.Classify("list orders", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify("list orders", err)
	}
	return out, nil
}

// Lines returns the persisted lines of an order in line order.
func Lines(ctx context.Context, q store.Querier, orderID int64) ([]domain.OrderLine, error) {
	rows, err := q.QueryContext(ctx, `
SELECT id, order_id, line_no, menu_item_id, name, quantity, unit_price_cents, line_total_cents
FROM order_item
WHERE order_id = ?
ORDER BY line_no`, orderID)
	if err != nil {
		return nil, store.Classify("list order lines", err)
	}
	defer rows.Close()

	var out []domain.OrderLine
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.LineNo, &l.MenuItemID, &l.Name, &l.Quantity, &l.UnitPriceCents, &l.LineTotalCents); err != nil {
			return nil, store.Classify("scan order line", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify("list order lines", err)
	}
	return out, nil
}

// PaymentFor returns the payment of an order.
func PaymentFor(ctx context.Context, q store.Querier, orderID int64) (domain.Payment, error) {
	var (
		p       domain.Payment
		created string
	)
	err := q.QueryRowContext(ctx,
		"SELECT id, order_id, amount_cents, method, created_at FROM payment WHERE order_id = ?", orderID,
	).Scan(&p.ID, &p.OrderID, &p.AmountCents, &p.Method, &created)
	if store.IsNotFound(err) {
		return domain.Payment{}, fmt.Errorf("payment for order %d: %w", orderID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Payment{}, store.Classify("get payment", err)
	}
	if p.CreatedAt, err = store.ParseTime(created); err != nil {
		return domain.Payment{}, domain.NewIntegrityError("payment %d: %v", p.ID, err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(r rowScanner) (domain.Order, error) {
	var (
		o       domain.Order
		created string
	)
	err := r.Scan(&o.ID, &o.CheckoutID, &created, &o.Subtotal, &o.Discount, &o.Tax,
		&o.Total, &o.TaxRateBps, &o.PaymentMethod, &o.Status)
	if err != nil {
		if store.IsNotFound(err) {
			return o, err
		}
		return o, store.Classify("scan order", err)
	}
	if o.CreatedAt, err = store.ParseTime(created); err != nil {
		return o, domain.NewIntegrityError("order %d: %v", o.ID, err)
	}
	return o, nil
}
