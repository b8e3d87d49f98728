// Package outbox implements the transactional outbox for order events.
//
// The fulfillment transaction inserts one row per placed order; the row
// commits or rolls back with the order. A Relay later publishes pending rows
// and marks them sent. Delivery is at least once: a crash between publish and
// MarkSent republishes the event, so consumers dedupe on EventID.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/pos/internal/domain"
	"github.com/roach88/pos/internal/store"
)

// EventOrderPlaced is the type of the event written for every placed order.
const EventOrderPlaced = "order.placed"

// Record is one outbox row.
type Record struct {
	ID        int64           `json:"id"`
	EventID   string          `json:"event_id"`
	Topic     string          `json:"topic"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at"`
}

// OrderPlaced is the payload of an EventOrderPlaced record.
type OrderPlaced struct {
	Type       string        `json:"type"`
	EventID    string        `json:"event_id"`
	OrderID    int64         `json:"order_id"`
	CheckoutID string        `json:"checkout_id"`
	CreatedAt  time.Time     `json:"created_at"`
	Totals     domain.Totals `json:"totals"`
	TaxRateBps int64         `json:"tax_rate_bps"`
	Method     string        `json:"payment_method"`
	Lines      []PlacedLine  `json:"lines"`
}

// PlacedLine is one order line in an OrderPlaced payload.
type PlacedLine struct {
	LineNo         int    `json:"line_no"`
	MenuItemID     int64  `json:"menu_item_id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// NewOrderPlaced builds the payload for o and its persisted lines.
func NewOrderPlaced(eventID string, o domain.Order, lines []domain.OrderLine) OrderPlaced {
	ev := OrderPlaced{
		Type:       EventOrderPlaced,
		EventID:    eventID,
		OrderID:    o.ID,
		CheckoutID: o.CheckoutID,
		CreatedAt:  o.CreatedAt,
		Totals:     o.Totals,
		TaxRateBps: o.TaxRateBps,
		Method:     o.PaymentMethod,
		Lines:      make([]PlacedLine, 0, len(lines)),
	}
	for _, l := range lines {
		ev.Lines = append(ev.Lines, PlacedLine{
			LineNo:         l.LineNo,
			MenuItemID:     l.MenuItemID,
			Name:           l.Name,
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
		})
	}
	return ev
}

// Insert writes a pending event on q. Call it inside the transaction whose
// outcome the event announces.
func Insert(ctx context.Context, q store.Querier, eventID, topic, key string, payload any, now time.Time) (int64, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal outbox payload: %w", err)
	}
	var id int64
	err = q.QueryRowContext(ctx,
		"INSERT INTO outbox (event_id, topic, key, payload, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id",
		eventID, topic, key, string(data), store.FormatTime(now),
	).Scan(&id)
	if err != nil {
		return 0, store.Classify("insert outbox event", err)
	}
	return id, nil
}

// FetchPending returns up to limit unsent records, oldest first.
func FetchPending(ctx context.Context, q store.Querier, limit int) ([]Record, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, event_id, topic, key, payload, created_at, sent_at FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, store.Classify("fetch outbox", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec     Record
			payload string
			created string
			sent    sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Topic, &rec.Key, &payload, &created, &sent); err != nil {
			return nil, store.Classify("scan outbox", err)
		}
		rec.Payload = json.RawMessage(payload)
		if rec.CreatedAt, err = store.ParseTime(created); err != nil {
			return nil, domain.NewIntegrityError("outbox %d: %v", rec.ID, err)
		}
		if sent.Valid {
			t, err := store.ParseTime(sent.String)
			if err != nil {
				return nil, domain.NewIntegrityError("outbox %d: %v", rec.ID, err)
			}
			rec.SentAt = &t
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify("fetch outbox", err)
	}
	return out, nil
}

// MarkSent stamps a record as delivered.
func MarkSent(ctx context.Context, q store.Querier, id int64, now time.Time) error {
	_, err := q.ExecContext(ctx, "UPDATE outbox SET sent_at = ? WHERE id = ? AND sent_at IS NULL", store.FormatTime(now), id)
	if err != nil {
		return store.Classify("mark outbox sent", err)
	}
	return nil
}

// PendingCount returns the number of unsent records.
func PendingCount(ctx context.Context, q store.Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM outbox WHERE sent_at IS NULL").Scan(&n); err != nil {
		return 0, store.Classify("count outbox", err)
	}
	return n, nil
}
