package domain

import (
	"math"
	"time"
)

// MaxQuantity bounds any single batch or order line quantity. Quantity
// columns are 32-bit on PostgreSQL.
const MaxQuantity = math.MaxInt32

// Order status values. The fulfillment core only ever writes StatusPaid.
const (
	StatusPaid = "paid"
)

// Ledger reasons and reference types.
const (
	ReasonSale    = "sale"
	ReasonReceive = "receive"

	RefOrder = "order"
	RefBatch = "batch"
)

// MenuItem is a sellable catalog entry. Prices are in minor currency units.
type MenuItem struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price_cents"`
	SKU        string `json:"sku"`
	Active     bool   `json:"active"`
}

// InventoryBatch is one lot of stock for a menu item.
// Quantity never drops below zero.
type InventoryBatch struct {
	ID            int64      `json:"id"`
	MenuItemID    int64      `json:"menu_item_id"`
	Quantity      int        `json:"quantity"`
	UnitCostCents int64      `json:"unit_cost_cents"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// LedgerEntry is an append-only record of a stock quantity change.
type LedgerEntry struct {
	ID             int64     `json:"id"`
	MenuItemID     int64     `json:"menu_item_id"`
	BatchID        *int64    `json:"batch_id,omitempty"`
	QuantityChange int       `json:"quantity_change"`
	Reason         string    `json:"reason"`
	RefType        string    `json:"ref_type"`
	RefID          int64     `json:"ref_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// CartLine is one requested line of a checkout. Name and UnitPriceCents are
// snapshots taken by the caller when the cart was built.
type CartLine struct {
	MenuItemID     int64  `json:"menu_item_id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// Totals holds the priced amounts of an order.
// Total == Subtotal - Discount + Tax.
type Totals struct {
	Subtotal int64 `json:"subtotal_cents"`
	Discount int64 `json:"discount_cents"`
	Tax      int64 `json:"tax_cents"`
	Total    int64 `json:"total_cents"`
}

// Order is the persisted order header.
type Order struct {
	ID         int64     `json:"id"`
	CheckoutID string    `json:"checkout_id"`
	CreatedAt  time.Time `json:"created_at"`
	Totals
	TaxRateBps    int64  `json:"tax_rate_bps"`
	PaymentMethod string `json:"payment_method"`
	Status        string `json:"status"`
}

// OrderLine is a persisted order line with price and name snapshots.
type OrderLine struct {
	ID             int64  `json:"id"`
	OrderID        int64  `json:"order_id"`
	LineNo         int    `json:"line_no"`
	MenuItemID     int64  `json:"menu_item_id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	LineTotalCents int64  `json:"line_total_cents"`
}

// Payment records how an order was settled. One per order.
type Payment struct {
	ID          int64     `json:"id"`
	OrderID     int64     `json:"order_id"`
	AmountCents int64     `json:"amount_cents"`
	Method      string    `json:"method"`
	CreatedAt   time.Time `json:"created_at"`
}

// Receipt is the rendered, immutable receipt of an order.
type Receipt struct {
	OrderID int64  `json:"order_id"`
	Content string `json:"content"`
	Digest  string `json:"digest"`
}
