// Package receipt composes, stores and reloads order receipts.
//
// A receipt is rendered once, inside the fulfillment transaction, from the
// persisted order header and lines. It is then stored verbatim together with
// a SHA-256 digest; reprints return the stored text and never re-render.
package receipt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/width"

	"github.com/roach88/pos/internal/domain"
	"github.com/roach88/pos/internal/money"
	"github.com/roach88/pos/internal/order"
	"github.com/roach88/pos/internal/store"
)

// DefaultTitle heads receipts when no title is configured.
const DefaultTitle = "Restaurant Receipt"

// DateLayout renders the order timestamp on the receipt.
const DateLayout = "2006-01-02 15:04:05 UTC"

const (
	nameColumns = 20
	rule        = "----------------------------------------"
)

// digestDomain separates receipt digests from any other SHA-256 use.
const digestDomain = "pos/receipt/v1"

// Render reads order orderID and its lines from q and composes the receipt.
// It has no side effects.
func Render(ctx context.Context, q store.Querier, orderID int64, title string) (string, error) {
	o, err := order.Get(ctx, q, orderID)
	if err != nil {
		return "", err
	}
	lines, err := order.Lines(ctx, q, orderID)
	if err != nil {
		return "", err
	}
	return Compose(o, lines, title)
}

// Compose lays out the receipt for o and its lines.
//
// Subtotal, tax and total are recomputed from the lines at the order's stored
// tax rate; any disagreement with the header is an INTEGRITY_ERROR.
func Compose(o domain.Order, lines []domain.OrderLine, title string) (string, error) {
	if len(lines) == 0 {
		return "", domain.NewIntegrityError("order %d has no lines", o.ID)
	}

	var subtotal int64
	for _, l := range lines {
		lineTotal, ok := money.Mul(l.UnitPriceCents, int64(l.Quantity))
		if !ok || l.LineTotalCents != lineTotal {
			return "", domain.NewIntegrityError("order %d line %d: total %d != %d x %d",
				o.ID, l.LineNo, l.LineTotalCents, l.UnitPriceCents, l.Quantity)
		}
		if subtotal, ok = money.Add(subtotal, lineTotal); !ok {
			return "", domain.NewIntegrityError("order %d: subtotal out of range at line %d", o.ID, l.LineNo)
		}
	}
	rate := money.Rate(o.TaxRateBps)
	if !rate.Valid() {
		return "", domain.NewIntegrityError("order %d: tax rate %d bps out of range", o.ID, o.TaxRateBps)
	}
	want := order.Totals(subtotal, o.Discount, rate)
	if want != o.Totals {
		return "", domain.NewIntegrityError("order %d: stored totals %+v, recomputed %+v", o.ID, o.Totals, want)
	}

	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== %s ===\n", title)
	fmt.Fprintf(&b, "Order #%d\n", o.ID)
	fmt.Fprintf(&b, "Date: %s\n\n", o.CreatedAt.UTC().Format(DateLayout))
	fmt.Fprintf(&b, "%-20s %5s %8s\n", "Item", "Qty", "Total")
	b.WriteString(rule + "\n")
	for _, l := range lines {
		fmt.Fprintf(&b, "%s %5d %8s\n", padName(l.Name), l.Quantity, money.Format(l.LineTotalCents))
	}
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "%-20s %14s\n", "Subtotal:", money.Format(o.Subtotal))
	if o.Discount != 0 {
		fmt.Fprintf(&b, "%-20s %14s\n", "Discount:", money.Format(-o.Discount))
	}
	fmt.Fprintf(&b, "%-20s %14s\n", fmt.Sprintf("Tax (%s):", rate), money.Format(o.Tax))
	fmt.Fprintf(&b, "%-20s %14s\n", "Total:", money.Format(o.Total))
	b.WriteString("\nThank you!\n")
	return b.String(), nil
}

// padName right-pads s with spaces to nameColumns display columns.
// Wide and fullwidth runes count as two columns. Longer names are not cut.
func padName(s string) string {
	n := displayWidth(s)
	if n >= nameColumns {
		return s
	}
	return s + strings.Repeat(" ", nameColumns-n)
}

func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

// Digest returns the hex SHA-256 of content, domain separated.
func Digest(content string) string {
	h := sha256.New()
	h.Write([]byte(digestDomain))
	h.Write([]byte{0x00})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

// Save stores the receipt of orderID. An order has at most one receipt.
func Save(ctx context.Context, q store.Querier, orderID int64, content string) (domain.Receipt, error) {
	r := domain.Receipt{OrderID: orderID, Content: content, Digest: Digest(content)}
	_, err := q.ExecContext(ctx,
		"INSERT INTO order_receipt (order_id, content, digest) VALUES (?, ?, ?)",
		r.OrderID, r.Content, r.Digest,
	)
	if err != nil {
		return domain.Receipt{}, store.Classify("insert receipt", err)
	}
	return r, nil
}

// Load returns the stored receipt of orderID verbatim after checking its digest.
func Load(ctx context.Context, q store.Querier, orderID int64) (domain.Receipt, error) {
	r := domain.Receipt{OrderID: orderID}
	err := q.QueryRowContext(ctx,
		"SELECT content, digest FROM order_receipt WHERE order_id = ?", orderID,
	).Scan(&r.Content, &r.Digest)
	if store.IsNotFound(err) {
		return domain.Receipt{}, fmt.Errorf("receipt for order %d: %w", orderID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Receipt{}, store.Classify("load receipt", err)
	}
	if Digest(r.Content) != r.Digest {
		return domain.Receipt{}, domain.NewIntegrityError("receipt for order %d does not match its digest", orderID)
	}
	return r, nil
}
