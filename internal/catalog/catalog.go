// Package catalog reads and maintains the menu.
//
// The fulfillment core never re-reads prices: callers snapshot name and price
// from ListActive into each cart line. Exists is the one read the orchestrator
// does, to reject unknown item ids before any write.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/pos/internal/domain"
	"github.com/roach88/pos/internal/money"
	"github.com/roach88/pos/internal/store"
)

const itemColumns = "id, name, category, price_cents, sku, active"

// ListActive returns the sellable menu ordered by category then name.
func ListActive(ctx context.Context, q store.Querier) ([]domain.MenuItem, error) {
	return list(ctx, q, "SELECT "+itemColumns+" FROM menu_item WHERE active = 1 ORDER BY category, name")
}

// ListAll returns every menu item, active or not, ordered by name.
func ListAll(ctx context.Context, q store.Querier) ([]domain.MenuItem, error) {
	return list(ctx, q, "SELECT "+itemColumns+" FROM menu_item ORDER BY name, id")
}

func list(ctx context.Context, q store.Querier, query string) ([]domain.MenuItem, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, store.Classify("list menu", err)
	}
	defer rows.Close()

	var out []domain.MenuItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify("list menu", err)
	}
	return out, nil
}

// Get returns one menu item. A missing id yields an error matching domain.ErrNotFound.
func Get(ctx context.Context, q store.Querier, id int64) (domain.MenuItem, error) {
	item, err := scanItem(q.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM menu_item WHERE id = ?", id))
	if store.IsNotFound(err) {
		return domain.MenuItem{}, fmt.Errorf("menu item %d: %w", id, domain.ErrNotFound)
	}
	return item, err
}

// Exists reports which of ids are present in the menu. Inactive items exist.
func Exists(ctx context.Context, q store.Querier, ids []int64) (map[int64]bool, error) {
	found := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if _, seen := found[id]; seen {
			continue
		}
		var ok bool
		err := q.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM menu_item WHERE id = ?)", id).Scan(&ok)
		if err != nil {
			return nil, store.Classify("check menu item", err)
		}
		found[id] = ok
	}
	return found, nil
}

// NewItem is a menu item to be created.
type NewItem struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price_cents"`
	SKU        string `json:"sku"`
	Active     bool   `json:"active"`
}

// Create inserts a menu item. Names are trimmed and NFC-normalised.
func Create(ctx context.Context, q store.Querier, in NewItem) (domain.MenuItem, error) {
	item := domain.MenuItem{
		Name:       NormalizeName(in.Name),
		Category:   strings.TrimSpace(in.Category),
		PriceCents: in.PriceCents,
		SKU:        strings.TrimSpace(in.SKU),
		Active:     in.Active,
	}
	if item.Name == "" {
		return domain.MenuItem{}, domain.NewValidationError(0, "menu item name is blank")
	}
	if item.PriceCents < 0 {
		return domain.MenuItem{}, domain.NewValidationError(0, "menu item %q: price must not be negative", item.Name)
	}
	if item.PriceCents > money.MaxAmount {
		return domain.MenuItem{}, domain.NewValidationError(0, "menu item %q: price exceeds %s", item.Name, money.Format(money.MaxAmount))
	}

	err := q.QueryRowContext(ctx,
		"INSERT INTO menu_item (name, category, price_cents, sku, active) VALUES (?, ?, ?, ?, ?) RETURNING id",
		item.Name, item.Category, item.PriceCents, item.SKU, boolToInt(item.Active),
	).Scan(&item.ID)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return domain.MenuItem{}, domain.NewValidationError(0, "menu item %q already exists", item.Name)
		}
		return domain.MenuItem{}, store.Classify("insert menu item", err)
	}
	return item, nil
}

// SetActive enables or retires a menu item.
func SetActive(ctx context.Context, q store.Querier, id int64, active bool) error {
	res, err := q.ExecContext(ctx, "UPDATE menu_item SET active = ? WHERE id = ?", boolToInt(active), id)
	if err != nil {
		return store.Classify("update menu item", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("menu item %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Count returns the number of menu items.
func Count(ctx context.Context, q store.Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM menu_item").Scan(&n); err != nil {
		return 0, store.Classify("count menu", err)
	}
	return n, nil
}

// NormalizeName trims s and converts it to Unicode NFC so visually equal
// names compare and render equal.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(r rowScanner) (domain.MenuItem, error) {
	var (
		item   domain.MenuItem
		active int
	)
	if err := r.Scan(&item.ID, &item.Name, &item.Category, &item.PriceCents, &item.SKU, &active); err != nil {
		if store.IsNotFound(err) {
			return item, err
		}
		return item, store.Classify("scan menu item", err)
	}
	item.Active = active != 0
	return item, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
