// Package order validates, prices and persists orders.
//
// Pricing is pure integer arithmetic over the cart's price snapshots.
// Persistence functions take a store.Querier and run inside the caller's
// transaction.
package order

import (
	"strings"

	"github.com/roach88/pos/internal/domain"
	"github.com/roach88/pos/internal/money"
)

// Validate rejects a cart or payment method that must never reach the store.
// Line numbers in errors are 1-based.
//
// Every line total and the running subtotal must stay within
// money.MaxAmount, so pricing a valid cart cannot overflow.
func Validate(cart []domain.CartLine, paymentMethod string) error {
	if len(cart) == 0 {
		return domain.NewValidationError(0, "cart is empty")
	}
	if NormalizeMethod(paymentMethod) == "" {
		return domain.NewValidationError(0, "payment method is blank")
	}
	var subtotal int64
	for i, line := range cart {
		n := i + 1
		switch {
		case line.MenuItemID <= 0:
			return domain.NewValidationError(n, "menu item id must be positive, got %d", line.MenuItemID)
		case line.Quantity <= 0:
			return domain.NewValidationError(n, "quantity must be positive, got %d", line.Quantity)
		case line.Quantity > domain.MaxQuantity:
			return domain.NewValidationError(n, "quantity %d exceeds %d", line.Quantity, domain.MaxQuantity)
		case line.UnitPriceCents < 0:
			return domain.NewValidationError(n, "unit price must not be negative, got %d", line.UnitPriceCents)
		case strings.TrimSpace(line.Name) == "":
			return domain.NewValidationError(n, "name is blank")
		}
		total, ok := money.Mul(line.UnitPriceCents, int64(line.Quantity))
		if !ok {
			return domain.NewValidationError(n, "line total %d x %d exceeds %s",
				line.UnitPriceCents, line.Quantity, money.Format(money.MaxAmount))
		}
		if subtotal, ok = money.Add(subtotal, total); !ok {
			return domain.NewValidationError(n, "subtotal exceeds %s", money.Format(money.MaxAmount))
		}
	}
	return nil
}

// NormalizeMethod trims and upper-cases a payment method: " card " -> "CARD".
func NormalizeMethod(method string) string {
	return strings.ToUpper(strings.TrimSpace(method))
}

// LineTotal returns unitPrice × quantity. The line must have passed Validate.
func LineTotal(line domain.CartLine) int64 {
	return line.UnitPriceCents * int64(line.Quantity)
}

// Price computes the order totals for cart at rate.
//
// Discount is always zero. Tax is the subtotal at rate, rounded half up.
// cart must have passed Validate and rate must be Valid.
func Price(cart []domain.CartLine, rate money.Rate) domain.Totals {
	var subtotal int64
	for _, line := range cart {
		subtotal += LineTotal(line)
	}
	return Totals(subtotal, 0, rate)
}

// Totals derives tax and total from a subtotal and discount. Tax is levied
// on the subtotal.
func Totals(subtotal, discount int64, rate money.Rate) domain.Totals {
	tax := rate.Apply(subtotal)
	return domain.Totals{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Total:    subtotal - discount + tax,
	}
}
