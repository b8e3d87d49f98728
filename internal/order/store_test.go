package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pos/internal/domain"
	"github.com/roach88/pos/internal/store"
	"github.com/roach88/pos/internal/testutil"
)

func insertTestOrder(t *testing.T, s *store.Store, checkoutID string, created time.Time, cart []domain.CartLine) domain.Order {
	t.Helper()
	ctx := context.Background()
	o := domain.Order{
		CheckoutID:    checkoutID,
		CreatedAt:     created,
		Totals:        Price(cart, 700),
		TaxRateBps:    700,
		PaymentMethod: "CASH",
	}
	err := s.WithTx(ctx, func(tx *store.Tx) error {
		if err := InsertOrder(ctx, tx, &o); err != nil {
			return err
		}
		for i, line := range cart {
			if _, err := InsertLine(ctx, tx, o.ID, i+1, line); err != nil {
				return err
			}
		}
		return InsertPayment(ctx, tx, &domain.Payment{OrderID: o.ID, AmountCents: o.Total, Method: o.PaymentMethod, CreatedAt: created})
	})
	require.NoError(t, err)
	return o
}

func TestInsertAndGet(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()
	burgerID := testutil.InsertMenuItem(t, s, "Burger", 899)
	friesID := testutil.InsertMenuItem(t, s, "Fries", 299)

	cart := []domain.CartLine{
		{MenuItemID: burgerID, Name: "Burger", Quantity: 2, UnitPriceCents: 899},
		{MenuItemID: friesID, Name: "Fries", Quantity: 1, UnitPriceCents: 299},
	}
	o := insertTestOrder(t, s, "co-1", testutil.Epoch, cart)
	assert.Equal(t, domain.StatusPaid, o.Status)

	got, err := Get(ctx, s, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o, got)

	byCheckout, err := GetByCheckout(ctx, s, "co-1")
	require.NoError(t, err)
	assert.Equal(t, o.ID, byCheckout.ID)

	lines, err := Lines(ctx, s, o.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 1, lines[0].LineNo)
	assert.Equal(t, "Burger", lines[0].Name)
	assert.Equal(t, int64(1798), lines[0].LineTotalCents)
	assert.Equal(t, 2, lines[1].LineNo)
	assert.Equal(t, int64(299), lines[1].LineTotalCents)

	p, err := PaymentFor(ctx, s, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Total, p.AmountCents)
	assert.Equal(t, "CASH", p.Method)
}

func TestInsertLine_KeepsNameSnapshot(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()
	id := testutil.InsertMenuItem(t, s, "Burger", 899)

	o := insertTestOrder(t, s, "co-1", testutil.Epoch, []domain.CartLine{
		{MenuItemID: id, Name: "Burger", Quantity: 1, UnitPriceCents: 899},
	})
	_, err := s.ExecContext(ctx, "UPDATE menu_item SET name = ?, price_cents = ? WHERE id = ?", "Cheeseburger", 999, id)
	require.NoError(t, err)

	lines, err := Lines(ctx, s, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Burger", lines[0].Name)
	assert.Equal(t, int64(899), lines[0].UnitPriceCents)
}

func TestGet_NotFound(t *testing.T) {
	s := testutil.NewStore(t)

	_, err := Get(context.Background(), s, 7)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = GetByCheckout(context.Background(), s, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = PaymentFor(context.Background(), s, 7)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListRecent(t *testing.T) {
	s := testutil.NewStore(t)
	id := testutil.InsertMenuItem(t, s, "Burger", 899)
	cart := []domain.CartLine{{MenuItemID: id, Name: "Burger", Quantity: 1, UnitPriceCents: 899}}

	first := insertTestOrder(t, s, "co-1", testutil.Epoch, cart)
	second := insertTestOrder(t, s, "co-2", testutil.Epoch.Add(time.Minute), cart)
	third := insertTestOrder(t, s, "co-3", testutil.Epoch.Add(2*time.Minute), cart)

	orders, err := ListRecent(context.Background(), s, 2)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, third.ID, orders[0].ID)
	assert.Equal(t, second.ID, orders[1].ID)

	all, err := ListRecent(context.Background(), s, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, first.ID, all[2].ID)
}

func TestInsertOrder_DuplicateCheckout(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()
	o := domain.Order{CheckoutID: "co-1", CreatedAt: testutil.Epoch, PaymentMethod: "CASH", TaxRateBps: 700}
	require.NoError(t, InsertOrder(ctx, s, &o))

	dup := o
	err := InsertOrder(ctx, s, &dup)
	require.Error(t, err)
	assert.True(t, domain.IsTransactionFailure(err))
	assert.True(t, store.IsUniqueViolation(err))
}
