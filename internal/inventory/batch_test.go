package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pos/internal/domain"
	"github.com/roach88/pos/internal/money"
	"github.com/roach88/pos/internal/store"
	"github.com/roach88/pos/internal/testutil"
)

func TestAddBatch_WritesReceiveLedgerEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := AddBatch(ctx, f.store, f.clock, NewBatch{
		MenuItemID:    f.itemID,
		Quantity:      50,
		UnitCostCents: 450,
		ExpiryDate:    testutil.Day(7),
	})
	require.NoError(t, err)
	assert.Equal(t, testutil.Epoch, b.CreatedAt)

	stored, err := GetBatch(ctx, f.store, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, stored)

	entries, err := LedgerFor(ctx, f.store, domain.RefBatch, b.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 50, entries[0].QuantityChange)
	assert.Equal(t, domain.ReasonReceive, entries[0].Reason)
	require.NotNil(t, entries[0].BatchID)
	assert.Equal(t, b.ID, *entries[0].BatchID)
}

func TestAddBatch_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		batch NewBatch
	}{
		{"zero quantity", NewBatch{MenuItemID: f.itemID, Quantity: 0}},
		{"negative cost", NewBatch{MenuItemID: f.itemID, Quantity: 1, UnitCostCents: -1}},
		{"quantity above max", NewBatch{MenuItemID: f.itemID, Quantity: domain.MaxQuantity + 1}},
		{"cost above max", NewBatch{MenuItemID: f.itemID, Quantity: 1, UnitCostCents: money.MaxAmount + 1}},
		{"bad item id", NewBatch{MenuItemID: 0, Quantity: 1}},
		{"unknown item", NewBatch{MenuItemID: f.itemID + 100, Quantity: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AddBatch(ctx, f.store, f.clock, tt.batch)
			assert.True(t, domain.IsValidation(err), "got %v", err)
		})
	}
	assert.Equal(t, 0, testutil.Count(t, f.store, "inventory_batch"))
	assert.Equal(t, 0, testutil.Count(t, f.store, "inventory_ledger"))
}

func TestGetBatch_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := GetBatch(context.Background(), f.store, 999)
	assert.True(t, store.IsNotFound(err))
}

func TestBatches_FIFOOrder(t *testing.T) {
	f := newFixture(t)
	late := f.receive(t, 1, testutil.Day(9))
	none := f.receive(t, 1, nil)
	early := f.receive(t, 1, testutil.Day(2))

	batches, err := Batches(context.Background(), f.store, f.itemID)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Equal(t, []int64{early, late, none}, []int64{batches[0].ID, batches[1].ID, batches[2].ID})
	assert.Nil(t, batches[2].ExpiryDate)
}

func TestParseExpiry(t *testing.T) {
	d, err := ParseExpiry("2025-04-01")
	require.NoError(t, err)
	assert.Equal(t, "2025-04-01", d.Format(store.DateLayout))

	d, err = ParseExpiry("  ")
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = ParseExpiry("04/01/2025")
	assert.True(t, domain.IsValidation(err))
}

func TestStockLevels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fries := testutil.InsertMenuItem(t, f.store, "Fries", 299)
	f.receive(t, 5, nil)
	f.receive(t, 7, testutil.Day(3))

	levels, err := StockLevels(ctx, f.store)
	require.NoError(t, err)
	assert.Equal(t, []StockLevel{
		{MenuItemID: f.itemID, Name: "Burger", Quantity: 12},
		{MenuItemID: fries, Name: "Fries", Quantity: 0},
	}, levels)

	n, err := Available(ctx, f.store, f.itemID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
}

func TestReconcile_BalancedAfterSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.receive(t, 5, testutil.Day(1))
	f.receive(t, 5, nil)

	err := f.store.WithTx(ctx, func(tx *store.Tx) error {
		allocs, err := Allocate(ctx, tx, f.itemID, 7)
		if err != nil {
			return err
		}
		for _, a := range allocs {
			batchID := a.BatchID
			if _, err := AppendLedger(ctx, tx, domain.LedgerEntry{
				MenuItemID:     f.itemID,
				BatchID:        &batchID,
				QuantityChange: -a.Quantity,
				Reason:         domain.ReasonSale,
				RefType:        domain.RefOrder,
				RefID:          1,
				CreatedAt:      f.clock.Now(),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	diffs, err := Reconcile(ctx, f.store)
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

func TestReconcile_ReportsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.receive(t, 5, nil)

	_, err := f.store.ExecContext(ctx, "UPDATE inventory_batch SET quantity = 4 WHERE id = ?", b)
	require.NoError(t, err)

	diffs, err := Reconcile(ctx, f.store)
	require.NoError(t, err)
	assert.Equal(t, []Discrepancy{
		{MenuItemID: f.itemID, Name: "Burger", LedgerSum: 5, BatchSum: 4},
	}, diffs)
}

func TestAppendLedger_RejectsZeroChange(t *testing.T) {
	f := newFixture(t)

	_, err := AppendLedger(context.Background(), f.store, domain.LedgerEntry{MenuItemID: f.itemID})
	assert.True(t, domain.IsValidation(err))
}
