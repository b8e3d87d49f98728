package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/pos/internal/clock"
	"github.com/roach88/pos/internal/domain"
	"github.com/roach88/pos/internal/inventory"
	"github.com/roach88/pos/internal/money"
)

// StockAddOptions holds flags for the stock add command.
type StockAddOptions struct {
	*RootOptions
	Item    int64
	Qty     int
	Cost    string
	Expires string
}

// NewStockCommand creates the stock command group.
func NewStockCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Inspect and receive inventory",
	}
	cmd.AddCommand(newStockLevelsCommand(rootOpts))
	cmd.AddCommand(newStockAddCommand(rootOpts))
	return cmd
}

func newStockLevelsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "levels",
		Short:         "Show remaining quantity per menu item",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			levels, err := inventory.StockLevels(cmdContext(cmd), e.store)
			if err != nil {
				return e.out.Fail("failed to read stock levels", err)
			}
			if levels == nil {
				levels = []inventory.StockLevel{}
			}

			var b strings.Builder
			tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tQTY")
			for _, l := range levels {
				fmt.Fprintf(tw, "%d\t%s\t%d\n", l.MenuItemID, l.Name, l.Quantity)
			}
			tw.Flush()
			return e.out.Success(levels, b.String())
		},
	}
}

func newStockAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StockAddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Receive a batch of stock",
		Long: `Receive a batch of stock for a menu item.

The batch and its "receive" ledger entry are written in one transaction.

Examples:
  pos stock add --item 1 --qty 50 --cost 4.50 --expires 2025-04-01
  pos stock add --item 3 --qty 80`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			expiry, err := inventory.ParseExpiry(opts.Expires)
			if err != nil {
				return e.out.Fail("invalid expiry date", err)
			}
			cost, err := parseCost(opts.Cost)
			if err != nil {
				return e.out.Fail("invalid unit cost", err)
			}
			batch, err := inventory.AddBatch(cmdContext(cmd), e.store, clock.System{}, inventory.NewBatch{
				MenuItemID:    opts.Item,
				Quantity:      opts.Qty,
				UnitCostCents: cost,
				ExpiryDate:    expiry,
			})
			if err != nil {
				return e.out.Fail("failed to add batch", err)
			}
			e.logger.Info("batch received", "batch_id", batch.ID, "menu_item_id", batch.MenuItemID, "quantity", batch.Quantity)
			return e.out.Success(batch, fmt.Sprintf("Received batch #%d: %d units of item %d\n", batch.ID, batch.Quantity, batch.MenuItemID))
		},
	}

	cmd.Flags().Int64Var(&opts.Item, "item", 0, "menu item id (required)")
	_ = cmd.MarkFlagRequired("item")
	cmd.Flags().IntVar(&opts.Qty, "qty", 0, "units received (required)")
	_ = cmd.MarkFlagRequired("qty")
	cmd.Flags().StringVar(&opts.Cost, "cost", "0", "unit cost in major units, e.g. 4.50")
	cmd.Flags().StringVar(&opts.Expires, "expires", "", "expiry date YYYY-MM-DD")

	return cmd
}

func parseCost(s string) (int64, error) {
	cents, err := money.Parse(s)
	if err != nil {
		return 0, domain.NewValidationError(0, "cost: %v", err)
	}
	return cents, nil
}
