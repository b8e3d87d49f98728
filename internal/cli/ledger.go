package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pos/internal/inventory"
)

// LedgerReport is the JSON payload of ledger verify.
type LedgerReport struct {
	Balanced      bool                    `json:"balanced"`
	Discrepancies []inventory.Discrepancy `json:"discrepancies"`
}

// NewLedgerCommand creates the ledger command group.
func NewLedgerCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the inventory ledger",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Check that ledger sums match batch quantities",
		Long: `For every menu item, compare the sum of ledger changes with the
quantity remaining in its batches. Exits 1 when any item drifts.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			diffs, err := inventory.Reconcile(cmdContext(cmd), e.store)
			if err != nil {
				return e.out.Fail("reconcile failed", err)
			}
			if diffs == nil {
				diffs = []inventory.Discrepancy{}
			}
			report := LedgerReport{Balanced: len(diffs) == 0, Discrepancies: diffs}

			var b strings.Builder
			if report.Balanced {
				b.WriteString("Ledger balanced.\n")
			}
			for _, d := range diffs {
				fmt.Fprintf(&b, "MISMATCH %s (item %d): ledger %d, batches %d\n", d.Name, d.MenuItemID, d.LedgerSum, d.BatchSum)
			}
			if err := e.out.Success(report, b.String()); err != nil {
				return err
			}
			if !report.Balanced {
				return NewExitError(ExitFailure, fmt.Sprintf("%d item(s) out of balance", len(diffs)))
			}
			return nil
		},
	})

	return cmd
}
