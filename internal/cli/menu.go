package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/pos/internal/catalog"
	"github.com/roach88/pos/internal/domain"
	"github.com/roach88/pos/internal/money"
)

// MenuOptions holds flags for the menu command.
type MenuOptions struct {
	*RootOptions
	All bool
}

// NewMenuCommand creates the menu command.
func NewMenuCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MenuOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "menu",
		Short:         "List menu items",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			list := catalog.ListActive
			if opts.All {
				list = catalog.ListAll
			}
			items, err := list(cmdContext(cmd), e.store)
			if err != nil {
				return e.out.Fail("failed to list menu", err)
			}
			if items == nil {
				items = []domain.MenuItem{}
			}
			return e.out.Success(items, formatMenu(items))
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "include inactive items")

	return cmd
}

func formatMenu(items []domain.MenuItem) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tSKU")
	for _, it := range items {
		name := it.Name
		if !it.Active {
			name += " (inactive)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", it.ID, name, it.Category, money.Format(it.PriceCents), it.SKU)
	}
	tw.Flush()
	return b.String()
}
