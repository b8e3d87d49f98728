package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/pos/internal/forecast"
)

// ForecastOptions holds flags for the forecast command.
type ForecastOptions struct {
	*RootOptions
	Months int
}

// NewForecastCommand creates the forecast command.
func NewForecastCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ForecastOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Project next month's unit sales per item",
		Long: `Project next month's unit sales per menu item as the average monthly
quantity sold over the look-back window (months without sales are ignored).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			out, err := forecast.NextMonth(cmdContext(cmd), e.store, opts.Months, time.Now())
			if err != nil {
				return e.out.Fail("forecast failed", err)
			}
			if out == nil {
				out = []forecast.Forecast{}
			}

			var b strings.Builder
			tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tFORECAST\tMONTHS")
			for _, f := range out {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", f.MenuItemID, f.Name, f.Quantity, f.Months)
			}
			tw.Flush()
			return e.out.Success(out, b.String())
		},
	}

	cmd.Flags().IntVar(&opts.Months, "months", forecast.DefaultMonths, "look-back window in months")

	return cmd
}
