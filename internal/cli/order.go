package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/pos/internal/catalog"
	"github.com/roach88/pos/internal/domain"
	"github.com/roach88/pos/internal/fulfillment"
	"github.com/roach88/pos/internal/money"
	"github.com/roach88/pos/internal/order"
	"github.com/roach88/pos/internal/receipt"
	"github.com/roach88/pos/internal/store"
)

// OrderPlaceOptions holds flags for the order place command.
type OrderPlaceOptions struct {
	*RootOptions
	Items  []string // "menuItemID:quantity"
	Method string
	Key    string
}

// NewOrderCommand creates the order command group.
func NewOrderCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Place orders",
	}
	cmd.AddCommand(newOrderPlaceCommand(rootOpts))
	return cmd
}

func newOrderPlaceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OrderPlaceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "place",
		Short: "Place an order and print its receipt",
		Long: `Place an order in one transaction: stock is taken from the oldest
expiring batches first, the payment and receipt are stored, and the
receipt is printed.

Names and prices are snapshotted from the current menu.

Examples:
  pos order place --item 1:2 --method cash
  pos order place --item 1:1 --item 2:3 --method card --key till-1-0042`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrderPlace(opts, cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Items, "item", "i", nil, "cart line as menuItemID:quantity (repeatable, required)")
	_ = cmd.MarkFlagRequired("item")
	cmd.Flags().StringVarP(&opts.Method, "method", "m", "CASH", "payment method")
	cmd.Flags().StringVar(&opts.Key, "key", "", "idempotency key; reusing it returns the original order")

	return cmd
}

func runOrderPlace(opts *OrderPlaceOptions, cmd *cobra.Command) error {
	e, err := opts.setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()
	ctx := cmdContext(cmd)

	cart, err := buildCart(ctx, e.store, opts.Items)
	if err != nil {
		return e.out.Fail("invalid cart", err)
	}

	svc := fulfillment.New(e.store,
		fulfillment.WithLogger(e.logger),
		fulfillment.WithTaxRate(e.cfg.TaxRate()),
		fulfillment.WithReceiptTitle(e.cfg.Checkout.ReceiptTitle),
		fulfillment.WithTopic(e.cfg.Kafka.Topic),
		fulfillment.WithTimeout(e.cfg.Checkout.Timeout),
	)

	var res fulfillment.Result
	if opts.Key != "" {
		res, err = svc.PlaceOrderWithKey(ctx, opts.Key, cart, opts.Method)
	} else {
		res, err = svc.PlaceOrder(ctx, cart, opts.Method)
	}
	if err != nil {
		return e.out.Fail("order rejected", err)
	}
	if res.Replayed {
		e.out.VerboseLog("checkout %s already placed as order #%d", res.CheckoutID, res.OrderID)
	}
	return e.out.Success(res, res.Receipt)
}

// buildCart parses "id:qty" specs and snapshots name and price from the menu.
func buildCart(ctx context.Context, q store.Querier, specs []string) ([]domain.CartLine, error) {
	cart := make([]domain.CartLine, 0, len(specs))
	for i, spec := range specs {
		line := i + 1
		idStr, qtyStr, ok := strings.Cut(spec, ":")
		if !ok {
			qtyStr = "1"
		}
		id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			return nil, domain.NewValidationError(line, "bad menu item id in %q", spec)
		}
		qty, err := strconv.Atoi(strings.TrimSpace(qtyStr))
		if err != nil {
			return nil, domain.NewValidationError(line, "bad quantity in %q", spec)
		}
		item, err := catalog.Get(ctx, q, id)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewValidationError(line, "unknown menu item %d", id)
		}
		if err != nil {
			return nil, err
		}
		cart = append(cart, domain.CartLine{
			MenuItemID:     item.ID,
			Name:           item.Name,
			Quantity:       qty,
			UnitPriceCents: item.PriceCents,
		})
	}
	return cart, nil
}

// OrdersOptions holds flags for the orders command.
type OrdersOptions struct {
	*RootOptions
	Limit int
}

// NewOrdersCommand creates the orders command.
func NewOrdersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OrdersOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "orders",
		Short:         "List recent orders, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			orders, err := order.ListRecent(cmdContext(cmd), e.store, opts.Limit)
			if err != nil {
				return e.out.Fail("failed to list orders", err)
			}
			if orders == nil {
				orders = []domain.Order{}
			}

			var b strings.Builder
			tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tMETHOD\tTOTAL")
			for _, o := range orders {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", o.ID, o.CreatedAt.Format(receipt.DateLayout), o.PaymentMethod, money.Format(o.Total))
			}
			tw.Flush()
			return e.out.Success(orders, b.String())
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", order.DefaultListLimit, "maximum number of orders")

	return cmd
}

// NewReceiptCommand creates the receipt command.
func NewReceiptCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "receipt <order-id>",
		Short: "Reprint a stored receipt",
		Long: `Reprint the receipt stored when the order was placed.

The stored digest is verified; a mismatch fails with INTEGRITY_ERROR.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid order id %q", args[0]))
			}
			e, err := rootOpts.setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			rc, err := receipt.Load(cmdContext(cmd), e.store, id)
			if errors.Is(err, domain.ErrNotFound) {
				_ = e.out.Error("NOT_FOUND", fmt.Sprintf("order %d has no receipt", id), nil)
				return WrapExitError(ExitFailure, "receipt not found", err)
			}
			if err != nil {
				return e.out.Fail("failed to load receipt", err)
			}
			return e.out.Success(rc, rc.Content)
		},
	}
}
