package fulfillment

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/pos/internal/catalog"
	"github.com/roach88/pos/internal/clock"
	"github.com/roach88/pos/internal/domain"
	"github.com/roach88/pos/internal/ids"
	"github.com/roach88/pos/internal/inventory"
	"github.com/roach88/pos/internal/metrics"
	"github.com/roach88/pos/internal/money"
	"github.com/roach88/pos/internal/order"
	"github.com/roach88/pos/internal/outbox"
	"github.com/roach88/pos/internal/receipt"
	"github.com/roach88/pos/internal/store"
)

// Defaults applied by New.
const (
	DefaultTaxRate money.Rate = 700
	DefaultTimeout            = 10 * time.Second
	DefaultTopic              = "pos.orders"
)

// Result is the outcome of a placed (or replayed) order.
type Result struct {
	OrderID    int64  `json:"order_id"`
	CheckoutID string `json:"checkout_id"`
	Subtotal   int64  `json:"subtotal_cents"`
	Discount   int64  `json:"discount_cents"`
	Tax        int64  `json:"tax_cents"`
	Total      int64  `json:"total_cents"`
	Receipt    string `json:"receipt"`
	Replayed   bool   `json:"replayed"`
}

// Service places orders against one store.
type Service struct {
	store       *store.Store
	clock       clock.Clock
	checkoutIDs ids.Generator
	eventIDs    ids.Generator
	taxRate     money.Rate
	title       string
	topic       string
	timeout     time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock that timestamps orders, payments and ledger entries.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithCheckoutIDs sets the generator used by PlaceOrder for checkout ids.
func WithCheckoutIDs(g ids.Generator) Option {
	return func(s *Service) { s.checkoutIDs = g }
}

// WithEventIDs sets the generator for outbox event ids.
func WithEventIDs(g ids.Generator) Option {
	return func(s *Service) { s.eventIDs = g }
}

// WithTaxRate sets the tax rate snapshotted onto every new order.
func WithTaxRate(r money.Rate) Option {
	return func(s *Service) { s.taxRate = r }
}

// WithReceiptTitle sets the receipt header title.
func WithReceiptTitle(title string) Option {
	return func(s *Service) { s.title = title }
}

// WithTopic sets the outbox topic of order events.
func WithTopic(topic string) Option {
	return func(s *Service) { s.topic = topic }
}

// WithTimeout bounds each checkout transaction.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates a Service over st.
func New(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:       st,
		clock:       clock.System{},
		checkoutIDs: ids.UUIDv7Generator{},
		eventIDs:    ids.UUIDv7Generator{},
		taxRate:     DefaultTaxRate,
		title:       receipt.DefaultTitle,
		topic:       DefaultTopic,
		timeout:     DefaultTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Store returns the store the service writes to.
func (s *Service) Store() *store.Store {
	return s.store
}

// TaxRate returns the rate applied to new orders.
func (s *Service) TaxRate() money.Rate {
	return s.taxRate
}

// PlaceOrder places cart under a freshly generated checkout id.
func (s *Service) PlaceOrder(ctx context.Context, cart []domain.CartLine, paymentMethod string) (Result, error) {
	return s.PlaceOrderWithKey(ctx, s.checkoutIDs.Generate(), cart, paymentMethod)
}

// PlaceOrderWithKey places cart under checkoutID.
//
// If an order with checkoutID already exists, its stored totals and receipt
// are returned with Replayed set and nothing is written. The cart slice is
// never modified.
func (s *Service) PlaceOrderWithKey(ctx context.Context, checkoutID string, cart []domain.CartLine, paymentMethod string) (Result, error) {
	start := time.Now()
	res, units, err := s.placeOrder(ctx, strings.TrimSpace(checkoutID), cart, paymentMethod)
	elapsed := time.Since(start)

	if err != nil {
		kind := domain.KindOf(err)
		s.metrics.OrderFailed(string(kind), elapsed)
		attrs := []any{"checkout_id", checkoutID, "kind", kind, "error", err, "duration", elapsed}
		if kind == domain.KindTransaction {
			attrs = append(attrs, "cause", store.Cause(err))
			s.logger.ErrorContext(ctx, "checkout failed", attrs...)
		} else {
			s.logger.WarnContext(ctx, "checkout rejected", attrs...)
		}
		return Result{}, err
	}

	if res.Replayed {
		s.logger.InfoContext(ctx, "checkout replayed", "checkout_id", res.CheckoutID, "order_id", res.OrderID)
		return res, nil
	}
	s.metrics.OrderPlaced(units, elapsed)
	s.logger.InfoContext(ctx, "order placed",
		"order_id", res.OrderID,
		"checkout_id", res.CheckoutID,
		"total_cents", res.Total,
		"units", units,
		"duration", elapsed,
	)
	return res, nil
}

func (s *Service) placeOrder(ctx context.Context, checkoutID string, cart []domain.CartLine, paymentMethod string) (Result, int, error) {
	if checkoutID == "" {
		return Result{}, 0, domain.NewValidationError(0, "checkout id is blank")
	}
	if err := order.Validate(cart, paymentMethod); err != nil {
		return Result{}, 0, err
	}
	if !s.taxRate.Valid() {
		return Result{}, 0, domain.NewValidationError(0, "tax rate %d bps out of range", int64(s.taxRate))
	}
	method := order.NormalizeMethod(paymentMethod)
	totals := order.Price(cart, s.taxRate)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		res   Result
		units int
	)
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		existing, err := order.GetByCheckout(ctx, tx, checkoutID)
		switch {
		case err == nil:
			res, err = replay(ctx, tx, existing)
			return err
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		if err := checkMenuItems(ctx, tx, cart); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		o := domain.Order{
			CheckoutID:    checkoutID,
			CreatedAt:     now,
			Totals:        totals,
			TaxRateBps:    int64(s.taxRate),
			PaymentMethod: method,
			Status:        domain.StatusPaid,
		}
		if err := order.InsertOrder(ctx, tx, &o); err != nil {
			return err
		}

		lines := make([]domain.OrderLine, 0, len(cart))
		for i, line := range cart {
			ol, err := order.InsertLine(ctx, tx, o.ID, i+1, line)
			if err != nil {
				return err
			}
			lines = append(lines, ol)

			allocs, err := inventory.Allocate(ctx, tx, line.MenuItemID, line.Quantity)
			if err != nil {
				if de, ok := domain.AsError(err); ok && de.Line == 0 {
					de.Line = i + 1
				}
				return err
			}
			for _, a := range allocs {
				batchID := a.BatchID
				if _, err := inventory.AppendLedger(ctx, tx, domain.LedgerEntry{
					MenuItemID:     line.MenuItemID,
					BatchID:        &batchID,
					QuantityChange: -a.Quantity,
					Reason:         domain.ReasonSale,
					RefType:        domain.RefOrder,
					RefID:          o.ID,
					CreatedAt:      now,
				}); err != nil {
					return err
				}
			}
			units += line.Quantity
		}

		if err := order.InsertPayment(ctx, tx, &domain.Payment{
			OrderID:     o.ID,
			AmountCents: o.Total,
			Method:      method,
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		content, err := receipt.Render(ctx, tx, o.ID, s.title)
		if err != nil {
			return err
		}
		if _, err := receipt.Save(ctx, tx, o.ID, content); err != nil {
			return err
		}

		eventID := s.eventIDs.Generate()
		if _, err := outbox.Insert(ctx, tx, eventID, s.topic, checkoutID,
			outbox.NewOrderPlaced(eventID, o, lines), now); err != nil {
			return err
		}

		res = newResult(o, content, false)
		return nil
	})
	if err != nil {
		return Result{}, 0, err
	}
	return res, units, nil
}

// checkMenuItems rejects the first cart line whose menu item does not exist.
func checkMenuItems(ctx context.Context, q store.Querier, cart []domain.CartLine) error {
	itemIDs := make([]int64, len(cart))
	for i, line := range cart {
		itemIDs[i] = line.MenuItemID
	}
	found, err := catalog.Exists(ctx, q, itemIDs)
	if err != nil {
		return err
	}
	for i, line := range cart {
		if !found[line.MenuItemID] {
			return domain.NewValidationError(i+1, "unknown menu item %d", line.MenuItemID)
		}
	}
	return nil
}

func replay(ctx context.Context, q store.Querier, o domain.Order) (Result, error) {
	r, err := receipt.Load(ctx, q, o.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return Result{}, domain.NewIntegrityError("order %d has no receipt", o.ID)
	}
	if err != nil {
		return Result{}, err
	}
	return newResult(o, r.Content, true), nil
}

func newResult(o domain.Order, content string, replayed bool) Result {
	return Result{
		OrderID:    o.ID,
		CheckoutID: o.CheckoutID,
		Subtotal:   o.Subtotal,
		Discount:   o.Discount,
		Tax:        o.Tax,
		Total:      o.Total,
		Receipt:    content,
		Replayed:   replayed,
	}
}
