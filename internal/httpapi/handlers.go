package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/pos/internal/catalog"
	"github.com/roach88/pos/internal/domain"
	"github.com/roach88/pos/internal/forecast"
	"github.com/roach88/pos/internal/fulfillment"
	"github.com/roach88/pos/internal/inventory"
	"github.com/roach88/pos/internal/order"
	"github.com/roach88/pos/internal/receipt"
)

// OrderRequest is the body of POST /api/orders.
type OrderRequest struct {
	Items         []OrderItemRequest `json:"items"`
	PaymentMethod string             `json:"payment_method"`
}

// OrderItemRequest is one cart line. Name and UnitPriceCents are optional;
// when omitted they are snapshotted from the current menu.
type OrderItemRequest struct {
	MenuItemID     int64  `json:"menu_item_id"`
	Quantity       int    `json:"quantity"`
	Name           string `json:"name,omitempty"`
	UnitPriceCents *int64 `json:"unit_price_cents,omitempty"`
}

// BatchRequest is the body of POST /api/stock/batches.
type BatchRequest struct {
	MenuItemID    int64  `json:"menu_item_id"`
	Quantity      int    `json:"quantity"`
	UnitCostCents int64  `json:"unit_cost_cents"`
	ExpiryDate    string `json:"expiry_date,omitempty"` // YYYY-MM-DD
}

// OrderDetail is the body of GET /api/orders/{orderID}.
type OrderDetail struct {
	Order   domain.Order       `json:"order"`
	Lines   []domain.OrderLine `json:"lines"`
	Payment domain.Payment     `json:"payment"`
}

// ReconcileResponse is the body of GET /api/inventory/reconcile.
type ReconcileResponse struct {
	Balanced      bool                    `json:"balanced"`
	Discrepancies []inventory.Discrepancy `json:"discrepancies"`
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.NewValidationError(0, "invalid request body: %v", err)
	}
	return nil
}

func (s *Server) listMenu(w http.ResponseWriter, r *http.Request) {
	list := catalog.ListActive
	if r.URL.Query().Get("all") == "true" {
		list = catalog.ListAll
	}
	items, err := list(r.Context(), s.store)
	if err != nil {
		writeDomainError(w, r, err, s.logger)
		return
	}
	if items == nil {
		items = []domain.MenuItem{}
	}
	writeJSON(w, http.StatusOK, items, s.logger)
}

func (s *Server) stockLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := inventory.StockLevels(r.Context(), s.store)
	if err != nil {
		writeDomainError(w, r, err, s.logger)
		return
	}
	if levels == nil {
		levels = []inventory.StockLevel{}
	}
	writeJSON(w, http.StatusOK, levels, s.logger)
}

func (s *Server) addBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, r, err, s.logger)
		return
	}
	expiry, err := inventory.ParseExpiry(req.ExpiryDate)
	if err != nil {
		writeDomainError(w, r, err, s.logger)
		return
	}
	batch, err := inventory.AddBatch(r.Context(), s.store, s.clock, inventory.NewBatch{
		MenuItemID:    req.MenuItemID,
		Quantity:      req.Quantity,
		UnitCostCents: req.UnitCostCents,
		ExpiryDate:    expiry,
	})
	if err != nil {
		writeDomainError(w, r, err, s.logger)
		return
	}
	s.logger.InfoContext(r.Context(), "batch received",
		"batch_id", batch.ID, "menu_item_id", batch.MenuItemID, "quantity", batch.Quantity)
	writeJSON(w, http.StatusCreated, batch, s.logger)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	limit := order.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", s.logger)
			return
		}
		limit = n
	}
	orders, err := order.ListRecent(r.Context(), s.store, limit)
	if err != nil {
		writeDomainError(w, r, err, s.logger)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, orders, s.logger)
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, r, err, s.logger)
		return
	}
	cart, err := s.buildCart(r, req.Items)
	if err != nil {
		writeDomainError(w, r, err, s.logger)
		return
	}

	var res fulfillment.Result
	if key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)); key != "" {
		res, err = s.svc.PlaceOrderWithKey(r.Context(), key, cart, req.PaymentMethod)
	} else {
		res, err = s.svc.PlaceOrder(r.Context(), cart, req.PaymentMethod)
	}
	if err != nil {
		writeDomainError(w, r, err, s.logger)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	w.Header().Set("Location", fmt.Sprintf("/api/orders/%d", res.OrderID))
	writeJSON(w, status, res, s.logger)
}

// buildCart turns request items into cart lines, filling missing snapshots
// from the menu. An unknown item with no snapshot fails with its line number.
func (s *Server) buildCart(r *http.Request, items []OrderItemRequest) ([]domain.CartLine, error) {
	cart := make([]domain.CartLine, len(items))
	for i, it := range items {
		line := domain.CartLine{MenuItemID: it.MenuItemID, Quantity: it.Quantity, Name: it.Name}
		if it.UnitPriceCents != nil {
			line.UnitPriceCents = *it.UnitPriceCents
		}
		if it.Name == "" || it.UnitPriceCents == nil {
			item, err := catalog.Get(r.Context(), s.store, it.MenuItemID)
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.NewValidationError(i+1, "unknown menu item %d", it.MenuItemID)
			}
			if err != nil {
				return nil, err
			}
			if it.Name == "" {
				line.Name = item.Name
			}
			if it.UnitPriceCents == nil {
				line.UnitPriceCents = item.PriceCents
			}
		}
		cart[i] = line
	}
	return cart, nil
}

func (s *Server) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "order id must be a positive integer", s.logger)
		return 0, false
	}
	return id, true
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := s.orderID(w, r)
	if !ok {
		return
	}
	o, err := order.Get(r.Context(), s.store, id)
	if err != nil {
		writeDomainError(w, r, err, s.logger)
		return
	}
	lines, err := order.Lines(r.Context(), s.store, id)
	if err != nil {
		writeDomainError(w, r, err, s.logger)
		return
	}
	payment, err := order.PaymentFor(r.Context(), s.store, id)
	if err != nil {
		writeDomainError(w, r, err, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, OrderDetail{Order: o, Lines: lines, Payment: payment}, s.logger)
}

func (s *Server) getReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := s.orderID(w, r)
	if !ok {
		return
	}
	rc, err := receipt.Load(r.Context(), s.store, id)
	if err != nil {
		writeDomainError(w, r, err, s.logger)
		return
	}
	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, rc, s.logger)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Receipt-Digest", rc.Digest)
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, rc.Content); err != nil {
		s.logger.WarnContext(r.Context(), "failed to write receipt", "order_id", id, "error", err)
	}
}

func (s *Server) forecast(w http.ResponseWriter, r *http.Request) {
	months := forecast.DefaultMonths
	if v := r.URL.Query().Get("months"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "months must be a positive integer", s.logger)
			return
		}
		months = n
	}
	out, err := forecast.NextMonth(r.Context(), s.store, months, s.clock.Now())
	if err != nil {
		writeDomainError(w, r, err, s.logger)
		return
	}
	if out == nil {
		out = []forecast.Forecast{}
	}
	writeJSON(w, http.StatusOK, out, s.logger)
}

func (s *Server) reconcile(w http.ResponseWriter, r *http.Request) {
	diffs, err := inventory.Reconcile(r.Context(), s.store)
	if err != nil {
		writeDomainError(w, r, err, s.logger)
		return
	}
	if diffs == nil {
		diffs = []inventory.Discrepancy{}
	}
	writeJSON(w, http.StatusOK, ReconcileResponse{Balanced: len(diffs) == 0, Discrepancies: diffs}, s.logger)
}
