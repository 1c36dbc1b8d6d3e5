// Package handler exposes the order, payment, and settlement services over
// HTTP. Authentication is owned by the upstream gateway; the caller identity
// arrives in the X-User-ID header.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/itsmycolor/commerce-core/internal/domain/order"
	"github.com/itsmycolor/commerce-core/internal/domain/payment"
	"github.com/itsmycolor/commerce-core/internal/domain/settlement"
)

// userHeader carries the authenticated caller identity, populated upstream.
const userHeader = "X-User-ID"

// OrderLedger is the order service surface the handler needs.
type OrderLedger interface {
	Create(ctx context.Context, req order.CreateRequest, userID string) (*order.Order, error)
	Get(ctx context.Context, id, userID string) (*order.Order, error)
	UpdateStatus(ctx context.Context, id string, req order.UpdateStatusRequest) (*order.Order, error)
	BulkUpdateStatus(ctx context.Context, ids []string, status order.Status) (*order.BulkResult, error)
	ListDelayed(ctx context.Context) ([]order.Order, error)
}

// PaymentReconciler is the payment service surface the handler needs.
type PaymentReconciler interface {
	Verify(ctx context.Context, paymentKey, orderID string, amount decimal.Decimal) (*payment.Payment, error)
	HandleWebhook(ctx context.Context, ev payment.WebhookEvent) error
	Cancel(ctx context.Context, orderID, reason string) (*payment.Payment, error)
}

// SettlementCalculator is the settlement service surface the handler needs.
type SettlementCalculator interface {
	CalculateForBrand(ctx context.Context, req settlement.CalculateRequest) (*settlement.Settlement, error)
	Confirm(ctx context.Context, id string) (*settlement.Settlement, error)
	CompletePayment(ctx context.Context, id string) (*settlement.Settlement, error)
}

// Handler routes HTTP requests to the domain services.
type Handler struct {
	orders      OrderLedger
	payments    PaymentReconciler
	settlements SettlementCalculator
}

// New constructs a Handler with the required services.
func New(orders OrderLedger, payments PaymentReconciler, settlements SettlementCalculator) *Handler {
	return &Handler{
		orders:      orders,
		payments:    payments,
		settlements: settlements,
	}
}

// Routes returns the API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/delayed", h.listDelayedOrders)
		r.Patch("/many/status", h.bulkUpdateOrderStatus)
		r.Get("/{id}", h.getOrder)
		r.Patch("/{id}/status", h.updateOrderStatus)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Post("/verify", h.verifyPayment)
		r.Post("/webhook/toss", h.tossWebhook)
		r.Post("/{orderID}/cancel", h.cancelPayment)
	})

	r.Route("/settlements", func(r chi.Router) {
		r.Post("/calculate-brand", h.calculateBrandSettlement)
		r.Put("/{id}/confirm", h.confirmSettlement)
		r.Put("/{id}/payment-complete", h.completeSettlementPayment)
	})

	return r
}

// userID extracts the caller identity. The bool result is false when the
// header is absent (the middleware stack upstream should prevent that).
func userID(r *http.Request) (string, bool) {
	id := r.Header.Get(userHeader)
	return id, id != ""
}
