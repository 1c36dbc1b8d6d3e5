package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/itsmycolor/commerce-core/internal/domain/payment"
)

type paymentResp struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"orderId"`
	PaymentKey     string          `json:"paymentKey"`
	Method         string          `json:"method,omitempty"`
	VirtualAccount *vaResp         `json:"virtualAccount,omitempty"`
	IsPaid         bool            `json:"isPaid"`
	IsCanceled     bool            `json:"isCanceled"`
	PaidAmount     decimal.Decimal `json:"paidAmount"`
	CancelAmount   decimal.Decimal `json:"cancelAmount"`
	CancelReason   string          `json:"cancelReason,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type vaResp struct {
	Bank          string    `json:"bank"`
	AccountNumber string    `json:"accountNumber"`
	DueDate       time.Time `json:"dueDate"`
}

func toPaymentResp(p *payment.Payment) paymentResp {
	resp := paymentResp{
		ID:           p.ID,
		OrderID:      p.OrderID,
		PaymentKey:   p.PaymentKey,
		Method:       p.Method,
		IsPaid:       p.IsPaid,
		IsCanceled:   p.IsCanceled,
		PaidAmount:   p.PaidAmount,
		CancelAmount: p.CancelAmount,
		CancelReason: p.CancelReason,
		CreatedAt:    p.CreatedAt,
	}
	if va := p.VirtualAccount; va != nil {
		resp.VirtualAccount = &vaResp{
			Bank:          va.Bank,
			AccountNumber: va.AccountNumber,
			DueDate:       va.DueDate,
		}
	}
	return resp
}

type verifyPaymentReq struct {
	PaymentKey string          `json:"paymentKey"`
	OrderID    string          `json:"orderId"`
	Amount     decimal.Decimal `json:"amount"`
}

func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentReq
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PaymentKey == "" || req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "paymentKey and orderId are required")
		return
	}

	p, err := h.payments.Verify(r.Context(), req.PaymentKey, req.OrderID, req.Amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResp(p))
}

type tossWebhookReq struct {
	Data struct {
		Status  string `json:"status"`
		OrderID string `json:"orderId"`
		Method  string `json:"method"`
		Cancels []struct {
			CancelAmount decimal.Decimal `json:"cancelAmount"`
			CancelReason string          `json:"cancelReason"`
		} `json:"cancels"`
	} `json:"data"`
}

// tossWebhook always answers 200: the gateway retries on any other status,
// and reconciliation failures are an internal concern, not the gateway's.
func (h *Handler) tossWebhook(w http.ResponseWriter, r *http.Request) {
	lg := zctx.From(r.Context())

	var req tossWebhookReq
	if err := decodeWebhook(r, &req); err != nil {
		lg.Warn("webhook: malformed payload", zap.Error(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	ev := payment.WebhookEvent{
		Status:  req.Data.Status,
		OrderID: req.Data.OrderID,
		Method:  req.Data.Method,
	}
	for _, c := range req.Data.Cancels {
		ev.Cancels = append(ev.Cancels, payment.WebhookCancel{
			CancelAmount: c.CancelAmount,
			CancelReason: c.CancelReason,
		})
	}

	if err := h.payments.HandleWebhook(r.Context(), ev); err != nil {
		lg.Error("webhook: reconciliation failed",
			zap.String("status", ev.Status),
			zap.String("order_id", ev.OrderID),
			zap.Error(err),
		)
	}
	w.WriteHeader(http.StatusOK)
}

type cancelPaymentReq struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelPayment(w http.ResponseWriter, r *http.Request) {
	var req cancelPaymentReq
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := h.payments.Cancel(r.Context(), chi.URLParam(r, "orderID"), req.Reason)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResp(p))
}
