package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsmycolor/commerce-core/internal/domain/coupon"
	"github.com/itsmycolor/commerce-core/internal/domain/order"
	"github.com/itsmycolor/commerce-core/internal/domain/payment"
	"github.com/itsmycolor/commerce-core/internal/domain/settlement"
	"github.com/itsmycolor/commerce-core/internal/toss"
)

// --- Mock implementations ---

type mockLedger struct {
	order     *order.Order
	delayed   []order.Order
	bulk      *order.BulkResult
	err       error
	lastBulk  []string
	lastUser  string
	lastReq   order.CreateRequest
	lastPatch order.UpdateStatusRequest
}

func (m *mockLedger) Create(_ context.Context, req order.CreateRequest, userID string) (*order.Order, error) {
	m.lastReq, m.lastUser = req, userID
	return m.order, m.err
}

func (m *mockLedger) Get(_ context.Context, _, userID string) (*order.Order, error) {
	m.lastUser = userID
	return m.order, m.err
}

func (m *mockLedger) UpdateStatus(_ context.Context, _ string, req order.UpdateStatusRequest) (*order.Order, error) {
	m.lastPatch = req
	return m.order, m.err
}

func (m *mockLedger) BulkUpdateStatus(_ context.Context, ids []string, _ order.Status) (*order.BulkResult, error) {
	m.lastBulk = ids
	return m.bulk, m.err
}

func (m *mockLedger) ListDelayed(_ context.Context) ([]order.Order, error) {
	return m.delayed, m.err
}

type mockReconciler struct {
	payment *payment.Payment
	err     error
	lastEv  payment.WebhookEvent
	handled int
}

func (m *mockReconciler) Verify(_ context.Context, _, _ string, _ decimal.Decimal) (*payment.Payment, error) {
	return m.payment, m.err
}

func (m *mockReconciler) HandleWebhook(_ context.Context, ev payment.WebhookEvent) error {
	m.lastEv = ev
	m.handled++
	return m.err
}

func (m *mockReconciler) Cancel(_ context.Context, _, _ string) (*payment.Payment, error) {
	return m.payment, m.err
}

type mockCalculator struct {
	settlement *settlement.Settlement
	err        error
	lastReq    settlement.CalculateRequest
}

func (m *mockCalculator) CalculateForBrand(_ context.Context, req settlement.CalculateRequest) (*settlement.Settlement, error) {
	m.lastReq = req
	return m.settlement, m.err
}

func (m *mockCalculator) Confirm(_ context.Context, _ string) (*settlement.Settlement, error) {
	return m.settlement, m.err
}

func (m *mockCalculator) CompletePayment(_ context.Context, _ string) (*settlement.Settlement, error) {
	return m.settlement, m.err
}

// --- Helpers ---

func testHandler(l *mockLedger, p *mockReconciler, s *mockCalculator) http.Handler {
	if l == nil {
		l = &mockLedger{}
	}
	if p == nil {
		p = &mockReconciler{}
	}
	if s == nil {
		s = &mockCalculator{}
	}
	return New(l, p, s).Routes()
}

func doJSON(t *testing.T, h http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		r.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func sampleOrder() *order.Order {
	return &order.Order{
		ID:          "o1",
		UserID:      "u1",
		Status:      order.StatusPending,
		Currency:    "KRW",
		TotalAmount: decimal.NewFromInt(48000),
		Items: []order.Item{{
			ID:        "i1",
			OrderID:   "o1",
			ProductID: "p1",
			Price:     decimal.NewFromInt(25000),
			Quantity:  2,
		}},
	}
}

// --- Orders ---

func TestCreateOrder_MissingUser(t *testing.T) {
	h := testHandler(nil, nil, nil)

	w := doJSON(t, h, http.MethodPost, "/orders", "", `{"orderItems":[]}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateOrder_Success(t *testing.T) {
	l := &mockLedger{order: sampleOrder()}
	h := testHandler(l, nil, nil)

	body := `{
		"currency": "KRW",
		"shippingFee": 3000,
		"totalAmount": 48000,
		"couponId": "c1",
		"orderItems": [{"productId": "p1", "brandId": "b1", "price": 25000, "quantity": 2}]
	}`
	w := doJSON(t, h, http.MethodPost, "/orders", "u1", body)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "u1", l.lastUser)
	assert.Equal(t, "c1", l.lastReq.CouponID)
	require.Len(t, l.lastReq.Items, 1)
	assert.Equal(t, "b1", l.lastReq.Items[0].BrandID)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "o1", resp["id"])
}

func TestCreateOrder_InvalidBody(t *testing.T) {
	h := testHandler(nil, nil, nil)

	w := doJSON(t, h, http.MethodPost, "/orders", "u1", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateOrder_AmountMismatch(t *testing.T) {
	l := &mockLedger{err: &order.AmountMismatchError{
		ClientTotal: decimal.NewFromInt(53000),
		ServerTotal: decimal.NewFromInt(48000),
	}}
	h := testHandler(l, nil, nil)

	w := doJSON(t, h, http.MethodPost, "/orders", "u1", `{"totalAmount": 53000, "orderItems": []}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "mismatch")
}

func TestCreateOrder_CouponErrors(t *testing.T) {
	for _, couponErr := range []error{
		coupon.ErrNotFound,
		coupon.ErrNotOwner,
		coupon.ErrAlreadyUsed,
		coupon.ErrExpired,
		coupon.ErrBelowMinimum,
	} {
		l := &mockLedger{err: couponErr}
		h := testHandler(l, nil, nil)

		w := doJSON(t, h, http.MethodPost, "/orders", "u1", `{"orderItems": []}`)
		assert.Equal(t, http.StatusBadRequest, w.Code, "error %v", couponErr)
	}
}

func TestGetOrder(t *testing.T) {
	l := &mockLedger{order: sampleOrder()}
	h := testHandler(l, nil, nil)

	w := doJSON(t, h, http.MethodGet, "/orders/o1", "u1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "o1", resp["id"])
	assert.Equal(t, "PENDING", resp["status"])
}

func TestGetOrder_Forbidden(t *testing.T) {
	l := &mockLedger{err: order.ErrForbidden}
	h := testHandler(l, nil, nil)

	w := doJSON(t, h, http.MethodGet, "/orders/o1", "u2", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetOrder_NotFound(t *testing.T) {
	l := &mockLedger{err: order.ErrNotFound}
	h := testHandler(l, nil, nil)

	w := doJSON(t, h, http.MethodGet, "/orders/missing", "u1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateOrderStatus_Tracking(t *testing.T) {
	o := sampleOrder()
	o.Status = order.StatusDelivering
	o.TrackingNumber = "TRACK-1"
	l := &mockLedger{order: o}
	h := testHandler(l, nil, nil)

	body := `{"deliveryCompany": "CJ", "deliveryTrackingNumber": "TRACK-1"}`
	w := doJSON(t, h, http.MethodPatch, "/orders/o1/status", "admin", body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "TRACK-1", l.lastPatch.TrackingNumber)
	assert.Contains(t, w.Body.String(), "deliveryTrackingNumber")
}

func TestUpdateOrderStatus_Finalized(t *testing.T) {
	l := &mockLedger{err: order.ErrOrderFinalized}
	h := testHandler(l, nil, nil)

	w := doJSON(t, h, http.MethodPatch, "/orders/o1/status", "admin", `{"status": "SHIPPED"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBulkUpdateOrderStatus(t *testing.T) {
	l := &mockLedger{bulk: &order.BulkResult{Success: 2, Failed: 1, FailedIDs: []string{"o3"}}}
	h := testHandler(l, nil, nil)

	w := doJSON(t, h, http.MethodPatch, "/orders/many/status", "admin",
		`{"orderIds": ["o1", "o2", "o3"], "status": "SHIPPED"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"o1", "o2", "o3"}, l.lastBulk)

	var resp order.BulkResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Success)
	assert.Equal(t, []string{"o3"}, resp.FailedIDs)
}

func TestListDelayedOrders(t *testing.T) {
	l := &mockLedger{delayed: []order.Order{*sampleOrder()}}
	h := testHandler(l, nil, nil)

	w := doJSON(t, h, http.MethodGet, "/orders/delayed", "admin", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp []map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "o1", resp[0]["id"])
}

// --- Payments ---

func TestVerifyPayment(t *testing.T) {
	p := &mockReconciler{payment: &payment.Payment{
		ID:         "pay1",
		OrderID:    "o1",
		PaymentKey: "pk1",
		IsPaid:     true,
		PaidAmount: decimal.NewFromInt(48000),
	}}
	h := testHandler(nil, p, nil)

	w := doJSON(t, h, http.MethodPost, "/payments/verify", "u1",
		`{"paymentKey": "pk1", "orderId": "o1", "amount": 48000}`)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, true, resp["isPaid"])
}

func TestVerifyPayment_MissingFields(t *testing.T) {
	h := testHandler(nil, nil, nil)

	w := doJSON(t, h, http.MethodPost, "/payments/verify", "u1", `{"amount": 48000}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyPayment_GatewayError(t *testing.T) {
	p := &mockReconciler{err: &toss.APIError{
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_CARD",
		Message:    "card rejected",
	}}
	h := testHandler(nil, p, nil)

	w := doJSON(t, h, http.MethodPost, "/payments/verify", "u1",
		`{"paymentKey": "pk1", "orderId": "o1", "amount": 48000}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "payment gateway error")
	assert.NotContains(t, w.Body.String(), "INVALID_CARD", "gateway detail must not leak")
}

func TestTossWebhook_Cancel(t *testing.T) {
	p := &mockReconciler{}
	h := testHandler(nil, p, nil)

	body := `{"data": {
		"status": "CANCELED",
		"orderId": "o1",
		"method": "CARD",
		"cancels": [{"cancelAmount": 48000, "cancelReason": "customer request"}]
	}}`
	w := doJSON(t, h, http.MethodPost, "/payments/webhook/toss", "", body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CANCELED", p.lastEv.Status)
	require.Len(t, p.lastEv.Cancels, 1)
	assert.True(t, decimal.NewFromInt(48000).Equal(p.lastEv.Cancels[0].CancelAmount))
}

func TestTossWebhook_MalformedPayloadStill200(t *testing.T) {
	p := &mockReconciler{}
	h := testHandler(nil, p, nil)

	w := doJSON(t, h, http.MethodPost, "/payments/webhook/toss", "", `{{{`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, p.handled)
}

func TestTossWebhook_ReconcileFailureStill200(t *testing.T) {
	p := &mockReconciler{err: payment.ErrAlreadyPaid}
	h := testHandler(nil, p, nil)

	body := `{"data": {"status": "DONE", "orderId": "o1", "method": "VIRTUAL_ACCOUNT"}}`
	w := doJSON(t, h, http.MethodPost, "/payments/webhook/toss", "", body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, p.handled)
}

func TestCancelPayment(t *testing.T) {
	p := &mockReconciler{payment: &payment.Payment{
		ID:           "pay1",
		OrderID:      "o1",
		PaymentKey:   "pk1",
		IsPaid:       true,
		IsCanceled:   true,
		PaidAmount:   decimal.NewFromInt(48000),
		CancelAmount: decimal.NewFromInt(48000),
		CancelReason: "changed my mind",
	}}
	h := testHandler(nil, p, nil)

	w := doJSON(t, h, http.MethodPost, "/payments/o1/cancel", "u1", `{"reason": "changed my mind"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "changed my mind")
}

func TestCancelPayment_NotPaid(t *testing.T) {
	p := &mockReconciler{err: payment.ErrNotPaid}
	h := testHandler(nil, p, nil)

	w := doJSON(t, h, http.MethodPost, "/payments/o1/cancel", "u1", `{"reason": "x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Settlements ---

func sampleSettlement() *settlement.Settlement {
	return &settlement.Settlement{
		ID:                     "s1",
		BrandID:                "b1",
		SettlementMonth:        "2025-05",
		TotalSales:             decimal.NewFromInt(1000000),
		CommissionRate:         decimal.NewFromInt(10),
		CommissionAmount:       decimal.NewFromInt(100000),
		ActualSettlementAmount: decimal.NewFromInt(900000),
		Status:                 settlement.StatusPending,
		CreatedAt:              time.Now(),
	}
}

func TestCalculateBrandSettlement(t *testing.T) {
	s := &mockCalculator{settlement: sampleSettlement()}
	h := testHandler(nil, nil, s)

	w := doJSON(t, h, http.MethodPost,
		"/settlements/calculate-brand?brandId=b1&commissionRate=10&year=2025&month=5", "admin", "")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "b1", s.lastReq.BrandID)
	assert.Equal(t, 2025, s.lastReq.Year)
	assert.Equal(t, time.May, s.lastReq.Month)
	assert.True(t, decimal.NewFromInt(10).Equal(s.lastReq.CommissionRate))
}

func TestCalculateBrandSettlement_AllTime(t *testing.T) {
	s := &mockCalculator{settlement: sampleSettlement()}
	h := testHandler(nil, nil, s)

	w := doJSON(t, h, http.MethodPost,
		"/settlements/calculate-brand?brandId=b1&commissionRate=10", "admin", "")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Zero(t, s.lastReq.Year)
	assert.Zero(t, s.lastReq.Month)
}

func TestCalculateBrandSettlement_ParamValidation(t *testing.T) {
	h := testHandler(nil, nil, &mockCalculator{})

	for _, path := range []string{
		"/settlements/calculate-brand?commissionRate=10",
		"/settlements/calculate-brand?brandId=b1",
		"/settlements/calculate-brand?brandId=b1&commissionRate=ten",
		"/settlements/calculate-brand?brandId=b1&commissionRate=10&year=2025&month=five",
	} {
		w := doJSON(t, h, http.MethodPost, path, "admin", "")
		assert.Equal(t, http.StatusBadRequest, w.Code, "path %s", path)
	}
}

func TestCalculateBrandSettlement_Duplicate(t *testing.T) {
	s := &mockCalculator{err: settlement.ErrExists}
	h := testHandler(nil, nil, s)

	w := doJSON(t, h, http.MethodPost,
		"/settlements/calculate-brand?brandId=b1&commissionRate=10&year=2025&month=5", "admin", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already exists")
}

func TestConfirmSettlement(t *testing.T) {
	done := sampleSettlement()
	done.Status = settlement.StatusPaymentScheduled
	s := &mockCalculator{settlement: done}
	h := testHandler(nil, nil, s)

	w := doJSON(t, h, http.MethodPut, "/settlements/s1/confirm", "admin", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "PAYMENT_SCHEDULED")
}

func TestCompleteSettlementPayment_InvalidState(t *testing.T) {
	s := &mockCalculator{err: settlement.ErrInvalidState}
	h := testHandler(nil, nil, s)

	w := doJSON(t, h, http.MethodPut, "/settlements/s1/payment-complete", "admin", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInternalErrorIsOpaque(t *testing.T) {
	l := &mockLedger{err: context.DeadlineExceeded}
	h := testHandler(l, nil, nil)

	w := doJSON(t, h, http.MethodGet, "/orders/delayed", "admin", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal error")
	assert.NotContains(t, w.Body.String(), "deadline")
}
