package order

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/itsmycolor/commerce-core/internal/domain/coupon"
	"github.com/itsmycolor/commerce-core/internal/domain/txn"
)

// amountTolerance is the maximum allowed gap between the client-submitted
// total and the server-computed total, in currency units.
var amountTolerance = decimal.NewFromInt(1)

// stalledAfter is how long a CONFIRMED/SHIPPED order may sit without a
// tracking number before the delay scan flags it.
const stalledAfter = 3 * 24 * time.Hour

// bulkWorkers bounds concurrent per-order work during bulk status updates.
const bulkWorkers = 4

// CouponVerifier is the slice of the coupon engine the ledger needs.
type CouponVerifier interface {
	Validate(ctx context.Context, id, userID string, orderAmount decimal.Decimal) (*coupon.Coupon, error)
	Discount(c *coupon.Coupon, orderAmount decimal.Decimal) decimal.Decimal
	Use(ctx context.Context, id string) error
}

// ItemRequest is a line item submitted at order creation.
type ItemRequest struct {
	ProductID   string
	BrandID     string
	ProductName string
	Price       decimal.Decimal
	Quantity    int
	Size        string
	Color       string
	ImageURL    string
}

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	Currency      string
	ShippingFee   decimal.Decimal
	TotalAmount   decimal.Decimal // client-submitted, verified server-side
	CouponID      string
	Items         []ItemRequest
	ReceiverName  string
	ReceiverPhone string
	Address       string
	PostalCode    string
	DeliveryMemo  string
	AgreePurchase bool
	AgreePrivacy  bool
}

// UpdateStatusRequest holds the input for a single-order status change.
type UpdateStatusRequest struct {
	Status          Status
	DeliveryCompany string
	TrackingNumber  string
}

// BulkResult reports the outcome of a bulk status update. Partial success is
// expected: failures are reported, never aborted on.
type BulkResult struct {
	Success   int      `json:"success"`
	Failed    int      `json:"failed"`
	FailedIDs []string `json:"failedIds"`
}

// Ledger owns order creation, the status state machine, and amount
// consistency validation.
type Ledger struct {
	orders  Repository
	coupons CouponVerifier
	tx      txn.Runner
	now     func() time.Time
}

// NewLedger creates a Ledger with the required dependencies.
func NewLedger(orders Repository, coupons CouponVerifier, tx txn.Runner) *Ledger {
	return &Ledger{
		orders:  orders,
		coupons: coupons,
		tx:      tx,
		now:     time.Now,
	}
}

// Create validates the request, applies the coupon discount, verifies the
// client-submitted total against the server-computed one, and persists the
// order with all items and the coupon consumption in a single transaction.
// No partial state survives a failure.
func (l *Ledger) Create(ctx context.Context, req CreateRequest, userID string) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	subtotal := decimal.Zero
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	discount := decimal.Zero
	if req.CouponID != "" {
		c, err := l.coupons.Validate(ctx, req.CouponID, userID, subtotal)
		if err != nil {
			return nil, errors.Wrap(err, "validate coupon")
		}
		discount = l.coupons.Discount(c, subtotal)
	}

	serverTotal := subtotal.Sub(discount).Add(req.ShippingFee)
	if serverTotal.Sub(req.TotalAmount).Abs().GreaterThan(amountTolerance) {
		return nil, &AmountMismatchError{
			ClientTotal: req.TotalAmount,
			ServerTotal: serverTotal,
		}
	}

	now := l.now()
	o := &Order{
		ID:             uuid.New().String(),
		UserID:         userID,
		Status:         StatusPending,
		Currency:       req.Currency,
		ProductAmount:  subtotal,
		DiscountAmount: discount,
		ShippingFee:    req.ShippingFee,
		TotalAmount:    serverTotal, // server-computed, regardless of client value
		CouponID:       req.CouponID,
		ReceiverName:   req.ReceiverName,
		ReceiverPhone:  req.ReceiverPhone,
		Address:        req.Address,
		PostalCode:     req.PostalCode,
		DeliveryMemo:   req.DeliveryMemo,
		AgreePurchase:  req.AgreePurchase,
		AgreePrivacy:   req.AgreePrivacy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	o.Items = make([]Item, len(req.Items))
	for i, item := range req.Items {
		o.Items[i] = Item{
			ID:          uuid.New().String(),
			OrderID:     o.ID,
			ProductID:   item.ProductID,
			BrandID:     item.BrandID,
			ProductName: item.ProductName,
			Price:       item.Price,
			Quantity:    item.Quantity,
			Size:        item.Size,
			Color:       item.Color,
			ImageURL:    item.ImageURL,
		}
	}

	err := l.tx.InTx(ctx, func(ctx context.Context) error {
		if err := l.orders.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		if req.CouponID != "" {
			if err := l.coupons.Use(ctx, req.CouponID); err != nil {
				return errors.Wrap(err, "consume coupon")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return o, nil
}

// Find returns the order without an ownership check. Intended for internal
// callers such as payment reconciliation.
func (l *Ledger) Find(ctx context.Context, id string) (*Order, error) {
	return l.orders.GetByID(ctx, id)
}

// CountByUser returns how many orders the user has placed.
func (l *Ledger) CountByUser(ctx context.Context, userID string) (int, error) {
	return l.orders.CountByUser(ctx, userID)
}

// Get returns the order when it belongs to userID, ErrForbidden otherwise.
func (l *Ledger) Get(ctx context.Context, id, userID string) (*Order, error) {
	o, err := l.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrForbidden
	}
	return o, nil
}

// UpdateStatus applies a status change and/or tracking attachment to a single
// order.
//
// Terminal orders reject every change except re-requesting the same terminal
// status, which is an idempotent no-op. Attaching a non-blank tracking number
// while the order is CONFIRMED or SHIPPED auto-advances it to DELIVERING.
//
// Concurrent webhook and operator updates on the same order are not serialized
// here; callers needing strict ordering must hold a row lock.
func (l *Ledger) UpdateStatus(ctx context.Context, id string, req UpdateStatusRequest) (*Order, error) {
	o, err := l.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Status != "" && !req.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	if o.Status.Terminal() {
		if req.Status == o.Status {
			return o, nil
		}
		return nil, ErrOrderFinalized
	}

	if req.Status != "" {
		o.Status = req.Status
	}

	if req.TrackingNumber != "" || req.DeliveryCompany != "" {
		if req.TrackingNumber == "" {
			return nil, ErrBlankTracking
		}
		o.DeliveryCompany = req.DeliveryCompany
		o.TrackingNumber = req.TrackingNumber
		if o.Status == StatusConfirmed || o.Status == StatusShipped {
			o.Status = StatusDelivering
		}
	}

	o.UpdatedAt = l.now()
	if err := l.orders.Update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// SetStatus forces the order into the given status without the tracking
// side-channel. It honors the terminal guard and is used by payment
// reconciliation to advance or cancel orders.
func (l *Ledger) SetStatus(ctx context.Context, id string, status Status) (*Order, error) {
	return l.UpdateStatus(ctx, id, UpdateStatusRequest{Status: status})
}

// BulkUpdateStatus moves every listed order to status, skipping and reporting
// orders that fail their preconditions. SHIPPED is only reachable from
// CONFIRMED; a terminal order may not move to a non-terminal status.
func (l *Ledger) BulkUpdateStatus(ctx context.Context, ids []string, status Status) (*BulkResult, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	var (
		mu     sync.Mutex
		result BulkResult
	)
	fail := func(id string) {
		mu.Lock()
		result.Failed++
		result.FailedIDs = append(result.FailedIDs, id)
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkWorkers)
	for _, id := range ids {
		g.Go(func() error {
			o, err := l.orders.GetByID(ctx, id)
			if err != nil {
				fail(id)
				return nil
			}
			if o.Status.Terminal() && !status.Terminal() {
				fail(id)
				return nil
			}
			if status == StatusShipped && o.Status != StatusConfirmed {
				fail(id)
				return nil
			}
			o.Status = status
			o.UpdatedAt = l.now()
			if err := l.orders.Update(ctx, o); err != nil {
				fail(id)
				return nil
			}
			mu.Lock()
			result.Success++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &result, nil
}

// ListDelayed flags orders stuck in CONFIRMED or SHIPPED for more than three
// days without a tracking number. Read-only diagnostic; no state changes.
func (l *Ledger) ListDelayed(ctx context.Context) ([]Order, error) {
	cutoff := l.now().Add(-stalledAfter)
	return l.orders.ListStalled(ctx, []Status{StatusConfirmed, StatusShipped}, cutoff)
}
