package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/itsmycolor/commerce-core/internal/domain/notification"
	"github.com/itsmycolor/commerce-core/internal/domain/order"
)

// Orders is the slice of the order ledger the reconciler drives.
type Orders interface {
	Find(ctx context.Context, id string) (*order.Order, error)
	SetStatus(ctx context.Context, id string, status order.Status) (*order.Order, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

// WebhookCancel is one cancellation entry in a gateway webhook event.
type WebhookCancel struct {
	CancelAmount decimal.Decimal
	CancelReason string
}

// WebhookEvent is the payload the gateway pushes asynchronously.
type WebhookEvent struct {
	Status  string
	OrderID string
	Method  string
	Cancels []WebhookCancel
}

// Reconciler creates and updates Payment records from synchronous
// verification calls and asynchronous gateway webhooks, and drives order
// status transitions on payment events.
type Reconciler struct {
	payments Repository
	orders   Orders
	gateway  Gateway
	notifier notification.Sender
	lg       *zap.Logger
	now      func() time.Time
}

// NewReconciler creates a Reconciler with the required dependencies.
func NewReconciler(
	payments Repository,
	orders Orders,
	gateway Gateway,
	notifier notification.Sender,
	lg *zap.Logger,
) *Reconciler {
	return &Reconciler{
		payments: payments,
		orders:   orders,
		gateway:  gateway,
		notifier: notifier,
		lg:       lg,
		now:      time.Now,
	}
}

// Verify confirms a payment with the gateway and records it.
//
// It is idempotent on paymentKey: repeated client retries return the stored
// payment without calling the gateway again, so a payment is never confirmed
// or created twice. Gateway failures propagate before any local write.
func (r *Reconciler) Verify(ctx context.Context, paymentKey, orderID string, amount decimal.Decimal) (*Payment, error) {
	existing, err := r.payments.GetByKey(ctx, paymentKey)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrap(err, "lookup payment")
	}

	res, err := r.gateway.Confirm(ctx, paymentKey, orderID, amount)
	if err != nil {
		return nil, errors.Wrap(err, "gateway confirm")
	}

	now := r.now()
	p := &Payment{
		ID:           uuid.New().String(),
		OrderID:      orderID,
		PaymentKey:   paymentKey,
		Method:       res.Method,
		PaidAmount:   decimal.Zero,
		CancelAmount: decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if res.Status == StatusWaitingForDeposit {
		// Virtual-account path: funds arrive later via webhook; the order
		// stays PENDING until the deposit lands.
		p.VirtualAccount = res.VirtualAccount
	} else {
		p.IsPaid = true
		p.PaidAmount = amount
	}

	stored, inserted, err := r.payments.Insert(ctx, p)
	if err != nil {
		return nil, errors.Wrap(err, "insert payment")
	}
	if !inserted {
		// Lost the race against a concurrent retry for the same key.
		return stored, nil
	}

	if p.IsPaid {
		if _, err := r.orders.SetStatus(ctx, orderID, order.StatusConfirmed); err != nil {
			return nil, errors.Wrap(err, "confirm order")
		}
		r.celebrateFirstOrder(ctx, orderID)
	}

	return p, nil
}

// celebrateFirstOrder sends welcome notifications when this confirmation is
// the user's first-ever order. Failures never fail the payment flow.
func (r *Reconciler) celebrateFirstOrder(ctx context.Context, orderID string) {
	o, err := r.orders.Find(ctx, orderID)
	if err != nil {
		r.lg.Warn("first-order check: load order", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	count, err := r.orders.CountByUser(ctx, o.UserID)
	if err != nil {
		r.lg.Warn("first-order check: count orders", zap.String("user_id", o.UserID), zap.Error(err))
		return
	}
	if count != 1 {
		return
	}
	for _, tpl := range []notification.Template{notification.TemplateFirstOrder, notification.TemplateWelcomeCoupon} {
		if err := r.notifier.Send(ctx, o.UserID, tpl); err != nil {
			r.lg.Warn("welcome notification failed",
				zap.String("user_id", o.UserID),
				zap.String("template", string(tpl)),
				zap.Error(err),
			)
		}
	}
}

// HandleWebhook reconciles an asynchronous gateway event against local state.
//
// Unrecognized status/method combinations are logged no-ops: the gateway
// retries on non-2xx, so unknown events must not surface as errors.
func (r *Reconciler) HandleWebhook(ctx context.Context, ev WebhookEvent) error {
	switch {
	case ev.Status == StatusCanceled || ev.Status == StatusPartialCanceled:
		return r.cancelFromWebhook(ctx, ev)
	case ev.Status == StatusDone && ev.Method == MethodVirtualAccount:
		return r.applyDeposit(ctx, ev)
	default:
		r.lg.Info("webhook event ignored",
			zap.String("status", ev.Status),
			zap.String("method", ev.Method),
			zap.String("order_id", ev.OrderID),
		)
		return nil
	}
}

// cancelFromWebhook applies a (partial) cancellation pushed by the gateway.
//
// TODO: PARTIAL_CANCELED currently forces the whole order to CANCELLED, same
// as a full cancel. Needs a product decision on partial-refund order state.
func (r *Reconciler) cancelFromWebhook(ctx context.Context, ev WebhookEvent) error {
	p, err := r.payments.GetByOrderID(ctx, ev.OrderID)
	if err != nil {
		return errors.Wrap(err, "lookup payment for cancel")
	}
	if !p.IsPaid {
		return ErrNotPaid
	}
	if p.IsCanceled {
		return ErrAlreadyCanceled
	}

	canceled := decimal.Zero
	reason := ""
	for _, c := range ev.Cancels {
		canceled = canceled.Add(c.CancelAmount)
		if c.CancelReason != "" {
			reason = c.CancelReason
		}
	}

	p.IsCanceled = true
	p.CancelAmount = p.CancelAmount.Add(canceled)
	p.CancelReason = reason
	p.UpdatedAt = r.now()
	if err := r.payments.Update(ctx, p); err != nil {
		return errors.Wrap(err, "update payment")
	}

	if _, err := r.orders.SetStatus(ctx, ev.OrderID, order.StatusCancelled); err != nil {
		return errors.Wrap(err, "cancel order")
	}
	return nil
}

// applyDeposit marks a pending virtual-account payment paid once the deposit
// lands. A duplicate delivery fails ErrAlreadyPaid, which makes the handler
// idempotent without touching the order twice.
func (r *Reconciler) applyDeposit(ctx context.Context, ev WebhookEvent) error {
	p, err := r.payments.GetByOrderID(ctx, ev.OrderID)
	if err != nil {
		return errors.Wrap(err, "lookup payment for deposit")
	}
	if p.IsPaid {
		return ErrAlreadyPaid
	}

	o, err := r.orders.Find(ctx, ev.OrderID)
	if err != nil {
		return errors.Wrap(err, "load order for deposit")
	}

	p.IsPaid = true
	p.PaidAmount = o.TotalAmount
	p.UpdatedAt = r.now()
	if err := r.payments.Update(ctx, p); err != nil {
		return errors.Wrap(err, "update payment")
	}

	if _, err := r.orders.SetStatus(ctx, ev.OrderID, order.StatusConfirmed); err != nil {
		return errors.Wrap(err, "confirm order")
	}

	r.celebrateFirstOrder(ctx, ev.OrderID)
	return nil
}

// Cancel voids a payment at the user's or an operator's request. The gateway
// cancel runs first; local state is only mutated after it succeeds, so a
// failed external call never leaves an inconsistent local record.
func (r *Reconciler) Cancel(ctx context.Context, orderID, reason string) (*Payment, error) {
	p, err := r.payments.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "lookup payment")
	}
	if !p.IsPaid {
		return nil, ErrNotPaid
	}
	if p.IsCanceled {
		return nil, ErrAlreadyCanceled
	}

	if err := r.gateway.Cancel(ctx, p.PaymentKey, reason); err != nil {
		return nil, errors.Wrap(err, "gateway cancel")
	}

	p.IsCanceled = true
	p.CancelAmount = p.PaidAmount
	p.CancelReason = reason
	p.UpdatedAt = r.now()
	if err := r.payments.Update(ctx, p); err != nil {
		return nil, errors.Wrap(err, "update payment")
	}

	if _, err := r.orders.SetStatus(ctx, orderID, order.StatusCancelled); err != nil {
		return nil, errors.Wrap(err, "cancel order")
	}
	return p, nil
}
