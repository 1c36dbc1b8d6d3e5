package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no payment exists for the lookup key.
	ErrNotFound = errors.New("payment not found")
	// ErrNotPaid is returned when a cancel is attempted on an unpaid payment.
	ErrNotPaid = errors.New("payment is not paid")
	// ErrAlreadyCanceled is returned when a payment is already canceled.
	ErrAlreadyCanceled = errors.New("payment already canceled")
	// ErrAlreadyPaid is returned when a deposit event arrives for a payment
	// that is already marked paid.
	ErrAlreadyPaid = errors.New("payment already paid")
)

// VirtualAccount holds bank-transfer details for the asynchronous deposit
// payment method.
type VirtualAccount struct {
	Bank          string
	AccountNumber string
	DueDate       time.Time
}

// Payment is the financial record for an order. At most one exists per order,
// and exactly one per distinct payment key.
type Payment struct {
	ID             string
	OrderID        string
	PaymentKey     string
	Method         string
	VirtualAccount *VirtualAccount
	IsPaid         bool
	IsCanceled     bool
	PaidAmount     decimal.Decimal
	CancelAmount   decimal.Decimal
	CancelReason   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Repository defines persistence operations for payments. Insert must be
// backed by a unique constraint on payment_key so that concurrent retries or
// duplicate webhook deliveries never create two rows for one key.
type Repository interface {
	// Insert persists p. When a payment with the same payment key already
	// exists, it returns that existing payment and inserted=false without
	// error (insert, catch duplicate key, re-read).
	Insert(ctx context.Context, p *Payment) (stored *Payment, inserted bool, err error)
	// GetByKey returns the payment for the gateway payment key, or ErrNotFound.
	GetByKey(ctx context.Context, paymentKey string) (*Payment, error)
	// GetByOrderID returns the payment for the order, or ErrNotFound.
	GetByOrderID(ctx context.Context, orderID string) (*Payment, error)
	// Update persists paid/canceled flags, amounts, and cancel reason.
	Update(ctx context.Context, p *Payment) error
}
