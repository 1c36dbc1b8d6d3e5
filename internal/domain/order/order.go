package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusShipped    Status = "SHIPPED"
	StatusDelivering Status = "DELIVERING"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// Valid reports whether s is a known order status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivering,
		StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s is a final state. Terminal orders accept no
// further status changes.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Sentinel errors for order operations.
var (
	ErrNotFound          = errors.New("order not found")
	ErrForbidden         = errors.New("order belongs to another user")
	ErrEmptyItems        = errors.New("order items required")
	ErrOrderFinalized    = errors.New("order is in a terminal status")
	ErrDuplicateTracking = errors.New("tracking number already in use")
	ErrBlankTracking     = errors.New("tracking number must not be blank")
	ErrInvalidStatus     = errors.New("unknown order status")
)

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// AmountMismatchError indicates the client-submitted total disagrees with the
// server-computed total by more than the currency-unit tolerance.
type AmountMismatchError struct {
	ClientTotal decimal.Decimal
	ServerTotal decimal.Decimal
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("total amount mismatch: client %s, server %s",
		e.ClientTotal.String(), e.ServerTotal.String())
}

// Order is a customer purchase with its pricing breakdown and shipping state.
// The invariant TotalAmount == ProductAmount - DiscountAmount + ShippingFee
// holds for every persisted order.
type Order struct {
	ID             string
	UserID         string
	Status         Status
	Currency       string
	ProductAmount  decimal.Decimal
	DiscountAmount decimal.Decimal
	ShippingFee    decimal.Decimal
	TotalAmount    decimal.Decimal
	CouponID       string

	ReceiverName    string
	ReceiverPhone   string
	Address         string
	PostalCode      string
	DeliveryMemo    string
	DeliveryCompany string
	TrackingNumber  string

	AgreePurchase bool
	AgreePrivacy  bool
	IsSettled     bool

	Items     []Item
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is a product snapshot captured at purchase time. It is never re-priced
// or re-joined against the live catalog after creation.
type Item struct {
	ID          string
	OrderID     string
	ProductID   string
	BrandID     string
	ProductName string
	Price       decimal.Decimal
	Quantity    int
	Size        string
	Color       string
	ImageURL    string
	IsReviewed  bool
}

// Subtotal returns price * quantity for the line.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create inserts the order and all of its items.
	Create(ctx context.Context, o *Order) error
	// GetByID returns the order with its items, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*Order, error)
	// Update persists status, shipping fields, and updated_at. It returns
	// ErrDuplicateTracking when the tracking number is taken by another order.
	Update(ctx context.Context, o *Order) error
	// ListStalled returns orders in the given statuses without a tracking
	// number whose last change is before the cutoff.
	ListStalled(ctx context.Context, statuses []Status, before time.Time) ([]Order, error)
	// CountByUser returns how many orders the user has placed.
	CountByUser(ctx context.Context, userID string) (int, error)
}
