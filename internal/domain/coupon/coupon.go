package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported coupon discount strategies.
type Type string

const (
	// TypePercent applies a percentage-based discount to the order amount.
	TypePercent Type = "PERCENT"
	// TypeFixed applies a fixed monetary discount capped at the order amount.
	TypeFixed Type = "FIXED"
)

var (
	// ErrNotFound is returned when no coupon exists for the given ID.
	ErrNotFound = errors.New("coupon not found")
	// ErrNotOwner is returned when a coupon belongs to a different user.
	ErrNotOwner = errors.New("coupon does not belong to user")
	// ErrAlreadyUsed is returned when a coupon has already been consumed.
	ErrAlreadyUsed = errors.New("coupon already used")
	// ErrExpired is returned when a coupon is past its expiry time.
	ErrExpired = errors.New("coupon expired")
	// ErrBelowMinimum is returned when the order amount is below the
	// coupon's minimum order price.
	ErrBelowMinimum = errors.New("order amount below coupon minimum")
)

// Coupon is a single-use discount voucher owned by one user.
type Coupon struct {
	ID        string
	UserID    string
	Type      Type
	Value     decimal.Decimal
	MinPrice  decimal.Decimal
	ExpiredAt time.Time
	IsUsed    bool
	CreatedAt time.Time
}

// Repository provides lookup and consumption of coupons.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	// MarkUsed consumes the coupon. It must be guarded so that a coupon
	// already marked used returns ErrAlreadyUsed instead of succeeding twice.
	MarkUsed(ctx context.Context, id string) error
}
