package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Engine validates coupons against an order and computes discount amounts.
type Engine struct {
	repo Repository
	now  func() time.Time
}

// NewEngine creates an Engine backed by the given Repository.
func NewEngine(repo Repository) *Engine {
	return &Engine{repo: repo, now: time.Now}
}

// Validate checks that the coupon identified by id can discount an order of
// orderAmount placed by userID. It returns the coupon on success.
func (e *Engine) Validate(ctx context.Context, id, userID string, orderAmount decimal.Decimal) (*Coupon, error) {
	c, err := e.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if c.UserID != userID {
		return nil, ErrNotOwner
	}
	if c.IsUsed {
		return nil, ErrAlreadyUsed
	}
	if !e.now().Before(c.ExpiredAt) {
		return nil, ErrExpired
	}
	if orderAmount.LessThan(c.MinPrice) {
		return nil, ErrBelowMinimum
	}

	return c, nil
}

// Discount computes the discount amount the coupon grants on orderAmount.
// PERCENT coupons floor to whole currency units; FIXED coupons never exceed
// the order amount.
func (e *Engine) Discount(c *Coupon, orderAmount decimal.Decimal) decimal.Decimal {
	switch c.Type {
	case TypePercent:
		return orderAmount.Mul(c.Value).Div(hundred).Floor()
	case TypeFixed:
		return decimal.Min(c.Value, orderAmount)
	default:
		return decimal.Zero
	}
}

// Use consumes the coupon. A coupon consumed once can never be consumed
// again: the repository guard returns ErrAlreadyUsed on a second attempt.
func (e *Engine) Use(ctx context.Context, id string) error {
	if err := e.repo.MarkUsed(ctx, id); err != nil {
		if errors.Is(err, ErrAlreadyUsed) || errors.Is(err, ErrNotFound) {
			return err
		}
		return errors.Wrap(err, "mark coupon used")
	}
	return nil
}
