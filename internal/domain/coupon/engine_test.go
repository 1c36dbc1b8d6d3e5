package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockRepo struct {
	byID       map[string]*Coupon
	getErr     error
	markUsed   []string
	markUsedErr error
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Coupon, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) Create(_ context.Context, c *Coupon) error {
	if m.byID == nil {
		m.byID = make(map[string]*Coupon)
	}
	m.byID[c.ID] = c
	return nil
}

func (m *mockRepo) MarkUsed(_ context.Context, id string) error {
	if m.markUsedErr != nil {
		return m.markUsedErr
	}
	c, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if c.IsUsed {
		return ErrAlreadyUsed
	}
	c.IsUsed = true
	m.markUsed = append(m.markUsed, id)
	return nil
}

// --- Helpers ---

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(coupons ...*Coupon) (*Engine, *mockRepo) {
	repo := &mockRepo{byID: make(map[string]*Coupon, len(coupons))}
	for _, c := range coupons {
		repo.byID[c.ID] = c
	}
	e := NewEngine(repo)
	e.now = func() time.Time { return testNow }
	return e, repo
}

func percentCoupon(id, userID string, value, minPrice int64) *Coupon {
	return &Coupon{
		ID:        id,
		UserID:    userID,
		Type:      TypePercent,
		Value:     decimal.NewFromInt(value),
		MinPrice:  decimal.NewFromInt(minPrice),
		ExpiredAt: testNow.Add(24 * time.Hour),
	}
}

func fixedCoupon(id, userID string, value, minPrice int64) *Coupon {
	return &Coupon{
		ID:        id,
		UserID:    userID,
		Type:      TypeFixed,
		Value:     decimal.NewFromInt(value),
		MinPrice:  decimal.NewFromInt(minPrice),
		ExpiredAt: testNow.Add(24 * time.Hour),
	}
}

// --- Tests ---

func TestValidate_Success(t *testing.T) {
	e, _ := newTestEngine(percentCoupon("c1", "u1", 10, 30000))

	c, err := e.Validate(context.Background(), "c1", "u1", decimal.NewFromInt(50000))
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
}

func TestValidate_NotFound(t *testing.T) {
	e, _ := newTestEngine()

	_, err := e.Validate(context.Background(), "missing", "u1", decimal.NewFromInt(50000))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestValidate_NotOwner(t *testing.T) {
	e, _ := newTestEngine(percentCoupon("c1", "u1", 10, 0))

	_, err := e.Validate(context.Background(), "c1", "u2", decimal.NewFromInt(50000))
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestValidate_AlreadyUsed(t *testing.T) {
	c := percentCoupon("c1", "u1", 10, 0)
	c.IsUsed = true
	e, _ := newTestEngine(c)

	_, err := e.Validate(context.Background(), "c1", "u1", decimal.NewFromInt(50000))
	require.ErrorIs(t, err, ErrAlreadyUsed)
}

func TestValidate_Expired(t *testing.T) {
	c := percentCoupon("c1", "u1", 10, 0)
	c.ExpiredAt = testNow.Add(-time.Minute)
	e, _ := newTestEngine(c)

	_, err := e.Validate(context.Background(), "c1", "u1", decimal.NewFromInt(50000))
	require.ErrorIs(t, err, ErrExpired)
}

func TestValidate_ExpiryBoundaryIsExpired(t *testing.T) {
	// A coupon expiring exactly now is no longer usable.
	c := percentCoupon("c1", "u1", 10, 0)
	c.ExpiredAt = testNow
	e, _ := newTestEngine(c)

	_, err := e.Validate(context.Background(), "c1", "u1", decimal.NewFromInt(50000))
	require.ErrorIs(t, err, ErrExpired)
}

func TestValidate_BelowMinimum(t *testing.T) {
	e, _ := newTestEngine(percentCoupon("c1", "u1", 10, 30000))

	_, err := e.Validate(context.Background(), "c1", "u1", decimal.NewFromInt(29999))
	require.ErrorIs(t, err, ErrBelowMinimum)
}

func TestValidate_MinimumBoundaryAllowed(t *testing.T) {
	e, _ := newTestEngine(percentCoupon("c1", "u1", 10, 30000))

	_, err := e.Validate(context.Background(), "c1", "u1", decimal.NewFromInt(30000))
	require.NoError(t, err)
}

func TestValidate_RepoError(t *testing.T) {
	e, repo := newTestEngine()
	repo.getErr = errors.New("connection reset")

	_, err := e.Validate(context.Background(), "c1", "u1", decimal.NewFromInt(50000))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup coupon")
}

func TestDiscount_PercentFloors(t *testing.T) {
	e, _ := newTestEngine()
	c := percentCoupon("c1", "u1", 10, 0)

	// 10% of 50,000 is exactly 5,000.
	d := e.Discount(c, decimal.NewFromInt(50000))
	assert.True(t, decimal.NewFromInt(5000).Equal(d), "got %s", d)

	// 10% of 19,999 is 1,999.9, floored to 1,999.
	d = e.Discount(c, decimal.NewFromInt(19999))
	assert.True(t, decimal.NewFromInt(1999).Equal(d), "got %s", d)
}

func TestDiscount_FixedCappedAtOrderAmount(t *testing.T) {
	e, _ := newTestEngine()
	c := fixedCoupon("c1", "u1", 5000, 0)

	d := e.Discount(c, decimal.NewFromInt(50000))
	assert.True(t, decimal.NewFromInt(5000).Equal(d), "got %s", d)

	// Fixed value larger than the order never pushes the total negative.
	d = e.Discount(c, decimal.NewFromInt(3000))
	assert.True(t, decimal.NewFromInt(3000).Equal(d), "got %s", d)
}

func TestDiscount_UnknownTypeIsZero(t *testing.T) {
	e, _ := newTestEngine()
	c := percentCoupon("c1", "u1", 10, 0)
	c.Type = Type("MYSTERY")

	assert.True(t, decimal.Zero.Equal(e.Discount(c, decimal.NewFromInt(50000))))
}

func TestUse_ConsumesOnce(t *testing.T) {
	e, repo := newTestEngine(percentCoupon("c1", "u1", 10, 0))

	require.NoError(t, e.Use(context.Background(), "c1"))
	assert.Equal(t, []string{"c1"}, repo.markUsed)

	err := e.Use(context.Background(), "c1")
	require.ErrorIs(t, err, ErrAlreadyUsed)
	assert.Len(t, repo.markUsed, 1)
}

func TestUse_NotFound(t *testing.T) {
	e, _ := newTestEngine()

	require.ErrorIs(t, e.Use(context.Background(), "missing"), ErrNotFound)
}
