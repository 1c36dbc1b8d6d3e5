package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/itsmycolor/commerce-core/internal/domain/txn"
)

// --- Mock implementations ---

type mockRepo struct {
	byID       map[string]*Settlement
	byPeriod   map[string]bool // brandID + "/" + month
	invoices   []*TaxInvoice
	invoiceErr error

	sales    decimal.Decimal
	salesErr error
	lastFrom time.Time
	lastTo   time.Time
}

func newRepo() *mockRepo {
	return &mockRepo{
		byID:     make(map[string]*Settlement),
		byPeriod: make(map[string]bool),
		sales:    decimal.Zero,
	}
}

func (m *mockRepo) Insert(_ context.Context, s *Settlement) error {
	m.byID[s.ID] = s
	m.byPeriod[s.BrandID+"/"+s.SettlementMonth] = true
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Settlement, error) {
	s, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, s *Settlement) error {
	if _, ok := m.byID[s.ID]; !ok {
		return ErrNotFound
	}
	cp := *s
	m.byID[s.ID] = &cp
	return nil
}

func (m *mockRepo) ExistsForPeriod(_ context.Context, brandID, month string) (bool, error) {
	return m.byPeriod[brandID+"/"+month], nil
}

func (m *mockRepo) InsertTaxInvoice(_ context.Context, inv *TaxInvoice) error {
	if m.invoiceErr != nil {
		return m.invoiceErr
	}
	m.invoices = append(m.invoices, inv)
	return nil
}

func (m *mockRepo) SumBrandSales(_ context.Context, _ string, from, to time.Time) (decimal.Decimal, error) {
	m.lastFrom, m.lastTo = from, to
	return m.sales, m.salesErr
}

// --- Helpers ---

func newTestCalculator(repo *mockRepo) *Calculator {
	return NewCalculator(repo, repo, txn.Nop{}, zap.NewNop())
}

func monthRequest(rate int64) CalculateRequest {
	return CalculateRequest{
		BrandID:        "b1",
		Year:           2025,
		Month:          time.May,
		CommissionRate: decimal.NewFromInt(rate),
	}
}

// --- CalculateForBrand ---

func TestCalculateForBrand_Month(t *testing.T) {
	repo := newRepo()
	repo.sales = decimal.NewFromInt(1000000)
	c := newTestCalculator(repo)

	s, err := c.CalculateForBrand(context.Background(), monthRequest(10))
	require.NoError(t, err)

	assert.Equal(t, "2025-05", s.SettlementMonth)
	assert.Equal(t, StatusPending, s.Status)
	assert.True(t, decimal.NewFromInt(1000000).Equal(s.TotalSales))
	assert.True(t, decimal.NewFromInt(100000).Equal(s.CommissionAmount))
	assert.True(t, decimal.NewFromInt(900000).Equal(s.ActualSettlementAmount))

	// Invariant: actual + commission == total sales.
	assert.True(t, s.ActualSettlementAmount.Add(s.CommissionAmount).Equal(s.TotalSales))

	// The month maps to UTC calendar bounds [May 1, Jun 1).
	assert.Equal(t, time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC), repo.lastFrom)
	assert.Equal(t, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), repo.lastTo)
}

func TestCalculateForBrand_CommissionRounding(t *testing.T) {
	// 3.3% of 99,999 is 3,299.967, rounded to 3,300.
	repo := newRepo()
	repo.sales = decimal.NewFromInt(99999)
	c := newTestCalculator(repo)

	req := monthRequest(0)
	req.CommissionRate = decimal.RequireFromString("3.3")
	s, err := c.CalculateForBrand(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(3300).Equal(s.CommissionAmount), "got %s", s.CommissionAmount)
	assert.True(t, s.ActualSettlementAmount.Add(s.CommissionAmount).Equal(s.TotalSales))
}

func TestCalculateForBrand_RateOutOfRange(t *testing.T) {
	c := newTestCalculator(newRepo())

	for _, rate := range []string{"-0.1", "100.5"} {
		req := monthRequest(0)
		req.CommissionRate = decimal.RequireFromString(rate)
		_, err := c.CalculateForBrand(context.Background(), req)
		require.ErrorIs(t, err, ErrInvalidRate, "rate %s", rate)
	}
}

func TestCalculateForBrand_RateBoundsAllowed(t *testing.T) {
	repo := newRepo()
	repo.sales = decimal.NewFromInt(10000)
	c := newTestCalculator(repo)

	zero := monthRequest(0)
	s, err := c.CalculateForBrand(context.Background(), zero)
	require.NoError(t, err)
	assert.True(t, decimal.Zero.Equal(s.CommissionAmount))

	full := monthRequest(100)
	full.Month = time.June
	s, err = c.CalculateForBrand(context.Background(), full)
	require.NoError(t, err)
	assert.True(t, decimal.Zero.Equal(s.ActualSettlementAmount))
}

func TestCalculateForBrand_DuplicateMonth(t *testing.T) {
	repo := newRepo()
	repo.sales = decimal.NewFromInt(10000)
	c := newTestCalculator(repo)

	_, err := c.CalculateForBrand(context.Background(), monthRequest(10))
	require.NoError(t, err)

	_, err = c.CalculateForBrand(context.Background(), monthRequest(10))
	require.ErrorIs(t, err, ErrExists)
}

func TestCalculateForBrand_AllTimeCoexists(t *testing.T) {
	repo := newRepo()
	repo.sales = decimal.NewFromInt(10000)
	c := newTestCalculator(repo)

	req := CalculateRequest{BrandID: "b1", CommissionRate: decimal.NewFromInt(10)}

	first, err := c.CalculateForBrand(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, AllTimePeriod, first.SettlementMonth)
	assert.True(t, repo.lastFrom.IsZero())
	assert.True(t, repo.lastTo.IsZero())

	// No duplicate guard for all-time snapshots.
	second, err := c.CalculateForBrand(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCalculateForBrand_NoSales(t *testing.T) {
	c := newTestCalculator(newRepo())

	_, err := c.CalculateForBrand(context.Background(), monthRequest(10))
	require.ErrorIs(t, err, ErrNoSales)
}

func TestCalculateForBrand_InvalidPeriod(t *testing.T) {
	c := newTestCalculator(newRepo())

	req := monthRequest(10)
	req.Year = 0
	_, err := c.CalculateForBrand(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid period")
}

func TestCalculateForBrand_SalesError(t *testing.T) {
	repo := newRepo()
	repo.salesErr = errors.New("query timeout")
	c := newTestCalculator(repo)

	_, err := c.CalculateForBrand(context.Background(), monthRequest(10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum brand sales")
}

func TestCalculateForBrand_TaxInvoiceStub(t *testing.T) {
	repo := newRepo()
	repo.sales = decimal.NewFromInt(1000000)
	c := newTestCalculator(repo)

	s, err := c.CalculateForBrand(context.Background(), monthRequest(10))
	require.NoError(t, err)

	require.Len(t, repo.invoices, 1)
	inv := repo.invoices[0]
	assert.Equal(t, s.ID, inv.SettlementID)
	assert.True(t, decimal.NewFromInt(900000).Equal(inv.SupplyAmount))
	assert.True(t, decimal.NewFromInt(90000).Equal(inv.TaxAmount))
	assert.Equal(t, "DRAFT", inv.Status)
}

func TestCalculateForBrand_TaxInvoiceFailureIgnored(t *testing.T) {
	repo := newRepo()
	repo.sales = decimal.NewFromInt(10000)
	repo.invoiceErr = errors.New("invoice table locked")
	c := newTestCalculator(repo)

	_, err := c.CalculateForBrand(context.Background(), monthRequest(10))
	require.NoError(t, err)
}

// --- Status machine ---

func TestConfirm(t *testing.T) {
	repo := newRepo()
	repo.sales = decimal.NewFromInt(10000)
	c := newTestCalculator(repo)

	s, err := c.CalculateForBrand(context.Background(), monthRequest(10))
	require.NoError(t, err)

	got, err := c.Confirm(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaymentScheduled, got.Status)

	// Confirming twice violates the precondition.
	_, err = c.Confirm(context.Background(), s.ID)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCompletePayment(t *testing.T) {
	repo := newRepo()
	repo.sales = decimal.NewFromInt(10000)
	c := newTestCalculator(repo)

	s, err := c.CalculateForBrand(context.Background(), monthRequest(10))
	require.NoError(t, err)

	// PENDING cannot complete directly.
	_, err = c.CompletePayment(context.Background(), s.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = c.Confirm(context.Background(), s.ID)
	require.NoError(t, err)

	got, err := c.CompletePayment(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.SettledAt)

	// COMPLETED is terminal.
	_, err = c.CompletePayment(context.Background(), s.ID)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestConfirm_NotFound(t *testing.T) {
	c := newTestCalculator(newRepo())

	_, err := c.Confirm(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPeriodLabel(t *testing.T) {
	assert.Equal(t, "2025-05", PeriodLabel(2025, time.May))
	assert.Equal(t, "2025-12", PeriodLabel(2025, time.December))
	assert.Equal(t, "0999-01", PeriodLabel(999, time.January))
}
