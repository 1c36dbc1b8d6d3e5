package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/itsmycolor/commerce-core/internal/domain/txn"
)

var (
	hundred = decimal.NewFromInt(100)
	vatRate = decimal.RequireFromString("0.1")
)

// CalculateRequest holds the input for a brand settlement calculation.
// Year and Month select a calendar month; both zero means all time.
// CommissionRate is required; there is no default.
type CalculateRequest struct {
	BrandID        string
	Year           int
	Month          time.Month
	CommissionRate decimal.Decimal
}

// Calculator aggregates paid brand sales per period into immutable
// Settlement snapshots and walks them through the payout status machine.
type Calculator struct {
	settlements Repository
	sales       SalesSource
	tx          txn.Runner
	lg          *zap.Logger
	now         func() time.Time
}

// NewCalculator creates a Calculator with the required dependencies.
func NewCalculator(settlements Repository, sales SalesSource, tx txn.Runner, lg *zap.Logger) *Calculator {
	return &Calculator{
		settlements: settlements,
		sales:       sales,
		tx:          tx,
		lg:          lg,
		now:         time.Now,
	}
}

// PeriodLabel formats a calendar month as the stored settlement period.
func PeriodLabel(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// CalculateForBrand computes a new settlement for the brand over the
// requested period. Calendar months enforce a one-settlement-per-month guard;
// all-time calculations may coexist. The calculation never merges with or
// mutates a prior settlement; each run stores an independent snapshot.
func (c *Calculator) CalculateForBrand(ctx context.Context, req CalculateRequest) (*Settlement, error) {
	if req.CommissionRate.IsNegative() || req.CommissionRate.GreaterThan(hundred) {
		return nil, ErrInvalidRate
	}

	var from, to time.Time
	month := AllTimePeriod
	if req.Year != 0 || req.Month != 0 {
		if req.Year <= 0 || req.Month < time.January || req.Month > time.December {
			return nil, errors.Errorf("invalid period: year=%d month=%d", req.Year, req.Month)
		}
		month = PeriodLabel(req.Year, req.Month)
		from = time.Date(req.Year, req.Month, 1, 0, 0, 0, 0, time.UTC)
		to = from.AddDate(0, 1, 0)
	}

	var s *Settlement
	err := c.tx.InTx(ctx, func(ctx context.Context) error {
		if month != AllTimePeriod {
			exists, err := c.settlements.ExistsForPeriod(ctx, req.BrandID, month)
			if err != nil {
				return errors.Wrap(err, "check period")
			}
			if exists {
				return ErrExists
			}
		}

		totalSales, err := c.sales.SumBrandSales(ctx, req.BrandID, from, to)
		if err != nil {
			return errors.Wrap(err, "sum brand sales")
		}
		if totalSales.IsZero() {
			return ErrNoSales
		}

		commission := totalSales.Mul(req.CommissionRate).Div(hundred).Round(0)
		s = &Settlement{
			ID:                     uuid.New().String(),
			BrandID:                req.BrandID,
			SettlementMonth:        month,
			TotalSales:             totalSales,
			CommissionRate:         req.CommissionRate,
			CommissionAmount:       commission,
			ActualSettlementAmount: totalSales.Sub(commission),
			Status:                 StatusPending,
			CreatedAt:              c.now(),
		}
		return c.settlements.Insert(ctx, s)
	})
	if err != nil {
		return nil, err
	}

	c.issueTaxInvoice(ctx, s)
	return s, nil
}

// issueTaxInvoice stores the derived invoice stub. Best effort: a failure is
// logged and never fails the settlement calculation.
func (c *Calculator) issueTaxInvoice(ctx context.Context, s *Settlement) {
	tax := s.ActualSettlementAmount.Mul(vatRate).Round(0)
	inv := &TaxInvoice{
		ID:           uuid.New().String(),
		SettlementID: s.ID,
		BrandID:      s.BrandID,
		SupplyAmount: s.ActualSettlementAmount,
		TaxAmount:    tax,
		Status:       "DRAFT",
		CreatedAt:    c.now(),
	}
	if err := c.settlements.InsertTaxInvoice(ctx, inv); err != nil {
		c.lg.Warn("tax invoice stub failed",
			zap.String("settlement_id", s.ID),
			zap.Error(err),
		)
	}
}

// Confirm moves a PENDING settlement to PAYMENT_SCHEDULED.
func (c *Calculator) Confirm(ctx context.Context, id string) (*Settlement, error) {
	s, err := c.settlements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusPending {
		return nil, ErrInvalidState
	}
	s.Status = StatusPaymentScheduled
	if err := c.settlements.Update(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// CompletePayment moves a PAYMENT_SCHEDULED settlement to COMPLETED and
// stamps settledAt. A COMPLETED settlement is immutable afterwards.
func (c *Calculator) CompletePayment(ctx context.Context, id string) (*Settlement, error) {
	s, err := c.settlements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusPaymentScheduled {
		return nil, ErrInvalidState
	}
	now := c.now()
	s.Status = StatusCompleted
	s.SettledAt = &now
	if err := c.settlements.Update(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}
