package settlement

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the settlement payout state.
type Status string

const (
	StatusPending          Status = "PENDING"
	StatusPaymentScheduled Status = "PAYMENT_SCHEDULED"
	StatusCompleted        Status = "COMPLETED"
)

// AllTimePeriod is the synthetic period label for settlements computed over
// every order ever placed. Unlike calendar months, all-time settlements have
// no duplicate guard.
const AllTimePeriod = "ALL"

var (
	// ErrNotFound is returned when no settlement exists for the given ID.
	ErrNotFound = errors.New("settlement not found")
	// ErrExists is returned when a settlement for the same brand and
	// calendar month already exists.
	ErrExists = errors.New("settlement already exists for period")
	// ErrNoSales is returned when the brand has no sales in the period.
	ErrNoSales = errors.New("no sales in period")
	// ErrInvalidState is returned on a status transition whose precondition
	// does not hold.
	ErrInvalidState = errors.New("invalid settlement state for transition")
	// ErrInvalidRate is returned when the commission rate is outside [0, 100].
	ErrInvalidRate = errors.New("commission rate must be between 0 and 100")
)

// Settlement is an immutable per-brand per-period commission snapshot.
// ActualSettlementAmount + CommissionAmount == TotalSales always holds.
type Settlement struct {
	ID                     string
	BrandID                string
	SettlementMonth        string // "YYYY-MM" or AllTimePeriod
	TotalSales             decimal.Decimal
	CommissionRate         decimal.Decimal
	CommissionAmount       decimal.Decimal
	ActualSettlementAmount decimal.Decimal
	Status                 Status
	SettledAt              *time.Time
	CreatedAt              time.Time
}

// TaxInvoice is the derived invoice stub created alongside a settlement.
type TaxInvoice struct {
	ID           string
	SettlementID string
	BrandID      string
	SupplyAmount decimal.Decimal
	TaxAmount    decimal.Decimal
	Status       string
	CreatedAt    time.Time
}

// Repository defines persistence operations for settlements.
type Repository interface {
	Insert(ctx context.Context, s *Settlement) error
	GetByID(ctx context.Context, id string) (*Settlement, error)
	Update(ctx context.Context, s *Settlement) error
	// ExistsForPeriod reports whether a settlement already exists for the
	// brand and month label.
	ExistsForPeriod(ctx context.Context, brandID, month string) (bool, error)
	InsertTaxInvoice(ctx context.Context, inv *TaxInvoice) error
}

// SalesSource aggregates brand-owned order item sales. A zero from/to pair
// means all time.
type SalesSource interface {
	// SumBrandSales returns the sum of price*quantity over the brand's order
	// items for orders created in [from, to).
	SumBrandSales(ctx context.Context, brandID string, from, to time.Time) (decimal.Decimal, error)
}
