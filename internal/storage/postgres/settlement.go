package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/itsmycolor/commerce-core/internal/domain/settlement"
)

const (
	insertSettlementSQL = `INSERT INTO settlements (id, brand_id,
		settlement_month, total_sales, commission_rate, commission_amount,
		actual_settlement_amount, status, settled_at, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	selectSettlementSQL = `SELECT id, brand_id, settlement_month, total_sales,
		commission_rate, commission_amount, actual_settlement_amount, status,
		settled_at, created_at
	FROM settlements WHERE id = $1`

	updateSettlementSQL = `UPDATE settlements SET status = $2, settled_at = $3
	WHERE id = $1`

	// Brand-owned items only: an order may mix brands, so the join filters on
	// the item's brand, not the order.
	sumBrandSalesSQL = `SELECT COALESCE(SUM(oi.price * oi.quantity), 0)
	FROM order_items oi
	JOIN orders o ON o.id = oi.order_id
	WHERE oi.brand_id = $1
	  AND ($2::timestamptz IS NULL OR o.created_at >= $2)
	  AND ($3::timestamptz IS NULL OR o.created_at < $3)`

	insertTaxInvoiceSQL = `INSERT INTO tax_invoices (id, settlement_id,
		brand_id, supply_amount, tax_amount, status, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7)`
)

var (
	_ settlement.Repository  = (*SettlementRepository)(nil)
	_ settlement.SalesSource = (*SettlementRepository)(nil)
)

// SettlementRepository implements settlement.Repository and
// settlement.SalesSource backed by PostgreSQL.
type SettlementRepository struct {
	pool *pgxpool.Pool
}

// NewSettlementRepository returns a SettlementRepository that uses the given
// pool.
func NewSettlementRepository(pool *pgxpool.Pool) *SettlementRepository {
	return &SettlementRepository{pool: pool}
}

// Insert persists a new settlement snapshot. A concurrent calculation for the
// same brand and month loses to the partial unique index and maps to
// settlement.ErrExists.
func (r *SettlementRepository) Insert(ctx context.Context, s *settlement.Settlement) error {
	_, err := db(ctx, r.pool).Exec(ctx, insertSettlementSQL,
		s.ID, s.BrandID, s.SettlementMonth, s.TotalSales, s.CommissionRate,
		s.CommissionAmount, s.ActualSettlementAmount, s.Status, s.SettledAt,
		s.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "idx_settlements_brand_month") {
			return settlement.ErrExists
		}
		return errors.Wrapf(err, "insert settlement %q", s.ID)
	}
	return nil
}

// GetByID returns the settlement, or settlement.ErrNotFound.
func (r *SettlementRepository) GetByID(ctx context.Context, id string) (*settlement.Settlement, error) {
	var s settlement.Settlement
	err := db(ctx, r.pool).QueryRow(ctx, selectSettlementSQL, id).Scan(
		&s.ID, &s.BrandID, &s.SettlementMonth, &s.TotalSales,
		&s.CommissionRate, &s.CommissionAmount, &s.ActualSettlementAmount,
		&s.Status, &s.SettledAt, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, settlement.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get settlement %q", id)
	}
	return &s, nil
}

// Update persists the status machine fields.
func (r *SettlementRepository) Update(ctx context.Context, s *settlement.Settlement) error {
	tag, err := db(ctx, r.pool).Exec(ctx, updateSettlementSQL, s.ID, s.Status, s.SettledAt)
	if err != nil {
		return errors.Wrapf(err, "update settlement %q", s.ID)
	}
	if tag.RowsAffected() == 0 {
		return settlement.ErrNotFound
	}
	return nil
}

// ExistsForPeriod reports whether a settlement exists for the brand and month.
func (r *SettlementRepository) ExistsForPeriod(ctx context.Context, brandID, month string) (bool, error) {
	var exists bool
	err := db(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM settlements WHERE brand_id = $1 AND settlement_month = $2)`,
		brandID, month,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "check settlement period")
	}
	return exists, nil
}

// SumBrandSales aggregates price*quantity over the brand's order items for
// orders created in [from, to). Zero times widen to all time.
func (r *SettlementRepository) SumBrandSales(ctx context.Context, brandID string, from, to time.Time) (decimal.Decimal, error) {
	var fromArg, toArg *time.Time
	if !from.IsZero() {
		fromArg = &from
	}
	if !to.IsZero() {
		toArg = &to
	}

	var total decimal.Decimal
	err := db(ctx, r.pool).QueryRow(ctx, sumBrandSalesSQL, brandID, fromArg, toArg).Scan(&total)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "sum sales for brand %q", brandID)
	}
	return total, nil
}

// InsertTaxInvoice persists a tax invoice stub.
func (r *SettlementRepository) InsertTaxInvoice(ctx context.Context, inv *settlement.TaxInvoice) error {
	_, err := db(ctx, r.pool).Exec(ctx, insertTaxInvoiceSQL,
		inv.ID, inv.SettlementID, inv.BrandID, inv.SupplyAmount,
		inv.TaxAmount, inv.Status, inv.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert tax invoice %q", inv.ID)
	}
	return nil
}
