package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itsmycolor/commerce-core/internal/domain/coupon"
)

const (
	selectCouponSQL = `SELECT id, user_id, type, value, min_price, expired_at,
		is_used, created_at
	FROM coupons WHERE id = $1`

	insertCouponSQL = `INSERT INTO coupons (id, user_id, type, value,
		min_price, expired_at, is_used, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	// Guarded: only flips an unused coupon. Zero rows means the coupon is
	// missing or already consumed.
	markCouponUsedSQL = `UPDATE coupons SET is_used = TRUE
	WHERE id = $1 AND is_used = FALSE`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// GetByID returns the coupon, or coupon.ErrNotFound.
func (r *CouponRepository) GetByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	var c coupon.Coupon
	err := db(ctx, r.pool).QueryRow(ctx, selectCouponSQL, id).Scan(
		&c.ID, &c.UserID, &c.Type, &c.Value, &c.MinPrice,
		&c.ExpiredAt, &c.IsUsed, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get coupon %q", id)
	}
	return &c, nil
}

// Create persists a new coupon.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := db(ctx, r.pool).Exec(ctx, insertCouponSQL,
		c.ID, c.UserID, c.Type, c.Value, c.MinPrice,
		c.ExpiredAt, c.IsUsed, c.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert coupon %q", c.ID)
	}
	return nil
}

// MarkUsed consumes the coupon. The guarded UPDATE distinguishes a missing
// coupon from one already consumed, so a second consumption can never
// succeed even under concurrent callers.
func (r *CouponRepository) MarkUsed(ctx context.Context, id string) error {
	tag, err := db(ctx, r.pool).Exec(ctx, markCouponUsedSQL, id)
	if err != nil {
		return errors.Wrapf(err, "mark coupon used %q", id)
	}
	if tag.RowsAffected() == 0 {
		c, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if c.IsUsed {
			return coupon.ErrAlreadyUsed
		}
		return coupon.ErrNotFound
	}
	return nil
}
