package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itsmycolor/commerce-core/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (
		id, user_id, status, currency, product_amount, discount_amount,
		shipping_fee, total_amount, coupon_id, receiver_name, receiver_phone,
		address, postal_code, delivery_memo, agree_purchase, agree_privacy,
		created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULLIF($9,''),$10,$11,$12,$13,$14,$15,$16,$17,$18)`

	insertOrderItemSQL = `INSERT INTO order_items (
		id, order_id, product_id, brand_id, product_name, price, quantity,
		size, color, image_url, is_reviewed)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

	selectOrderSQL = `SELECT id, user_id, status, currency, product_amount,
		discount_amount, shipping_fee, total_amount, COALESCE(coupon_id, ''),
		receiver_name, receiver_phone, address, postal_code, delivery_memo,
		delivery_company, COALESCE(tracking_number, ''), agree_purchase,
		agree_privacy, is_settled, created_at, updated_at
	FROM orders`

	selectOrderItemsSQL = `SELECT id, order_id, product_id, brand_id,
		product_name, price, quantity, size, color, image_url, is_reviewed
	FROM order_items WHERE order_id = $1 ORDER BY created_at, id`

	updateOrderSQL = `UPDATE orders SET status = $2, delivery_company = $3,
		tracking_number = NULLIF($4, ''), is_settled = $5, updated_at = $6
	WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts the order and its items. Run inside a transaction by the
// ledger so a failed item insert rolls back the order row too.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	q := db(ctx, r.pool)

	_, err := q.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, o.Status, o.Currency, o.ProductAmount,
		o.DiscountAmount, o.ShippingFee, o.TotalAmount, o.CouponID,
		o.ReceiverName, o.ReceiverPhone, o.Address, o.PostalCode,
		o.DeliveryMemo, o.AgreePurchase, o.AgreePrivacy,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert order %q", o.ID)
	}

	for _, item := range o.Items {
		_, err := q.Exec(ctx, insertOrderItemSQL,
			item.ID, item.OrderID, item.ProductID, item.BrandID,
			item.ProductName, item.Price, item.Quantity,
			item.Size, item.Color, item.ImageURL, item.IsReviewed,
		)
		if err != nil {
			return errors.Wrapf(err, "insert order item %q", item.ID)
		}
	}
	return nil
}

// GetByID returns the order with its items, or order.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	q := db(ctx, r.pool)

	row := q.QueryRow(ctx, selectOrderSQL+` WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	rows, err := q.Query(ctx, selectOrderItemsSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order items %q", id)
	}
	defer rows.Close()
	for rows.Next() {
		var item order.Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID,
			&item.BrandID, &item.ProductName, &item.Price, &item.Quantity,
			&item.Size, &item.Color, &item.ImageURL, &item.IsReviewed); err != nil {
			return nil, errors.Wrap(err, "scan order item")
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate order items")
	}
	return o, nil
}

// Update persists status, shipping fields, settle flag, and updated_at.
// A tracking number held by another order maps to order.ErrDuplicateTracking.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	tag, err := db(ctx, r.pool).Exec(ctx, updateOrderSQL,
		o.ID, o.Status, o.DeliveryCompany, o.TrackingNumber, o.IsSettled, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "idx_orders_tracking_number") {
			return order.ErrDuplicateTracking
		}
		return errors.Wrapf(err, "update order %q", o.ID)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// ListStalled returns orders in the given statuses without a tracking number
// whose last change is before the cutoff.
func (r *OrderRepository) ListStalled(ctx context.Context, statuses []order.Status, before time.Time) ([]order.Order, error) {
	ss := make([]string, len(statuses))
	for i, s := range statuses {
		ss[i] = string(s)
	}

	rows, err := db(ctx, r.pool).Query(ctx,
		selectOrderSQL+` WHERE status = ANY($1) AND tracking_number IS NULL
			AND updated_at < $2 ORDER BY updated_at`,
		ss, before,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list stalled orders")
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// CountByUser returns how many orders the user has placed.
func (r *OrderRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := db(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID,
	).Scan(&n)
	if err != nil {
		return 0, errors.Wrapf(err, "count orders for user %q", userID)
	}
	return n, nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var o order.Order
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.Currency,
		&o.ProductAmount, &o.DiscountAmount, &o.ShippingFee, &o.TotalAmount,
		&o.CouponID, &o.ReceiverName, &o.ReceiverPhone, &o.Address,
		&o.PostalCode, &o.DeliveryMemo, &o.DeliveryCompany, &o.TrackingNumber,
		&o.AgreePurchase, &o.AgreePrivacy, &o.IsSettled,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
