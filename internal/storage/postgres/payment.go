package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itsmycolor/commerce-core/internal/domain/payment"
)

const (
	// ON CONFLICT DO NOTHING + re-read closes the check-then-insert race:
	// two concurrent deliveries of the same payment key resolve to one row.
	insertPaymentSQL = `INSERT INTO payments (id, order_id, payment_key,
		method, va_bank, va_account, va_due_date, is_paid, is_canceled,
		paid_amount, cancel_amount, cancel_reason, created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	ON CONFLICT (payment_key) DO NOTHING`

	selectPaymentSQL = `SELECT id, order_id, payment_key, method, va_bank,
		va_account, va_due_date, is_paid, is_canceled, paid_amount,
		cancel_amount, cancel_reason, created_at, updated_at
	FROM payments`

	updatePaymentSQL = `UPDATE payments SET is_paid = $2, is_canceled = $3,
		paid_amount = $4, cancel_amount = $5, cancel_reason = $6,
		updated_at = $7
	WHERE id = $1`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Insert persists p, deferring to the payment_key unique constraint for
// duplicate suppression. When the key already exists the stored payment is
// returned with inserted=false.
func (r *PaymentRepository) Insert(ctx context.Context, p *payment.Payment) (*payment.Payment, bool, error) {
	var bank, account *string
	var due *time.Time
	if va := p.VirtualAccount; va != nil {
		bank, account, due = &va.Bank, &va.AccountNumber, &va.DueDate
	}

	tag, err := db(ctx, r.pool).Exec(ctx, insertPaymentSQL,
		p.ID, p.OrderID, p.PaymentKey, p.Method, bank, account, due,
		p.IsPaid, p.IsCanceled, p.PaidAmount, p.CancelAmount,
		p.CancelReason, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return nil, false, errors.Wrapf(err, "insert payment %q", p.PaymentKey)
	}
	if tag.RowsAffected() == 0 {
		stored, err := r.GetByKey(ctx, p.PaymentKey)
		if err != nil {
			return nil, false, errors.Wrap(err, "re-read after conflict")
		}
		return stored, false, nil
	}
	return p, true, nil
}

// GetByKey returns the payment for the gateway key, or payment.ErrNotFound.
func (r *PaymentRepository) GetByKey(ctx context.Context, paymentKey string) (*payment.Payment, error) {
	return r.get(ctx, selectPaymentSQL+` WHERE payment_key = $1`, paymentKey)
}

// GetByOrderID returns the payment for the order, or payment.ErrNotFound.
func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*payment.Payment, error) {
	return r.get(ctx, selectPaymentSQL+` WHERE order_id = $1`, orderID)
}

// Update persists paid/canceled state and amounts.
func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	tag, err := db(ctx, r.pool).Exec(ctx, updatePaymentSQL,
		p.ID, p.IsPaid, p.IsCanceled, p.PaidAmount, p.CancelAmount,
		p.CancelReason, p.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "update payment %q", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return payment.ErrNotFound
	}
	return nil
}

func (r *PaymentRepository) get(ctx context.Context, sql string, arg any) (*payment.Payment, error) {
	var (
		p             payment.Payment
		bank, account *string
		due           *time.Time
	)
	err := db(ctx, r.pool).QueryRow(ctx, sql, arg).Scan(
		&p.ID, &p.OrderID, &p.PaymentKey, &p.Method, &bank, &account, &due,
		&p.IsPaid, &p.IsCanceled, &p.PaidAmount, &p.CancelAmount,
		&p.CancelReason, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, errors.Wrap(err, "get payment")
	}
	if bank != nil || account != nil {
		va := &payment.VirtualAccount{}
		if bank != nil {
			va.Bank = *bank
		}
		if account != nil {
			va.AccountNumber = *account
		}
		if due != nil {
			va.DueDate = *due
		}
		p.VirtualAccount = va
	}
	return &p, nil
}
