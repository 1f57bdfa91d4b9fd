package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"storefront-checkout/internal/domain"

	"github.com/google/uuid"
)

// OrderRepo owns the orders table and the order state machine. Every
// transition is a single conditional UPDATE guarded on the current value of
// the status field it depends on; the bool result reports whether the write
// applied. A false result means the order was already at or past the target
// state, which callers treat as success.
type OrderRepo interface {
	CreateOrder(ctx context.Context, tx *sql.Tx, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	SetPaymentIntent(ctx context.Context, orderID uuid.UUID, intentID string) error
	MarkPaid(ctx context.Context, orderID uuid.UUID) (bool, error)
	MarkFailed(ctx context.Context, orderID uuid.UUID) (bool, error)
	MarkShipped(ctx context.Context, orderID uuid.UUID, trackingNumber string) (bool, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID) (bool, error)
	MarkRefunded(ctx context.Context, orderID uuid.UUID) (bool, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (bool, error)
	FindStuckOrders(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error)
}

type orderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{db: db}
}

const orderColumns = `id, order_number, status, payment_status, payment_intent_id, email,
	subtotal, tax, shipping, discount, total, currency,
	shipping_address, billing_address, notes, tracking_number,
	created_at, updated_at, shipped_at, delivered_at`

func (r *orderRepo) CreateOrder(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	shipAddr, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}
	var billAddr []byte
	if order.BillingAddress != nil {
		billAddr, err = json.Marshal(order.BillingAddress)
		if err != nil {
			return fmt.Errorf("marshal billing address: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, status, payment_status, email,
			subtotal, tax, shipping, discount, total, currency,
			shipping_address, billing_address, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		order.ID, order.OrderNumber, order.Status, order.PaymentStatus, order.Email,
		order.Subtotal, order.Tax, order.Shipping, order.Discount, order.Total, order.Currency,
		shipAddr, billAddr, order.Notes, order.CreatedAt, order.UpdatedAt,
	)
	return err
}

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (r *orderRepo) FindByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber)
	return scanOrder(row)
}

func (r *orderRepo) SetPaymentIntent(ctx context.Context, orderID uuid.UUID, intentID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE orders SET payment_intent_id = $2, updated_at = now() WHERE id = $1`,
		orderID, intentID)
	return err
}

// MarkPaid applies (pending,pending) -> (processing,paid). Redelivered
// success events hit the guard and report false.
func (r *orderRepo) MarkPaid(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return r.transition(ctx, `
		UPDATE orders
		SET status = 'processing', payment_status = 'paid', updated_at = now()
		WHERE id = $1 AND payment_status = 'pending'`, orderID)
}

// MarkFailed applies (pending,pending) -> (cancelled,failed). The guard on
// payment_status = 'pending' means a failure can never regress a paid order.
func (r *orderRepo) MarkFailed(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return r.transition(ctx, `
		UPDATE orders
		SET status = 'cancelled', payment_status = 'failed', updated_at = now()
		WHERE id = $1 AND payment_status = 'pending'`, orderID)
}

func (r *orderRepo) MarkShipped(ctx context.Context, orderID uuid.UUID, trackingNumber string) (bool, error) {
	return r.transition(ctx, `
		UPDATE orders
		SET status = 'shipped', tracking_number = $2, shipped_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'processing'`, orderID, trackingNumber)
}

func (r *orderRepo) MarkDelivered(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return r.transition(ctx, `
		UPDATE orders
		SET status = 'delivered', delivered_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'shipped'`, orderID)
}

func (r *orderRepo) MarkRefunded(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return r.transition(ctx, `
		UPDATE orders
		SET status = 'refunded', payment_status = 'refunded', updated_at = now()
		WHERE id = $1 AND payment_status = 'paid'`, orderID)
}

func (r *orderRepo) Cancel(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return r.transition(ctx, `
		UPDATE orders
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status NOT IN ('delivered', 'cancelled', 'refunded')`, orderID)
}

func (r *orderRepo) transition(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *orderRepo) FindStuckOrders(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = 'pending' AND payment_status = 'pending' AND updated_at < $1
		ORDER BY updated_at
		LIMIT $2`,
		time.Now().Add(-olderThan), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order       domain.Order
		intentID    sql.NullString
		shipAddr    []byte
		billAddr    []byte
		tracking    sql.NullString
		shippedAt   sql.NullTime
		deliveredAt sql.NullTime
	)
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.Status,
		&order.PaymentStatus,
		&intentID,
		&order.Email,
		&order.Subtotal,
		&order.Tax,
		&order.Shipping,
		&order.Discount,
		&order.Total,
		&order.Currency,
		&shipAddr,
		&billAddr,
		&order.Notes,
		&tracking,
		&order.CreatedAt,
		&order.UpdatedAt,
		&shippedAt,
		&deliveredAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}

	order.PaymentIntentID = intentID.String
	order.TrackingNumber = tracking.String
	if shippedAt.Valid {
		order.ShippedAt = &shippedAt.Time
	}
	if deliveredAt.Valid {
		order.DeliveredAt = &deliveredAt.Time
	}
	if err := json.Unmarshal(shipAddr, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if len(billAddr) > 0 {
		var addr domain.Address
		if err := json.Unmarshal(billAddr, &addr); err != nil {
			return nil, fmt.Errorf("unmarshal billing address: %w", err)
		}
		order.BillingAddress = &addr
	}
	return &order, nil
}
