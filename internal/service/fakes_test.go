package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"storefront-checkout/internal/domain"

	"github.com/google/uuid"
)

// fakeOrderRepo mirrors the SQL repo's conditional-write semantics in
// memory so transition guards behave exactly as they do in postgres.
type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*domain.Order

	// failAll makes every call return this error, standing in for a
	// storage outage.
	failAll error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*domain.Order)}
}

func (r *fakeOrderRepo) put(order *domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *order
	r.orders[order.ID] = &cp
}

func (r *fakeOrderRepo) get(id uuid.UUID) *domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		cp := *o
		return &cp
	}
	return nil
}

func (r *fakeOrderRepo) CreateOrder(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	if r.failAll != nil {
		return r.failAll
	}
	r.put(order)
	return nil
}

func (r *fakeOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	if r.failAll != nil {
		return nil, r.failAll
	}
	return r.get(id), nil
}

func (r *fakeOrderRepo) FindByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	if r.failAll != nil {
		return nil, r.failAll
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.OrderNumber == orderNumber {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeOrderRepo) SetPaymentIntent(ctx context.Context, orderID uuid.UUID, intentID string) error {
	if r.failAll != nil {
		return r.failAll
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[orderID]; ok {
		o.PaymentIntentID = intentID
	}
	return nil
}

func (r *fakeOrderRepo) transition(id uuid.UUID, guard func(*domain.Order) bool, apply func(*domain.Order)) (bool, error) {
	if r.failAll != nil {
		return false, r.failAll
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || !guard(o) {
		return false, nil
	}
	apply(o)
	o.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeOrderRepo) MarkPaid(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return r.transition(orderID,
		func(o *domain.Order) bool { return o.PaymentStatus == domain.PaymentPending },
		func(o *domain.Order) {
			o.Status = domain.OrderProcessing
			o.PaymentStatus = domain.PaymentPaid
		})
}

func (r *fakeOrderRepo) MarkFailed(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return r.transition(orderID,
		func(o *domain.Order) bool { return o.PaymentStatus == domain.PaymentPending },
		func(o *domain.Order) {
			o.Status = domain.OrderCancelled
			o.PaymentStatus = domain.PaymentFailed
		})
}

func (r *fakeOrderRepo) MarkShipped(ctx context.Context, orderID uuid.UUID, trackingNumber string) (bool, error) {
	return r.transition(orderID,
		func(o *domain.Order) bool { return o.Status == domain.OrderProcessing },
		func(o *domain.Order) {
			now := time.Now()
			o.Status = domain.OrderShipped
			o.TrackingNumber = trackingNumber
			o.ShippedAt = &now
		})
}

func (r *fakeOrderRepo) MarkDelivered(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return r.transition(orderID,
		func(o *domain.Order) bool { return o.Status == domain.OrderShipped },
		func(o *domain.Order) {
			now := time.Now()
			o.Status = domain.OrderDelivered
			o.DeliveredAt = &now
		})
}

func (r *fakeOrderRepo) MarkRefunded(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return r.transition(orderID,
		func(o *domain.Order) bool { return o.PaymentStatus == domain.PaymentPaid },
		func(o *domain.Order) {
			o.Status = domain.OrderRefunded
			o.PaymentStatus = domain.PaymentRefunded
		})
}

func (r *fakeOrderRepo) Cancel(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return r.transition(orderID,
		func(o *domain.Order) bool { return !o.Status.Terminal() },
		func(o *domain.Order) { o.Status = domain.OrderCancelled })
}

func (r *fakeOrderRepo) FindStuckOrders(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error) {
	if r.failAll != nil {
		return nil, r.failAll
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var stuck []domain.Order
	for _, o := range r.orders {
		if o.Status == domain.OrderPending && o.PaymentStatus == domain.PaymentPending && o.UpdatedAt.Before(cutoff) {
			stuck = append(stuck, *o)
			if len(stuck) == limit {
				break
			}
		}
	}
	return stuck, nil
}
