package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/infrastructure/payment"
	"storefront-checkout/internal/repo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "order_service").Logger()

var (
	ErrInvalidItems        = errors.New("order must contain at least one item with positive quantity and price")
	ErrMissingCustomerInfo = errors.New("customer email and complete shipping address are required")
	ErrOrderNotFound       = errors.New("order not found")
	// ErrGatewayUnavailable means the order was persisted but no payment
	// attempt was started. Safe for the customer to retry checkout; the
	// pending order is reclaimed by the reaper.
	ErrGatewayUnavailable = errors.New("payment attempt could not be started")
)

const uniqueViolation = "23505"

type CheckoutItem struct {
	ProductID string
	VariantID string
	Name      string
	Quantity  int32
	UnitPrice decimal.Decimal
}

type CustomerInfo struct {
	Email           string
	ShippingAddress domain.Address
	BillingAddress  *domain.Address
	Notes           string
}

type CheckoutInput struct {
	Items    []CheckoutItem
	Customer CustomerInfo
}

type CheckoutResult struct {
	ClientToken string
	OrderID     uuid.UUID
	OrderNumber string
	Total       decimal.Decimal
}

type OrderService interface {
	Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	Ship(ctx context.Context, id uuid.UUID, trackingNumber string) (bool, error)
	Deliver(ctx context.Context, id uuid.UUID) (bool, error)
	Refund(ctx context.Context, id uuid.UUID) (bool, error)
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
}

type orderService struct {
	db         *sql.DB
	orderRepo  repo.OrderRepo
	itemRepo   repo.ItemRepo
	paymentGtw payment.PaymentGateway
	taxRate    decimal.Decimal
	currency   string
}

func NewOrderService(
	db *sql.DB,
	orderRepo repo.OrderRepo,
	itemRepo repo.ItemRepo,
	paymentGtw payment.PaymentGateway,
	taxRate decimal.Decimal,
	currency string,
) OrderService {
	return &orderService{
		db:         db,
		orderRepo:  orderRepo,
		itemRepo:   itemRepo,
		paymentGtw: paymentGtw,
		taxRate:    taxRate,
		currency:   currency,
	}
}

// Checkout persists the order and all items atomically, then starts a
// FastPay intent tagged with the order's id and number. A gateway failure
// after the commit leaves the order (pending, pending) for the reaper.
func (s *orderService) Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	items, totals := priceItems(input.Items, s.taxRate)

	now := time.Now()
	order := &domain.Order{
		ID:              uuid.New(),
		Status:          domain.OrderPending,
		PaymentStatus:   domain.PaymentPending,
		Email:           input.Customer.Email,
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		Shipping:        totals.Shipping,
		Discount:        totals.Discount,
		Total:           totals.Total,
		Currency:        s.currency,
		ShippingAddress: input.Customer.ShippingAddress,
		BillingAddress:  input.Customer.BillingAddress,
		Notes:           input.Customer.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	order.Items = items

	if err := s.persistOrder(ctx, order); err != nil {
		return nil, err
	}

	metadata := map[string]string{
		domain.MetadataOrderID:     order.ID.String(),
		domain.MetadataOrderNumber: order.OrderNumber,
	}
	intent, err := s.paymentGtw.CreateIntent(ctx, order.Total, order.Currency, metadata)
	if err != nil {
		logger.Error().Err(err).
			Str("order_id", order.ID.String()).
			Msg("payment intent creation failed, order left pending for reaper")
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	// The intent id on the order is for reconciliation and support tooling;
	// the checkout already succeeded, so a failure here is only logged.
	if err := s.orderRepo.SetPaymentIntent(ctx, order.ID, intent.ID); err != nil {
		logger.Warn().Err(err).
			Str("order_id", order.ID.String()).
			Str("intent_id", intent.ID).
			Msg("failed to persist payment intent id")
	}

	logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("total", order.Total.StringFixed(2)).
		Msg("order created")

	return &CheckoutResult{
		ClientToken: intent.ClientToken,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Total:       order.Total,
	}, nil
}

// persistOrder writes the order and its items in one transaction. The
// order number is unique-indexed; a collision gets one retry with a fresh
// number.
func (s *orderService) persistOrder(ctx context.Context, order *domain.Order) error {
	for attempt := 0; attempt < 2; attempt++ {
		order.OrderNumber = newOrderNumber(order.CreatedAt)

		err := s.insertOrderTx(ctx, order)
		if err == nil {
			return nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && attempt == 0 {
			continue
		}
		return err
	}
	return fmt.Errorf("order number collision after retry")
}

func (s *orderService) insertOrderTx(ctx context.Context, order *domain.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		return err
	}
	if err := s.itemRepo.CreateItems(ctx, tx, order.Items); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *orderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.attachItems(ctx, order)
}

func (s *orderService) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	order, err := s.orderRepo.FindByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.attachItems(ctx, order)
}

func (s *orderService) attachItems(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	items, err := s.itemRepo.FindByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (s *orderService) Ship(ctx context.Context, id uuid.UUID, trackingNumber string) (bool, error) {
	return s.fulfill(ctx, id, func() (bool, error) {
		return s.orderRepo.MarkShipped(ctx, id, trackingNumber)
	})
}

func (s *orderService) Deliver(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.fulfill(ctx, id, func() (bool, error) {
		return s.orderRepo.MarkDelivered(ctx, id)
	})
}

func (s *orderService) Refund(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.fulfill(ctx, id, func() (bool, error) {
		return s.orderRepo.MarkRefunded(ctx, id)
	})
}

func (s *orderService) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.fulfill(ctx, id, func() (bool, error) {
		return s.orderRepo.Cancel(ctx, id)
	})
}

func (s *orderService) fulfill(ctx context.Context, id uuid.UUID, apply func() (bool, error)) (bool, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if order == nil {
		return false, ErrOrderNotFound
	}
	return apply()
}

func validateInput(input CheckoutInput) error {
	if len(input.Items) == 0 {
		return ErrInvalidItems
	}
	for _, item := range input.Items {
		if item.ProductID == "" || item.Quantity <= 0 || !item.UnitPrice.IsPositive() {
			return ErrInvalidItems
		}
	}

	addr := input.Customer.ShippingAddress
	if input.Customer.Email == "" || !strings.Contains(input.Customer.Email, "@") {
		return ErrMissingCustomerInfo
	}
	if addr.Name == "" || addr.Line1 == "" || addr.City == "" || addr.PostalCode == "" || addr.Country == "" {
		return ErrMissingCustomerInfo
	}
	return nil
}

type pricing struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// priceItems snapshots line totals and the order's monetary fields. All
// arithmetic is decimal; tax is rounded to two minor units. Shipping and
// discount are flat zero for now.
func priceItems(items []CheckoutItem, taxRate decimal.Decimal) ([]domain.OrderItem, pricing) {
	subtotal := decimal.Zero
	lines := make([]domain.OrderItem, 0, len(items))
	for _, in := range items {
		lineTotal := in.UnitPrice.Mul(decimal.NewFromInt32(in.Quantity))
		lines = append(lines, domain.OrderItem{
			ProductID: in.ProductID,
			VariantID: in.VariantID,
			Name:      in.Name,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
			LineTotal: lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}

	tax := subtotal.Mul(taxRate).Round(2)
	shipping := decimal.Zero
	discount := decimal.Zero
	return lines, pricing{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Discount: discount,
		Total:    subtotal.Add(tax).Add(shipping).Sub(discount),
	}
}

// newOrderNumber builds the customer-facing number: date prefix plus a
// random suffix. Uniqueness is enforced by the DB index, not here.
func newOrderNumber(t time.Time) string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("ORD-%s-%s", t.UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(buf)))
}
