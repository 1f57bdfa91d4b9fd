package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOrderService struct {
	checkoutResult *service.CheckoutResult
	checkoutErr    error
	order          *domain.Order
	orderErr       error
	applied        bool
	transitionErr  error
}

func (s *stubOrderService) Checkout(ctx context.Context, input service.CheckoutInput) (*service.CheckoutResult, error) {
	return s.checkoutResult, s.checkoutErr
}

func (s *stubOrderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.order, s.orderErr
}

func (s *stubOrderService) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return s.order, s.orderErr
}

func (s *stubOrderService) Ship(ctx context.Context, id uuid.UUID, trackingNumber string) (bool, error) {
	return s.applied, s.transitionErr
}

func (s *stubOrderService) Deliver(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.applied, s.transitionErr
}

func (s *stubOrderService) Refund(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.applied, s.transitionErr
}

func (s *stubOrderService) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.applied, s.transitionErr
}

func orderRouter(svc service.OrderService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewOrderHandler(svc)
	r.POST("/api/checkout", h.Checkout)
	r.GET("/api/orders/:id", h.GetOrder)
	r.GET("/api/orders/number/:orderNumber", h.GetOrderByNumber)
	r.POST("/api/admin/orders/:id/ship", h.Ship)
	return r
}

func checkoutBody() []byte {
	body, _ := json.Marshal(map[string]any{
		"items": []map[string]any{
			{"product_id": "p1", "name": "Mug", "quantity": 2, "unit_price": "25.00"},
		},
		"customer_info": map[string]any{
			"email": "customer@example.com",
			"shipping_address": map[string]any{
				"name": "Jamie Doe", "line1": "1 Main St", "city": "Springfield",
				"postal_code": "12345", "country": "US",
			},
		},
	})
	return body
}

func TestCheckoutReturnsToken(t *testing.T) {
	orderID := uuid.New()
	r := orderRouter(&stubOrderService{
		checkoutResult: &service.CheckoutResult{
			ClientToken: "tok_abc",
			OrderID:     orderID,
			OrderNumber: "ORD-20260831-AB12CD34",
			Total:       decimal.RequireFromString("64.80"),
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/checkout", bytes.NewReader(checkoutBody()))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "tok_abc", resp["client_token"])
	assert.Equal(t, "ORD-20260831-AB12CD34", resp["order_number"])
}

func TestCheckoutClientErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid items", service.ErrInvalidItems, http.StatusUnprocessableEntity},
		{"missing customer info", service.ErrMissingCustomerInfo, http.StatusUnprocessableEntity},
		{"gateway down", service.ErrGatewayUnavailable, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := orderRouter(&stubOrderService{checkoutErr: tc.err})

			req := httptest.NewRequest(http.MethodPost, "/api/checkout", bytes.NewReader(checkoutBody()))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestCheckoutGatewayFailureIsMarkedRetryable(t *testing.T) {
	r := orderRouter(&stubOrderService{checkoutErr: service.ErrGatewayUnavailable})

	req := httptest.NewRequest(http.MethodPost, "/api/checkout", bytes.NewReader(checkoutBody()))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["retryable"])
}

func TestGetOrderResponses(t *testing.T) {
	order := &domain.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD-20260831-AB12CD34",
		Status:        domain.OrderProcessing,
		PaymentStatus: domain.PaymentPaid,
		Subtotal:      decimal.RequireFromString("60.00"),
		Tax:           decimal.RequireFromString("4.80"),
		Total:         decimal.RequireFromString("64.80"),
		Currency:      "USD",
		CreatedAt:     time.Now(),
		Items: []domain.OrderItem{
			{ProductID: "p1", Name: "Mug", Quantity: 2,
				UnitPrice: decimal.RequireFromString("25.00"),
				LineTotal: decimal.RequireFromString("50.00")},
		},
	}

	t.Run("found by id", func(t *testing.T) {
		r := orderRouter(&stubOrderService{order: order})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orders/"+order.ID.String(), nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp orderResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, order.OrderNumber, resp.OrderNumber)
		require.Len(t, resp.Items, 1)
		assert.True(t, resp.Items[0].LineTotal.Equal(decimal.RequireFromString("50.00")))
	})

	t.Run("found by number", func(t *testing.T) {
		r := orderRouter(&stubOrderService{order: order})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orders/number/"+order.OrderNumber, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("not found", func(t *testing.T) {
		r := orderRouter(&stubOrderService{orderErr: service.ErrOrderNotFound})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orders/"+uuid.NewString(), nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		r := orderRouter(&stubOrderService{})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orders/not-a-uuid", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestShipReportsGuardMissAsNoOp(t *testing.T) {
	r := orderRouter(&stubOrderService{applied: false})

	body, _ := json.Marshal(map[string]string{"tracking_number": "TRACK123"})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/orders/"+uuid.NewString()+"/ship", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["applied"])
}
