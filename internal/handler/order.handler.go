package handler

import (
	"errors"
	"net/http"
	"time"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderHandler struct {
	orders service.OrderService
}

func NewOrderHandler(orders service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type checkoutItemRequest struct {
	ProductID string          `json:"product_id" binding:"required"`
	VariantID string          `json:"variant_id"`
	Name      string          `json:"name"`
	Quantity  int32           `json:"quantity" binding:"required"`
	UnitPrice decimal.Decimal `json:"unit_price" binding:"required"`
}

type checkoutRequest struct {
	Items        []checkoutItemRequest `json:"items" binding:"required"`
	CustomerInfo struct {
		Email           string          `json:"email" binding:"required"`
		ShippingAddress domain.Address  `json:"shipping_address" binding:"required"`
		BillingAddress  *domain.Address `json:"billing_address"`
		Notes           string          `json:"notes"`
	} `json:"customer_info" binding:"required"`
}

func (h *OrderHandler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	items := make([]service.CheckoutItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.CheckoutItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	result, err := h.orders.Checkout(c.Request.Context(), service.CheckoutInput{
		Items: items,
		Customer: service.CustomerInfo{
			Email:           req.CustomerInfo.Email,
			ShippingAddress: req.CustomerInfo.ShippingAddress,
			BillingAddress:  req.CustomerInfo.BillingAddress,
			Notes:           req.CustomerInfo.Notes,
		},
	})

	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{
			"client_token": result.ClientToken,
			"order_id":     result.OrderID,
			"order_number": result.OrderNumber,
			"total":        result.Total,
		})
	case errors.Is(err, service.ErrInvalidItems), errors.Is(err, service.ErrMissingCustomerInfo):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrGatewayUnavailable):
		// No attempt token was ever issued, so the customer can safely
		// retry checkout.
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     "payment not started, please retry checkout",
			"retryable": true,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), id)
	h.respondOrder(c, order, err)
}

func (h *OrderHandler) GetOrderByNumber(c *gin.Context) {
	order, err := h.orders.GetOrderByNumber(c.Request.Context(), c.Param("orderNumber"))
	h.respondOrder(c, order, err)
}

func (h *OrderHandler) respondOrder(c *gin.Context, order *domain.Order, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, toOrderResponse(order))
	case errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type shipRequest struct {
	TrackingNumber string `json:"tracking_number" binding:"required"`
}

func (h *OrderHandler) Ship(c *gin.Context) {
	var req shipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tracking_number is required"})
		return
	}
	h.applyTransition(c, func(id uuid.UUID) (bool, error) {
		return h.orders.Ship(c.Request.Context(), id, req.TrackingNumber)
	})
}

func (h *OrderHandler) Deliver(c *gin.Context) {
	h.applyTransition(c, func(id uuid.UUID) (bool, error) {
		return h.orders.Deliver(c.Request.Context(), id)
	})
}

func (h *OrderHandler) Refund(c *gin.Context) {
	h.applyTransition(c, func(id uuid.UUID) (bool, error) {
		return h.orders.Refund(c.Request.Context(), id)
	})
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	h.applyTransition(c, func(id uuid.UUID) (bool, error) {
		return h.orders.Cancel(c.Request.Context(), id)
	})
}

// applyTransition runs a guarded fulfillment transition. A guard miss is
// reported as applied=false with 200, never as an error.
func (h *OrderHandler) applyTransition(c *gin.Context, apply func(uuid.UUID) (bool, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	applied, err := apply(id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"order_id": id, "applied": applied})
	case errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type orderItemResponse struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id,omitempty"`
	Name      string          `json:"name"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type orderResponse struct {
	ID             uuid.UUID           `json:"id"`
	OrderNumber    string              `json:"order_number"`
	Status         string              `json:"status"`
	PaymentStatus  string              `json:"payment_status"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	Tax            decimal.Decimal     `json:"tax"`
	Shipping       decimal.Decimal     `json:"shipping"`
	Discount       decimal.Decimal     `json:"discount"`
	Total          decimal.Decimal     `json:"total"`
	Currency       string              `json:"currency"`
	TrackingNumber string              `json:"tracking_number,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	ShippedAt      *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time          `json:"delivered_at,omitempty"`
	Items          []orderItemResponse `json:"items"`
}

func toOrderResponse(order *domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		})
	}
	return orderResponse{
		ID:             order.ID,
		OrderNumber:    order.OrderNumber,
		Status:         string(order.Status),
		PaymentStatus:  string(order.PaymentStatus),
		Subtotal:       order.Subtotal,
		Tax:            order.Tax,
		Shipping:       order.Shipping,
		Discount:       order.Discount,
		Total:          order.Total,
		Currency:       order.Currency,
		TrackingNumber: order.TrackingNumber,
		CreatedAt:      order.CreatedAt,
		ShippedAt:      order.ShippedAt,
		DeliveredAt:    order.DeliveredAt,
		Items:          items,
	}
}
