package handler

import (
	"errors"
	"io"
	"net/http"

	"storefront-checkout/internal/service"

	"github.com/gin-gonic/gin"
)

// SignatureHeader carries the hex HMAC-SHA256 FastPay computes over the raw
// request body.
const SignatureHeader = "Fastpay-Signature"

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	webhooks service.WebhookService
}

func NewWebhookHandler(webhooks service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// Handle receives a FastPay event. The body is passed through verbatim:
// signature verification needs the exact bytes on the wire, so nothing may
// parse or re-encode it first.
func (h *WebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	err = h.webhooks.HandleEvent(c.Request.Context(), body, c.GetHeader(SignatureHeader))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, service.ErrBadSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
	default:
		// Transient fault: a non-2xx makes the gateway redeliver.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
