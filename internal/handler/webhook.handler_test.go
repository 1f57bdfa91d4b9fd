package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront-checkout/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubWebhookService struct {
	gotBody      []byte
	gotSignature string
	err          error
}

func (s *stubWebhookService) HandleEvent(ctx context.Context, body []byte, signature string) error {
	s.gotBody = append([]byte{}, body...)
	s.gotSignature = signature
	return s.err
}

func webhookRouter(svc service.WebhookService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/fastpay", NewWebhookHandler(svc).Handle)
	return r
}

func postWebhook(r *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/fastpay", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookHandlerAcknowledges(t *testing.T) {
	stub := &stubWebhookService{}
	r := webhookRouter(stub)

	body := []byte(`{"kind":"payment_intent.succeeded"}`)
	w := postWebhook(r, body, "sig")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
	assert.Equal(t, "sig", stub.gotSignature)
}

func TestWebhookHandlerPassesRawBodyThrough(t *testing.T) {
	stub := &stubWebhookService{}
	r := webhookRouter(stub)

	// Odd whitespace and key order must reach the verifier untouched.
	body := []byte("{ \"kind\" :\t\"payment_intent.succeeded\",\n\"id\":\"evt_1\" }")
	postWebhook(r, body, "sig")

	assert.Equal(t, body, stub.gotBody)
}

func TestWebhookHandlerRejectsBadSignature(t *testing.T) {
	stub := &stubWebhookService{err: service.ErrBadSignature}
	r := webhookRouter(stub)

	w := postWebhook(r, []byte(`{}`), "bogus")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandlerSignalsRetryOnInternalFault(t *testing.T) {
	stub := &stubWebhookService{err: errors.New("db down")}
	r := webhookRouter(stub)

	w := postWebhook(r, []byte(`{}`), "sig")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
