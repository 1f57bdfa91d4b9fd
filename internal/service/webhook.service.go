package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"storefront-checkout/internal/domain"
	"storefront-checkout/internal/repo"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var webhookLogger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "webhook_service").Logger()

// ErrBadSignature means the request could not be authenticated. It is the
// only webhook outcome that must be rejected with a client error.
var ErrBadSignature = errors.New("webhook signature verification failed")

// WebhookService reconciles gateway payment events against orders. Events
// arrive at-least-once and possibly out of order; the repo's guarded
// transitions are the sole correctness mechanism, so concurrent deliveries
// for the same order need no locking here.
type WebhookService interface {
	// HandleEvent authenticates and applies one raw event body. A nil
	// return acknowledges the event (including every no-op case); an error
	// other than ErrBadSignature signals a transient fault the gateway
	// should retry.
	HandleEvent(ctx context.Context, body []byte, signature string) error
}

type webhookService struct {
	secret    []byte
	orderRepo repo.OrderRepo
}

func NewWebhookService(secret string, orderRepo repo.OrderRepo) WebhookService {
	return &webhookService{
		secret:    []byte(secret),
		orderRepo: orderRepo,
	}
}

func (s *webhookService) HandleEvent(ctx context.Context, body []byte, signature string) error {
	// The signature covers the exact bytes FastPay sent. Verification must
	// happen before parsing: re-encoding a parsed body would change key
	// order and number formatting and break the MAC.
	if !s.verifySignature(body, signature) {
		webhookLogger.Warn().Msg("rejected webhook with missing or invalid signature")
		return ErrBadSignature
	}

	var event domain.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		// Authenticated but unparseable. Retrying will never fix it, so
		// acknowledge and leave a trace.
		webhookLogger.Warn().Err(err).Msg("acknowledged malformed webhook body")
		return nil
	}

	switch event.Kind {
	case domain.EventPaymentSucceeded:
		return s.applyOutcome(ctx, event, s.orderRepo.MarkPaid)
	case domain.EventPaymentFailed:
		return s.applyOutcome(ctx, event, s.orderRepo.MarkFailed)
	default:
		webhookLogger.Debug().Str("kind", event.Kind).Msg("ignoring unhandled event kind")
		return nil
	}
}

type transitionFn func(ctx context.Context, orderID uuid.UUID) (bool, error)

func (s *webhookService) applyOutcome(ctx context.Context, event domain.WebhookEvent, apply transitionFn) error {
	rawID := event.Attempt.Metadata[domain.MetadataOrderID]
	orderID, err := uuid.Parse(rawID)
	if err != nil {
		webhookLogger.Warn().
			Str("event_id", event.ID).
			Str("kind", event.Kind).
			Str("order_id", rawID).
			Msg("event carries no resolvable order id, acknowledging")
		return nil
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("resolve order %s: %w", orderID, err)
	}
	if order == nil {
		webhookLogger.Warn().
			Str("event_id", event.ID).
			Str("kind", event.Kind).
			Str("order_id", orderID.String()).
			Msg("event references unknown order, acknowledging")
		return nil
	}

	applied, err := apply(ctx, orderID)
	if err != nil {
		return fmt.Errorf("apply %s to order %s: %w", event.Kind, orderID, err)
	}

	if applied {
		webhookLogger.Info().
			Str("event_id", event.ID).
			Str("kind", event.Kind).
			Str("order_id", orderID.String()).
			Msg("payment outcome applied")
	} else {
		// Redelivery or a stale event racing a newer one. The guard held,
		// nothing changed, and the gateway must not retry.
		webhookLogger.Debug().
			Str("event_id", event.ID).
			Str("kind", event.Kind).
			Str("order_id", orderID.String()).
			Msg("transition was a no-op")
	}
	return nil
}

func (s *webhookService) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignBody computes the signature FastPay attaches to a body. Exported for
// test fixtures and the local dev sender.
func SignBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
