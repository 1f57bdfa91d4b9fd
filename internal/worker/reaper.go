package worker

import (
	"context"
	"os"
	"time"

	"storefront-checkout/internal/infrastructure/payment"
	"storefront-checkout/internal/repo"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "reaper").Logger()

const sweepBatchSize = 100

// Reaper resolves orders stuck in (pending, pending): a checkout whose
// gateway call failed or timed out, or whose webhook never arrived. It asks
// FastPay for the intent's real status before deciding, so an order whose
// charge actually went through is promoted to paid instead of cancelled.
type Reaper struct {
	orderRepo repo.OrderRepo
	gateway   payment.PaymentGateway
	interval  time.Duration
	maxAge    time.Duration
}

func NewReaper(
	orderRepo repo.OrderRepo,
	gateway payment.PaymentGateway,
	interval time.Duration,
	maxAge time.Duration,
) *Reaper {
	return &Reaper{
		orderRepo: orderRepo,
		gateway:   gateway,
		interval:  interval,
		maxAge:    maxAge,
	}
}

func (w *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logger.Info().
		Dur("interval", w.interval).
		Dur("max_age", w.maxAge).
		Msg("reaper started")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("reaper stopped")
			return
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

// Sweep runs one pass over stuck orders. All transitions go through the
// repo's guarded writes, so a webhook landing mid-sweep wins the race
// cleanly and the reaper's write becomes a no-op.
func (w *Reaper) Sweep(ctx context.Context) error {
	stuck, err := w.orderRepo.FindStuckOrders(ctx, w.maxAge, sweepBatchSize)
	if err != nil {
		return err
	}
	if len(stuck) == 0 {
		return nil
	}

	logger.Info().Int("count", len(stuck)).Msg("found stuck orders")

	for _, order := range stuck {
		// No intent id means the gateway call never succeeded: nothing was
		// ever charged, cancel outright.
		if order.PaymentIntentID == "" {
			if _, err := w.orderRepo.MarkFailed(ctx, order.ID); err != nil {
				logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to cancel orphaned order")
			} else {
				logger.Info().Str("order_id", order.ID.String()).Msg("cancelled orphaned order without payment attempt")
			}
			continue
		}

		status, err := w.gateway.CheckStatus(ctx, order.PaymentIntentID)
		if err != nil {
			// Transient gateway trouble: leave it for the next sweep.
			logger.Warn().Err(err).Str("order_id", order.ID.String()).Msg("could not check intent status")
			continue
		}

		switch status {
		case payment.IntentSucceeded:
			// Ghost order: charged but the webhook never landed.
			applied, err := w.orderRepo.MarkPaid(ctx, order.ID)
			if err != nil {
				logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to mark ghost order paid")
				continue
			}
			if applied {
				logger.Info().Str("order_id", order.ID.String()).Msg("recovered ghost order as paid")
			}
		default:
			// Failed or abandoned past the age bound.
			applied, err := w.orderRepo.MarkFailed(ctx, order.ID)
			if err != nil {
				logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to cancel stale order")
				continue
			}
			if applied {
				logger.Info().
					Str("order_id", order.ID.String()).
					Str("intent_status", status).
					Msg("cancelled stale order")
			}
		}
	}
	return nil
}
