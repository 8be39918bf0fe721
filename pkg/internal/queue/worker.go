package queue

import (
	"context"
	"time"

	"github.com/openballot/ballotbox/pkg/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Worker drains the dispatch queue, one claimed payload at a time, and
// reports the outcome back so redelivery scheduling stays in the queue.
type Worker struct {
	deliverer Deliverer
	interval  time.Duration
	timeout   time.Duration
}

func NewWorker(deliverer Deliverer) *Worker {
	interval := viper.GetDuration("sync.poll_interval")
	if interval <= 0 {
		interval = 5 * time.Second
	}
	timeout := viper.GetDuration("sync.attempt_timeout")
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Worker{deliverer: deliverer, interval: interval, timeout: timeout}
}

// Run polls until the context is canceled. When a claim comes back empty the
// worker idles for one interval; otherwise it keeps draining.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		delivery, err := ClaimNext(ctx)
		if err != nil {
			log.Error().Err(err).Msg("An error occurred when claiming a sync delivery...")
			w.idle(ctx)
			continue
		}
		if delivery == nil {
			w.idle(ctx)
			continue
		}

		w.process(ctx, *delivery)
	}
}

func (w *Worker) process(ctx context.Context, delivery models.SyncDelivery) {
	attemptCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	payload := delivery.Payload.Data()

	if err := w.deliverer.Deliver(attemptCtx, payload); err != nil {
		log.Warn().
			Err(err).
			Str("message_id", delivery.MessageID).
			Int("attempts", delivery.Attempts).
			Msg("Sync delivery attempt failed, scheduling redelivery...")
		if err := Fail(ctx, delivery, err); err != nil {
			log.Error().Err(err).Str("message_id", delivery.MessageID).
				Msg("An error occurred when rescheduling a sync delivery...")
		}
		return
	}

	if err := Ack(ctx, delivery); err != nil {
		// The remote accepted the payload but the ack did not stick; the
		// item will be redelivered, which at-least-once permits.
		log.Error().Err(err).Str("message_id", delivery.MessageID).
			Msg("An error occurred when acking a sync delivery...")
	}
}

func (w *Worker) idle(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.interval):
	}
}
