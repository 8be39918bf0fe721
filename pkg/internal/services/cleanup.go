package services

import (
	"context"
	"time"

	"github.com/openballot/ballotbox/pkg/internal/queue"
	"github.com/rs/zerolog/log"
)

// DoAutoDatabaseCleanup is the hourly maintenance pass: deliveries whose
// worker died between claim and ack are handed back to the queue, and the
// dead-letter backlog is surfaced for operators.
func DoAutoDatabaseCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	requeued, err := queue.RequeueStuck(ctx, 10*time.Minute)
	if err != nil {
		log.Error().Err(err).Msg("An error occurred when requeueing stuck deliveries...")
	} else if requeued > 0 {
		log.Info().Int64("count", requeued).Msg("Requeued stuck sync deliveries.")
	}

	dead, err := queue.CountDead(ctx)
	if err != nil {
		log.Error().Err(err).Msg("An error occurred when counting dead-letter deliveries...")
	} else if dead > 0 {
		log.Warn().Int64("count", dead).Msg("Dead-letter sync deliveries are waiting for inspection.")
	}
}
