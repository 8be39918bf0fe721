package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openballot/ballotbox/pkg/internal/database"
	"github.com/openballot/ballotbox/pkg/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultMaxAttempts = 5
	baseBackoff        = 30 * time.Second
	maxBackoff         = time.Hour
)

func maxAttempts() int {
	if configured := viper.GetInt("sync.max_attempts"); configured > 0 {
		return configured
	}
	return DefaultMaxAttempts
}

// Backoff returns the redelivery delay after the given number of failed
// attempts: exponential from 30s, capped at an hour.
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := baseBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// Enqueue appends a payload in the pending state, ready for immediate
// delivery. Callers on the vote path treat failure as non-fatal.
func Enqueue(ctx context.Context, payload models.SyncPayload) (models.SyncDelivery, error) {
	delivery := models.SyncDelivery{
		MessageID:     uuid.NewString(),
		Payload:       datatypes.NewJSONType(payload),
		State:         models.DeliveryStatePending,
		NextAttemptAt: time.Now(),
	}

	if err := database.C.WithContext(ctx).Create(&delivery).Error; err != nil {
		return delivery, fmt.Errorf("failed to enqueue sync delivery: %w", err)
	}

	return delivery, nil
}

// ClaimNext moves the oldest due pending delivery into in_flight and returns
// it, or nil when the queue has nothing due. Single-flight per item comes
// from the row lock: concurrent claimers skip rows already locked by another
// transaction.
func ClaimNext(ctx context.Context) (*models.SyncDelivery, error) {
	var delivery models.SyncDelivery

	err := database.C.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("state = ? AND next_attempt_at <= ?", models.DeliveryStatePending, time.Now()).
			Order("id ASC").
			First(&delivery).Error; err != nil {
			return err
		}

		now := time.Now()
		delivery.State = models.DeliveryStateInFlight
		delivery.Attempts++
		delivery.ClaimedAt = &now

		return tx.Model(&models.SyncDelivery{}).
			Where("id = ?", delivery.ID).
			Updates(map[string]any{
				"state":      delivery.State,
				"attempts":   delivery.Attempts,
				"claimed_at": delivery.ClaimedAt,
			}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim sync delivery: %w", err)
	}

	return &delivery, nil
}

// Ack removes a delivered payload from the queue.
func Ack(ctx context.Context, delivery models.SyncDelivery) error {
	if err := database.C.WithContext(ctx).Unscoped().
		Delete(&models.SyncDelivery{}, delivery.ID).Error; err != nil {
		return fmt.Errorf("failed to remove acked delivery: %w", err)
	}
	return nil
}

// Fail returns an in-flight payload to the queue with a backoff, or parks it
// in the dead-letter state once the attempt budget is spent. Dead letters are
// kept for operator inspection, never silently discarded.
func Fail(ctx context.Context, delivery models.SyncDelivery, cause error) error {
	updates := map[string]any{
		"claimed_at": nil,
		"last_error": cause.Error(),
	}

	if delivery.Attempts >= maxAttempts() {
		updates["state"] = models.DeliveryStateDead
		log.Warn().
			Str("message_id", delivery.MessageID).
			Int("attempts", delivery.Attempts).
			Err(cause).
			Msg("Sync delivery exhausted its retry budget, moved to dead-letter...")
	} else {
		updates["state"] = models.DeliveryStatePending
		updates["next_attempt_at"] = time.Now().Add(Backoff(delivery.Attempts))
	}

	if err := database.C.WithContext(ctx).Model(&models.SyncDelivery{}).
		Where("id = ?", delivery.ID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to reschedule delivery: %w", err)
	}

	return nil
}

// RequeueStuck returns deliveries abandoned in-flight (a worker died between
// claim and ack) back to pending. Invoked from the maintenance cron.
func RequeueStuck(ctx context.Context, claimedBefore time.Duration) (int64, error) {
	threshold := time.Now().Add(-claimedBefore)

	result := database.C.WithContext(ctx).Model(&models.SyncDelivery{}).
		Where("state = ? AND claimed_at < ?", models.DeliveryStateInFlight, threshold).
		Updates(map[string]any{
			"state":           models.DeliveryStatePending,
			"claimed_at":      nil,
			"next_attempt_at": time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to requeue stuck deliveries: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// CountDead reports the dead-letter backlog.
func CountDead(ctx context.Context) (int64, error) {
	var count int64
	if err := database.C.WithContext(ctx).Model(&models.SyncDelivery{}).
		Where("state = ?", models.DeliveryStateDead).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
