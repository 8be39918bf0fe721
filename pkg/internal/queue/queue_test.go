package queue_test

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/openballot/ballotbox/pkg/internal/database"
	"github.com/openballot/ballotbox/pkg/internal/models"
	"github.com/openballot/ballotbox/pkg/internal/queue"
	"github.com/openballot/ballotbox/pkg/internal/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if os.Getenv("SKIP_INTEGRATION") != "" {
		os.Exit(0)
	}

	teardown, err := testutil.StartDatabase()
	if err != nil {
		log.Fatalf("failed to prepare test database: %v", err)
	}
	code := m.Run()
	teardown()
	os.Exit(code)
}

func newPayload(voteID uint) models.SyncPayload {
	return models.SyncPayload{
		VoteID:             voteID,
		QuestionID:         1,
		OptionID:           2,
		UserID:             "alice",
		Timestamp:          time.Now(),
		QuestionIdentifier: "favorite-color",
		OptionIdentifier:   "red",
	}
}

func forceDue(t *testing.T, id uint) {
	t.Helper()
	require.NoError(t, database.C.Model(&models.SyncDelivery{}).
		Where("id = ?", id).
		Update("next_attempt_at", time.Now().Add(-time.Second)).Error)
}

func TestClaimIsSingleFlight(t *testing.T) {
	testutil.TruncateAll(t)
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, newPayload(1))
	require.NoError(t, err)

	first, err := queue.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, models.DeliveryStateInFlight, first.State)
	assert.Equal(t, 1, first.Attempts)

	// The payload is in flight, nobody else may take it.
	second, err := queue.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestAckRemovesDelivery(t *testing.T) {
	testutil.TruncateAll(t)
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, newPayload(2))
	require.NoError(t, err)

	claimed, err := queue.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, queue.Ack(ctx, *claimed))

	var count int64
	require.NoError(t, database.C.Unscoped().Model(&models.SyncDelivery{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestFailSchedulesRedelivery(t *testing.T) {
	testutil.TruncateAll(t)
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, newPayload(3))
	require.NoError(t, err)

	claimed, err := queue.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, queue.Fail(ctx, *claimed, errors.New("endpoint timed out")))

	var delivery models.SyncDelivery
	require.NoError(t, database.C.First(&delivery, claimed.ID).Error)
	assert.Equal(t, models.DeliveryStatePending, delivery.State)
	assert.Contains(t, delivery.LastError, "timed out")
	assert.True(t, delivery.NextAttemptAt.After(time.Now()), "redelivery must be delayed")

	// Not due yet, so the queue hands out nothing.
	next, err := queue.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)

	// Once due again, the same payload comes back with a bumped attempt count.
	forceDue(t, delivery.ID)
	next, err = queue.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, claimed.MessageID, next.MessageID)
	assert.Equal(t, 2, next.Attempts)
}

func TestExhaustedDeliveryGoesDead(t *testing.T) {
	testutil.TruncateAll(t)
	ctx := context.Background()

	viper.Set("sync.max_attempts", 2)
	defer viper.Set("sync.max_attempts", nil)

	_, err := queue.Enqueue(ctx, newPayload(4))
	require.NoError(t, err)

	for attempt := 1; attempt <= 2; attempt++ {
		claimed, err := queue.ClaimNext(ctx)
		require.NoError(t, err)
		require.NotNil(t, claimed, "attempt %d should be claimable", attempt)
		require.NoError(t, queue.Fail(ctx, *claimed, errors.New("remote rejected payload")))
		forceDue(t, claimed.ID)
	}

	// The retry budget is spent: the row is parked, never claimable, never gone.
	next, err := queue.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)

	var delivery models.SyncDelivery
	require.NoError(t, database.C.First(&delivery).Error)
	assert.Equal(t, models.DeliveryStateDead, delivery.State)

	dead, err := queue.CountDead(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}

type recordingDeliverer struct {
	mu        sync.Mutex
	delivered []models.SyncPayload
}

func (d *recordingDeliverer) Deliver(_ context.Context, payload models.SyncPayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delivered = append(d.delivered, payload)
	return nil
}

func (d *recordingDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.delivered)
}

func TestWorkerDeliversAndAcks(t *testing.T) {
	testutil.TruncateAll(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	viper.Set("sync.poll_interval", 10*time.Millisecond)
	defer viper.Set("sync.poll_interval", nil)

	_, err := queue.Enqueue(ctx, newPayload(6))
	require.NoError(t, err)

	deliverer := &recordingDeliverer{}
	go queue.NewWorker(deliverer).Run(ctx)

	require.Eventually(t, func() bool {
		return deliverer.count() == 1
	}, 5*time.Second, 20*time.Millisecond, "worker should pick the payload up")

	require.Eventually(t, func() bool {
		var count int64
		if err := database.C.Unscoped().Model(&models.SyncDelivery{}).Count(&count).Error; err != nil {
			return false
		}
		return count == 0
	}, 5*time.Second, 20*time.Millisecond, "acked delivery should leave the queue")

	assert.Equal(t, uint(6), deliverer.delivered[0].VoteID)
}

func TestRequeueStuckDeliveries(t *testing.T) {
	testutil.TruncateAll(t)
	ctx := context.Background()

	_, err := queue.Enqueue(ctx, newPayload(5))
	require.NoError(t, err)

	claimed, err := queue.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	// Simulate a worker that died half an hour ago holding the claim.
	stale := time.Now().Add(-30 * time.Minute)
	require.NoError(t, database.C.Model(&models.SyncDelivery{}).
		Where("id = ?", claimed.ID).
		Update("claimed_at", stale).Error)

	requeued, err := queue.RequeueStuck(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), requeued)

	next, err := queue.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, claimed.MessageID, next.MessageID)
}
