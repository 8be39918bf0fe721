package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openballot/ballotbox/pkg/internal/database"
	"github.com/openballot/ballotbox/pkg/internal/limiter"
	"github.com/openballot/ballotbox/pkg/internal/models"
	"github.com/openballot/ballotbox/pkg/internal/queue"
	"github.com/openballot/ballotbox/pkg/internal/stream"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

// Wired at boot. A nil Streams disables the vote event stream; Limiter is
// always set (memory fallback when redis is absent).
var (
	Limiter limiter.RateLimiter
	Streams *stream.Publisher
)

// VotePolicy is a per-call snapshot of the mutable voting switches, captured
// from configuration when the cast starts so concurrent config reloads cannot
// change the rules mid-flight.
type VotePolicy struct {
	VotingEnabled   bool
	AllowAnonymous  bool
	MaxVotesPerHour int
	RateWindow      time.Duration
	CastTimeout     time.Duration
}

func PolicyFromConfig() VotePolicy {
	policy := VotePolicy{
		VotingEnabled:   viper.GetBool("voting.enabled"),
		AllowAnonymous:  viper.GetBool("voting.allow_anonymous"),
		MaxVotesPerHour: viper.GetInt("voting.max_votes_per_hour"),
		RateWindow:      viper.GetDuration("voting.rate_window"),
		CastTimeout:     viper.GetDuration("voting.cast_timeout"),
	}
	if policy.RateWindow <= 0 {
		policy.RateWindow = time.Hour
	}
	if policy.CastTimeout <= 0 {
		policy.CastTimeout = 5 * time.Second
	}
	return policy
}

// CastVote runs the full acceptance ladder for one vote. Every failure mode
// maps to one sentinel from errors.go; the duplicate check and the insert
// share one bounded transaction so two concurrent casts for the same
// (question, user) cannot both commit.
func CastVote(ctx context.Context, policy VotePolicy, questionIdentifier, optionIdentifier, userID string) (models.Vote, error) {
	var vote models.Vote

	if !policy.VotingEnabled {
		return vote, ErrVotingDisabled
	}
	if userID == "" && !policy.AllowAnonymous {
		return vote, ErrAnonymousNotAllowed
	}

	if allowed, err := Limiter.Allow(ctx, userID, policy.MaxVotesPerHour, policy.RateWindow); err != nil {
		return vote, fmt.Errorf("%w: %v", ErrInternal, err)
	} else if !allowed {
		return vote, ErrRateLimited
	}

	question, err := GetQuestion(ctx, questionIdentifier)
	if err != nil {
		return vote, err
	}
	if !question.IsActive || question.Ended(time.Now()) {
		return vote, ErrQuestionInactive
	}

	var option models.Option

	txCtx, cancel := context.WithTimeout(ctx, policy.CastTimeout)
	defer cancel()

	err = database.C.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		// Containment re-checked inside the transaction: the option must
		// belong to this very question.
		if err := tx.Where("question_id = ? AND identifier = ?", question.ID, optionIdentifier).
			First(&option).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOptionInvalid
			}
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}

		var existing models.Vote
		if err := tx.Where("question_id = ? AND user_id = ?", question.ID, userID).
			First(&existing).Error; err == nil {
			return ErrAlreadyVoted
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}

		vote = models.Vote{
			QuestionID: question.ID,
			OptionID:   option.ID,
			UserID:     userID,
		}
		if err := tx.Create(&vote).Error; err != nil {
			// The unique index closes the race the pre-check cannot: a
			// concurrent winner turns this insert into a conflict, not a
			// storage failure.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyVoted
			}
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}

		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrOptionInvalid), errors.Is(err, ErrAlreadyVoted), errors.Is(err, ErrInternal):
			return vote, err
		default:
			return vote, fmt.Errorf("%w: %v", ErrInternal, err)
		}
	}

	emitVoteAccepted(vote, question, option)

	return vote, nil
}

// emitVoteAccepted fans the committed vote out to the downstream side
// effects. All of them are best-effort: the vote stands even when they fail,
// the anomaly is only logged. A missed cache invalidation heals through TTL;
// a missed enqueue is a data-loss signal worth an operator's attention.
func emitVoteAccepted(vote models.Vote, question models.Question, option models.Option) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := InvalidateQuestionCaches(ctx, question.Identifier); err != nil {
		log.Warn().Err(err).
			Str("question", question.Identifier).
			Msg("An error occurred when invalidating question caches...")
	}

	payload := models.SyncPayload{
		VoteID:             vote.ID,
		QuestionID:         question.ID,
		OptionID:           option.ID,
		UserID:             vote.UserID,
		Timestamp:          vote.CreatedAt,
		QuestionIdentifier: question.Identifier,
		OptionIdentifier:   option.Identifier,
	}
	if _, err := queue.Enqueue(ctx, payload); err != nil {
		log.Error().Err(err).
			Uint("vote_id", vote.ID).
			Str("question", question.Identifier).
			Msg("Vote accepted but its sync payload could not be enqueued...")
	}

	if Streams != nil {
		if err := Streams.PublishVoteAccepted(ctx, vote, question, option); err != nil {
			log.Warn().Err(err).
				Uint("vote_id", vote.ID).
				Msg("An error occurred when publishing the vote event...")
		}
	}
}

// HasUserVoted is a read-only probe over the ledger; it never mutates state.
func HasUserVoted(ctx context.Context, questionIdentifier, userID string) (bool, error) {
	question, err := GetQuestion(ctx, questionIdentifier)
	if err != nil {
		return false, err
	}

	var count int64
	if err := database.C.WithContext(ctx).Model(&models.Vote{}).
		Where("question_id = ? AND user_id = ?", question.ID, userID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	return count > 0, nil
}

// GetUserVote returns the user's vote on a question, option included.
func GetUserVote(ctx context.Context, questionIdentifier, userID string) (models.Vote, error) {
	var vote models.Vote

	question, err := GetQuestion(ctx, questionIdentifier)
	if err != nil {
		return vote, err
	}

	if err := database.C.WithContext(ctx).
		Preload("Option").
		Where("question_id = ? AND user_id = ?", question.ID, userID).
		First(&vote).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return vote, err
		}
		return vote, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	return vote, nil
}
