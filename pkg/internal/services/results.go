package services

import (
	"context"
	"fmt"
	"math"

	localCache "github.com/openballot/ballotbox/pkg/internal/cache"
	"github.com/openballot/ballotbox/pkg/internal/database"
	"github.com/openballot/ballotbox/pkg/internal/models"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

type OptionResult struct {
	Identifier string  `json:"identifier"`
	Title      string  `json:"title"`
	Weight     int     `json:"weight"`
	Votes      int64   `json:"votes"`
	Percentage float64 `json:"percentage"`
}

type QuestionResults struct {
	QuestionIdentifier string         `json:"question_identifier"`
	Title              string         `json:"title"`
	TotalVotes         int64          `json:"total_votes"`
	Options            []OptionResult `json:"options"`
}

// TallyResults folds per-option vote counts into ordered results. Options are
// expected in display order (weight ascending, identifier as tiebreak), which
// the catalog queries already guarantee.
func TallyResults(question models.Question, counts map[uint]int64) QuestionResults {
	total := lo.Sum(lo.Values(counts))

	return QuestionResults{
		QuestionIdentifier: question.Identifier,
		Title:              question.Title,
		TotalVotes:         total,
		Options: lo.Map(question.Options, func(option models.Option, _ int) OptionResult {
			count := counts[option.ID]
			var percentage float64
			if total > 0 {
				percentage = math.Round(float64(count)/float64(total)*100*100) / 100
			}
			return OptionResult{
				Identifier: option.Identifier,
				Title:      option.Title,
				Weight:     option.Weight,
				Votes:      count,
				Percentage: percentage,
			}
		}),
	}
}

// GetResults aggregates the ledger for one question. Unavailable outcomes
// (missing, inactive, results hidden) are returned as errors and never enter
// the cache.
func GetResults(ctx context.Context, identifier string) (QuestionResults, error) {
	question, err := GetQuestion(ctx, identifier)
	if err != nil {
		return QuestionResults{}, err
	}
	if !question.IsActive || !question.ShowResults {
		return QuestionResults{}, ErrResultsUnavailable
	}

	marshal := localCache.Use()

	if hit, err := marshal.Get(ctx, localCache.KeyResults(identifier), new(QuestionResults)); err == nil {
		return *hit.(*QuestionResults), nil
	}

	counts, err := CountVotesByOption(ctx, question)
	if err != nil {
		return QuestionResults{}, err
	}

	results := TallyResults(question, counts)

	if err := marshal.Set(ctx, localCache.KeyResults(identifier), results,
		store.WithExpiration(localCache.ResultsTTL),
		store.WithTags([]string{localCache.TagQuestion(identifier), localCache.TagQuestionResults}),
	); err != nil {
		log.Warn().Err(err).Str("question", identifier).Msg("An error occurred when caching question results...")
	}

	return results, nil
}

// InvalidateQuestionCaches runs after every accepted vote: the exact results
// key is dropped first, then every entry tagged with the question is swept.
// Administrative edits reuse the same entry point.
func InvalidateQuestionCaches(ctx context.Context, identifier string) error {
	marshal := localCache.Use()

	if err := marshal.Delete(ctx, localCache.KeyResults(identifier)); err != nil {
		return fmt.Errorf("failed to delete results cache entry: %w", err)
	}

	if err := marshal.Invalidate(ctx, store.WithInvalidateTags([]string{
		localCache.TagQuestion(identifier),
		localCache.TagQuestionResults,
	})); err != nil {
		return fmt.Errorf("failed to invalidate question tags: %w", err)
	}

	return nil
}

// CountVotes returns the ledger total for a question.
func CountVotes(ctx context.Context, question models.Question) (int64, error) {
	var count int64
	if err := database.C.WithContext(ctx).Model(&models.Vote{}).
		Where("question_id = ?", question.ID).
		Count(&count).Error; err != nil {
		return count, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return count, nil
}

// CountVotesByOption returns the per-option tallies for a question.
func CountVotesByOption(ctx context.Context, question models.Question) (map[uint]int64, error) {
	var rows []struct {
		OptionID uint
		Total    int64
	}
	if err := database.C.WithContext(ctx).Model(&models.Vote{}).
		Select("option_id, COUNT(*) AS total").
		Where("question_id = ?", question.ID).
		Group("option_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.OptionID] = row.Total
	}

	return counts, nil
}
