package services

import (
	"context"
	"errors"
	"fmt"

	localCache "github.com/openballot/ballotbox/pkg/internal/cache"
	"github.com/openballot/ballotbox/pkg/internal/database"
	"github.com/openballot/ballotbox/pkg/internal/models"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ListActiveQuestions returns the active question catalog, memoized under the
// question_list tag so administrative edits can drop the whole listing.
func ListActiveQuestions(ctx context.Context) ([]models.Question, error) {
	marshal := localCache.Use()

	if hit, err := marshal.Get(ctx, localCache.KeyActiveQuestions, new([]models.Question)); err == nil {
		return *hit.(*[]models.Question), nil
	}

	var questions []models.Question
	if err := database.C.WithContext(ctx).
		Preload("Options", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("options.weight ASC, options.identifier ASC")
		}).
		Where("is_active = ?", true).
		Order("questions.identifier ASC").
		Find(&questions).Error; err != nil {
		return questions, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	if err := marshal.Set(ctx, localCache.KeyActiveQuestions, questions,
		store.WithExpiration(localCache.ActiveQuestionsTTL),
		store.WithTags([]string{localCache.TagQuestionList}),
	); err != nil {
		log.Warn().Err(err).Msg("An error occurred when caching active questions...")
	}

	return questions, nil
}

// GetQuestion resolves a question by its stable identifier, options included.
func GetQuestion(ctx context.Context, identifier string) (models.Question, error) {
	marshal := localCache.Use()

	if hit, err := marshal.Get(ctx, localCache.KeyQuestion(identifier), new(models.Question)); err == nil {
		return *hit.(*models.Question), nil
	}

	var question models.Question
	if err := database.C.WithContext(ctx).
		Preload("Options", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("options.weight ASC, options.identifier ASC")
		}).
		Where("identifier = ?", identifier).
		First(&question).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return question, ErrQuestionNotFound
		}
		return question, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	if err := marshal.Set(ctx, localCache.KeyQuestion(identifier), question,
		store.WithExpiration(localCache.QuestionTTL),
		store.WithTags([]string{localCache.TagQuestion(identifier)}),
	); err != nil {
		log.Warn().Err(err).Str("question", identifier).Msg("An error occurred when caching question...")
	}

	return question, nil
}

// GetQuestionOption checks option containment: the option must exist inside
// the resolved question, never merely by its own identifier.
func GetQuestionOption(ctx context.Context, question models.Question, optionIdentifier string) (models.Option, error) {
	var option models.Option
	if err := database.C.WithContext(ctx).
		Where("question_id = ? AND identifier = ?", question.ID, optionIdentifier).
		First(&option).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return option, ErrOptionInvalid
		}
		return option, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	return option, nil
}

func CountQuestionOptions(ctx context.Context, question models.Question) (int64, error) {
	var count int64
	if err := database.C.WithContext(ctx).Model(&models.Option{}).
		Where("question_id = ?", question.ID).
		Count(&count).Error; err != nil {
		return count, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return count, nil
}
