package stream

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/openballot/ballotbox/pkg/internal/models"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/viper"
)

// VoteEvent is the fact published for every accepted vote; real-time tally
// consumers key their partitions by question so per-question order holds.
type VoteEvent struct {
	VoteID             uint      `json:"vote_id"`
	QuestionIdentifier string    `json:"question_identifier"`
	OptionIdentifier   string    `json:"option_identifier"`
	UserID             string    `json:"user_id"`
	VotedAt            time.Time `json:"voted_at"`
}

type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher returns nil when no brokers are configured; the vote engine
// treats a nil publisher as "stream disabled".
func NewPublisher() *Publisher {
	brokers := viper.GetStringSlice("streams.brokers")
	if len(brokers) == 0 {
		return nil
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        viper.GetString("streams.topic"),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  5,
		Compression:  kafka.Snappy,
	}

	return &Publisher{writer: writer}
}

func (p *Publisher) PublishVoteAccepted(ctx context.Context, vote models.Vote, question models.Question, option models.Option) error {
	event := VoteEvent{
		VoteID:             vote.ID,
		QuestionIdentifier: question.Identifier,
		OptionIdentifier:   option.Identifier,
		UserID:             vote.UserID,
		VotedAt:            vote.CreatedAt,
	}

	raw, err := jsoniter.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode vote event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(question.Identifier),
		Value: raw,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish vote event: %w", err)
	}

	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
