package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"espn_feed/internal/domain"
)

const watchKey = "watch"

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes change events to a topic. Articles are keyed by id so all
// revisions of one article land on the same partition.
type Kafka struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

func NewKafka(cfg KafkaConfig, logger *slog.Logger) *Kafka {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	logger.Info("kafka publisher initialized",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
	)

	return &Kafka{
		writer: writer,
		topic:  cfg.Topic,
		logger: logger.With("publisher", "kafka"),
	}
}

func (k *Kafka) PublishArticle(ctx context.Context, article *domain.Article, isNew bool) error {
	msg := newArticleMessage(article, isNew, time.Now())

	if err := k.write(ctx, article.ID.String(), KindArticle, msg); err != nil {
		return err
	}

	k.logger.Debug("published article",
		"id", article.ID,
		"feed", article.Feed,
		"action", msg.Action,
	)
	return nil
}

func (k *Kafka) PublishCategories(ctx context.Context, categories []domain.VideoCategory) error {
	msg := newCategoriesMessage(categories, time.Now())

	if err := k.write(ctx, watchKey, KindWatch, msg); err != nil {
		return err
	}

	k.logger.Debug("published watch snapshot",
		"categories", len(categories),
		"items", msg.Items,
	)
	return nil
}

func (k *Kafka) write(ctx context.Context, key, kind string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: body,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(kind)},
			{Key: "content-type", Value: []byte("application/json")},
		},
	})
	if err != nil {
		return fmt.Errorf("write message to %s: %w", k.topic, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
