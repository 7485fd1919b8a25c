package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/retry"
)

type topicCreator interface {
	CreateTopics(ctx context.Context, req *kafka.CreateTopicsRequest) (*kafka.CreateTopicsResponse, error)
}

// EnsureTopic creates the configured topic when it does not exist yet.
// Transient failures are retried with backoff; an existing topic is not an error.
func EnsureTopic(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	client := &kafka.Client{
		Addr:    kafka.TCP(cfg.Kafka.Brokers...),
		Timeout: cfg.Kafka.WriteTimeout,
	}
	return ensureTopic(ctx, client, cfg, logger)
}

func ensureTopic(ctx context.Context, client topicCreator, cfg *config.Config, logger *zap.Logger) error {
	topic := kafka.TopicConfig{
		Topic:             cfg.Kafka.Topic,
		NumPartitions:     cfg.Kafka.TopicPartitions,
		ReplicationFactor: cfg.Kafka.TopicReplication,
	}

	err := retry.DoWithRetry(ctx, &cfg.Retry, func(attempt int) error {
		resp, err := client.CreateTopics(ctx, &kafka.CreateTopicsRequest{
			Topics: []kafka.TopicConfig{topic},
		})
		if err != nil {
			logger.Warn("Failed to create topic, will retry",
				zap.String("topic", topic.Topic),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			return err
		}

		topicErr := resp.Errors[topic.Topic]
		switch {
		case topicErr == nil:
			logger.Info("Created topic",
				zap.String("topic", topic.Topic),
				zap.Int("partitions", topic.NumPartitions),
				zap.Int("replicationFactor", topic.ReplicationFactor),
			)
			return nil
		case errors.Is(topicErr, kafka.TopicAlreadyExists):
			logger.Info("Topic already exists", zap.String("topic", topic.Topic))
			return nil
		case errors.Is(topicErr, kafka.InvalidPartitionNumber),
			errors.Is(topicErr, kafka.InvalidReplicationFactor),
			errors.Is(topicErr, kafka.InvalidTopic):
			return retry.Permanent(topicErr)
		default:
			logger.Warn("Broker refused topic creation, will retry",
				zap.String("topic", topic.Topic),
				zap.Int("attempt", attempt+1),
				zap.Error(topicErr),
			)
			return topicErr
		}
	})
	if err != nil {
		return fmt.Errorf("failed to ensure topic %q: %w", topic.Topic, err)
	}
	return nil
}
