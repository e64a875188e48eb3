package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/temcen/glowrank/internal/config"
	"github.com/temcen/glowrank/pkg/models"
)

const (
	CatalogEventsTopic    = "catalog-events"
	CatalogEventsDLQTopic = "catalog-events-dlq"
	ConsumerGroup         = "catalog-indexers"
)

// Catalog event actions.
const (
	ActionNew  = "new"
	ActionEdit = "edit"
)

// EventMessage is the envelope published for every catalog change.
type EventMessage struct {
	EventID    uuid.UUID           `json:"event_id"`
	Event      models.CatalogEvent `json:"event"`
	Timestamp  time.Time           `json:"timestamp"`
	RetryCount int                 `json:"retry_count"`
}

// ErrPermanent marks handler failures that no retry can fix. Such
// messages go straight to the DLQ.
var ErrPermanent = errors.New("permanent failure")

// Handler processes one catalog event.
type Handler func(ctx context.Context, msg EventMessage) error

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type statsReader interface {
	Stats() kafka.ReaderStats
}

// CatalogEventBus publishes catalog changes and feeds them to the indexer,
// retrying failed handlers and parking exhausted messages on a DLQ topic.
type CatalogEventBus struct {
	writer     messageWriter
	reader     messageReader
	dlqWriter  messageWriter
	topic      string
	maxRetries int
	baseDelay  time.Duration
	logger     *logrus.Logger
}

// NewCatalogEventBus connects to the brokers in cfg.
func NewCatalogEventBus(cfg config.KafkaConfig, logger *logrus.Logger) (*CatalogEventBus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	topic := orDefault(cfg.Topics.CatalogEvents, CatalogEventsTopic)
	dlqTopic := orDefault(cfg.Topics.CatalogEventsDLQ, CatalogEventsDLQTopic)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // Key by item id so edits of one item stay ordered
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          topic,
		GroupID:        orDefault(cfg.ConsumerGroup, ConsumerGroup),
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	dlqWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        dlqTopic,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return newCatalogEventBus(writer, reader, dlqWriter, topic, cfg.MaxRetries, cfg.RetryBaseDelay, logger), nil
}

func newCatalogEventBus(writer messageWriter, reader messageReader, dlq messageWriter, topic string,
	maxRetries int, baseDelay time.Duration, logger *logrus.Logger) *CatalogEventBus {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &CatalogEventBus{
		writer:     writer,
		reader:     reader,
		dlqWriter:  dlq,
		topic:      topic,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

// Publish sends a catalog event and returns its event id.
func (b *CatalogEventBus) Publish(ctx context.Context, event models.CatalogEvent) (uuid.UUID, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	message := EventMessage{
		EventID:   uuid.New(),
		Event:     event,
		Timestamp: time.Now().UTC(),
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	kafkaMessage := kafka.Message{
		Key:   []byte(event.Item.ID),
		Value: messageBytes,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(message.EventID.String())},
			{Key: "action", Value: []byte(event.Action)},
			{Key: "timestamp", Value: []byte(message.Timestamp.Format(time.RFC3339))},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := b.writer.WriteMessages(ctx, kafkaMessage); err != nil {
		b.logger.WithError(err).WithField("event_id", message.EventID).Error("Failed to publish catalog event")
		return uuid.Nil, fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	b.logger.WithFields(logrus.Fields{
		"event_id": message.EventID,
		"action":   event.Action,
		"item_id":  event.Item.ID,
		"topic":    b.topic,
	}).Info("Catalog event published")

	return message.EventID, nil
}

// Consume reads events until ctx is cancelled. Messages that cannot be
// decoded are skipped; messages whose handler keeps failing go to the DLQ.
func (b *CatalogEventBus) Consume(ctx context.Context, handler Handler) error {
	for {
		message, err := b.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.WithError(err).Error("Failed to read message from Kafka")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.baseDelay):
			}
			continue
		}

		var event EventMessage
		if err := json.Unmarshal(message.Value, &event); err != nil {
			b.logger.WithError(err).WithField("offset", message.Offset).Error("Failed to unmarshal catalog event")
			continue
		}

		if err := b.processWithRetry(ctx, event, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.WithError(err).WithField("event_id", event.EventID).Error("Failed to process catalog event")
			if dlqErr := b.sendToDLQ(ctx, event, err); dlqErr != nil {
				b.logger.WithError(dlqErr).Error("Failed to send message to DLQ")
			}
		}
	}
}

func (b *CatalogEventBus) processWithRetry(ctx context.Context, message EventMessage, handler Handler) error {
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			delay := b.baseDelay * time.Duration(1<<uint(attempt-1))
			b.logger.WithFields(logrus.Fields{
				"event_id": message.EventID,
				"attempt":  attempt,
				"delay":    delay,
			}).Info("Retrying catalog event")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		message.RetryCount = attempt
		err := handler(ctx, message)
		if err == nil {
			b.logger.WithFields(logrus.Fields{
				"event_id": message.EventID,
				"attempt":  attempt,
			}).Debug("Catalog event processed")
			return nil
		}

		b.logger.WithError(err).WithFields(logrus.Fields{
			"event_id": message.EventID,
			"attempt":  attempt,
		}).Warn("Catalog event processing failed")
		if errors.Is(err, ErrPermanent) {
			return err
		}
		if attempt == b.maxRetries {
			return fmt.Errorf("max retries exceeded: %w", err)
		}
	}
	return nil
}

func (b *CatalogEventBus) sendToDLQ(ctx context.Context, message EventMessage, originalError error) error {
	dlqMessage := map[string]interface{}{
		"original_message": message,
		"error":            originalError.Error(),
		"dlq_timestamp":    time.Now().UTC(),
	}

	dlqBytes, err := json.Marshal(dlqMessage)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ message: %w", err)
	}

	kafkaMessage := kafka.Message{
		Key:   []byte(message.EventID.String()),
		Value: dlqBytes,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(message.EventID.String())},
			{Key: "original_topic", Value: []byte(b.topic)},
			{Key: "error", Value: []byte(originalError.Error())},
		},
	}

	if err := b.dlqWriter.WriteMessages(ctx, kafkaMessage); err != nil {
		return fmt.Errorf("failed to write message to DLQ: %w", err)
	}

	b.logger.WithFields(logrus.Fields{
		"event_id": message.EventID,
		"error":    originalError.Error(),
	}).Warn("Catalog event sent to DLQ")
	return nil
}

// Close closes the writers and the reader.
func (b *CatalogEventBus) Close() error {
	var errs []error
	if err := b.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close producer: %w", err))
	}
	if err := b.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close consumer: %w", err))
	}
	if err := b.dlqWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close DLQ writer: %w", err))
	}
	return errors.Join(errs...)
}

// Stats returns consumer statistics for the health report.
func (b *CatalogEventBus) Stats() map[string]interface{} {
	r, ok := b.reader.(statsReader)
	if !ok {
		return map[string]interface{}{}
	}
	stats := r.Stats()
	return map[string]interface{}{
		"consumer_lag":    stats.Lag,
		"consumer_offset": stats.Offset,
		"messages_read":   stats.Messages,
		"rebalances":      stats.Rebalances,
		"errors":          stats.Errors,
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
