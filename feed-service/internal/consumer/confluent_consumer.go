package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/weiawesome/wes-feed/feed-service/internal/config"
	pkglog "github.com/weiawesome/wes-feed/pkg/log"
)

// kafkaClient is the part of *kafka.Consumer the CDC consumer drives.
type kafkaClient interface {
	Subscribe(topic string, rebalanceCb kafka.RebalanceCb) error
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
	Close() error
}

// ConfluentConsumer implements CDCEventConsumer using confluent-kafka-go.
type ConfluentConsumer struct {
	consumer kafkaClient
	topic    string
	handler  CDCEventHandler
	doneCh   chan struct{}
	started  atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// NewConfluentConsumer creates a new Kafka consumer for likes-table CDC events.
func NewConfluentConsumer(cfg config.KafkaConfig, handler CDCEventHandler) (*ConfluentConsumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Brokers,
		"group.id":           cfg.GroupID,
		"auto.offset.reset":  "latest",
		"enable.auto.commit": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return newConfluentConsumer(c, cfg.Topic, handler), nil
}

func newConfluentConsumer(client kafkaClient, topic string, handler CDCEventHandler) *ConfluentConsumer {
	return &ConfluentConsumer{
		consumer: client,
		topic:    topic,
		handler:  handler,
		doneCh:   make(chan struct{}),
	}
}

// Start subscribes to the topic and consumes in a background goroutine until
// ctx is cancelled. If the subscription fails the underlying client is
// closed before returning.
func (cc *ConfluentConsumer) Start(ctx context.Context) error {
	if err := cc.consumer.Subscribe(cc.topic, nil); err != nil {
		if cerr := cc.closeClient(); cerr != nil {
			l := pkglog.L()
			l.Warn().Err(cerr).Msg("failed to close kafka consumer after subscribe error")
		}
		return fmt.Errorf("failed to subscribe to topic %s: %w", cc.topic, err)
	}

	l := pkglog.L()
	l.Info().Str(pkglog.FieldTopic, cc.topic).Msg("kafka CDC consumer started")

	cc.started.Store(true)
	go cc.consumeLoop(ctx)

	return nil
}

func (cc *ConfluentConsumer) consumeLoop(ctx context.Context) {
	l := pkglog.L()
	defer close(cc.doneCh)

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("kafka CDC consumer shutting down")
			return
		default:
			msg, err := cc.consumer.ReadMessage(100 * time.Millisecond)
			if err != nil {
				var kerr kafka.Error
				if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				l.Error().Err(err).Msg("kafka CDC consumer error")
				continue
			}

			processMessage(context.WithoutCancel(ctx), cc.handler, msg)
		}
	}
}

// processMessage decodes one Kafka message and hands it to the handler.
// Tombstones (nil value after a delete) carry no row and are skipped.
func processMessage(ctx context.Context, handler CDCEventHandler, msg *kafka.Message) {
	l := pkglog.L()

	if len(msg.Value) == 0 {
		return
	}

	var event DebeziumMessage
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		l.Error().Err(err).Msg("failed to unmarshal debezium CDC event")
		return
	}

	l.Debug().
		Str(pkglog.FieldOp, event.Payload.Op).
		Int64("ts_ms", event.Payload.TsMs).
		Msg("received CDC event")

	if err := handler.HandleCDCEvent(ctx, &event); err != nil {
		l.Error().Err(err).Str(pkglog.FieldOp, event.Payload.Op).Msg("failed to handle CDC event")
	}
}

// Close stops the consumer and releases resources. Once started it waits for
// the consume loop to exit, so cancel the Start context first. Calling it
// more than once is safe.
func (cc *ConfluentConsumer) Close() error {
	if cc.started.Load() {
		<-cc.doneCh
	}
	return cc.closeClient()
}

func (cc *ConfluentConsumer) closeClient() error {
	cc.closeOnce.Do(func() {
		if err := cc.consumer.Close(); err != nil {
			cc.closeErr = fmt.Errorf("failed to close kafka consumer: %w", err)
		}
	})
	return cc.closeErr
}

// Ensure interface is satisfied at compile time.
var _ CDCEventConsumer = (*ConfluentConsumer)(nil)
