// Package kafkaclient wraps a kafka-go reader in a channel-based consumer
// with manual offset commits.
package kafkaclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaReader is the subset of *kafka.Reader used by the consumer.
// FetchMessage leaves offsets alone; CommitMessages is the only commit path.
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config selects the broker, topic and consumer group.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// KafkaConsumer reads messages in a background loop and hands them out on
// Messages. It is safe for concurrent use.
type KafkaConsumer struct {
	reader      KafkaReader
	logger      *slog.Logger
	doneChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	messageChan chan kafka.Message
	retryDelay  time.Duration
}

// NewKafkaConsumer creates a consumer for cfg. Offsets are only committed
// through CommitOffset.
func NewKafkaConsumer(cfg Config, logger *slog.Logger) (*KafkaConsumer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		return nil, errors.New("kafkaclient: brokers, topic and group id are required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		CommitInterval: 0,
		MinBytes:       1,
		MaxBytes:       10e6,
	})
	return newConsumer(reader, logger), nil
}

func newConsumer(reader KafkaReader, logger *slog.Logger) *KafkaConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaConsumer{
		reader:      reader,
		logger:      logger,
		doneChan:    make(chan struct{}),
		messageChan: make(chan kafka.Message),
		retryDelay:  time.Second,
	}
}

// Messages returns the channel of consumed messages. It is closed when the
// consume loop exits.
func (kc *KafkaConsumer) Messages() <-chan kafka.Message {
	return kc.messageChan
}

// CommitOffset commits msg for the consumer group.
func (kc *KafkaConsumer) CommitOffset(ctx context.Context, msg kafka.Message) error {
	kc.logger.Debug("committing offset", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
	return kc.reader.CommitMessages(ctx, msg)
}

// StartConsuming begins the consume loop in a separate goroutine.
func (kc *KafkaConsumer) StartConsuming(ctx context.Context) {
	kc.wg.Add(1)
	go func() {
		defer kc.wg.Done()
		defer close(kc.messageChan)

		kc.logger.Info("starting kafka consumer loop")

		for {
			select {
			case <-ctx.Done():
				kc.logger.Info("context canceled, stopping consumer loop")
				return
			case <-kc.doneChan:
				kc.logger.Info("shutdown signal received, stopping consumer loop")
				return
			default:
			}

			msg, err := kc.reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, io.EOF) || ctx.Err() != nil {
					return
				}
				kc.logger.Error("error reading message", "error", err)
				select {
				case <-time.After(kc.retryDelay):
				case <-ctx.Done():
					return
				case <-kc.doneChan:
					return
				}
				continue
			}

			select {
			case kc.messageChan <- msg:
				kc.logger.Debug("message received", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
			case <-ctx.Done():
				return
			case <-kc.doneChan:
				return
			}
		}
	}()
}

// Stop ends the consume loop and closes the reader. It may be called more
// than once.
func (kc *KafkaConsumer) Stop() {
	kc.stopOnce.Do(func() {
		close(kc.doneChan)
		kc.wg.Wait()
		if err := kc.reader.Close(); err != nil {
			kc.logger.Error("failed to close kafka reader", "error", err)
		}
		kc.logger.Info("kafka consumer stopped")
	})
}
