package service

import (
	"context"

	"github.com/minio/minio-go/v7/pkg/notification"
	"github.com/segmentio/kafka-go"
)

type kafkaMessage = kafka.Message

// MessageIterator is the Kafka side of an Iterator.
//
// Implementations are responsible for the lifecycle of the consumer connection.
type MessageIterator interface {
	// Messages returns a channel of Kafka messages, closed when the consumer
	// stops.
	Messages() <-chan kafka.Message

	// CommitOffset acknowledges that a message has been processed.
	CommitOffset(ctx context.Context, msg kafka.Message) error
}

// LoaderFunc loads and decodes the object stored at bucket/key. It must
// honor ctx and must not modify the object.
type LoaderFunc[T any] func(ctx context.Context, bucket, key string) (T, error)

// FetchedObject pairs a loaded object with the notification that announced it.
type FetchedObject[T any] struct {
	Data T
	// Event is the notification record that triggered the fetch.
	Event notification.Event
	// Key is the unescaped object key.
	Key string

	done chan error
}

// Done reports the outcome of processing the object. The Iterator waits for
// it before moving on, and a non-nil err stops the Iterator without
// committing the message. Only the first call counts.
func (o *FetchedObject[T]) Done(err error) {
	select {
	case o.done <- err:
	default:
	}
}
