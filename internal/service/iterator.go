// Package service turns MinIO bucket notifications delivered through Kafka
// into loaded objects. The exporter uses it to read archived survey
// submissions back out of the archive bucket.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7/pkg/notification"
)

// Iterator consumes messages from a MessageIterator, decodes each one as a
// MinIO notification, loads every created object through LoaderFunc and
// yields the results. Non-creation events are acknowledged and skipped.
//
// The Iterator does not own the message source; callers start and stop the
// consumer themselves.
type Iterator[T any] struct {
	msgIterator MessageIterator
	loader      LoaderFunc[T]
	logger      *slog.Logger

	err error
}

// NewIterator constructs an Iterator for the provided message source and
// object loader.
func NewIterator[T any](iterator MessageIterator, loader LoaderFunc[T], logger *slog.Logger) *Iterator[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Iterator[T]{
		msgIterator: iterator,
		loader:      loader,
		logger:      logger,
	}
}

// Objects streams loaded objects until the message channel closes, ctx is
// done or an object fails. Objects are handed out one at a time and each
// must be acknowledged with Done.
//
// A message is committed once every record in it was loaded and processed.
// A message with an undecodable body is committed and dropped. A failed
// load or a failed Done stops the stream with the message uncommitted, so
// the consumer group redelivers it; committing a later offset would skip
// it for good. Err reports why the stream stopped.
func (it *Iterator[T]) Objects(ctx context.Context) <-chan *FetchedObject[T] {
	out := make(chan *FetchedObject[T])
	go func() {
		defer close(out)

		for {
			var (
				msg kafkaMessage
				ok  bool
			)
			select {
			case <-ctx.Done():
				return
			case msg, ok = <-it.msgIterator.Messages():
				if !ok {
					return
				}
			}

			var info notification.Info
			if err := json.Unmarshal(msg.Value, &info); err != nil {
				it.logger.Warn("dropping undecodable notification", "offset", msg.Offset, "error", err)
				it.commit(ctx, msg)
				continue
			}

			for _, event := range info.Records {
				if !strings.HasPrefix(event.EventName, "s3:ObjectCreated:") {
					it.logger.Debug("skipping event", "event", event.EventName)
					continue
				}
				objectKey, err := url.QueryUnescape(event.S3.Object.Key)
				if err != nil {
					it.logger.Warn("skipping malformed object key", "key", event.S3.Object.Key, "error", err)
					continue
				}
				data, err := it.loader(ctx, event.S3.Bucket.Name, objectKey)
				if err != nil {
					it.err = fmt.Errorf("load %s/%s at offset %d: %w", event.S3.Bucket.Name, objectKey, msg.Offset, err)
					it.logger.Error("error loading object, stopping before commit", "bucket", event.S3.Bucket.Name, "key", objectKey, "offset", msg.Offset, "error", err)
					return
				}

				obj := &FetchedObject[T]{Data: data, Event: event, Key: objectKey, done: make(chan error, 1)}
				select {
				case out <- obj:
				case <-ctx.Done():
					return
				}
				select {
				case err := <-obj.done:
					if err != nil {
						it.err = fmt.Errorf("process %s at offset %d: %w", objectKey, msg.Offset, err)
						it.logger.Error("object processing failed, stopping before commit", "key", objectKey, "offset", msg.Offset, "error", err)
						return
					}
				case <-ctx.Done():
					return
				}
			}

			it.commit(ctx, msg)
		}
	}()
	return out
}

// Err returns the failure that stopped Objects, or nil when the stream ended
// because the messages ran out or ctx was done. Call it after the channel
// returned by Objects is closed.
func (it *Iterator[T]) Err() error {
	return it.err
}

func (it *Iterator[T]) commit(ctx context.Context, msg kafkaMessage) {
	if err := it.msgIterator.CommitOffset(ctx, msg); err != nil {
		it.logger.Error("failed to commit offset", "offset", msg.Offset, "error", err)
	}
}
