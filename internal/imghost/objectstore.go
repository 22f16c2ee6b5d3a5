package imghost

import (
	"context"

	"roadsurvey/internal/keys"
)

// PhotoStore is the object storage used by ObjectStore.
type PhotoStore interface {
	PutPhoto(ctx context.Context, bucketName, objectKey string, data []byte, contentType string) (string, error)
}

// ObjectStore hosts photos in an S3 bucket instead of an image host.
type ObjectStore struct {
	store  PhotoStore
	bucket string
}

func NewObjectStore(store PhotoStore, bucket string) *ObjectStore {
	return &ObjectStore{store: store, bucket: bucket}
}

// Upload stores the photo under photos/<session>/ and returns its URL.
func (o *ObjectStore) Upload(ctx context.Context, p Photo) (string, error) {
	if len(p.Data) == 0 {
		return "", ErrEmpty
	}
	contentType := p.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return o.store.PutPhoto(ctx, o.bucket, keys.Photo(p.SessionID, p.FileName), p.Data, contentType)
}
