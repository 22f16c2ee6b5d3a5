package imghost

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadsurvey/internal/testutil"
)

func TestCheckImage(t *testing.T) {
	jpeg := testutil.JPEG(nil)
	png := testutil.PNG(nil)

	tests := []struct {
		name     string
		fileName string
		data     []byte
		want     string
		wantErr  error
	}{
		{"jpeg", "road.jpg", jpeg, "image/jpeg", nil},
		{"jpeg upper ext", "ROAD.JPEG", jpeg, "image/jpeg", nil},
		{"png", "crack.png", png, "image/png", nil},
		{"empty", "road.jpg", nil, "", ErrEmpty},
		{"gif extension", "road.gif", jpeg, "", ErrUnsupportedType},
		{"png bytes named jpg", "road.jpg", png, "", ErrUnsupportedType},
		{"text named png", "notes.png", []byte("hello there"), "", ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckImage(tt.fileName, tt.data)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Upload(context.Background(), Photo{Data: []byte{1}})
	assert.True(t, errors.Is(err, ErrDisabled))
}

type fakePhotoStore struct {
	bucket, key, contentType string
	data                     []byte
	err                      error
}

func (f *fakePhotoStore) PutPhoto(_ context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	f.bucket, f.key, f.data, f.contentType = bucket, key, data, contentType
	if f.err != nil {
		return "", f.err
	}
	return "http://minio.local/" + bucket + "/" + key, nil
}

func TestObjectStore_Upload(t *testing.T) {
	store := &fakePhotoStore{}
	up := NewObjectStore(store, "photos")

	url, err := up.Upload(context.Background(), Photo{
		SessionID:   "sess-1",
		FileName:    "Pothole.JPG",
		ContentType: "image/jpeg",
		Data:        []byte{0xFF, 0xD8},
	})
	require.NoError(t, err)
	assert.Equal(t, "photos", store.bucket)
	assert.Regexp(t, `^photos/sess-1/[0-9a-f-]{36}\.jpg$`, store.key)
	assert.Equal(t, "image/jpeg", store.contentType)
	assert.Equal(t, "http://minio.local/photos/"+store.key, url)
}

func TestObjectStore_UploadErrors(t *testing.T) {
	up := NewObjectStore(&fakePhotoStore{}, "photos")
	_, err := up.Upload(context.Background(), Photo{FileName: "a.jpg"})
	require.ErrorIs(t, err, ErrEmpty)

	boom := errors.New("bucket unavailable")
	up = NewObjectStore(&fakePhotoStore{err: boom}, "photos")
	_, err = up.Upload(context.Background(), Photo{FileName: "a.jpg", Data: []byte{1}})
	require.ErrorIs(t, err, boom)
}
