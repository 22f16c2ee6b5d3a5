// Package imghost uploads participant photos to an image host and returns
// the hosted URL.
package imghost

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

var (
	ErrDisabled        = errors.New("imghost: image hosting is disabled")
	ErrUnsupportedType = errors.New("imghost: unsupported image type")
	ErrEmpty           = errors.New("imghost: empty image")
)

// Photo is an image posted by a participant.
type Photo struct {
	SessionID   string
	FileName    string
	ContentType string
	Data        []byte
}

// Uploader hosts a photo and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, p Photo) (string, error)
}

// Disabled is the Uploader used when no image host is configured.
type Disabled struct{}

func (Disabled) Upload(context.Context, Photo) (string, error) {
	return "", ErrDisabled
}

var allowedExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// CheckImage accepts JPEG and PNG files by extension and content,
// returning the detected content type.
func CheckImage(fileName string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	want, ok := allowedExt[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	got := http.DetectContentType(data)
	if got != want {
		return "", fmt.Errorf("%w: %s content in %s file", ErrUnsupportedType, got, ext)
	}
	return got, nil
}
