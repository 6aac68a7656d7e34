package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a key has no stored bytes.
var ErrObjectNotFound = errors.New("object not found")

// UploadResult contains the result of a file upload
type UploadResult struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Storage is a blob store keyed by "<receiver>/<file_name>". Put with an
// existing key overwrites the prior object (last-write-wins).
type Storage interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string, size int64) (*UploadResult, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}
