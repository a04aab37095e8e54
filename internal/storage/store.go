package storage

import (
	"OceanBooks/config"
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// Kind selects the area of the blob store a blob lives in.
type Kind string

const (
	KindBook      Kind = "books"
	KindThumbnail Kind = "thumbnails"
)

// ErrObjectNotFound is returned when a blob does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored blob.
type ObjectInfo struct {
	Path string
	Size int64
}

// Store abstracts blob storage for book files and thumbnails.
type Store interface {
	Write(ctx context.Context, kind Kind, name string, r io.Reader) (string, error)
	Open(ctx context.Context, p string) (io.ReadCloser, ObjectInfo, error)
	Exists(ctx context.Context, p string) (bool, error)
	Size(ctx context.Context, p string) (int64, error)
	Remove(ctx context.Context, p string) error
	Locate(kind Kind, name string) string
}

// ContentType returns a content type by file extension.
func ContentType(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".epub":
		return "application/epub+zip"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}

// New builds the configured blob store backend.
func New(cfg config.StorageConfig) (Store, error) {
	if cfg.Backend == config.BlobBackendMinio {
		s, err := NewMinioStore(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := NewLocalStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}
	return s, nil
}
