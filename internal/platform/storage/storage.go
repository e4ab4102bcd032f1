package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"hrdesk/internal/platform/config"
	cryptoutil "hrdesk/internal/platform/crypto"
)

var (
	ErrNotFound    = errors.New("stored file not found")
	ErrInvalidPath = errors.New("invalid storage path")
)

// Storage holds generated artifacts (payslip PDFs). Paths are slash
// separated and relative to the backend root.
type Storage interface {
	Exists(ctx context.Context, name string) (bool, error)
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
	URL(name string) string
}

func New(ctx context.Context, cfg config.Config, crypto *cryptoutil.Service) (Storage, error) {
	switch cfg.StorageDriver {
	case "", "local":
		return NewLocal(cfg.StorageDir, crypto)
	case "gcs":
		return NewGCS(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile, crypto)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func cleanName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || strings.Contains(trimmed, "\\") {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean("/" + trimmed)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(trimmed, "/") || strings.HasPrefix(cleaned, "..") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}
