package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	cryptoutil "hrdesk/internal/platform/crypto"
)

type GCS struct {
	bucket *gcs.BucketHandle
	name   string
	crypto *cryptoutil.Service
}

func NewGCS(ctx context.Context, bucket, credentialsFile string, crypto *cryptoutil.Service) (*GCS, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloud storage client: %w", err)
	}
	return &GCS{bucket: client.Bucket(bucket), name: bucket, crypto: crypto}, nil
}

func (g *GCS) Exists(ctx context.Context, name string) (bool, error) {
	cleaned, err := cleanName(name)
	if err != nil {
		return false, err
	}
	_, err = g.bucket.Object(cleaned).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (g *GCS) Put(ctx context.Context, name string, data []byte) error {
	cleaned, err := cleanName(name)
	if err != nil {
		return err
	}
	sealed, err := g.crypto.Encrypt(data)
	if err != nil {
		return err
	}
	wc := g.bucket.Object(cleaned).NewWriter(ctx)
	if _, err := wc.Write(sealed); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to write object %s: %w", cleaned, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close object writer: %w", err)
	}
	return nil
}

func (g *GCS) Get(ctx context.Context, name string) ([]byte, error) {
	cleaned, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	rc, err := g.bucket.Object(cleaned).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return g.crypto.Decrypt(raw)
}

func (g *GCS) Delete(ctx context.Context, name string) error {
	cleaned, err := cleanName(name)
	if err != nil {
		return err
	}
	err = g.bucket.Object(cleaned).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return err
	}
	return nil
}

func (g *GCS) URL(name string) string {
	cleaned, err := cleanName(name)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("gs://%s/%s", g.name, cleaned)
}
