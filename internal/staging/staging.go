// Package staging keeps uploaded statement files in a GCS bucket between
// upload and ingestion. Objects live under a per-session name so a failed
// ingestion can be replayed from the original bytes.
package staging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/ovoloshko/statement-ingest/internal/logger"
)

// Store is the staging area as the pipeline sees it. Upload returns the
// gs:// URI the statement record carries; Fetch takes that URI back.
type Store interface {
	Upload(ctx context.Context, objectName string, data []byte) (string, error)
	Fetch(ctx context.Context, uri string) ([]byte, error)
	Delete(ctx context.Context, uri string) error
	Purge(ctx context.Context, prefix string, olderThan time.Time) (int, error)
}

// GCSStore is the concrete Store backed by a Google Cloud Storage bucket.
// It assumes Application Default Credentials are configured.
type GCSStore struct {
	client *storage.Client
	bucket string
}

var _ Store = (*GCSStore)(nil)

// NewGCSStore creates a store with a shared storage client for the given
// bucket.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStore: storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Close closes the storage client connection.
func (s *GCSStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Upload writes the statement bytes under the given object name and returns
// its gs:// URI.
func (s *GCSStore) Upload(ctx context.Context, objectName string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Upload: copy to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Upload: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, objectName), nil
}

// UploadFile reads a local file and uploads it under the given object name.
func (s *GCSStore) UploadFile(ctx context.Context, objectName, filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("UploadFile: open file %q: %w", filePath, err)
	}
	return s.Upload(ctx, objectName, data)
}

// Fetch downloads the statement bytes from the given gs:// URI.
func (s *GCSStore) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	rc, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// Delete removes the object behind the given gs:// URI.
func (s *GCSStore) Delete(ctx context.Context, uri string) error {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return err
	}
	if err := s.client.Bucket(bucket).Object(object).Delete(ctx); err != nil {
		return fmt.Errorf("Delete: deleting object %s/%s: %w", bucket, object, err)
	}
	return nil
}

// Purge deletes staged objects under the prefix created before the cutoff
// and returns how many went. Per-object failures are logged and skipped so
// one stuck object never blocks the sweep.
func (s *GCSStore) Purge(ctx context.Context, prefix string, olderThan time.Time) (int, error) {
	log := logger.FromContext(ctx)

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	deleted := 0
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return deleted, fmt.Errorf("Purge: listing objects: %w", err)
		}
		if !attrs.Created.Before(olderThan) {
			continue
		}
		if err := s.client.Bucket(s.bucket).Object(attrs.Name).Delete(ctx); err != nil {
			log.Warn().Err(err).Str("object", attrs.Name).Msg("could not delete staged object, skipping")
			continue
		}
		deleted++
	}
	return deleted, nil
}
