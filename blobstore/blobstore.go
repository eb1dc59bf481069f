// Package blobstore stores rendered receipt artifacts in an object store.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Artifact identifies a stored receipt document.
type Artifact struct {
	Name string
	URL  string
}

// ArtifactStore persists rendered PDFs under a caller-chosen name.
type ArtifactStore interface {
	Put(ctx context.Context, r io.Reader, name string) (Artifact, error)
}

// GCSStore is an ArtifactStore backed by a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore opens a client for the given bucket. credentialsJSON may be
// empty, in which case application default credentials are used.
func NewGCSStore(ctx context.Context, bucket string, credentialsJSON string) (*GCSStore, error) {
	var client *storage.Client
	var err error
	if strings.TrimSpace(credentialsJSON) != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credentialsJSON)))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

func (s *GCSStore) Put(ctx context.Context, r io.Reader, name string) (Artifact, error) {
	wc := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	wc.ContentType = "application/pdf"

	if _, err := io.Copy(wc, r); err != nil {
		wc.Close()
		return Artifact{}, fmt.Errorf("uploading artifact %s: %w", name, err)
	}
	if err := wc.Close(); err != nil {
		return Artifact{}, fmt.Errorf("closing artifact writer for %s: %w", name, err)
	}

	return Artifact{
		Name: name,
		URL:  fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, name),
	}, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
