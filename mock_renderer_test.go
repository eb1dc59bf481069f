package receiptgen

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/padigital/receiptgen/blobstore"
)

// stubRenderer writes a file of the configured size into the working
// directory, or fails with the configured error. It counts invocations so
// tests can assert that nothing was rendered.
type stubRenderer struct {
	mu    sync.Mutex
	size  int
	err   error
	calls int
}

func (r *stubRenderer) Render(_ context.Context, _ *ReceiptTemplate, workDir string) (string, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	path := filepath.Join(workDir, fmt.Sprintf("out-%d.pdf", r.calls))
	if err := os.WriteFile(path, make([]byte, r.size), 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// memArtifactStore records uploads in memory.
type memArtifactStore struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (s *memArtifactStore) Put(_ context.Context, r io.Reader, name string) (blobstore.Artifact, error) {
	if s.err != nil {
		return blobstore.Artifact{}, s.err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return blobstore.Artifact{}, err
	}
	s.mu.Lock()
	s.names = append(s.names, name)
	s.mu.Unlock()
	return blobstore.Artifact{Name: name, URL: "https://blobs.example/" + name}, nil
}
