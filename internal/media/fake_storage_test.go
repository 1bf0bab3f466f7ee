package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/weiawesome/sync-party/internal/domain"
	"github.com/weiawesome/sync-party/pkg/storage"
)

type fakeBlob struct {
	data    []byte
	modTime time.Time
}

type fakeStorage struct {
	mu        sync.Mutex
	blobs     map[string]fakeBlob
	deleteErr error
	writeErr  error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{blobs: make(map[string]fakeBlob)}
}

func (f *fakeStorage) put(key string, modTime time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[key] = fakeBlob{data: []byte("x"), modTime: modTime}
}

func (f *fakeStorage) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blobs[key]
	return ok
}

func (f *fakeStorage) Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[key] = fakeBlob{data: b, modTime: time.Now()}
	return nil
}

func (f *fakeStorage) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, key)
	return nil
}

func (f *fakeStorage) List(ctx context.Context, prefix string) ([]storage.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.FileInfo
	for k, b := range f.blobs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.FileInfo{Key: k, Size: int64(len(b.data)), LastModified: b.modTime})
		}
	}
	return out, nil
}

func (f *fakeStorage) Exists(ctx context.Context, key string) (bool, error) {
	return f.has(key), nil
}

func (f *fakeStorage) GetURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if !f.has(key) {
		return "", storage.ErrNotFound
	}
	return "/files/" + key, nil
}

type fakeParties map[string]*domain.Party

func (f fakeParties) Lookup(ctx context.Context, id string) (*domain.Party, error) {
	p, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("party %s: %w", id, domain.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}
