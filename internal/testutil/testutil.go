// Package testutil provides shared test helpers: an in-memory remote store
// and a quiet logger.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/starford/newsdesk/internal/apperr"
	"github.com/starford/newsdesk/internal/checksum"
	"github.com/starford/newsdesk/internal/remote"
)

// Logger returns a logger that discards everything below error.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// MemStore is an in-memory remote.Store keyed by branch and path. Versions
// are content digests. Failure injection fields make the next calls fail.
type MemStore struct {
	mu      sync.Mutex
	files   map[string][]byte
	GetErr  error
	PutErr  error
	Gets    int
	Puts    int
	blockCh chan struct{}
}

var _ remote.Store = (*MemStore)(nil)

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{files: map[string][]byte{}}
}

func key(branch, path string) string {
	return branch + ":" + strings.TrimPrefix(path, "/")
}

// Seed stores data directly and returns its version.
func (m *MemStore) Seed(path, branch string, data []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key(branch, path)] = append([]byte{}, data...)
	return checksum.Sum(data)
}

// Content returns the stored bytes for path on branch.
func (m *MemStore) Content(path, branch string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[key(branch, path)]
	return data, ok
}

// Block makes Put wait until the returned release func is called.
func (m *MemStore) Block() (release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan struct{})
	m.blockCh = ch
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (m *MemStore) Get(_ context.Context, path, branch string) (*remote.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gets++
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	data, ok := m.files[key(branch, path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, path)
	}
	return &remote.File{Path: path, Content: string(data), Encoding: remote.EncodingNone, Version: checksum.Sum(data)}, nil
}

func (m *MemStore) Put(ctx context.Context, req remote.PutRequest) (string, error) {
	m.mu.Lock()
	block := m.blockCh
	m.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Puts++
	if m.PutErr != nil {
		return "", m.PutErr
	}
	k := key(req.Branch, req.Path)
	current, exists := m.files[k]
	switch {
	case exists && req.Version == "":
		return "", &apperr.ConflictError{Path: req.Path, Message: req.Path + " already exists"}
	case exists && checksum.Sum(current) != req.Version:
		return "", &apperr.ConflictError{Path: req.Path, Expected: req.Version,
			Message: fmt.Sprintf("%s does not match %s", req.Path, req.Version)}
	case !exists && req.Version != "":
		return "", &apperr.ConflictError{Path: req.Path, Expected: req.Version, Message: req.Path + " was deleted"}
	}
	m.files[k] = append([]byte{}, req.Content...)
	return checksum.Sum(req.Content), nil
}

func (m *MemStore) Exists(ctx context.Context, path, branch string) (bool, error) {
	_, err := m.Get(ctx, path, branch)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
