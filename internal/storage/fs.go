package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/newsdesk/internal/apperr"
	"github.com/starford/newsdesk/internal/checksum"
	"github.com/starford/newsdesk/internal/models"
)

const tmpPrefix = ".newsdesk-tmp-"

// FS implements Provider on a local directory. All access goes through an
// os.Root, so symlinks and ".." cannot reach outside the directory.
type FS struct {
	dir  string
	root *os.Root
}

var _ Provider = (*FS)(nil)

// NewFS opens a provider rooted at dir, creating it when missing.
func NewFS(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: open root: %w", err)
	}
	return &FS{dir: abs, root: root}, nil
}

// Root returns the absolute root directory.
func (f *FS) Root() string { return f.dir }

// Close releases the root directory handle.
func (f *FS) Close() error { return f.root.Close() }

// name turns a provider path into a slash-separated path inside the root.
// The empty path is the root itself.
func name(rel string) (string, error) {
	if rel == "" {
		return ".", nil
	}
	p := path.Clean(filepath.ToSlash(rel))
	if path.IsAbs(p) || filepath.IsAbs(rel) || p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("storage: path escapes root: %s", rel)
	}
	return p, nil
}

// List walks dir and returns every stored file, newest first. Temporary
// files of in-progress writes are skipped.
func (f *FS) List(dir string) ([]models.StoredFile, error) {
	base, err := name(dir)
	if err != nil {
		return nil, err
	}
	fsys := f.root.FS()
	var out []models.StoredFile
	err = fs.WalkDir(fsys, base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tmpPrefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		out = append(out, models.StoredFile{
			Path:      p,
			Checksum:  checksum.Sum(data),
			Size:      info.Size(),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].Path > out[j].Path
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Read returns the raw bytes of a stored file.
func (f *FS) Read(p string) ([]byte, error) {
	n, err := name(p)
	if err != nil {
		return nil, err
	}
	data, err := f.root.ReadFile(n)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, p)
	case err != nil:
		return nil, fmt.Errorf("storage: read %s: %w", p, err)
	}
	return data, nil
}

// Write replaces p with content through a synced temp file and a rename,
// so readers see either the old or the new bytes.
func (f *FS) Write(p string, content []byte) error {
	n, err := name(p)
	if err != nil {
		return err
	}
	if n == "." {
		return fmt.Errorf("storage: empty path")
	}
	if dir := path.Dir(n); dir != "." {
		if err := f.root.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("storage: mkdir: %w", err)
		}
	}

	tmpName := path.Join(path.Dir(n), tmpPrefix+uuid.NewString())
	tmp, err := f.root.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = f.root.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := f.root.Rename(tmpName, n); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	committed = true
	return nil
}

// Delete removes a stored file.
func (f *FS) Delete(p string) error {
	n, err := name(p)
	if err != nil {
		return err
	}
	if err := f.root.Remove(n); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", apperr.ErrNotFound, p)
		}
		return fmt.Errorf("storage: delete %s: %w", p, err)
	}
	return nil
}
