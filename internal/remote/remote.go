// Package remote defines the repository store the editor loads from and
// commits to.
package remote

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/starford/newsdesk/internal/apperr"
)

// Transport encodings reported in File.Encoding.
const (
	EncodingBase64 = "base64"
	EncodingNone   = ""
)

// File is a remote file as returned by Get. Content is still in its
// transport encoding; use Decode to obtain the raw bytes.
type File struct {
	Path     string
	Content  string
	Encoding string
	Version  string
}

// PutRequest describes a single file write. An empty Version creates the
// file and fails with a conflict if it already exists.
type PutRequest struct {
	Path    string
	Branch  string
	Message string
	Content []byte
	Version string
}

// Store is a versioned file store on a branch.
//
// Get fails with apperr.ErrNotFound, ErrAuth, ErrRateLimit or ErrNetwork.
// Put returns the new version token, or an *apperr.ConflictError when the
// given version no longer matches the remote.
type Store interface {
	Get(ctx context.Context, path, branch string) (*File, error)
	Put(ctx context.Context, req PutRequest) (string, error)
	Exists(ctx context.Context, path, branch string) (bool, error)
}

// Decode returns the raw bytes of f.
func Decode(f *File) ([]byte, error) {
	switch f.Encoding {
	case EncodingNone:
		return []byte(f.Content), nil
	case EncodingBase64:
		// The contents API wraps base64 payloads at 60 columns.
		data, err := base64.StdEncoding.DecodeString(strings.NewReplacer("\n", "", "\r", "").Replace(f.Content))
		if err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", apperr.ErrFormat, f.Path, err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: unsupported encoding %q for %s", apperr.ErrFormat, f.Encoding, f.Path)
	}
}
