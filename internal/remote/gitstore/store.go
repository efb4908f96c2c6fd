// Package gitstore implements remote.Store on a local git working copy.
// Version tokens are blob hashes, so they line up with what the hosted
// contents API reports for the same file.
package gitstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/starford/newsdesk/internal/apperr"
	"github.com/starford/newsdesk/internal/remote"
)

// Author is the commit signature used for writes.
type Author struct {
	Name  string
	Email string
}

// Store reads and commits files in a non-bare repository at dir.
type Store struct {
	dir    string
	author Author
	logger *slog.Logger
	mu     sync.Mutex
}

var _ remote.Store = (*Store)(nil)

// Open opens the repository at dir.
func Open(dir string, author Author, logger *slog.Logger) (*Store, error) {
	if _, err := git.PlainOpen(dir); err != nil {
		return nil, fmt.Errorf("gitstore: open %s: %w", dir, err)
	}
	return newStore(dir, author, logger), nil
}

// Init creates a repository at dir with an empty root commit on branch,
// or opens it if one already exists.
func Init(dir, branch string, author Author, logger *slog.Logger) (*Store, error) {
	if _, err := git.PlainOpen(dir); err == nil {
		return newStore(dir, author, logger), nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("gitstore: create dir: %w", err)
	}
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		return nil, fmt.Errorf("gitstore: init: %w", err)
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch))
	if err := repo.Storer.SetReference(head); err != nil {
		return nil, fmt.Errorf("gitstore: set HEAD: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("gitstore: worktree: %w", err)
	}
	s := newStore(dir, author, logger)
	if _, err := wt.Commit("Initialize repository", &git.CommitOptions{
		AllowEmptyCommits: true,
		Author:            s.signature(),
	}); err != nil {
		return nil, fmt.Errorf("gitstore: root commit: %w", err)
	}
	return s, nil
}

func newStore(dir string, author Author, logger *slog.Logger) *Store {
	if author.Name == "" {
		author.Name = "newsdesk"
	}
	if author.Email == "" {
		author.Email = "newsdesk@localhost"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, author: author, logger: logger}
}

// Dir returns the repository root.
func (s *Store) Dir() string {
	return s.dir
}

// Get reads path from the tip of branch. An empty branch means HEAD.
func (s *Store) Get(_ context.Context, p, branch string) (*remote.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if err != nil {
		return nil, fmt.Errorf("gitstore: open: %w", err)
	}
	file, err := s.lookup(repo, p, branch)
	if err != nil {
		return nil, err
	}
	r, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("gitstore: read %s: %w", p, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gitstore: read %s: %w", p, err)
	}
	return &remote.File{
		Path:     p,
		Content:  string(data),
		Encoding: remote.EncodingNone,
		Version:  file.Hash.String(),
	}, nil
}

// Exists reports whether path exists at the tip of branch.
func (s *Store) Exists(ctx context.Context, p, branch string) (bool, error) {
	_, err := s.Get(ctx, p, branch)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperr.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Put commits req.Content to req.Branch when req.Version still matches the
// file's current blob hash, and returns the new blob hash.
func (s *Store) Put(_ context.Context, req remote.PutRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clean, err := cleanPath(req.Path)
	if err != nil {
		return "", err
	}
	repo, err := git.PlainOpen(s.dir)
	if err != nil {
		return "", fmt.Errorf("gitstore: open: %w", err)
	}
	if _, err := resolveBranch(repo, req.Branch); err != nil {
		return "", err
	}

	current, err := s.lookup(repo, clean, req.Branch)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		if req.Version != "" {
			return "", &apperr.ConflictError{Path: clean, Expected: req.Version, Message: "file no longer exists"}
		}
	case err != nil:
		return "", err
	case current.Hash.String() != req.Version:
		msg := fmt.Sprintf("%s is at %s but expected %s", clean, current.Hash, req.Version)
		if req.Version == "" {
			msg = fmt.Sprintf("%s already exists at %s", clean, current.Hash)
		}
		return "", &apperr.ConflictError{Path: clean, Expected: req.Version, Message: msg}
	}

	if err := checkoutBranch(repo, req.Branch); err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("gitstore: worktree: %w", err)
	}
	abs := filepath.Join(wt.Filesystem.Root(), filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("gitstore: mkdir: %w", err)
	}
	if err := os.WriteFile(abs, req.Content, 0o644); err != nil {
		return "", fmt.Errorf("gitstore: write %s: %w", clean, err)
	}
	if _, err := wt.Add(clean); err != nil {
		return "", fmt.Errorf("gitstore: add %s: %w", clean, err)
	}
	msg := req.Message
	if msg == "" {
		msg = "Update " + clean
	}
	hash, err := wt.Commit(msg, &git.CommitOptions{Author: s.signature(), AllowEmptyCommits: true})
	if err != nil {
		return "", fmt.Errorf("gitstore: commit %s: %w", clean, err)
	}

	commit, err := repo.CommitObject(hash)
	if err != nil {
		return "", fmt.Errorf("gitstore: read commit: %w", err)
	}
	file, err := commit.File(clean)
	if err != nil {
		return "", fmt.Errorf("gitstore: read committed %s: %w", clean, err)
	}
	s.logger.Info("gitstore: committed",
		slog.String("path", clean),
		slog.String("commit", hash.String()),
		slog.String("blob", file.Hash.String()))
	return file.Hash.String(), nil
}

func (s *Store) lookup(repo *git.Repository, p, branch string) (*object.File, error) {
	clean, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	ref, err := resolveBranch(repo, branch)
	if err != nil {
		return nil, err
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("gitstore: load commit: %w", err)
	}
	file, err := commit.File(clean)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: %s on %s", apperr.ErrNotFound, clean, ref.Name().Short())
		}
		return nil, fmt.Errorf("gitstore: lookup %s: %w", clean, err)
	}
	return file, nil
}

func (s *Store) signature() *object.Signature {
	return &object.Signature{Name: s.author.Name, Email: s.author.Email, When: time.Now()}
}

func resolveBranch(repo *git.Repository, branch string) (*plumbing.Reference, error) {
	name := plumbing.HEAD
	if branch != "" {
		name = plumbing.NewBranchReferenceName(branch)
	}
	ref, err := repo.Reference(name, true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, fmt.Errorf("%w: branch %s", apperr.ErrNotFound, branch)
		}
		return nil, fmt.Errorf("gitstore: resolve branch %s: %w", branch, err)
	}
	return ref, nil
}

func checkoutBranch(repo *git.Repository, branch string) error {
	if branch == "" {
		return nil
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("gitstore: worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(branch), Force: true}); err != nil {
		return fmt.Errorf("gitstore: checkout %s: %w", branch, err)
	}
	return nil
}

func cleanPath(p string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(p, "/"))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: invalid path %q", apperr.ErrNotFound, p)
	}
	return clean, nil
}
