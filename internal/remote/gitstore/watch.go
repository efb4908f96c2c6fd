package gitstore

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// RefCallback receives the new tip of a watched branch.
type RefCallback func(branch, hash string)

const refDebounce = 150 * time.Millisecond

// Watch reports moves of branch made by anyone, including other processes
// committing to the same repository, until ctx is cancelled. Bursts of ref
// file events are debounced and only changed tips are reported.
func (s *Store) Watch(ctx context.Context, branch string, cb RefCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	gitDir := filepath.Join(s.dir, git.GitDirName)
	refsDir := filepath.Join(gitDir, "refs", "heads")
	if err := os.MkdirAll(refsDir, 0o755); err != nil {
		return err
	}
	for _, dir := range []string{gitDir, refsDir} {
		if err := w.Add(dir); err != nil {
			return err
		}
	}

	last := s.tip(branch)
	s.logger.Info("gitstore: watching branch", slog.String("branch", branch), slog.String("tip", last))

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			s.logger.Info("gitstore: watcher stopped")
			return nil

		case <-fire:
			fire = nil
			if tip := s.tip(branch); tip != "" && tip != last {
				last = tip
				s.logger.Debug("gitstore: branch moved", slog.String("branch", branch), slog.String("tip", tip))
				if cb != nil {
					cb(branch, tip)
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if name != branch && name != "packed-refs" && !strings.HasPrefix(name, branch+".") {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(refDebounce)
			} else {
				timer.Reset(refDebounce)
			}
			fire = timer.C

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("gitstore: watcher error", slog.String("error", werr.Error()))
		}
	}
}

func (s *Store) tip(branch string) string {
	repo, err := git.PlainOpen(s.dir)
	if err != nil {
		return ""
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return ""
	}
	return ref.Hash().String()
}
