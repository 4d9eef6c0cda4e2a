package refs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

const refLockRetryDelay = 5 * time.Millisecond

// lockfile is a "<path>.lock" file created exclusively. It doubles as the
// staging area for the new content: commit renames it over path.
type lockfile struct {
	path     string // the file being replaced
	lockPath string
	// pruneStop bounds the directories removed when an uncommitted lock
	// is released. Empty disables pruning.
	pruneStop string
	f         *os.File
	done      bool
}

// acquireLock creates path's parent directories and takes the lock.
// Directories it created are pruned again if the lock is released
// without a commit, up to pruneStop.
func acquireLock(ctx context.Context, path, pruneStop string, timeout time.Duration) (*lockfile, error) {
	lockPath := path + ".lock"
	deadline := time.Now().Add(timeout)
	for {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			if errors.Is(err, syscall.ENOTDIR) {
				return nil, fmt.Errorf("%w: a ref exists at a parent of %q", ErrNameConflict, path)
			}
			return nil, fmt.Errorf("lock %q: mkdir: %w", path, err)
		}
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return &lockfile{path: path, lockPath: lockPath, pruneStop: pruneStop, f: f}, nil
		}
		// ENOENT means another writer pruned the directory between our
		// mkdir and open; the next round recreates it.
		if !os.IsExist(err) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("lock %q: %w", path, err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w %q", ErrLockTimeout, lockPath)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock %q: %w", path, ctx.Err())
		case <-time.After(refLockRetryDelay):
		}
	}
}

// stage writes content into the lockfile and makes it durable.
func (l *lockfile) stage(content []byte) error {
	if _, err := l.f.Write(content); err != nil {
		return fmt.Errorf("write %q: %w", l.lockPath, err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("sync %q: %w", l.lockPath, err)
	}
	err := l.f.Close()
	l.f = nil
	if err != nil {
		return fmt.Errorf("close %q: %w", l.lockPath, err)
	}
	return nil
}

// commit atomically replaces the target file with the staged content. An
// empty directory left at the target path is removed first.
func (l *lockfile) commit() error {
	if info, err := os.Lstat(l.path); err == nil && info.IsDir() {
		if err := os.Remove(l.path); err != nil {
			return fmt.Errorf("remove directory in the way of %q: %w", l.path, err)
		}
	}
	if err := os.Rename(l.lockPath, l.path); err != nil {
		return fmt.Errorf("rename %q: %w", l.lockPath, err)
	}
	l.done = true
	return nil
}

// release drops the lock without touching the target file. It is a no-op
// after commit.
func (l *lockfile) release() {
	if l.f != nil {
		_ = l.f.Close()
		l.f = nil
	}
	if !l.done {
		_ = os.Remove(l.lockPath)
		l.done = true
		if l.pruneStop != "" {
			pruneEmptyParents(l.path, l.pruneStop)
		}
	}
}
