package corpus

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 50 * time.Millisecond

// FileLock is an advisory flock(2) lock on a sidecar file, shared by every
// remindd process working on the same corpus home. The kernel lock only
// excludes other processes, so goroutines of one process queue on mu first.
type FileLock struct {
	mu sync.Mutex
	fl *flock.Flock
}

func NewFileLock(path string) *FileLock {
	return &FileLock{fl: flock.New(path)}
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.fl.Path()
}

// Lock blocks until the lock is held and returns the function releasing it.
func (l *FileLock) Lock() (func(), error) {
	return l.LockContext(context.Background())
}

// LockContext is Lock that gives up when ctx is done.
func (l *FileLock) LockContext(ctx context.Context) (func(), error) {
	l.mu.Lock()

	dir := filepath.Dir(l.fl.Path())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	locked, err := l.fl.TryLockContext(ctx, lockRetryDelay)
	if err == nil && !locked {
		err = ctx.Err()
	}
	if err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("failed to lock %s: %w", l.fl.Path(), err)
	}

	return func() {
		if err := l.fl.Unlock(); err != nil {
			log.Printf("corpus: failed to unlock %s: %v", l.fl.Path(), err)
		}
		l.mu.Unlock()
	}, nil
}
