package corpus

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/cloo-solutions/remind/internal/domain"
)

// Store owns the delta and full corpus files. Files are always replaced
// atomically. Commits are serialised across processes by a lock file next to
// the full corpus, and the full corpus is re-read under that lock, so two
// processes committing at once never drop each other's entries.
type Store struct {
	deltaPath string
	fullPath  string
	mu        sync.RWMutex
	writeLock *FileLock
	cycleLock *FileLock
}

func NewStore(deltaPath, fullPath string) *Store {
	return &Store{
		deltaPath: deltaPath,
		fullPath:  fullPath,
		writeLock: NewFileLock(fullPath + ".lock"),
		cycleLock: NewFileLock(fullPath + ".cycle.lock"),
	}
}

func (s *Store) FullPath() string {
	return s.fullPath
}

// LoadFull returns the full corpus, empty when the file does not exist yet.
func (s *Store) LoadFull() (domain.Corpus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return load(s.fullPath)
}

// LoadDelta returns the entries added by the last consolidation cycle.
func (s *Store) LoadDelta() (domain.Corpus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return load(s.deltaPath)
}

// Load returns the delta corpus when delta is true, else the full corpus.
func (s *Store) Load(delta bool) (domain.Corpus, error) {
	if delta {
		return s.LoadDelta()
	}
	return s.LoadFull()
}

// ReadFullRaw returns the encoded full corpus for archiving.
func (s *Store) ReadFullRaw() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return os.ReadFile(s.fullPath)
}

// LockCycle holds the consolidation cycle lock until the returned function is
// called. At most one consolidation cycle runs per corpus home, whichever
// process starts it.
func (s *Store) LockCycle(ctx context.Context) (func(), error) {
	return s.cycleLock.LockContext(ctx)
}

// Commit merges delta into the full corpus and writes the full corpus, then the
// delta. The delta file is replaced wholesale. It returns the number of entries
// added to the full corpus.
func (s *Store) Commit(delta domain.Corpus) (int, error) {
	release, err := s.writeLock.Lock()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrCorpusWriteFailed, err)
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()

	full, err := load(s.fullPath)
	if err != nil {
		return 0, err
	}
	merged, added := Merge(full, delta)

	if err := writeJSONAtomic(s.fullPath, merged); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrCorpusWriteFailed, err)
	}
	if err := writeJSONAtomic(s.deltaPath, nonNil(delta)); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrCorpusWriteFailed, err)
	}
	return added, nil
}

func load(path string) (domain.Corpus, error) {
	var c domain.Corpus
	if err := readJSON(path, &c); err != nil {
		return nil, err
	}
	return c, nil
}

func nonNil(c domain.Corpus) domain.Corpus {
	if c == nil {
		return domain.Corpus{}
	}
	return c
}
