package corpus

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// IDSet is the persisted set of document ids already present in the semantic
// index. Ids are only ever added. Commit re-reads the file under a lock file
// and rewrites the union atomically, so sets held by different processes
// converge instead of overwriting each other.
type IDSet struct {
	path      string
	mu        sync.RWMutex
	ids       map[string]struct{}
	writeLock *FileLock
	cycleLock *FileLock
}

func newIDSet(path string) *IDSet {
	return &IDSet{
		path:      path,
		ids:       make(map[string]struct{}),
		writeLock: NewFileLock(path + ".lock"),
		cycleLock: NewFileLock(path + ".cycle.lock"),
	}
}

// LoadIDSet reads the id set at path. A missing file yields an empty set.
func LoadIDSet(path string) (*IDSet, error) {
	set := newIDSet(path)
	if err := set.Refresh(); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *IDSet) Path() string {
	return s.path
}

// Refresh adds the ids persisted on disk, including those committed by other
// processes since the set was loaded.
func (s *IDSet) Refresh() error {
	onDisk, err := s.read()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range onDisk {
		s.ids[id] = struct{}{}
	}
	return nil
}

// LockCycle holds the index sync cycle lock until the returned function is
// called, so two processes never embed the same pending entries.
func (s *IDSet) LockCycle(ctx context.Context) (func(), error) {
	return s.cycleLock.LockContext(ctx)
}

func (s *IDSet) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

func (s *IDSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Commit adds ids and persists the set. On a write failure the in-memory set is
// left unchanged so the ids are retried.
func (s *IDSet) Commit(ids []string) error {
	release, err := s.writeLock.Lock()
	if err != nil {
		return err
	}
	defer release()

	onDisk, err := s.read()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]struct{}, len(s.ids)+len(onDisk)+len(ids))
	for id := range s.ids {
		next[id] = struct{}{}
	}
	for _, id := range onDisk {
		next[id] = struct{}{}
	}
	for _, id := range ids {
		next[id] = struct{}{}
	}

	list := make([]string, 0, len(next))
	for id := range next {
		list = append(list, id)
	}
	sort.Strings(list)

	if err := writeJSONAtomic(s.path, list); err != nil {
		return err
	}
	s.ids = next
	return nil
}

func (s *IDSet) read() ([]string, error) {
	var ids []string
	if err := readJSON(s.path, &ids); err != nil {
		return nil, fmt.Errorf("failed to load processed ids: %w", err)
	}
	return ids, nil
}
