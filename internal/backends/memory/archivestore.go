package memory

import (
	"archivist/internal/types"
	"context"
	"slices"
	"sync"
	"time"
)

// ArchiveStore keeps archives in process memory.
type ArchiveStore struct {
	mu       sync.RWMutex
	nextID   types.ArchiveID
	archives []types.Archive
}

func NewArchiveStore() *ArchiveStore {
	return &ArchiveStore{}
}

func (s *ArchiveStore) FindArchive(_ context.Context, q types.ArchiveQuery, minArchivedAt time.Time) (types.Lookup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.SelectArchive(s.archives, q, minArchivedAt), nil
}

func (s *ArchiveStore) HasFinerArchives(_ context.Context, siteID int, period types.Period) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.HasFinerArchive(s.archives, siteID, period), nil
}

func (s *ArchiveStore) Invalidate(_ context.Context, siteIDs []int, dates []time.Time, cascade bool, segment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.archives {
		for _, d := range dates {
			if types.ShouldInvalidate(s.archives[i], siteIDs, d, cascade, segment) {
				s.archives[i].Done = types.DoneInvalidated
				break
			}
		}
	}
	return nil
}

func (s *ArchiveStore) SaveArchive(_ context.Context, a types.Archive) (types.ArchiveID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	a.ID = s.nextID
	s.archives = append(s.archives, a)
	return a.ID, nil
}

func (s *ArchiveStore) GetArchive(_ context.Context, id types.ArchiveID) (types.Archive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.archives, func(a types.Archive) bool { return a.ID == id })
	if i < 0 {
		return types.Archive{}, types.Err(types.ErrNotFound, nil, "archive %d", id)
	}
	return s.archives[i], nil
}

// All returns a copy of every stored archive.
func (s *ArchiveStore) All() []types.Archive {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.archives)
}
