package memstorage

import (
	"context"
	"maps"
	"sync"

	"github.com/makkenzo/keygate/internal/domain/apikey"
)

// SnapshotStore keeps the snapshot in process memory. It backs the
// "memory" storage driver and lets tests inject write failures.
type SnapshotStore struct {
	mu      sync.RWMutex
	records map[string]apikey.CredentialRecord
	saveErr error
	saves   int
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		records: make(map[string]apikey.CredentialRecord),
	}
}

var _ apikey.SnapshotStore = (*SnapshotStore)(nil)

func (s *SnapshotStore) Load(ctx context.Context) (map[string]apikey.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.records), nil
}

func (s *SnapshotStore) Save(ctx context.Context, records map[string]apikey.CredentialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return s.saveErr
	}
	s.records = maps.Clone(records)
	s.saves++
	return nil
}

func (s *SnapshotStore) Ping(ctx context.Context) error {
	return nil
}

// FailSaves makes every following Save return err; nil restores success.
func (s *SnapshotStore) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

func (s *SnapshotStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
