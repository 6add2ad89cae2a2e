package store

import (
	"context"
	"sync"
	"time"

	"github.com/broadinstitute/dig-job-server/internal/apperrors"
)

// MemoryStore is a mutex-guarded in-memory Store. It backs unit tests and
// local runs without a database; semantics match PostgresStore.
type MemoryStore struct {
	mu       sync.RWMutex
	jobs     map[string]JobRecord
	datasets map[string]Dataset
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		jobs:     make(map[string]JobRecord),
		datasets: make(map[string]Dataset),
	}
}

func (s *MemoryStore) UpsertRunning(ctx context.Context, key, owner, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[key] = JobRecord{
		Key:       key,
		Owner:     owner,
		Status:    status,
		Log:       nil,
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

func (s *MemoryStore) Complete(ctx context.Context, key, status string, compressedLog []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[key]
	if !ok {
		return apperrors.NotFound("job", key)
	}
	rec.Status = status
	rec.Log = compressedLog
	rec.UpdatedAt = time.Now().UTC()
	s.jobs[key] = rec
	return nil
}

func (s *MemoryStore) GetStatus(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[key]
	if !ok {
		return "", apperrors.NotFound("job", key)
	}
	return rec.Status, nil
}

func (s *MemoryStore) GetLog(ctx context.Context, key string) (string, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[key]
	if !ok {
		return "", nil, apperrors.NotFound("job", key)
	}
	return rec.Status, rec.Log, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, key)
	return nil
}

func (s *MemoryStore) CreateDataset(ctx context.Context, d Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.datasets[d.Key]; exists {
		return apperrors.Conflict("dataset", d.Key, "dataset already exists")
	}
	d.UploadedAt = time.Now().UTC()
	s.datasets[d.Key] = d
	return nil
}

func (s *MemoryStore) GetDataset(ctx context.Context, key string) (Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.datasets[key]
	if !ok {
		return Dataset{}, apperrors.NotFound("dataset", key)
	}
	return d, nil
}

func (s *MemoryStore) ListDatasets(ctx context.Context, owner string) ([]Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var datasets []Dataset
	for _, d := range s.datasets {
		if owner == "" || d.Owner == owner {
			datasets = append(datasets, d)
		}
	}
	return datasets, nil
}

func (s *MemoryStore) DeleteDataset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[key]; !ok {
		return apperrors.NotFound("dataset", key)
	}
	delete(s.datasets, key)
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close() {}

// Verify MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
