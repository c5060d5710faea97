package storage

import (
	"context"
	"sort"
	"sync"

	"mgsearch/internal/model"
)

type MemoryStore struct {
	mu           sync.RWMutex
	initialized  bool
	coordSystems map[string]model.CoordSystem
	builds       map[string][]model.BuildRecord
	history      map[string][]float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.coordSystems = make(map[string]model.CoordSystem)
	s.builds = make(map[string][]model.BuildRecord)
	s.history = make(map[string][]float64)
	return nil
}

func (s *MemoryStore) SaveCoordSystem(_ context.Context, cs model.CoordSystem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.coordSystems[cs.Name] = cs
	return nil
}

func (s *MemoryStore) GetCoordSystem(_ context.Context, name string) (model.CoordSystem, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cs, ok := s.coordSystems[name]
	return cs, ok, nil
}

func (s *MemoryStore) SaveBuildRecord(_ context.Context, record model.BuildRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.builds[record.Name] = append(s.builds[record.Name], record)
	return nil
}

func (s *MemoryStore) ListBuildRecords(_ context.Context, name string) ([]model.BuildRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]model.BuildRecord, len(s.builds[name]))
	copy(records, s.builds[name])
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAtUTC > records[j].CreatedAtUTC
	})
	return records, nil
}

func (s *MemoryStore) SaveFitnessHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := append([]float64(nil), history...)
	s.history[runID] = copied
	return nil
}

func (s *MemoryStore) GetFitnessHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	copied := append([]float64(nil), history...)
	return copied, true, nil
}
