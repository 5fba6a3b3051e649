package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"cellevo/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.Run
	ticks       map[string][]model.TickSummary
	lineage     map[string][]model.LineageRecord
	fitness     map[string][]model.FitnessRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.Run)
	s.ticks = make(map[string][]model.TickSummary)
	s.lineage = make(map[string][]model.LineageRecord)
	s.fitness = make(map[string][]model.FitnessRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

// ListRuns returns every run, most recently started first.
func (s *MemoryStore) ListRuns(_ context.Context) ([]model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) AppendTickSummaries(_ context.Context, runID string, summaries []model.TickSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.ticks[runID] = append(s.ticks[runID], summaries...)
	return nil
}

func (s *MemoryStore) GetTickSummaries(_ context.Context, runID string) ([]model.TickSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticks, ok := s.ticks[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.TickSummary, len(ticks))
	copy(copied, ticks)
	return copied, true, nil
}

func (s *MemoryStore) AppendLineage(_ context.Context, runID string, lineage []model.LineageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.lineage[runID] = append(s.lineage[runID], lineage...)
	return nil
}

// GetLineage returns the lineage of a run in agent id order.
func (s *MemoryStore) GetLineage(_ context.Context, runID string) ([]model.LineageRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lineage, ok := s.lineage[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.LineageRecord, len(lineage))
	copy(copied, lineage)
	sort.Slice(copied, func(i, j int) bool { return copied[i].AgentID < copied[j].AgentID })
	return copied, true, nil
}

func (s *MemoryStore) SaveFitnessRecords(_ context.Context, runID string, records []model.FitnessRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.fitness[runID] = copyFitnessRecords(records)
	return nil
}

func (s *MemoryStore) GetFitnessRecords(_ context.Context, runID string) ([]model.FitnessRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.fitness[runID]
	if !ok {
		return nil, false, nil
	}
	return copyFitnessRecords(records), true, nil
}

var errNotInitialized = errors.New("store is not initialized")

func copyFitnessRecords(records []model.FitnessRecord) []model.FitnessRecord {
	copied := make([]model.FitnessRecord, len(records))
	for i, record := range records {
		record.History = append([]float64(nil), record.History...)
		copied[i] = record
	}
	sort.Slice(copied, func(i, j int) bool { return copied[i].AgentID < copied[j].AgentID })
	return copied
}

func sortRuns(runs []model.Run) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
}
