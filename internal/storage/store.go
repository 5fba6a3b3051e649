package storage

import (
	"context"

	"cellevo/internal/model"
)

// Store persists run records: run metadata, per-tick summaries, the birth
// lineage and end-of-run fitness histories. Networks are never persisted.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, bool, error)
	ListRuns(ctx context.Context) ([]model.Run, error)
	AppendTickSummaries(ctx context.Context, runID string, summaries []model.TickSummary) error
	GetTickSummaries(ctx context.Context, runID string) ([]model.TickSummary, bool, error)
	AppendLineage(ctx context.Context, runID string, lineage []model.LineageRecord) error
	GetLineage(ctx context.Context, runID string) ([]model.LineageRecord, bool, error)
	SaveFitnessRecords(ctx context.Context, runID string, records []model.FitnessRecord) error
	GetFitnessRecords(ctx context.Context, runID string) ([]model.FitnessRecord, bool, error)
}
