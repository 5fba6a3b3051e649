package storage

import (
	"context"
	"fmt"

	"cellevo/internal/model"
	"cellevo/internal/population"
)

// Recorder observes births and completed ticks, buffers them, and writes
// them to a Store on Flush. Observer callbacks never do I/O.
type Recorder struct {
	store   Store
	runID   string
	lineage []model.LineageRecord
	ticks   []model.TickSummary
}

func NewRecorder(store Store, runID string) *Recorder {
	return &Recorder{store: store, runID: runID}
}

func (r *Recorder) RunID() string {
	return r.runID
}

func (r *Recorder) AgentBorn(a *population.Agent, bootstrap bool) {
	r.lineage = append(r.lineage, model.LineageRecord{
		AgentID:   a.ID,
		ParentID:  a.ParentID,
		Time:      a.BornAt,
		Bootstrap: bootstrap,
		BirthX:    a.BirthPlace.X,
		BirthY:    a.BirthPlace.Y,
	})
}

func (r *Recorder) TickCompleted(summary model.TickSummary) {
	r.ticks = append(r.ticks, summary)
}

// Pending is the number of buffered tick summaries.
func (r *Recorder) Pending() int {
	return len(r.ticks)
}

func (r *Recorder) Flush(ctx context.Context) error {
	if len(r.lineage) > 0 {
		if err := r.store.AppendLineage(ctx, r.runID, r.lineage); err != nil {
			return fmt.Errorf("append lineage: %w", err)
		}
		r.lineage = r.lineage[:0]
	}
	if len(r.ticks) > 0 {
		if err := r.store.AppendTickSummaries(ctx, r.runID, r.ticks); err != nil {
			return fmt.Errorf("append tick summaries: %w", err)
		}
		r.ticks = r.ticks[:0]
	}
	return nil
}

// Finish flushes what is buffered and stores the fitness history of every
// agent still alive.
func (r *Recorder) Finish(ctx context.Context, agents []*population.Agent) error {
	if err := r.Flush(ctx); err != nil {
		return err
	}
	records := make([]model.FitnessRecord, 0, len(agents))
	for _, a := range agents {
		records = append(records, model.FitnessRecord{
			AgentID:   a.ID,
			Total:     a.Fitness.Total(),
			Offspring: a.Offspring,
			History:   a.Fitness.Values(),
		})
	}
	if err := r.store.SaveFitnessRecords(ctx, r.runID, records); err != nil {
		return fmt.Errorf("save fitness records: %w", err)
	}
	return nil
}
