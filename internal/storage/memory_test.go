package storage

import (
	"context"
	"testing"
	"time"

	"cellevo/internal/model"
)

func TestMemoryStoreRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		run := model.Run{VersionedRecord: Versioned(), ID: id, StartedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "c" || runs[2].ID != "a" {
		t.Fatalf("unexpected run order: %+v", runs)
	}

	run, ok, err := store.GetRun(ctx, "b")
	if err != nil || !ok || run.ID != "b" {
		t.Fatalf("get run: %+v ok=%t err=%v", run, ok, err)
	}
	if _, ok, _ := store.GetRun(ctx, "missing"); ok {
		t.Fatal("expected missing run")
	}
}

func TestMemoryStoreAppendsTickSummaries(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	if err := store.AppendTickSummaries(ctx, "run-1", []model.TickSummary{{Tick: 1}, {Tick: 2}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.AppendTickSummaries(ctx, "run-1", []model.TickSummary{{Tick: 3, Births: 2}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	ticks, ok, err := store.GetTickSummaries(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get ticks: ok=%t err=%v", ok, err)
	}
	if len(ticks) != 3 || ticks[2].Births != 2 {
		t.Fatalf("unexpected ticks: %+v", ticks)
	}
}

func TestMemoryStoreLineageSortedByAgent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	if err := store.AppendLineage(ctx, "run-1", []model.LineageRecord{{AgentID: 5, ParentID: 2}, {AgentID: 1, Bootstrap: true}}); err != nil {
		t.Fatalf("append lineage: %v", err)
	}
	lineage, ok, err := store.GetLineage(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get lineage: ok=%t err=%v", ok, err)
	}
	if len(lineage) != 2 || lineage[0].AgentID != 1 || lineage[1].ParentID != 2 {
		t.Fatalf("unexpected lineage: %+v", lineage)
	}
}

func TestMemoryStoreFitnessRecordsAreCopied(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := []model.FitnessRecord{{AgentID: 3, Total: 3, History: []float64{0.1, 0.2, 0.3}}}
	if err := store.SaveFitnessRecords(ctx, "run-1", input); err != nil {
		t.Fatalf("save fitness: %v", err)
	}
	input[0].History[0] = 42

	output, ok, err := store.GetFitnessRecords(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get fitness: ok=%t err=%v", ok, err)
	}
	if output[0].History[0] != 0.1 {
		t.Fatalf("stored history aliases caller slice: %+v", output[0].History)
	}
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveRun(context.Background(), model.Run{ID: "x"}); err == nil {
		t.Fatal("expected error before init")
	}
}
