package cellevo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cellevo/internal/inspect"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	body := "population:\n  max_population: 6\nworld:\n  food_count: 12\nscheduler:\n  workers: 2\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	client, err := New(Options{
		ConfigPath: path,
		StoreKind:  "memory",
		ExportsDir: filepath.Join(t.TempDir(), "exports"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestClientRunRecordsRun(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	seed := int64(11)
	summary, err := client.Run(ctx, RunRequest{Ticks: 120, Seed: &seed, FlushEvery: 25})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" || summary.Ticks != 120 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Stats.Ticks != 120 {
		t.Fatalf("expected every tick recorded, got %d", summary.Stats.Ticks)
	}
	if summary.Stats.Bootstrapped < 6 || summary.Stats.PeakPopulation > 6 {
		t.Fatalf("unexpected population stats: %+v", summary.Stats)
	}

	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != summary.RunID || runs[0].FinalTick != 120 || runs[0].Seed != 11 {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if runs[0].Config == "" {
		t.Fatal("expected the effective config to be recorded")
	}

	lineage, err := client.Lineage(ctx, LineageRequest{Latest: true})
	if err != nil {
		t.Fatalf("lineage: %v", err)
	}
	if len(lineage) < 6 {
		t.Fatalf("expected at least the bootstrap agents, got %d", len(lineage))
	}
	for _, item := range lineage[:6] {
		if !item.Bootstrap || item.Generation != 0 {
			t.Fatalf("expected bootstrap agent first, got %+v", item)
		}
	}

	if _, err := client.Fitness(ctx, FitnessRequest{RunID: summary.RunID, Limit: 3}); err != nil {
		t.Fatalf("fitness: %v", err)
	}
}

func TestClientLineageAncestry(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	if _, err := client.Run(ctx, RunRequest{Ticks: 200}); err != nil {
		t.Fatalf("run: %v", err)
	}
	all, err := client.Lineage(ctx, LineageRequest{Latest: true})
	if err != nil {
		t.Fatalf("lineage: %v", err)
	}
	last := all[len(all)-1]

	chain, err := client.Lineage(ctx, LineageRequest{Latest: true, Agent: last.AgentID})
	if err != nil {
		t.Fatalf("ancestry: %v", err)
	}
	if chain[0].AgentID != last.AgentID || len(chain) != last.Generation+1 {
		t.Fatalf("unexpected ancestry chain for %+v: %+v", last, chain)
	}
	if !chain[len(chain)-1].Bootstrap {
		t.Fatalf("ancestry must end at a bootstrap agent: %+v", chain)
	}

	if _, err := client.Lineage(ctx, LineageRequest{Latest: true, Agent: 1 << 40}); err == nil {
		t.Fatal("expected unknown agent error")
	}
}

func TestClientRequestValidation(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	if _, err := client.Lineage(ctx, LineageRequest{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected run id/latest conflict")
	}
	if _, err := client.Lineage(ctx, LineageRequest{Latest: true}); err == nil {
		t.Fatal("expected no runs error")
	}
	if _, err := client.Fitness(ctx, FitnessRequest{}); err == nil {
		t.Fatal("expected missing run id error")
	}
	if _, err := client.Runs(ctx, RunsRequest{Limit: -1}); err == nil {
		t.Fatal("expected limit error")
	}
	if _, err := client.Export(ctx, ExportRequest{}); err == nil {
		t.Fatal("expected export selector error")
	}
}

func TestClientExport(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	summary, err := client.Run(ctx, RunRequest{Ticks: 40})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	outDir := t.TempDir()
	exported, err := client.Export(ctx, ExportRequest{Latest: true, OutDir: outDir})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.RunID != summary.RunID || exported.Directory != filepath.Join(outDir, summary.RunID) {
		t.Fatalf("unexpected export: %+v", exported)
	}
	for _, file := range []string{"run.json", "ticks.csv", "lineage.json", "fitness.json", "summary.json"} {
		if _, err := os.Stat(filepath.Join(exported.Directory, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}
}

func TestClientServeExposesInspector(t *testing.T) {
	client := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handlers := make(chan http.Handler, 1)
	done := make(chan error, 1)
	go func() {
		_, err := client.Serve(ctx, ServeRequest{
			RunRequest: RunRequest{Ticks: 30},
			Addr:       "127.0.0.1:0",
			Ready:      func(h http.Handler) { handlers <- h },
		})
		done <- err
	}()

	var handler http.Handler
	select {
	case handler = <-handlers:
	case <-time.After(5 * time.Second):
		t.Fatal("inspector handler never became ready")
	}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(srv.URL + "/stats")
		if err != nil {
			t.Fatalf("get stats: %v", err)
		}
		var stats struct {
			Tick int `json:"tick"`
		}
		err = json.NewDecoder(resp.Body).Decode(&stats)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode stats: %v", err)
		}
		if stats.Tick == 30 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("simulation did not reach tick 30, at %d", stats.Tick)
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Get(srv.URL + "/agents")
	if err != nil {
		t.Fatalf("get agents: %v", err)
	}
	var agents []inspect.AgentView
	if err := json.NewDecoder(resp.Body).Decode(&agents); err != nil {
		t.Fatalf("decode agents: %v", err)
	}
	resp.Body.Close()
	if len(agents) == 0 || len(agents) > 6 {
		t.Fatalf("unexpected agents: %d", len(agents))
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancellation")
	}
}
