// Package cellevo is the programmatic entry point: it runs simulations,
// records them to a store and reads run records back.
package cellevo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"cellevo/internal/config"
	"cellevo/internal/inspect"
	"cellevo/internal/model"
	"cellevo/internal/sim"
	"cellevo/internal/stats"
	"cellevo/internal/storage"
)

const (
	defaultExportsDir = "exports"
	defaultFlushEvery = 100
)

type Options struct {
	// ConfigPath is a YAML file decoded over the embedded defaults.
	ConfigPath string
	StoreKind  string
	DBPath     string
	ExportsDir string
	Logger     *log.Logger
}

type Client struct {
	cfg        *config.Config
	store      storage.Store
	exportsDir string
	logger     *log.Logger
}

type RunRequest struct {
	// Ticks overrides the configured tick count when > 0.
	Ticks int
	// Seed overrides the configured seed when non-nil.
	Seed          *int64
	MaxPopulation int
	FlushEvery    int
}

type RunSummary struct {
	RunID           string
	Ticks           int
	FinalPopulation int
	Stats           stats.RunSummary
}

type ServeRequest struct {
	RunRequest
	Addr string
	// RealTime paces ticks to the configured tick length instead of
	// stepping as fast as possible.
	RealTime bool
	// Ready, when set, receives the inspector handler before serving.
	Ready func(http.Handler)
}

type RunsRequest struct {
	Limit int
}

type LineageRequest struct {
	RunID  string
	Latest bool
	Limit  int
	// Agent restricts the output to the ancestry of one agent.
	Agent uint64
}

type LineageItem struct {
	AgentID    uint64
	ParentID   uint64
	Generation int
	Time       float64
	Bootstrap  bool
	BirthX     float64
	BirthY     float64
}

type FitnessRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = cfg.Storage.Backend
	}
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = cfg.Storage.Path
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	store, err := storage.Open(context.Background(), storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	cfg.Storage = config.StorageConfig{Backend: storeKind, Path: dbPath}

	return &Client{
		cfg:        cfg,
		store:      store,
		exportsDir: exportsDir,
		logger:     logger,
	}, nil
}

func (c *Client) Config() *config.Config {
	return c.cfg
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Run executes a headless simulation and records it.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	r, err := c.startRun(ctx, req)
	if err != nil {
		return RunSummary{}, err
	}
	err = r.loop(ctx, false, nil)
	return r.finish(context.WithoutCancel(ctx), err)
}

// Serve runs a simulation while exposing the focused-agent inspector over
// HTTP. It returns once ctx is cancelled.
func (c *Client) Serve(ctx context.Context, req ServeRequest) (RunSummary, error) {
	addr := req.Addr
	if addr == "" {
		addr = c.cfg.Inspector.Addr
	}
	r, err := c.startRun(ctx, req.RunRequest)
	if err != nil {
		return RunSummary{}, err
	}

	insp := inspect.New()
	r.sim.Scheduler.ObserveEvaluations(insp)
	handler := inspect.NewServer(insp, c.logger).Routes()
	if req.Ready != nil {
		req.Ready(handler)
	}
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := r.loop(gctx, req.RealTime, insp); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		c.logger.Printf("inspector_listening addr=%s run_id=%s", addr, r.run.ID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("inspector server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return r.finish(context.WithoutCancel(ctx), g.Wait())
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]model.Run, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if req.Limit > 0 && len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}
	return runs, nil
}

func (c *Client) Lineage(ctx context.Context, req LineageRequest) ([]LineageItem, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	lineage, ok, err := c.store.GetLineage(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("lineage not found for run id: %s", runID)
	}

	depths := stats.LineageDepths(lineage)
	byID := make(map[uint64]model.LineageRecord, len(lineage))
	for _, rec := range lineage {
		byID[rec.AgentID] = rec
	}
	selected := lineage
	if req.Agent != 0 {
		selected = nil
		for _, id := range stats.Ancestry(lineage, req.Agent) {
			if rec, ok := byID[id]; ok {
				selected = append(selected, rec)
			}
		}
		if len(selected) == 0 {
			return nil, fmt.Errorf("agent %d not found in run %s", req.Agent, runID)
		}
	}
	if req.Limit > 0 && len(selected) > req.Limit {
		selected = selected[:req.Limit]
	}

	out := make([]LineageItem, 0, len(selected))
	for _, rec := range selected {
		out = append(out, LineageItem{
			AgentID:    rec.AgentID,
			ParentID:   rec.ParentID,
			Generation: depths[rec.AgentID],
			Time:       rec.Time,
			Bootstrap:  rec.Bootstrap,
			BirthX:     rec.BirthX,
			BirthY:     rec.BirthY,
		})
	}
	return out, nil
}

// Fitness ranks the agents alive at the end of a run by mean fitness.
func (c *Client) Fitness(ctx context.Context, req FitnessRequest) ([]stats.AgentFitness, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	records, ok, err := c.store.GetFitnessRecords(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fitness records not found for run id: %s", runID)
	}
	lineage, _, err := c.store.GetLineage(ctx, runID)
	if err != nil {
		return nil, err
	}
	ranked := stats.RankFitness(records, stats.LineageDepths(lineage))
	if req.Limit > 0 && len(ranked) > req.Limit {
		ranked = ranked[:req.Limit]
	}
	return ranked, nil
}

func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	artifacts, err := stats.Collect(ctx, c.store, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	dir, err := stats.WriteRunArtifacts(req.OutDir, artifacts)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(dir)}, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id or latest is required")
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs available")
	}
	return runs[0].ID, nil
}

// activeRun ties a simulation to the records written for it.
type activeRun struct {
	client     *Client
	run        model.Run
	sim        *sim.Simulation
	recorder   *storage.Recorder
	ticks      int
	flushEvery int
	last       model.TickSummary
}

func (c *Client) startRun(ctx context.Context, req RunRequest) (*activeRun, error) {
	cfg := *c.cfg
	if req.Ticks > 0 {
		cfg.Ticks = req.Ticks
	}
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	if req.MaxPopulation > 0 {
		cfg.Population.MaxPopulation = req.MaxPopulation
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	flushEvery := req.FlushEvery
	if flushEvery <= 0 {
		flushEvery = defaultFlushEvery
	}

	s, err := sim.New(&cfg, c.logger)
	if err != nil {
		return nil, err
	}
	encoded, err := cfg.Marshal()
	if err != nil {
		return nil, err
	}
	run := model.Run{
		VersionedRecord: storage.Versioned(),
		ID:              uuid.NewString(),
		StartedAt:       time.Now().UTC(),
		Seed:            cfg.Seed,
		MaxPopulation:   cfg.Population.MaxPopulation,
		Ticks:           cfg.Ticks,
		Config:          string(encoded),
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}

	recorder := storage.NewRecorder(c.store, run.ID)
	s.Controller.Observe(recorder)
	s.Scheduler.ObserveTicks(recorder)
	c.logger.Printf("run_started run_id=%s seed=%d max_population=%d ticks=%d", run.ID, run.Seed, run.MaxPopulation, run.Ticks)

	return &activeRun{
		client:     c,
		run:        run,
		sim:        s,
		recorder:   recorder,
		ticks:      cfg.Ticks,
		flushEvery: flushEvery,
	}, nil
}

// loop steps the simulation. A zero tick count runs until ctx ends.
func (r *activeRun) loop(ctx context.Context, realTime bool, insp *inspect.Inspector) error {
	var pace *time.Ticker
	if realTime {
		pace = time.NewTicker(time.Duration(r.sim.Config.Scheduler.TickSeconds * float64(time.Second)))
		defer pace.Stop()
	}
	for r.ticks == 0 || r.sim.Scheduler.Tick() < r.ticks {
		if pace != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-pace.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		summary, err := r.sim.Step(ctx)
		if err != nil {
			return err
		}
		r.last = summary
		if insp != nil {
			insp.Capture(summary, r.sim.Population().Agents())
		}
		if r.recorder.Pending() >= r.flushEvery {
			if err := r.recorder.Flush(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// finish persists whatever the run produced, even when loopErr is set.
func (r *activeRun) finish(ctx context.Context, loopErr error) (RunSummary, error) {
	err := loopErr
	err = multierr.Append(err, r.recorder.Finish(ctx, r.sim.Population().Agents()))
	r.run.FinalTick = r.sim.Scheduler.Tick()
	err = multierr.Append(err, r.client.store.SaveRun(ctx, r.run))

	out := RunSummary{
		RunID:           r.run.ID,
		Ticks:           r.run.FinalTick,
		FinalPopulation: r.sim.Population().Len(),
	}
	artifacts, collectErr := stats.Collect(ctx, r.client.store, r.run.ID)
	if collectErr == nil {
		out.Stats = stats.Summarize(artifacts)
	} else {
		err = multierr.Append(err, collectErr)
	}
	r.client.logger.Printf("run_completed run_id=%s ticks=%d population=%d births=%d deaths=%d mean_fitness=%.4f",
		out.RunID, out.Ticks, out.FinalPopulation, out.Stats.Births, out.Stats.Deaths, out.Stats.MeanFitness)
	return out, err
}
