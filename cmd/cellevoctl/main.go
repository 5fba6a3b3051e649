package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"cellevo/internal/config"
	"cellevo/pkg/cellevo"
)

const exportsDir = "exports"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "serve":
		return runServe(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "lineage":
		return runLineage(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "config":
		return runConfig(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// storeFlags are shared by every command that opens a client.
type storeFlags struct {
	configPath *string
	storeKind  *string
	dbPath     *string
	verbose    *bool
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		configPath: fs.String("config", "", "YAML config file layered over the defaults"),
		storeKind:  fs.String("store", "", "store backend: memory|sqlite (default from config, then build)"),
		dbPath:     fs.String("db-path", "", "sqlite database path (default from config)"),
		verbose:    fs.Bool("v", false, "log run events to stderr"),
	}
}

func (f storeFlags) client() (*cellevo.Client, error) {
	opts := cellevo.Options{
		ConfigPath: *f.configPath,
		StoreKind:  *f.storeKind,
		DBPath:     *f.dbPath,
		ExportsDir: exportsDir,
	}
	if *f.verbose {
		opts.Logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return cellevo.New(opts)
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	ticks := fs.Int("ticks", 0, "ticks to simulate (default from config)")
	seed := fs.Int64("seed", 0, "rng seed (default from config)")
	maxPop := fs.Int("max-pop", 0, "population cap (default from config)")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ticks < 0 {
		return errors.New("ticks must be >= 0")
	}
	if *maxPop < 0 {
		return errors.New("max-pop must be >= 0")
	}

	client, err := sf.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	req := cellevo.RunRequest{Ticks: *ticks, MaxPopulation: *maxPop}
	if flagWasSet(fs, "seed") {
		req.Seed = seed
	}
	if req.Ticks == 0 && client.Config().Ticks == 0 {
		return errors.New("run needs a finite tick count; use serve for open-ended runs")
	}
	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(summary)
	}
	printSummary(summary)
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	addr := fs.String("addr", "", "inspector listen address (default from config)")
	ticks := fs.Int("ticks", 0, "ticks to simulate before idling (default from config, 0 runs until stopped)")
	seed := fs.Int64("seed", 0, "rng seed (default from config)")
	realTime := fs.Bool("realtime", true, "pace ticks to the configured tick length")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ticks < 0 {
		return errors.New("ticks must be >= 0")
	}

	client, err := sf.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := cellevo.ServeRequest{
		RunRequest: cellevo.RunRequest{Ticks: *ticks},
		Addr:       *addr,
		RealTime:   *realTime,
	}
	if flagWasSet(fs, "seed") {
		req.Seed = seed
	}
	summary, err := client.Serve(ctx, req)
	if err != nil {
		return err
	}
	printSummary(summary)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := sf.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, cellevo.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		return writeJSON(runs)
	}
	for _, r := range runs {
		fmt.Printf("run_id=%s started_at=%s seed=%d max_population=%d ticks=%d final_tick=%d\n",
			r.ID,
			r.StartedAt.Format("2006-01-02T15:04:05Z"),
			r.Seed,
			r.MaxPopulation,
			r.Ticks,
			r.FinalTick,
		)
	}
	return nil
}

func runLineage(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lineage", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show lineage for the most recent run")
	agent := fs.Uint64("agent", 0, "only show the ancestry of this agent")
	limit := fs.Int("limit", 50, "max lineage rows to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit lineage rows as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("lineage requires --run-id or --latest")
	}
	if *limit < 0 {
		*limit = 0
	}

	client, err := sf.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	lineage, err := client.Lineage(ctx, cellevo.LineageRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
		Agent:  *agent,
	})
	if err != nil {
		return err
	}
	if len(lineage) == 0 {
		fmt.Println("no lineage records")
		return nil
	}
	if *jsonOut {
		return writeJSON(lineage)
	}
	for _, rec := range lineage {
		fmt.Printf("gen=%d agent_id=%d parent_id=%d time=%.2f bootstrap=%t birth=(%.1f,%.1f)\n",
			rec.Generation,
			rec.AgentID,
			rec.ParentID,
			rec.Time,
			rec.Bootstrap,
			rec.BirthX,
			rec.BirthY,
		)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "rank fitness for the most recent run")
	limit := fs.Int("limit", 20, "max agents to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit fitness ranking as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("fitness requires --run-id or --latest")
	}
	if *limit < 0 {
		*limit = 0
	}

	client, err := sf.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	ranked, err := client.Fitness(ctx, cellevo.FitnessRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(ranked) == 0 {
		fmt.Println("no fitness records")
		return nil
	}
	if *jsonOut {
		return writeJSON(ranked)
	}
	for i, r := range ranked {
		fmt.Printf("rank=%d agent_id=%d gen=%d offspring=%d mean=%.6f best=%.6f evaluations=%d\n",
			i+1,
			r.AgentID,
			r.Generation,
			r.Offspring,
			r.Fitness.Mean,
			r.Fitness.Max,
			r.Fitness.Total,
		)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, err := sf.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, cellevo.ExportRequest{
		RunID:  *runID,
		Latest: *latest,
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

// runConfig prints the effective configuration, or writes it with --out.
func runConfig(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file layered over the defaults")
	out := fs.String("out", "", "write the effective config to this path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *out != "" {
		if err := cfg.WriteYAML(*out); err != nil {
			return err
		}
		fmt.Printf("wrote config to=%s\n", *out)
		return nil
	}
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func printSummary(s cellevo.RunSummary) {
	fmt.Printf("run_id=%s ticks=%d population=%d births=%d deaths=%d shots=%d peak_population=%d max_generation=%d mean_fitness=%.6f\n",
		s.RunID,
		s.Ticks,
		s.FinalPopulation,
		s.Stats.Births,
		s.Stats.Deaths,
		s.Stats.ShotsFired,
		s.Stats.PeakPopulation,
		s.Stats.MaxGeneration,
		s.Stats.MeanFitness,
	)
	if best := s.Stats.Best; best != nil {
		fmt.Printf("best agent_id=%d gen=%d mean=%.6f evaluations=%d\n",
			best.AgentID, best.Generation, best.Fitness.Mean, best.Fitness.Total)
	}
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func flagWasSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: cellevoctl <run|serve|runs|lineage|fitness|export|config> [flags]", msg)
}
