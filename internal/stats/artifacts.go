package stats

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"cellevo/internal/model"
	"cellevo/internal/storage"
)

var tickSeriesHeader = []string{
	"tick", "time", "population", "births", "deaths",
	"evaluated", "shots_fired", "mean_fitness", "max_energy",
}

type RunArtifacts struct {
	Run     model.Run             `json:"run"`
	Ticks   []model.TickSummary   `json:"-"`
	Lineage []model.LineageRecord `json:"lineage"`
	Fitness []model.FitnessRecord `json:"fitness"`
}

// Collect reads every record of a run from a store.
func Collect(ctx context.Context, store storage.Store, runID string) (RunArtifacts, error) {
	run, ok, err := store.GetRun(ctx, runID)
	if err != nil {
		return RunArtifacts{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	if !ok {
		return RunArtifacts{}, fmt.Errorf("run not found: %s", runID)
	}
	ticks, _, err := store.GetTickSummaries(ctx, runID)
	if err != nil {
		return RunArtifacts{}, fmt.Errorf("get tick summaries: %w", err)
	}
	lineage, _, err := store.GetLineage(ctx, runID)
	if err != nil {
		return RunArtifacts{}, fmt.Errorf("get lineage: %w", err)
	}
	fitness, _, err := store.GetFitnessRecords(ctx, runID)
	if err != nil {
		return RunArtifacts{}, fmt.Errorf("get fitness records: %w", err)
	}
	return RunArtifacts{Run: run, Ticks: ticks, Lineage: lineage, Fitness: fitness}, nil
}

// WriteRunArtifacts writes run.json, lineage.json, fitness.json, summary.json
// and ticks.csv under baseDir/<run id>.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Run.ID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "run.json"), artifacts.Run); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "lineage.json"), nonNil(artifacts.Lineage)); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "fitness.json"), nonNil(artifacts.Fitness)); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "summary.json"), Summarize(artifacts)); err != nil {
		return "", err
	}
	if err := WriteTickSeries(runDir, artifacts.Ticks); err != nil {
		return "", err
	}
	return runDir, nil
}

func ReadRun(baseDir, runID string) (model.Run, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, "run.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return model.Run{}, false, nil
		}
		return model.Run{}, false, err
	}
	run, err := storage.DecodeRun(data)
	if err != nil {
		return model.Run{}, false, err
	}
	return run, true, nil
}

func WriteTickSeries(runDir string, ticks []model.TickSummary) error {
	path := filepath.Join(runDir, "ticks.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(tickSeriesHeader); err != nil {
		return err
	}
	for _, t := range ticks {
		if err := writer.Write([]string{
			strconv.Itoa(t.Tick),
			formatFloat(t.Time),
			strconv.Itoa(t.Population),
			strconv.Itoa(t.Births),
			strconv.Itoa(t.Deaths),
			strconv.Itoa(t.Evaluated),
			strconv.Itoa(t.ShotsFired),
			formatFloat(t.MeanFitness),
			formatFloat(t.MaxEnergy),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadTickSeries(baseDir, runID string) ([]model.TickSummary, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, "ticks.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.TickSummary{}, true, nil
		}
		return nil, false, err
	}
	if len(header) != len(tickSeriesHeader) {
		return nil, false, fmt.Errorf("tick series header must have %d columns", len(tickSeriesHeader))
	}

	series := make([]model.TickSummary, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		t, err := parseTickRow(record)
		if err != nil {
			return nil, false, err
		}
		series = append(series, t)
	}
	return series, true, nil
}

func parseTickRow(record []string) (model.TickSummary, error) {
	ints := make([]int, 0, 6)
	for _, i := range []int{0, 2, 3, 4, 5, 6} {
		v, err := strconv.Atoi(record[i])
		if err != nil {
			return model.TickSummary{}, fmt.Errorf("tick series column %s: %w", tickSeriesHeader[i], err)
		}
		ints = append(ints, v)
	}
	floats := make([]float64, 0, 3)
	for _, i := range []int{1, 7, 8} {
		v, err := strconv.ParseFloat(record[i], 64)
		if err != nil {
			return model.TickSummary{}, fmt.Errorf("tick series column %s: %w", tickSeriesHeader[i], err)
		}
		floats = append(floats, v)
	}
	return model.TickSummary{
		Tick:        ints[0],
		Time:        floats[0],
		Population:  ints[1],
		Births:      ints[2],
		Deaths:      ints[3],
		Evaluated:   ints[4],
		ShotsFired:  ints[5],
		MeanFitness: floats[1],
		MaxEnergy:   floats[2],
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
