package stats

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"cellevo/internal/fitness"
	"cellevo/internal/model"
)

type RunSummary struct {
	RunID           string          `json:"run_id"`
	Ticks           int             `json:"ticks"`
	Births          int             `json:"births"`
	Deaths          int             `json:"deaths"`
	ShotsFired      int             `json:"shots_fired"`
	PeakPopulation  int             `json:"peak_population"`
	FinalPopulation int             `json:"final_population"`
	MeanFitness     float64         `json:"mean_fitness"`
	MaxGeneration   int             `json:"max_generation"`
	Bootstrapped    int             `json:"bootstrapped"`
	Best            *AgentFitness   `json:"best,omitempty"`
	Survivors       fitness.Summary `json:"survivors"`
}

type AgentFitness struct {
	AgentID    uint64          `json:"agent_id"`
	Generation int             `json:"generation"`
	Offspring  int             `json:"offspring"`
	Fitness    fitness.Summary `json:"fitness"`
}

// Summarize reduces a run to headline numbers. MeanFitness weights each
// tick's mean by the number of agents evaluated in it.
func Summarize(a RunArtifacts) RunSummary {
	s := RunSummary{RunID: a.Run.ID, Ticks: len(a.Ticks)}

	means := make([]float64, 0, len(a.Ticks))
	weights := make([]float64, 0, len(a.Ticks))
	for _, t := range a.Ticks {
		s.Births += t.Births
		s.Deaths += t.Deaths
		s.ShotsFired += t.ShotsFired
		if t.Population > s.PeakPopulation {
			s.PeakPopulation = t.Population
		}
		if t.Evaluated > 0 {
			means = append(means, t.MeanFitness)
			weights = append(weights, float64(t.Evaluated))
		}
	}
	if len(a.Ticks) > 0 {
		s.FinalPopulation = a.Ticks[len(a.Ticks)-1].Population
	}
	if len(means) > 0 {
		s.MeanFitness = stat.Mean(means, weights)
	}

	depths := LineageDepths(a.Lineage)
	for _, r := range a.Lineage {
		if r.Bootstrap {
			s.Bootstrapped++
		}
		if d := depths[r.AgentID]; d > s.MaxGeneration {
			s.MaxGeneration = d
		}
	}

	ranked := RankFitness(a.Fitness, depths)
	if len(ranked) > 0 {
		best := ranked[0]
		s.Best = &best
		finals := make([]float64, 0, len(ranked))
		for _, r := range ranked {
			finals = append(finals, r.Fitness.Mean)
		}
		s.Survivors = fitness.Summarize(finals, len(finals))
	}
	return s
}

// RankFitness orders agents by mean recorded fitness, best first. Agents
// with no recorded evaluations are left out.
func RankFitness(records []model.FitnessRecord, depths map[uint64]int) []AgentFitness {
	out := make([]AgentFitness, 0, len(records))
	for _, r := range records {
		if len(r.History) == 0 {
			continue
		}
		out = append(out, AgentFitness{
			AgentID:    r.AgentID,
			Generation: depths[r.AgentID],
			Offspring:  r.Offspring,
			Fitness:    fitness.Summarize(r.History, r.Total),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Fitness.Mean == out[j].Fitness.Mean {
			return out[i].AgentID < out[j].AgentID
		}
		return out[i].Fitness.Mean > out[j].Fitness.Mean
	})
	return out
}

// LineageDepths maps each recorded agent to its generation: bootstrap agents
// and agents whose parent is unknown are generation 0.
func LineageDepths(lineage []model.LineageRecord) map[uint64]int {
	parents := make(map[uint64]uint64, len(lineage))
	for _, r := range lineage {
		if !r.Bootstrap && r.ParentID != 0 {
			parents[r.AgentID] = r.ParentID
		}
	}
	depths := make(map[uint64]int, len(lineage))
	var depth func(id uint64, guard int) int
	depth = func(id uint64, guard int) int {
		if d, ok := depths[id]; ok {
			return d
		}
		parent, ok := parents[id]
		if !ok || guard > len(lineage) {
			depths[id] = 0
			return 0
		}
		d := depth(parent, guard+1) + 1
		depths[id] = d
		return d
	}
	for _, r := range lineage {
		depth(r.AgentID, 0)
	}
	return depths
}

// Ancestry returns the chain from id back to its founding agent, id first.
func Ancestry(lineage []model.LineageRecord, id uint64) []uint64 {
	parents := make(map[uint64]uint64, len(lineage))
	for _, r := range lineage {
		parents[r.AgentID] = r.ParentID
	}
	chain := []uint64{id}
	seen := map[uint64]bool{id: true}
	for {
		parent, ok := parents[chain[len(chain)-1]]
		if !ok || parent == 0 || seen[parent] {
			return chain
		}
		seen[parent] = true
		chain = append(chain, parent)
	}
}
