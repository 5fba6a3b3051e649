package sim

import (
	"context"
	"testing"

	"cellevo/internal/config"
)

func smallConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Population.MaxPopulation = 6
	cfg.World.FoodCount = 10
	cfg.Scheduler.Workers = 2
	return cfg
}

func TestSimulationBootstrapsOnFirstTick(t *testing.T) {
	s, err := New(smallConfig(t), nil)
	if err != nil {
		t.Fatalf("new simulation: %v", err)
	}
	summary, err := s.Step(context.Background())
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if summary.Births != 6 || s.Population().Len() != 6 {
		t.Fatalf("expected full bootstrap, got %+v", summary)
	}
	if s.World.Stats().Bodies != 6 {
		t.Fatalf("expected world bodies for every agent, got %d", s.World.Stats().Bodies)
	}
}

func TestSimulationHoldsCapOverManyTicks(t *testing.T) {
	s, err := New(smallConfig(t), nil)
	if err != nil {
		t.Fatalf("new simulation: %v", err)
	}
	evaluated := 0
	for i := 0; i < 400; i++ {
		summary, err := s.Step(context.Background())
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if summary.Population > 6 {
			t.Fatalf("tick %d: population %d exceeds cap", summary.Tick, summary.Population)
		}
		if summary.Population != s.World.Stats().Bodies {
			t.Fatalf("tick %d: population %d out of sync with world bodies %d", summary.Tick, summary.Population, s.World.Stats().Bodies)
		}
		evaluated += summary.Evaluated
	}
	if evaluated == 0 {
		t.Fatal("expected agents to be evaluated")
	}
}

func TestSimulationIsDeterministicForSeed(t *testing.T) {
	run := func() []int {
		s, err := New(smallConfig(t), nil)
		if err != nil {
			t.Fatalf("new simulation: %v", err)
		}
		var pops []int
		for i := 0; i < 200; i++ {
			summary, err := s.Step(context.Background())
			if err != nil {
				t.Fatalf("step: %v", err)
			}
			pops = append(pops, summary.Population, summary.Births, summary.Deaths)
		}
		return pops
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("runs diverged at %d: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}
