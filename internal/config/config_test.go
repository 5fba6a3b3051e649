package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.Population.InitStrength != 5 || cfg.Population.ReproductionStrength != 1 {
		t.Fatalf("unexpected mutation strengths: %+v", cfg.Population)
	}
	if cfg.Scheduler.ReproductionPeriod != 0.5 || cfg.Scheduler.BootstrapPeriod != 5 {
		t.Fatalf("unexpected pass periods: %+v", cfg.Scheduler)
	}
	if cfg.Population.Bounds != cfg.World.Bounds {
		t.Fatalf("expected population bounds to follow world bounds: %+v vs %+v", cfg.Population.Bounds, cfg.World.Bounds)
	}
	if cfg.Population.Shape.HiddenActivation != "tanh" {
		t.Fatalf("unexpected hidden activation: %q", cfg.Population.Shape.HiddenActivation)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	body := "population:\n  max_population: 8\nscheduler:\n  workers: 2\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Population.MaxPopulation != 8 || cfg.Scheduler.Workers != 2 {
		t.Fatalf("overrides not applied: %+v %+v", cfg.Population, cfg.Scheduler)
	}
	if cfg.Population.InitStrength != 5 || cfg.Scheduler.TickSeconds != 0.05 {
		t.Fatal("fields absent from the file should keep their defaults")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "strength-order", body: "population:\n  reproduction_strength: 6\n", want: "smaller than init strength"},
		{name: "input-width", body: "population:\n  shape:\n    inputs: 3\n", want: "network inputs"},
		{name: "tick", body: "scheduler:\n  tick_seconds: 0\n", want: "tick seconds"},
		{name: "storage", body: "storage:\n  backend: redis\n", want: "unsupported backend"},
		{name: "syntax", body: "population: [\n", want: "parsing config file"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "run.yaml")
			if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got: %v", tc.want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected missing file error")
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Seed = 42
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Seed != 42 || loaded.World != cfg.World {
		t.Fatalf("unexpected reload: seed=%d world=%+v", loaded.Seed, loaded.World)
	}
}
