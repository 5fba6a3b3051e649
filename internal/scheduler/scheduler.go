// Package scheduler advances the logical clock and runs the agent-update,
// reproduction and bootstrap passes, strictly one after the other.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"cellevo/internal/action"
	"cellevo/internal/fitness"
	"cellevo/internal/model"
	"cellevo/internal/population"
)

// World bundles every collaborator the passes read from or write to. Step is
// called between ticks; it integrates motion, refreshes energy readings and
// returns the ids of agents that died.
type World interface {
	Sensor
	Bodies
	action.Actuator
	population.EnergySource
	Step(now, dt float64) []uint64
}

// TickObserver receives a summary after every completed tick.
type TickObserver interface {
	TickCompleted(summary model.TickSummary)
}

type Config struct {
	TickSeconds        float64 `yaml:"tick_seconds" json:"tick_seconds"`
	UpdateInterval     float64 `yaml:"update_interval" json:"update_interval"`
	PhaseCycle         float64 `yaml:"phase_cycle" json:"phase_cycle"`
	ReproductionPeriod float64 `yaml:"reproduction_period" json:"reproduction_period"`
	BootstrapPeriod    float64 `yaml:"bootstrap_period" json:"bootstrap_period"`
	Workers            int     `yaml:"workers" json:"workers"`
}

func (c Config) Validate() error {
	if c.TickSeconds <= 0 {
		return fmt.Errorf("tick seconds must be > 0")
	}
	if c.UpdateInterval < 0 {
		return fmt.Errorf("update interval must be >= 0")
	}
	if c.PhaseCycle <= 0 {
		return fmt.Errorf("phase cycle must be > 0")
	}
	if c.ReproductionPeriod <= 0 || c.BootstrapPeriod <= 0 {
		return fmt.Errorf("pass periods must be > 0")
	}
	return nil
}

type Scheduler struct {
	cfg        Config
	clock      Clock
	tick       int
	controller *population.Controller
	world      World
	updater    *Updater
	reproTimer Timer
	bootTimer  Timer
	observers  []TickObserver
	logger     *log.Logger
}

func New(cfg Config, controller *population.Controller, world World, rule fitness.Rule, decoder action.Decoder, logger *log.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler config: %w", err)
	}
	if controller == nil {
		return nil, errors.New("population controller is required")
	}
	if world == nil {
		return nil, errors.New("world is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Scheduler{
		cfg:        cfg,
		controller: controller,
		world:      world,
		updater: &Updater{
			Gate:     Gate{Interval: cfg.UpdateInterval, Cycle: cfg.PhaseCycle},
			Rule:     rule,
			Decoder:  decoder,
			Workers:  cfg.Workers,
			Sensor:   world,
			Bodies:   world,
			Actuator: world,
		},
		reproTimer: Timer{Period: cfg.ReproductionPeriod},
		bootTimer:  Timer{Period: cfg.BootstrapPeriod, Immediate: true},
		logger:     logger,
	}, nil
}

func (s *Scheduler) ObserveEvaluations(o EvaluationObserver) {
	if o != nil {
		s.updater.Observers = append(s.updater.Observers, o)
	}
}

func (s *Scheduler) ObserveTicks(o TickObserver) {
	if o != nil {
		s.observers = append(s.observers, o)
	}
}

func (s *Scheduler) Now() float64 {
	return s.clock.Now()
}

func (s *Scheduler) Tick() int {
	return s.tick
}

// Step advances the clock by one tick and runs the passes in order:
// agent update, reproduction (on its period), bootstrap check (on its
// period), then the world step.
func (s *Scheduler) Step(ctx context.Context) (model.TickSummary, error) {
	dt := s.cfg.TickSeconds
	now := s.clock.Advance(dt)
	s.tick++
	pop := s.controller.Population()

	report, err := s.updater.Pass(ctx, now, pop)
	if err != nil {
		return model.TickSummary{}, fmt.Errorf("tick %d update pass: %w", s.tick, err)
	}

	births := 0
	if s.reproTimer.Due(dt) {
		births += len(s.controller.Reproduce(now, s.world))
	}
	if s.bootTimer.Due(dt) {
		spawned, err := s.controller.Bootstrap(now)
		if err != nil {
			return model.TickSummary{}, fmt.Errorf("tick %d bootstrap: %w", s.tick, err)
		}
		births += len(spawned)
	}

	deaths := 0
	for _, id := range s.world.Step(now, dt) {
		if s.controller.Remove(id) {
			deaths++
		}
	}

	summary := model.TickSummary{
		Tick:        s.tick,
		Time:        now,
		Population:  pop.Len(),
		Births:      births,
		Deaths:      deaths,
		Evaluated:   report.Evaluated,
		ShotsFired:  report.ShotsFired,
		MeanFitness: report.MeanFitness,
		MaxEnergy:   s.world.MaxEnergy(),
	}
	for _, o := range s.observers {
		o.TickCompleted(summary)
	}
	return summary, nil
}

// Run steps the scheduler ticks times, stopping early on cancellation.
func (s *Scheduler) Run(ctx context.Context, ticks int) error {
	for i := 0; i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		summary, err := s.Step(ctx)
		if err != nil {
			return err
		}
		if summary.Births > 0 || summary.Deaths > 0 {
			s.logger.Printf("tick_completed tick=%d time=%.3f population=%d births=%d deaths=%d mean_fitness=%.4f",
				summary.Tick, summary.Time, summary.Population, summary.Births, summary.Deaths, summary.MeanFitness)
		}
	}
	return nil
}
