// Package sim assembles a runnable simulation from a config: the headless
// world, the population controller and the tick scheduler.
package sim

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"

	"cellevo/internal/config"
	"cellevo/internal/model"
	"cellevo/internal/population"
	"cellevo/internal/scheduler"
	"cellevo/internal/world"
)

// worldSeedSalt separates the world's random stream from the controller's
// so food placement does not shift when population settings change.
const worldSeedSalt = 0x5eed

type Simulation struct {
	Config     *config.Config
	World      *world.World
	Controller *population.Controller
	Scheduler  *scheduler.Scheduler
}

func New(cfg *config.Config, logger *log.Logger) (*Simulation, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	w, err := world.New(cfg.World, rand.New(rand.NewSource(cfg.Seed^worldSeedSalt)))
	if err != nil {
		return nil, err
	}
	controller, err := population.NewController(cfg.Population, rand.New(rand.NewSource(cfg.Seed)), logger)
	if err != nil {
		return nil, err
	}
	controller.Observe(w)

	s, err := scheduler.New(cfg.Scheduler, controller, w, cfg.Fitness, cfg.Action, logger)
	if err != nil {
		return nil, err
	}
	return &Simulation{Config: cfg, World: w, Controller: controller, Scheduler: s}, nil
}

func (s *Simulation) Population() *population.Population {
	return s.Controller.Population()
}

func (s *Simulation) Step(ctx context.Context) (model.TickSummary, error) {
	return s.Scheduler.Step(ctx)
}
