// Package population owns the live agent set: bootstrap seeding when it is
// empty and energy-proportional asexual reproduction.
package population

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"

	"cellevo/internal/fitness"
	"cellevo/internal/model"
	"cellevo/internal/nn"
)

// EnergySource is the read side of the energy tracking collaborator.
type EnergySource interface {
	// Energy returns false for agents the tracker has not seen yet.
	Energy(id uint64) (float64, bool)
	MaxEnergy() float64
}

// BirthObserver is told about every agent added by the controller.
type BirthObserver interface {
	AgentBorn(a *Agent, bootstrap bool)
}

type Config struct {
	MaxPopulation        int          `yaml:"max_population" json:"max_population"`
	Bounds               model.Bounds `yaml:"bounds" json:"bounds"`
	Shape                nn.Shape     `yaml:"shape" json:"shape"`
	InitStrength         float64      `yaml:"init_strength" json:"init_strength"`
	ReproductionStrength float64      `yaml:"reproduction_strength" json:"reproduction_strength"`
	FitnessHistoryLimit  int          `yaml:"fitness_history_limit" json:"fitness_history_limit"`
}

func (c Config) Validate() error {
	if c.MaxPopulation <= 0 {
		return fmt.Errorf("max population must be > 0")
	}
	if c.Bounds.Width <= 0 || c.Bounds.Height <= 0 {
		return fmt.Errorf("world bounds must be positive")
	}
	if err := c.Shape.Validate(); err != nil {
		return err
	}
	if c.ReproductionStrength <= 0 {
		return fmt.Errorf("reproduction strength must be > 0")
	}
	if c.ReproductionStrength >= c.InitStrength {
		return fmt.Errorf("reproduction strength %.3f must be smaller than init strength %.3f", c.ReproductionStrength, c.InitStrength)
	}
	if c.FitnessHistoryLimit < 0 {
		return fmt.Errorf("fitness history limit must be >= 0")
	}
	return nil
}

type Controller struct {
	cfg       Config
	rng       *rand.Rand
	pop       *Population
	ids       IDs
	observers []BirthObserver
	logger    *log.Logger
}

func NewController(cfg Config, rng *rand.Rand, logger *log.Logger) (*Controller, error) {
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("population config: %w", err)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Controller{
		cfg:    cfg,
		rng:    rng,
		pop:    NewPopulation(cfg.MaxPopulation),
		logger: logger,
	}, nil
}

func (c *Controller) Population() *Population {
	return c.pop
}

func (c *Controller) Config() Config {
	return c.cfg
}

func (c *Controller) Observe(o BirthObserver) {
	if o != nil {
		c.observers = append(c.observers, o)
	}
}

// Remove is the hook for external death and culling.
func (c *Controller) Remove(id uint64) bool {
	return c.pop.Remove(id)
}

// Bootstrap seeds MaxPopulation fresh agents, but only when no agent is
// alive. A partially depleted population is left alone.
func (c *Controller) Bootstrap(now float64) ([]*Agent, error) {
	if c.pop.Len() != 0 {
		return nil, nil
	}

	spawned := make([]*Agent, 0, c.cfg.MaxPopulation)
	for i := 0; i < c.cfg.MaxPopulation; i++ {
		net, err := nn.New(c.rng, c.cfg.Shape, c.cfg.InitStrength)
		if err != nil {
			return spawned, fmt.Errorf("bootstrap network: %w", err)
		}
		a := c.newAgent(now, net, 0)
		if err := c.pop.Add(a); err != nil {
			return spawned, fmt.Errorf("bootstrap agent %d: %w", a.ID, err)
		}
		c.notify(a, true)
		spawned = append(spawned, a)
	}
	c.logger.Printf("bootstrap_spawned count=%d time=%.3f last_id=%d", len(spawned), now, c.ids.Last())
	return spawned, nil
}

// Reproduce gives every agent alive at the start of the pass one chance to
// produce a mutated clone, with probability energy/maxEnergy. Agents without
// an energy reading are skipped, as is everything once the cap is reached.
func (c *Controller) Reproduce(now float64, energy EnergySource) []*Agent {
	maxEnergy := energy.MaxEnergy()
	var born []*Agent
	for _, parent := range c.pop.Agents() {
		if c.pop.Full() {
			continue
		}
		value, ok := energy.Energy(parent.ID)
		if !ok {
			continue
		}
		if c.rng.Float64() >= ReproductionProbability(value, maxEnergy) {
			continue
		}

		net := parent.Network.Clone()
		net.Mutate(c.rng, c.cfg.ReproductionStrength)
		child := c.newAgent(now, net, parent.ID)
		if err := c.pop.Add(child); err != nil {
			continue
		}
		parent.Offspring++
		c.notify(child, false)
		born = append(born, child)
	}

	if c.pop.Len() > c.pop.Cap() {
		panic(fmt.Sprintf("population %d exceeds cap %d after reproduction", c.pop.Len(), c.pop.Cap()))
	}
	return born
}

// ReproductionProbability is energy normalized by the population maximum,
// clamped to [0, 1]. A non-positive or non-finite maximum yields 0.
func ReproductionProbability(energy, maxEnergy float64) float64 {
	if maxEnergy <= 0 || math.IsNaN(maxEnergy) || math.IsInf(maxEnergy, 0) {
		return 0
	}
	return nn.Finite(energy/maxEnergy, 1, 0)
}

func (c *Controller) newAgent(now float64, net *nn.Network, parentID uint64) *Agent {
	pos := c.cfg.Bounds.RandomPoint(c.rng)
	return &Agent{
		ID:          c.ids.Next(),
		ParentID:    parentID,
		BirthPlace:  pos,
		BornAt:      now,
		PhaseOffset: c.rng.Float64(),
		Position:    pos,
		Heading:     c.rng.Float64() * 2 * math.Pi,
		Network:     net,
		Fitness:     fitness.NewHistory(c.cfg.FitnessHistoryLimit),
	}
}

func (c *Controller) notify(a *Agent, bootstrap bool) {
	for _, o := range c.observers {
		o.AgentBorn(a, bootstrap)
	}
}
