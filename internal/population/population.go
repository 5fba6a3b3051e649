package population

import (
	"errors"
	"fmt"
	"sort"

	"cellevo/internal/fitness"
	"cellevo/internal/model"
	"cellevo/internal/nn"
)

var ErrPopulationFull = errors.New("population is at capacity")

// Agent is one cell. Everything except the network weights, the fitness
// history and the update/fire timestamps is fixed at birth.
type Agent struct {
	ID          uint64
	ParentID    uint64
	BirthPlace  model.Vec2
	BornAt      float64
	PhaseOffset float64

	// Position and Heading mirror the physics collaborator as of the last
	// evaluation.
	Position model.Vec2
	Heading  float64

	Network   *nn.Network
	Fitness   *fitness.History
	Offspring int

	LastUpdated float64
	Updated     bool
	LastFired   float64
	HasFired    bool

	// Activations holds every layer of the most recent forward pass.
	Activations [][]float64
}

// Population is the capped set of live agents, iterated in id order.
type Population struct {
	capacity int
	agents   map[uint64]*Agent
	order    []uint64
}

func NewPopulation(capacity int) *Population {
	return &Population{
		capacity: capacity,
		agents:   make(map[uint64]*Agent, capacity),
	}
}

func (p *Population) Cap() int {
	return p.capacity
}

func (p *Population) Len() int {
	return len(p.order)
}

func (p *Population) Full() bool {
	return len(p.order) >= p.capacity
}

func (p *Population) Add(a *Agent) error {
	if a == nil {
		return errors.New("agent is required")
	}
	if p.Full() {
		return ErrPopulationFull
	}
	if _, exists := p.agents[a.ID]; exists {
		return fmt.Errorf("agent %d already present", a.ID)
	}
	p.agents[a.ID] = a
	idx := sort.Search(len(p.order), func(i int) bool { return p.order[i] >= a.ID })
	p.order = append(p.order, 0)
	copy(p.order[idx+1:], p.order[idx:])
	p.order[idx] = a.ID
	return nil
}

// Remove drops an agent; unknown ids are ignored.
func (p *Population) Remove(id uint64) bool {
	if _, ok := p.agents[id]; !ok {
		return false
	}
	delete(p.agents, id)
	idx := sort.Search(len(p.order), func(i int) bool { return p.order[i] >= id })
	p.order = append(p.order[:idx], p.order[idx+1:]...)
	return true
}

func (p *Population) Get(id uint64) (*Agent, bool) {
	a, ok := p.agents[id]
	return a, ok
}

// Agents returns the live agents in ascending id order. The slice is a
// snapshot; membership changes do not affect it.
func (p *Population) Agents() []*Agent {
	out := make([]*Agent, len(p.order))
	for i, id := range p.order {
		out[i] = p.agents[id]
	}
	return out
}

// IDs hands out unique, monotonically increasing agent ids.
type IDs struct {
	last uint64
}

func (g *IDs) Next() uint64 {
	g.last++
	return g.last
}

func (g *IDs) Last() uint64 {
	return g.last
}
