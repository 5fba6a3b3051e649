// Package inspect keeps a read-only snapshot of the running population for
// the focused-agent inspector and serves it over HTTP.
package inspect

import (
	"sort"
	"sync"

	"cellevo/internal/action"
	"cellevo/internal/fitness"
	"cellevo/internal/model"
	"cellevo/internal/population"
)

type AgentView struct {
	ID          uint64     `json:"id"`
	ParentID    uint64     `json:"parent_id,omitempty"`
	BornAt      float64    `json:"born_at"`
	BirthPlace  model.Vec2 `json:"birth_place"`
	Position    model.Vec2 `json:"position"`
	Heading     float64    `json:"heading"`
	Offspring   int        `json:"offspring"`
	LastUpdated float64    `json:"last_updated"`
	Fitness     float64    `json:"fitness"`
	Evaluations int        `json:"evaluations"`
}

// FocusView is the latest forward pass of the focused agent: every layer's
// activation, input first, plus the action it performed.
type FocusView struct {
	ID          uint64          `json:"id"`
	Time        float64         `json:"time"`
	Action      action.Action   `json:"action"`
	Activations [][]float64     `json:"activations"`
	Fitness     fitness.Summary `json:"fitness"`
}

// Inspector implements the scheduler's evaluation and tick observers. Writes
// come from the simulation goroutine; reads come from HTTP handlers.
type Inspector struct {
	mu      sync.RWMutex
	focusID uint64
	pinned  bool
	focus   FocusView
	hasView bool
	agents  map[uint64]AgentView
	history map[uint64][]float64
	last    model.TickSummary
}

func New() *Inspector {
	return &Inspector{
		agents:  make(map[uint64]AgentView),
		history: make(map[uint64][]float64),
	}
}

// SetFocus pins the inspector to an agent id. The pin is dropped once that
// agent is gone.
func (i *Inspector) SetFocus(id uint64) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.agents[id]; !ok {
		return false
	}
	if i.focusID != id {
		i.hasView = false
	}
	i.focusID = id
	i.pinned = true
	return true
}

func (i *Inspector) AgentEvaluated(now float64, a *population.Agent, performed action.Action) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.pinned && i.focusID == 0 {
		i.focusID = a.ID
	}
	if a.ID != i.focusID {
		return
	}
	layers := make([][]float64, len(a.Activations))
	for k, layer := range a.Activations {
		layers[k] = append([]float64(nil), layer...)
	}
	i.focus = FocusView{
		ID:          a.ID,
		Time:        now,
		Action:      performed,
		Activations: layers,
		Fitness:     a.Fitness.Summary(),
	}
	i.hasView = true
}

// Capture replaces the population snapshot. It must be called from the
// goroutine that drives the scheduler, between ticks.
func (i *Inspector) Capture(summary model.TickSummary, agents []*population.Agent) {
	views := make(map[uint64]AgentView, len(agents))
	history := make(map[uint64][]float64, len(agents))
	for _, a := range agents {
		last, _ := a.Fitness.Last()
		views[a.ID] = AgentView{
			ID:          a.ID,
			ParentID:    a.ParentID,
			BornAt:      a.BornAt,
			BirthPlace:  a.BirthPlace,
			Position:    a.Position,
			Heading:     a.Heading,
			Offspring:   a.Offspring,
			LastUpdated: a.LastUpdated,
			Fitness:     last,
			Evaluations: a.Fitness.Total(),
		}
		history[a.ID] = a.Fitness.Values()
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.agents = views
	i.history = history
	i.last = summary
	if _, ok := views[i.focusID]; !ok {
		i.focusID = 0
		i.pinned = false
		i.hasView = false
	}
}

func (i *Inspector) Focus() (FocusView, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.focus, i.hasView
}

// Agents returns the captured agents in id order.
func (i *Inspector) Agents() []AgentView {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]AgentView, 0, len(i.agents))
	for _, v := range i.agents {
		out = append(out, v)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

func (i *Inspector) Fitness(id uint64) ([]float64, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	values, ok := i.history[id]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), values...), true
}

func (i *Inspector) Stats() model.TickSummary {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.last
}
