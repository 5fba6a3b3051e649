// Package world is a headless stand-in for the physics, food and energy
// collaborators. It is intentionally simple: point bodies with linear
// damping, a flat food field scanned linearly, and an energy ledger.
package world

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"cellevo/internal/action"
	"cellevo/internal/fitness"
	"cellevo/internal/model"
	"cellevo/internal/nn"
	"cellevo/internal/population"
)

type Config struct {
	Bounds             model.Bounds `yaml:"bounds" json:"bounds"`
	FoodCount          int          `yaml:"food_count" json:"food_count"`
	SenseRadius        float64      `yaml:"sense_radius" json:"sense_radius"`
	EatRadius          float64      `yaml:"eat_radius" json:"eat_radius"`
	FoodEnergy         float64      `yaml:"food_energy" json:"food_energy"`
	InitialEnergy      float64      `yaml:"initial_energy" json:"initial_energy"`
	BaseDrain          float64      `yaml:"base_drain" json:"base_drain"`
	ThrustDrain        float64      `yaml:"thrust_drain" json:"thrust_drain"`
	ShotCost           float64      `yaml:"shot_cost" json:"shot_cost"`
	ShotDamage         float64      `yaml:"shot_damage" json:"shot_damage"`
	HitRadius          float64      `yaml:"hit_radius" json:"hit_radius"`
	ProjectileLifetime float64      `yaml:"projectile_lifetime" json:"projectile_lifetime"`
	Mass               float64      `yaml:"mass" json:"mass"`
	Inertia            float64      `yaml:"inertia" json:"inertia"`
	LinearDamping      float64      `yaml:"linear_damping" json:"linear_damping"`
	AngularDamping     float64      `yaml:"angular_damping" json:"angular_damping"`
}

func (c Config) Validate() error {
	if c.Bounds.Width <= 0 || c.Bounds.Height <= 0 {
		return fmt.Errorf("world bounds must be positive")
	}
	if c.FoodCount < 0 {
		return fmt.Errorf("food count must be >= 0")
	}
	if c.SenseRadius <= 0 {
		return fmt.Errorf("sense radius must be > 0")
	}
	if c.Mass <= 0 || c.Inertia <= 0 {
		return fmt.Errorf("mass and inertia must be > 0")
	}
	if c.InitialEnergy <= 0 {
		return fmt.Errorf("initial energy must be > 0")
	}
	return nil
}

type body struct {
	position model.Vec2
	velocity model.Vec2
	heading  float64
	spin     float64
	force    model.Vec2
	torque   float64
}

type projectile struct {
	action.Projectile
	position model.Vec2
}

// World holds bodies, food, projectiles and energy. Sense, Pose, Energy and
// MaxEnergy only read and are safe to call concurrently while no Step,
// ApplyForce, SpawnProjectile or AgentBorn call is running.
type World struct {
	cfg         Config
	rng         *rand.Rand
	bodies      map[uint64]*body
	energy      map[uint64]float64
	maxEnergy   float64
	food        []model.Vec2
	projectiles []projectile
	eaten       int
	hits        int
}

func New(cfg Config, rng *rand.Rand) (*World, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("world config: %w", err)
	}
	w := &World{
		cfg:    cfg,
		rng:    rng,
		bodies: make(map[uint64]*body),
		energy: make(map[uint64]float64),
		food:   make([]model.Vec2, cfg.FoodCount),
	}
	for i := range w.food {
		w.food[i] = cfg.Bounds.RandomPoint(rng)
	}
	return w, nil
}

// AgentBorn registers a body and an energy reading for a new agent.
func (w *World) AgentBorn(a *population.Agent, _ bool) {
	w.bodies[a.ID] = &body{position: a.Position, heading: a.Heading}
	w.energy[a.ID] = w.cfg.InitialEnergy
	w.maxEnergy = math.Max(w.maxEnergy, w.cfg.InitialEnergy)
}

// Sense describes the nearest food within SenseRadius in the local frame of
// the given pose.
func (w *World) Sense(position model.Vec2, heading float64) []float64 {
	out := make([]float64, fitness.InputWidth)
	idx, dist := w.nearestFood(position, w.cfg.SenseRadius)
	if idx < 0 {
		return out
	}
	if dist == 0 {
		out[fitness.InputFoodForward] = 1
	} else {
		rel := w.food[idx].Sub(position).Scale(1 / dist)
		forward := model.Heading(heading)
		out[fitness.InputFoodForward] = rel.X*forward.X + rel.Y*forward.Y
		out[fitness.InputFoodLateral] = forward.X*rel.Y - forward.Y*rel.X
	}
	out[fitness.InputFoodProximity] = (1 - nn.ScaleValue(dist, w.cfg.SenseRadius, 0)) / 2
	out[fitness.InputFoodVisible] = 1
	return out
}

func (w *World) nearestFood(position model.Vec2, radius float64) (int, float64) {
	best, bestDist := -1, radius
	for i, f := range w.food {
		d := f.Sub(position).Len()
		if d <= bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

func (w *World) Pose(id uint64) (model.Vec2, float64, bool) {
	b, ok := w.bodies[id]
	if !ok {
		return model.Vec2{}, 0, false
	}
	return b.position, b.heading, true
}

// ApplyForce replaces the external force and torque acting on a body until
// the next call.
func (w *World) ApplyForce(id uint64, force model.Vec2, torque float64) {
	b, ok := w.bodies[id]
	if !ok {
		return
	}
	b.force = force
	b.torque = torque
}

func (w *World) SpawnProjectile(p action.Projectile) {
	w.projectiles = append(w.projectiles, projectile{Projectile: p, position: p.Origin})
	if _, ok := w.energy[p.Owner]; ok {
		w.energy[p.Owner] -= w.cfg.ShotCost
	}
}

func (w *World) Energy(id uint64) (float64, bool) {
	v, ok := w.energy[id]
	return v, ok
}

func (w *World) MaxEnergy() float64 {
	return w.maxEnergy
}

// Step integrates one tick and returns the agents whose energy ran out,
// in ascending id order.
func (w *World) Step(now, dt float64) []uint64 {
	ids := w.ids()
	for _, id := range ids {
		b := w.bodies[id]
		w.integrate(b, dt)
		w.energy[id] -= (w.cfg.BaseDrain + w.cfg.ThrustDrain*b.force.Len()) * dt
		if idx, _ := w.nearestFood(b.position, w.cfg.EatRadius); idx >= 0 {
			w.energy[id] += w.cfg.FoodEnergy
			w.food[idx] = w.cfg.Bounds.RandomPoint(w.rng)
			w.eaten++
		}
	}
	w.stepProjectiles(now, dt, ids)

	var dead []uint64
	w.maxEnergy = 0
	for _, id := range ids {
		e := w.energy[id]
		if e <= 0 {
			delete(w.bodies, id)
			delete(w.energy, id)
			dead = append(dead, id)
			continue
		}
		w.maxEnergy = math.Max(w.maxEnergy, e)
	}
	return dead
}

func (w *World) integrate(b *body, dt float64) {
	b.velocity = b.velocity.Add(b.force.Scale(dt / w.cfg.Mass))
	b.velocity = b.velocity.Scale(1 / (1 + w.cfg.LinearDamping*dt))
	b.position = w.cfg.Bounds.Wrap(b.position.Add(b.velocity.Scale(dt)))

	b.spin += b.torque / w.cfg.Inertia * dt
	b.spin /= 1 + w.cfg.AngularDamping*dt
	b.heading = math.Mod(b.heading+b.spin*dt, 2*math.Pi)
	if b.heading < 0 {
		b.heading += 2 * math.Pi
	}
}

func (w *World) stepProjectiles(now, dt float64, ids []uint64) {
	kept := w.projectiles[:0]
	for _, p := range w.projectiles {
		if now-p.FiredAt > w.cfg.ProjectileLifetime {
			continue
		}
		p.position = w.cfg.Bounds.Wrap(p.position.Add(p.Velocity.Scale(dt)))
		hit := false
		for _, id := range ids {
			if id == p.Owner {
				continue
			}
			if w.bodies[id].position.Sub(p.position).Len() <= w.cfg.HitRadius {
				w.energy[id] -= w.cfg.ShotDamage
				w.hits++
				hit = true
				break
			}
		}
		if !hit {
			kept = append(kept, p)
		}
	}
	w.projectiles = kept
}

func (w *World) ids() []uint64 {
	ids := make([]uint64, 0, len(w.bodies))
	for id := range w.bodies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type Stats struct {
	Bodies      int `json:"bodies"`
	Food        int `json:"food"`
	Projectiles int `json:"projectiles"`
	Eaten       int `json:"eaten"`
	Hits        int `json:"hits"`
}

func (w *World) Stats() Stats {
	return Stats{
		Bodies:      len(w.bodies),
		Food:        len(w.food),
		Projectiles: len(w.projectiles),
		Eaten:       w.eaten,
		Hits:        w.hits,
	}
}
