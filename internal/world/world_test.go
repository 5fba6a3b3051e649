package world

import (
	"math"
	"math/rand"
	"testing"

	"cellevo/internal/action"
	"cellevo/internal/fitness"
	"cellevo/internal/model"
	"cellevo/internal/population"
)

func testConfig() Config {
	return Config{
		Bounds:             model.Bounds{Width: 1000, Height: 1000},
		SenseRadius:        100,
		EatRadius:          5,
		FoodEnergy:         10,
		InitialEnergy:      20,
		BaseDrain:          1,
		ShotCost:           0.5,
		ShotDamage:         5,
		HitRadius:          8,
		ProjectileLifetime: 2,
		Mass:               1,
		Inertia:            1,
		LinearDamping:      2,
		AngularDamping:     2,
	}
}

func newTestWorld(t *testing.T, cfg Config) *World {
	t.Helper()
	w, err := New(cfg, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w
}

func TestSenseNearestFoodInLocalFrame(t *testing.T) {
	w := newTestWorld(t, testConfig())
	w.food = []model.Vec2{{X: 50, Y: 0}, {X: 0, Y: 90}}

	ahead := w.Sense(model.Vec2{}, 0)
	if math.Abs(ahead[fitness.InputFoodForward]-1) > 1e-9 || math.Abs(ahead[fitness.InputFoodLateral]) > 1e-9 {
		t.Fatalf("expected food straight ahead, got %+v", ahead)
	}
	if math.Abs(ahead[fitness.InputFoodProximity]-0.5) > 1e-9 || ahead[fitness.InputFoodVisible] != 1 {
		t.Fatalf("unexpected proximity/visibility: %+v", ahead)
	}

	left := w.Sense(model.Vec2{}, -math.Pi/2)
	if math.Abs(left[fitness.InputFoodForward]) > 1e-9 || math.Abs(left[fitness.InputFoodLateral]-1) > 1e-9 {
		t.Fatalf("expected food to the left, got %+v", left)
	}
}

func TestSenseNothingInRange(t *testing.T) {
	w := newTestWorld(t, testConfig())
	w.food = []model.Vec2{{X: 400, Y: 400}}
	got := w.Sense(model.Vec2{}, 0)
	for i, v := range got {
		if v != 0 {
			t.Fatalf("expected empty sense vector, index %d = %f", i, v)
		}
	}
	if len(got) != fitness.InputWidth {
		t.Fatalf("unexpected width: %d", len(got))
	}
}

func TestEnergyTrackingAndDeath(t *testing.T) {
	cfg := testConfig()
	cfg.BaseDrain = 10
	w := newTestWorld(t, cfg)
	w.food = nil

	if _, ok := w.Energy(1); ok {
		t.Fatal("unknown agent should have no energy reading")
	}
	w.AgentBorn(&population.Agent{ID: 1}, true)
	w.AgentBorn(&population.Agent{ID: 2, Position: model.Vec2{X: 100}}, true)
	if v, ok := w.Energy(1); !ok || v != cfg.InitialEnergy {
		t.Fatalf("unexpected initial energy: %f %t", v, ok)
	}
	w.energy[2] = 50

	dead := w.Step(1, 1)
	if len(dead) != 0 {
		t.Fatalf("unexpected deaths: %+v", dead)
	}
	if w.MaxEnergy() != 40 {
		t.Fatalf("expected max energy 40, got %f", w.MaxEnergy())
	}
	dead = w.Step(2, 1)
	if len(dead) != 1 || dead[0] != 1 {
		t.Fatalf("expected agent 1 to die, got %+v", dead)
	}
	if _, _, ok := w.Pose(1); ok {
		t.Fatal("dead agent should have no body")
	}
}

func TestEatingRefillsEnergyAndRespawnsFood(t *testing.T) {
	w := newTestWorld(t, testConfig())
	w.food = []model.Vec2{{X: 1, Y: 1}}
	w.AgentBorn(&population.Agent{ID: 1}, true)

	w.Step(0.1, 0.1)
	v, _ := w.Energy(1)
	want := 20 - 0.1 + 10
	if math.Abs(v-want) > 1e-9 {
		t.Fatalf("unexpected energy after eating: got=%f want=%f", v, want)
	}
	if w.food[0] == (model.Vec2{X: 1, Y: 1}) {
		t.Fatal("expected food to respawn")
	}
	if w.Stats().Eaten != 1 {
		t.Fatalf("expected one food eaten, got %d", w.Stats().Eaten)
	}
}

func TestApplyForceMovesBody(t *testing.T) {
	w := newTestWorld(t, testConfig())
	w.food = nil
	w.AgentBorn(&population.Agent{ID: 1}, true)
	w.ApplyForce(1, model.Vec2{X: 10}, 1)
	w.Step(0.1, 0.1)

	pos, heading, ok := w.Pose(1)
	if !ok {
		t.Fatal("expected body")
	}
	if pos.X <= 0 || pos.Y != 0 {
		t.Fatalf("expected motion along +x, got %+v", pos)
	}
	if heading <= 0 {
		t.Fatalf("expected positive rotation, got %f", heading)
	}
}

func TestProjectileHitsOtherAgent(t *testing.T) {
	w := newTestWorld(t, testConfig())
	w.food = nil
	w.AgentBorn(&population.Agent{ID: 1}, true)
	w.AgentBorn(&population.Agent{ID: 2, Position: model.Vec2{X: 20}}, true)

	w.SpawnProjectile(action.Projectile{Owner: 1, Origin: model.Vec2{X: 10}, Velocity: model.Vec2{X: 100}, FiredAt: 0})
	if v, _ := w.Energy(1); v != 19.5 {
		t.Fatalf("expected shot cost charged, got %f", v)
	}
	w.Step(0.1, 0.1)
	if v, _ := w.Energy(2); math.Abs(v-(20-0.1-5)) > 1e-9 {
		t.Fatalf("expected damage on target, got %f", v)
	}
	if w.Stats().Projectiles != 0 || w.Stats().Hits != 1 {
		t.Fatalf("unexpected projectile state: %+v", w.Stats())
	}
}
