// Package action turns a network output vector into motion and firing
// decisions and pushes them to the physics collaborator.
package action

import (
	"cellevo/internal/fitness"
	"cellevo/internal/model"
	"cellevo/internal/nn"
)

// Projectile is handed to the world collaborator on an accepted fire decision.
type Projectile struct {
	Owner    uint64
	Origin   model.Vec2
	Velocity model.Vec2
	FiredAt  float64
}

// Actuator is the write side of the physics/world collaborator.
type Actuator interface {
	ApplyForce(id uint64, force model.Vec2, torque float64)
	SpawnProjectile(p Projectile)
}

type Action struct {
	Thrust float64 `json:"thrust"`
	Turn   float64 `json:"turn"`
	Fire   bool    `json:"fire"`
}

// Body is the agent state the decoder reads and updates.
type Body struct {
	ID        uint64
	Position  model.Vec2
	Heading   float64
	LastFired float64
	HasFired  bool
}

type Decoder struct {
	ThrustForce     float64 `yaml:"thrust_force" json:"thrust_force"`
	TorqueScale     float64 `yaml:"torque_scale" json:"torque_scale"`
	DeadZone        float64 `yaml:"dead_zone" json:"dead_zone"`
	FireThreshold   float64 `yaml:"fire_threshold" json:"fire_threshold"`
	FireCooldown    float64 `yaml:"fire_cooldown" json:"fire_cooldown"`
	ProjectileSpeed float64 `yaml:"projectile_speed" json:"projectile_speed"`
	MuzzleOffset    float64 `yaml:"muzzle_offset" json:"muzzle_offset"`
}

func DefaultDecoder() Decoder {
	return Decoder{
		ThrustForce:     400,
		TorqueScale:     2,
		DeadZone:        0.05,
		FireThreshold:   0.5,
		FireCooldown:    0.5,
		ProjectileSpeed: 300,
		MuzzleOffset:    10,
	}
}

// Decode reads each channel independently. The reserved channel is ignored.
func (d Decoder) Decode(output []float64) Action {
	ch := fitness.Channels(output)
	return Action{
		Thrust: nn.SatDeadZone(nn.Finite(ch[fitness.ChannelThrust], 1, -1), 1, -1, d.DeadZone, -d.DeadZone),
		Turn:   nn.SatDeadZone(nn.Finite(ch[fitness.ChannelTurn], 1, -1), 1, -1, d.DeadZone, -d.DeadZone),
		Fire:   ch[fitness.ChannelFire] > d.FireThreshold,
	}
}

// CanFire reports whether the cooldown since the last accepted shot elapsed.
func (d Decoder) CanFire(now float64, body Body) bool {
	return !body.HasFired || now-body.LastFired >= d.FireCooldown
}

// Apply pushes force and torque to the actuator and fires when the cooldown
// allows it. A gated fire request is downgraded silently; the returned action
// is what was actually performed.
func (d Decoder) Apply(now float64, body *Body, act Action, sink Actuator) Action {
	heading := model.Heading(body.Heading)
	force := heading.Scale(act.Thrust * d.ThrustForce)
	sink.ApplyForce(body.ID, force, act.Turn*d.TorqueScale)

	if act.Fire && !d.CanFire(now, *body) {
		act.Fire = false
	}
	if act.Fire {
		sink.SpawnProjectile(Projectile{
			Owner:    body.ID,
			Origin:   body.Position.Add(heading.Scale(d.MuzzleOffset)),
			Velocity: heading.Scale(d.ProjectileSpeed),
			FiredAt:  now,
		})
		body.LastFired = now
		body.HasFired = true
	}
	return act
}
