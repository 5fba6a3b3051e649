// Package fitness scores a single agent evaluation and keeps the per-agent
// fitness history.
package fitness

import (
	"math"

	"cellevo/internal/nn"
)

// Sensory layout shared with the world collaborator. All values are in the
// agent's local frame.
const (
	InputFoodForward = iota
	InputFoodLateral
	InputFoodProximity
	InputFoodVisible

	InputWidth
)

// Action channel layout of the network output.
const (
	ChannelThrust = iota
	ChannelTurn
	ChannelFire
	ChannelReserved

	ChannelCount
)

// Rule is the tunable scoring rule. Every term is computed from clamped
// inputs so the score stays within [MinScore, MaxScore] for any finite or
// non-finite argument.
type Rule struct {
	ProximityWeight float64 `yaml:"proximity_weight" json:"proximity_weight"`
	AimWeight       float64 `yaml:"aim_weight" json:"aim_weight"`
	FireThreshold   float64 `yaml:"fire_threshold" json:"fire_threshold"`
	FirePenalty     float64 `yaml:"fire_penalty" json:"fire_penalty"`
	ReservedPenalty float64 `yaml:"reserved_penalty" json:"reserved_penalty"`
}

func DefaultRule() Rule {
	return Rule{
		ProximityWeight: 0.5,
		AimWeight:       0.25,
		FireThreshold:   0.5,
		FirePenalty:     0.5,
		ReservedPenalty: 0.05,
	}
}

// Evaluate scores inputs and the four primary action channels with the
// default rule.
func Evaluate(inputs []float64, channels [ChannelCount]float64) float64 {
	return DefaultRule().Evaluate(inputs, channels)
}

// Evaluate rewards thrusting toward visible food and staying close to it,
// penalizes steering away from it, firing with nothing ahead and any use of
// the reserved channel.
func (r Rule) Evaluate(inputs []float64, channels [ChannelCount]float64) float64 {
	forward := input(inputs, InputFoodForward, -1)
	lateral := input(inputs, InputFoodLateral, -1)
	proximity := input(inputs, InputFoodProximity, 0)
	visible := input(inputs, InputFoodVisible, 0)

	thrust := nn.Finite(channels[ChannelThrust], 1, -1)
	turn := nn.Finite(channels[ChannelTurn], 1, -1)
	fire := nn.Finite(channels[ChannelFire], 1, -1)
	reserved := nn.Finite(channels[ChannelReserved], 1, -1)

	score := thrust * forward * visible
	score += r.ProximityWeight * proximity * visible
	score -= r.AimWeight * math.Abs(turn-lateral) * visible
	if fire > r.FireThreshold && (visible == 0 || forward <= 0) {
		score -= r.FirePenalty
	}
	score -= r.ReservedPenalty * math.Abs(reserved)
	return score
}

func input(inputs []float64, idx int, min float64) float64 {
	if idx >= len(inputs) {
		return 0
	}
	return nn.Finite(inputs[idx], 1, min)
}

// Channels copies the first four output values; missing channels read as 0.
func Channels(output []float64) [ChannelCount]float64 {
	var out [ChannelCount]float64
	copy(out[:], output)
	return out
}
