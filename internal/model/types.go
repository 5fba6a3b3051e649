package model

import (
	"math"
	"math/rand"
	"time"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type Vec2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

func (v Vec2) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// Heading returns the unit vector for an angle in radians.
func Heading(angle float64) Vec2 {
	return Vec2{X: math.Cos(angle), Y: math.Sin(angle)}
}

// Bounds is a world rectangle centred on the origin.
type Bounds struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

func (b Bounds) Contains(p Vec2) bool {
	return p.X >= -b.Width/2 && p.X < b.Width/2 && p.Y >= -b.Height/2 && p.Y < b.Height/2
}

// RandomPoint draws a position uniformly over the bounds.
func (b Bounds) RandomPoint(rng *rand.Rand) Vec2 {
	return Vec2{
		X: (rng.Float64() - 0.5) * b.Width,
		Y: (rng.Float64() - 0.5) * b.Height,
	}
}

// Wrap folds a point back into the bounds, torus style.
func (b Bounds) Wrap(p Vec2) Vec2 {
	return Vec2{X: wrap(p.X, b.Width), Y: wrap(p.Y, b.Height)}
}

func wrap(v, size float64) float64 {
	if size <= 0 {
		return 0
	}
	v = math.Mod(v+size/2, size)
	if v < 0 {
		v += size
	}
	return v - size/2
}

// Run describes one simulation run. Config holds the effective YAML
// configuration the run was started with.
type Run struct {
	VersionedRecord
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	Seed          int64     `json:"seed"`
	MaxPopulation int       `json:"max_population"`
	Ticks         int       `json:"ticks"`
	FinalTick     int       `json:"final_tick"`
	Config        string    `json:"config,omitempty"`
}

// TickSummary is one row of population statistics, taken after a full
// scheduler tick.
type TickSummary struct {
	Tick        int     `json:"tick"`
	Time        float64 `json:"time"`
	Population  int     `json:"population"`
	Births      int     `json:"births"`
	Deaths      int     `json:"deaths"`
	Evaluated   int     `json:"evaluated"`
	ShotsFired  int     `json:"shots_fired"`
	MeanFitness float64 `json:"mean_fitness"`
	MaxEnergy   float64 `json:"max_energy"`
}

type LineageRecord struct {
	AgentID   uint64  `json:"agent_id"`
	ParentID  uint64  `json:"parent_id,omitempty"`
	Time      float64 `json:"time"`
	Bootstrap bool    `json:"bootstrap"`
	BirthX    float64 `json:"birth_x"`
	BirthY    float64 `json:"birth_y"`
}

type FitnessRecord struct {
	AgentID   uint64    `json:"agent_id"`
	Total     int       `json:"total"`
	Offspring int       `json:"offspring"`
	History   []float64 `json:"history"`
}
