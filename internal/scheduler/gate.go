package scheduler

import "math"

// Gate decides whether an agent runs its forward pass this tick. Both checks
// must pass: the agent was not updated within Interval, and the shared
// repeating clock of length Cycle has reached the agent's phase offset.
type Gate struct {
	Interval float64
	Cycle    float64
}

func (g Gate) Ready(now, lastUpdated float64, updated bool, phaseOffset float64) bool {
	if updated && now-lastUpdated < g.Interval {
		return false
	}
	if g.Cycle <= 0 {
		return true
	}
	return math.Mod(now, g.Cycle) >= phaseOffset*g.Cycle
}

// Timer fires once per Period of accumulated time. An Immediate timer also
// fires on its first check.
type Timer struct {
	Period    float64
	Immediate bool

	elapsed float64
	started bool
}

func (t *Timer) Due(dt float64) bool {
	if !t.started {
		t.started = true
		if t.Immediate {
			return true
		}
	}
	t.elapsed += dt
	if t.elapsed < t.Period {
		return false
	}
	t.elapsed -= t.Period
	return true
}

// Clock is the logical simulation clock, in seconds.
type Clock struct {
	now float64
}

func (c *Clock) Now() float64 {
	return c.now
}

func (c *Clock) Advance(dt float64) float64 {
	c.now += dt
	return c.now
}
