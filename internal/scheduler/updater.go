package scheduler

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"cellevo/internal/action"
	"cellevo/internal/fitness"
	"cellevo/internal/model"
	"cellevo/internal/population"
)

// Sensor builds the fixed-width sensory vector for an agent pose. It is
// called from several goroutines during a pass and must only read.
type Sensor interface {
	Sense(position model.Vec2, heading float64) []float64
}

// Bodies reports the current pose the physics collaborator holds for an
// agent. Like Sensor it is read concurrently.
type Bodies interface {
	Pose(id uint64) (model.Vec2, float64, bool)
}

// EvaluationObserver sees each evaluated agent after its side effects were
// applied. Calls happen serially, in id order.
type EvaluationObserver interface {
	AgentEvaluated(now float64, a *population.Agent, performed action.Action)
}

type PassReport struct {
	Evaluated   int
	ShotsFired  int
	MeanFitness float64
}

type Updater struct {
	Gate      Gate
	Rule      fitness.Rule
	Decoder   action.Decoder
	Workers   int
	Sensor    Sensor
	Bodies    Bodies
	Actuator  action.Actuator
	Observers []EvaluationObserver
}

type evaluation struct {
	action action.Action
	score  float64
}

// Pass runs one agent-update pass. Forward passes run in parallel; each
// goroutine only writes to its own agent. Force, torque and fire side effects
// are applied afterwards, one agent at a time.
func (u *Updater) Pass(ctx context.Context, now float64, pop *population.Population) (PassReport, error) {
	var ready []*population.Agent
	for _, a := range pop.Agents() {
		if u.Gate.Ready(now, a.LastUpdated, a.Updated, a.PhaseOffset) {
			ready = append(ready, a)
		}
	}
	if len(ready) == 0 {
		return PassReport{}, nil
	}

	results := make([]evaluation, len(ready))
	g, gctx := errgroup.WithContext(ctx)
	workers := u.Workers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, a := range ready {
		i, a := i, a
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := u.evaluate(now, a)
			if err != nil {
				return fmt.Errorf("agent %d: %w", a.ID, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return PassReport{}, err
	}

	report := PassReport{Evaluated: len(ready)}
	total := 0.0
	for i, a := range ready {
		body := action.Body{
			ID:        a.ID,
			Position:  a.Position,
			Heading:   a.Heading,
			LastFired: a.LastFired,
			HasFired:  a.HasFired,
		}
		performed := u.Decoder.Apply(now, &body, results[i].action, u.Actuator)
		a.LastFired = body.LastFired
		a.HasFired = body.HasFired
		if performed.Fire {
			report.ShotsFired++
		}
		total += results[i].score
		for _, o := range u.Observers {
			o.AgentEvaluated(now, a, performed)
		}
	}
	report.MeanFitness = total / float64(len(ready))
	return report, nil
}

func (u *Updater) evaluate(now float64, a *population.Agent) (evaluation, error) {
	if pos, heading, ok := u.Bodies.Pose(a.ID); ok {
		a.Position = pos
		a.Heading = heading
	}
	inputs := u.Sensor.Sense(a.Position, a.Heading)

	layers, err := a.Network.Predict(inputs)
	if err != nil {
		return evaluation{}, err
	}
	output := layers[len(layers)-1]
	score := u.Rule.Evaluate(inputs, fitness.Channels(output))

	a.Fitness.Record(score)
	a.Activations = layers
	a.LastUpdated = now
	a.Updated = true
	return evaluation{action: u.Decoder.Decode(output), score: score}, nil
}
