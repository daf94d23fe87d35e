package engine

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/zurustar/groovecore/pkg/scheduler"
	"github.com/zurustar/groovecore/pkg/script"
	"github.com/zurustar/groovecore/pkg/song"
)

type discardSink struct{}

func (discardSink) Send(payload []byte, deliveryMs uint32) error { return nil }

func newDriftTestEngine(bpm int) (*Engine, *scheduler.Scheduler, *Emitter) {
	s := song.New()
	s.Tempo = bpm
	sched := scheduler.New(discardSink{}, nil)
	emitter := NewEmitter(sched, nil)
	var channels [NumChannels + 1]*script.ScriptContext
	e := New(s, channels, sched, emitter, nil)
	return e, sched, emitter
}

// Property 2 (spec §8): step_interval_ms * tempo_bpm * 4 ~= 60_000 (quarter
// notes per minute, four steps per quarter note), within integer-truncation
// rounding.
func TestStepIntervalTempoRelationProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("interval * bpm * 4 stays within one bpm-unit of 60000", prop.ForAll(
		func(bpm int) bool {
			interval := StepIntervalMs(bpm)
			product := int(interval) * bpm * 4
			diff := product - 60000
			if diff < 0 {
				diff = -diff
			}
			// Truncation can lose up to (bpm*4 - 1) ms of product per step.
			return diff < bpm*4
		},
		gen.IntRange(1, 1000),
	))

	properties.TestingRun(t)
}

// Property 4 (spec §8): across any sequence of Update calls at a fixed
// tempo, NextStepMs always lands on step_interval_ms * n for some integer
// n -- the cadence never drifts off its grid regardless of how Update is
// called (in large jumps, small jumps, or unevenly).
func TestDriftFreeStepCadenceProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("NextStepMs always lands on the step_interval_ms grid", prop.ForAll(
		func(bpm int, deltas []uint16) bool {
			e, _, _ := newDriftTestEngine(bpm)
			e.Start(0)

			interval := StepIntervalMs(bpm)
			now := uint32(0)
			for _, d := range deltas {
				now += uint32(d)
				e.Update(now)
				if e.cursor.NextStepMs%interval != 0 {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 240),
		gen.SliceOfN(30, gen.UInt16Range(0, 50)),
	))

	properties.TestingRun(t)
}
