package persistence

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/zurustar/groovecore/pkg/midievent"
	"github.com/zurustar/groovecore/pkg/song"
)

// Property 5 (spec §8): any song containing a single switch-true event at
// an arbitrary coordinate round-trips exactly through Marshal/Unmarshal.
func TestSaveLoadRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("switch-true events survive a marshal/unmarshal cycle", prop.ForAll(
		func(mode, pattern, track, step int, p0, p1, p2, p3 uint8) bool {
			s := song.New()
			var e midievent.Event
			e.SetSwitch(true)
			e.SetPot(0, int(p0))
			e.SetPot(1, int(p1))
			e.SetPot(2, int(p2))
			e.SetPot(3, int(p3))
			if err := s.SetEvent(mode, pattern, track, step, e); err != nil {
				return false
			}

			data, err := Marshal(s)
			if err != nil {
				return false
			}
			loaded, warnings, err := Unmarshal(data, nil)
			if err != nil || warnings != 0 {
				return false
			}

			got, err := loaded.Event(mode, pattern, track, step)
			if err != nil {
				return false
			}
			return got.Switch() && got.Pots() == e.Pots()
		},
		gen.IntRange(0, song.NumModes-1),
		gen.IntRange(0, song.NumPatterns-1),
		gen.IntRange(0, song.NumTracks-1),
		gen.IntRange(0, song.NumSteps-1),
		gen.UInt8Range(0, 127),
		gen.UInt8Range(0, 127),
		gen.UInt8Range(0, 127),
		gen.UInt8Range(0, 127),
	))

	properties.TestingRun(t)
}
