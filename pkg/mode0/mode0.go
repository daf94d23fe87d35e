// Package mode0 implements the "song director": the distinguished Mode 0
// channel that steers pattern selection, scale, and velocity for channels
// 1..14. Mode 0 emits no MIDI of its own.
package mode0

import (
	"github.com/zurustar/groovecore/pkg/song"
)

// NumChannels is the number of musical channels Mode 0 can steer (1..14).
const NumChannels = song.NumModes - 1

// reinitDebounceMs bounds how often a single channel's script may be
// reinitialized in response to a Mode-0 advance.
const reinitDebounceMs = 100

// ChannelParams is the set of global parameters Mode 0 hands each channel's
// ScriptContext on reinitialization.
type ChannelParams struct {
	ScaleRoot      int // 0..11
	ScaleType      int // 0..7
	VelocityOffset int // -64..63
	Pattern        int // 0..31, the active pattern for this channel
}

// Director tracks the Mode-0 cursor and the derived per-channel state.
type Director struct {
	cursor     int // Mode-0's own step position, 0..loopLength-1
	loopLength int

	scaleRoot      int
	scaleType      int
	velocityOffset int
	pattern        [NumChannels + 1]int // indexed by channel 1..14; index 0 unused

	lastReinitMs [NumChannels + 1]uint32
	everReinited [NumChannels + 1]bool
}

// New returns a Director with cursor 0 and every channel defaulting to
// pattern 0.
func New() *Director {
	return &Director{loopLength: 16}
}

// computeLoopLength scans Mode 0 pattern 0 track 0 from step 0 upward,
// counting ON steps until the first OFF gap. If step 0 is OFF, the loop
// length is 16.
func computeLoopLength(track *song.Track) int {
	first, err := track.Event(0)
	if err != nil || !first.Switch() {
		return 16
	}
	n := 0
	for s := 0; s < song.NumSteps; s++ {
		e, err := track.Event(s)
		if err != nil || !e.Switch() {
			break
		}
		n++
	}
	if n == 0 {
		return 16
	}
	return n
}

// pot3ToPattern reduces a raw pot value to the pattern index space (mod 32).
func pot3ToPattern(v uint8) int { return int(v) % song.NumPatterns }

// potToScaleRoot reduces a raw pot value to 0..11.
func potToScaleRoot(v uint8) int { return int(v) % 12 }

// potToScaleType reduces a raw pot value to 0..7.
func potToScaleType(v uint8) int { return int(v) % 8 }

// potToVelocityOffset maps a raw pot value (0..127) to -64..63.
func potToVelocityOffset(v uint8) int { return int(v) - 64 }

// ReinitRequest describes a pending script re-initialization triggered by
// a Mode-0 advance.
type ReinitRequest struct {
	Channel int
	Params  ChannelParams
}

// Start evaluates Mode 0 at its current cursor position (step 0, the first
// time it is called) without advancing it — so step-0 overrides are
// already in effect for the very first global 16-step loop, rather than
// only taking effect once the global cursor has wrapped once and Advance
// has run.
func (d *Director) Start(s *song.Song, nowMs uint32) []ReinitRequest {
	return d.evaluate(s, nowMs, false)
}

// Advance moves the Mode-0 cursor forward by one step (called once per
// full 16-step global loop, i.e. when the global step cursor wraps to 0).
// It recomputes the macro-loop length from the current song contents,
// derives scale/velocity/pattern parameters from the new Mode-0 step, and
// returns the set of channels whose script context should be reinitialized
// — respecting a 100ms-per-channel debounce.
func (d *Director) Advance(s *song.Song, nowMs uint32) []ReinitRequest {
	return d.evaluate(s, nowMs, true)
}

func (d *Director) evaluate(s *song.Song, nowMs uint32, step bool) []ReinitRequest {
	mode0, err := s.Mode(0)
	if err != nil {
		return nil
	}
	pattern0, err := mode0.Pattern(0)
	if err != nil {
		return nil
	}
	track0, err := pattern0.Track(0)
	if err != nil {
		return nil
	}

	d.loopLength = computeLoopLength(track0)
	if d.loopLength <= 0 {
		d.loopLength = 16
	}

	if step {
		d.cursor = (d.cursor + 1) % d.loopLength
	} else {
		d.cursor = d.cursor % d.loopLength
	}

	globalEvent, _ := track0.Event(d.cursor)
	d.scaleRoot = potToScaleRoot(globalEvent.Pot(0))
	d.scaleType = potToScaleType(globalEvent.Pot(1))
	d.velocityOffset = potToVelocityOffset(globalEvent.Pot(2))
	globalPattern := pot3ToPattern(globalEvent.Pot(3))
	globalOverrideActive := globalEvent.Switch()

	var requests []ReinitRequest

	for ch := 1; ch <= NumChannels; ch++ {
		newPattern := d.pattern[ch]
		if globalOverrideActive {
			newPattern = globalPattern
		}

		// Tracks 1..7 of Mode 0 pattern 0 carry per-channel overrides:
		// track t overrides channel t+1.
		if t := ch - 1; t >= 1 && t < song.NumTracks {
			track, err := pattern0.Track(t)
			if err == nil {
				ev, _ := track.Event(d.cursor)
				if ev.Switch() {
					newPattern = pot3ToPattern(ev.Pot(3))
				}
			}
		}

		changed := newPattern != d.pattern[ch] || !d.everReinited[ch]
		d.pattern[ch] = newPattern

		if changed && (!d.everReinited[ch] || nowMs-d.lastReinitMs[ch] >= reinitDebounceMs) {
			d.lastReinitMs[ch] = nowMs
			d.everReinited[ch] = true
			requests = append(requests, ReinitRequest{
				Channel: ch,
				Params: ChannelParams{
					ScaleRoot:      d.scaleRoot,
					ScaleType:      d.scaleType,
					VelocityOffset: d.velocityOffset,
					Pattern:        newPattern,
				},
			})
		}
	}

	return requests
}

// PatternForChannel returns the currently active pattern index for channel
// ch (1..14).
func (d *Director) PatternForChannel(ch int) int {
	if ch < 1 || ch > NumChannels {
		return 0
	}
	return d.pattern[ch]
}

// Cursor returns the Mode-0 cursor's current step position.
func (d *Director) Cursor() int { return d.cursor }

// LoopLength returns the currently computed Mode-0 macro-loop length.
func (d *Director) LoopLength() int { return d.loopLength }
