// Package input implements the front-panel input router: rotary encoders
// mapped with hysteresis onto mode/tempo/pattern/track selection, debounced
// step buttons, and slider parameter-locking.
package input

import (
	"github.com/zurustar/groovecore/pkg/midievent"
	"github.com/zurustar/groovecore/pkg/song"
)

// hysteresisBits is the number of low-order bits of a raw 0..127 pot
// reading that are masked off before comparing against the last accepted
// value, so that encoder jitter near a boundary does not oscillate the
// mapped selection.
const hysteresisBits = 2

// pressDebounceMs is how long a button must read pressed, continuously,
// before the router treats it as a real press.
const pressDebounceMs = 20

// releaseIgnoreMs is how long after a release the router ignores further
// presses on the same button (contact bounce suppression).
const releaseIgnoreMs = 50

// Rotary tracks one hysteresis-filtered rotary control.
type Rotary struct {
	lastAccepted uint8
	haveValue    bool
}

// Update feeds a new raw 0..127 reading and reports the accepted value and
// whether it changed from the previously accepted value. A reading is
// accepted only when it differs from the last accepted value outside the
// masked low bits.
func (r *Rotary) Update(raw uint8) (accepted uint8, changed bool) {
	if !r.haveValue {
		r.haveValue = true
		r.lastAccepted = raw
		return raw, true
	}
	if raw>>hysteresisBits == r.lastAccepted>>hysteresisBits {
		return r.lastAccepted, false
	}
	r.lastAccepted = raw
	return raw, true
}

// scale maps a raw 0..127 reading linearly onto [lo, hi] inclusive.
func scale(raw uint8, lo, hi int) int {
	span := hi - lo + 1
	v := lo + (int(raw)*span)/128
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

// ButtonState tracks one button's debounce state machine.
type ButtonState struct {
	rawPressed    bool
	debouncedOn   bool
	pressStartMs  uint32
	pressStarted  bool
	releasedAtMs  uint32
	hasReleasedAt bool
}

// Update feeds a new raw reading and the current time, returning whether a
// debounced OFF-to-ON edge just occurred.
func (b *ButtonState) Update(pressed bool, nowMs uint32) (risingEdge bool) {
	if b.hasReleasedAt && !b.debouncedOn && pressed && nowMs-b.releasedAtMs < releaseIgnoreMs {
		return false
	}

	if pressed {
		if !b.pressStarted {
			b.pressStarted = true
			b.pressStartMs = nowMs
		}
		if !b.debouncedOn && nowMs-b.pressStartMs >= pressDebounceMs {
			b.debouncedOn = true
			risingEdge = true
		}
	} else {
		if b.debouncedOn {
			b.releasedAtMs = nowMs
			b.hasReleasedAt = true
		}
		b.debouncedOn = false
		b.pressStarted = false
	}

	b.rawPressed = pressed
	return risingEdge
}

// Pressed reports the button's current debounced state.
func (b *ButtonState) Pressed() bool { return b.debouncedOn }

// Selection is the router's current mode/tempo/pattern/track selection,
// derived from the four rotary controls.
type Selection struct {
	Mode    int // 0..14
	TempoBPM int // 60..240
	Pattern int // 0..31
	Track   int // 0..7
}

// Router owns the rotary and button debounce state for the whole panel
// and exposes the derived selection plus slider parameter-locking.
type Router struct {
	modeRotary    Rotary
	tempoRotary   Rotary
	patternRotary Rotary
	trackRotary   Rotary

	selection Selection

	stepButtons [song.NumSteps]ButtonState
}

// New returns a Router with the default selection (mode 0, tempo 120,
// pattern 0, track 0).
func New() *Router {
	return &Router{selection: Selection{Mode: 0, TempoBPM: 120, Pattern: 0, Track: 0}}
}

// Selection returns the router's current selection.
func (r *Router) Selection() Selection { return r.selection }

// UpdateModeRotary feeds a raw mode-select reading.
func (r *Router) UpdateModeRotary(raw uint8) (changed bool) {
	v, changed := r.modeRotary.Update(raw)
	if changed {
		r.selection.Mode = scale(v, 0, 14)
	}
	return changed
}

// UpdateTempoRotary feeds a raw tempo reading, mapped onto 60..240 BPM.
func (r *Router) UpdateTempoRotary(raw uint8) (changed bool) {
	v, changed := r.tempoRotary.Update(raw)
	if changed {
		r.selection.TempoBPM = 60 + int(v)*180/127
	}
	return changed
}

// UpdatePatternRotary feeds a raw pattern-select reading.
func (r *Router) UpdatePatternRotary(raw uint8) (changed bool) {
	v, changed := r.patternRotary.Update(raw)
	if changed {
		r.selection.Pattern = scale(v, 0, 31)
	}
	return changed
}

// UpdateTrackRotary feeds a raw track-select reading.
func (r *Router) UpdateTrackRotary(raw uint8) (changed bool) {
	v, changed := r.trackRotary.Update(raw)
	if changed {
		r.selection.Track = scale(v, 0, 7)
	}
	return changed
}

// UpdateStepButton feeds a raw step-button reading for step (0..15) and
// reports whether a debounced press just began.
func (r *Router) UpdateStepButton(step int, pressed bool, nowMs uint32) bool {
	if step < 0 || step >= len(r.stepButtons) {
		return false
	}
	return r.stepButtons[step].Update(pressed, nowMs)
}

// LockSliders writes the current four slider values into the event at the
// router's current mode/pattern/track/step selection on a button's
// OFF-to-ON transition (parameter locking), toggling the event's switch
// bit on as well. The caller is responsible for calling this only in
// response to a rising edge from UpdateStepButton.
func LockSliders(e *midievent.Event, sliders [4]uint8) {
	e.SetSwitch(true)
	for i, v := range sliders {
		e.SetPot(i, int(v))
	}
}
