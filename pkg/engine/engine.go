// Package engine drives the playback loop: it advances the step cursor on
// a drift-free cadence, ticks the MIDI clock, dispatches step events to
// each channel's script context, and pumps the outbound scheduler.
package engine

import (
	"log/slog"

	"github.com/zurustar/groovecore/pkg/errs"
	"github.com/zurustar/groovecore/pkg/midiclock"
	"github.com/zurustar/groovecore/pkg/mode0"
	"github.com/zurustar/groovecore/pkg/scheduler"
	"github.com/zurustar/groovecore/pkg/script"
	"github.com/zurustar/groovecore/pkg/song"
)

// NumChannels is the number of playable channels (modes 1..14).
const NumChannels = mode0.NumChannels

// Cursor is the global step position shared by every channel.
type Cursor struct {
	Step         int
	LastAdvanceMs uint32
	NextStepMs    uint32
	TempoBPM      int
}

// Engine owns the song, the director, the per-channel script contexts, the
// MIDI clock, and the outbound scheduler, and drives them all forward from
// a single Update call per host tick.
type Engine struct {
	song     *song.Song
	director *mode0.Director
	channels [NumChannels + 1]*script.ScriptContext // index 0 unused

	clock     *midiclock.Clock
	scheduler *scheduler.Scheduler
	emitter   *Emitter

	cursor  Cursor
	running bool

	log *slog.Logger
}

// New constructs an Engine bound to s. channels[i] must be a loaded
// ScriptContext for channel i (1..14), or nil if that channel has no
// script. sched and emitter are the same pair handed to those
// ScriptContexts at construction, so that script-driven MIDI and the
// clock's own realtime bytes flow through one priority queue.
func New(s *song.Song, channels [NumChannels + 1]*script.ScriptContext, sched *scheduler.Scheduler, emitter *Emitter, log *slog.Logger) *Engine {
	tempo := clampTempo(s.Tempo)
	e := &Engine{
		song:      s,
		director:  mode0.New(),
		channels:  channels,
		clock:     midiclock.New(tempo),
		scheduler: sched,
		emitter:   emitter,
		cursor:    Cursor{TempoBPM: tempo},
		log:       log,
	}
	e.initChannels()
	return e
}

// initChannels calls every loaded channel's init(ctx) once, up front, with
// the director's starting parameters — required before the first
// process_event call per the script contract. mode0.Advance debounces and
// re-issues this later as scale/velocity/pattern change.
func (e *Engine) initChannels() {
	for ch := 1; ch <= NumChannels; ch++ {
		sc := e.channels[ch]
		if sc == nil || sc.Disabled() {
			continue
		}
		if err := sc.Init(script.InitParams{
			TempoBPM: e.cursor.TempoBPM,
			Pattern:  e.director.PatternForChannel(ch),
			Channel:  ch,
		}); err != nil && e.log != nil {
			e.log.Warn("channel init failed", "channel", ch, "error", err)
		}
	}
}

func clampTempo(bpm int) int {
	if bpm < 1 {
		return 1
	}
	if bpm > 1000 {
		return 1000
	}
	return bpm
}

// StepIntervalMs returns 15_000 / tempo_bpm: four steps per quarter note.
func StepIntervalMs(tempoBPM int) uint32 {
	tempoBPM = clampTempo(tempoBPM)
	interval := 15000 / tempoBPM
	if interval < 1 {
		interval = 1
	}
	return uint32(interval)
}

// SetTempo updates the engine's tempo without retroactively moving the
// already-armed next step or clock pulse; the new cadence takes effect on
// the following advance, matching the clock manager's re-anchoring rule.
func (e *Engine) SetTempo(bpm int) {
	e.cursor.TempoBPM = clampTempo(bpm)
	e.clock.SetTempo(e.cursor.TempoBPM)
	e.song.Tempo = e.cursor.TempoBPM
}

// Start arms the cursor and clock at now, beginning playback, and sends a
// MIDI Start (FA) realtime byte. Step 0 is anchored to fire on the very
// next Update(now) call, not one step interval later, so step-0 events
// play immediately rather than being skipped. It also evaluates the
// Mode-0 director once at its starting cursor position, so step-0
// pattern/scale overrides are already in effect for the very first global
// loop rather than only from the second loop onward.
func (e *Engine) Start(nowMs uint32) {
	e.running = true
	e.cursor.Step = 0
	e.cursor.NextStepMs = nowMs
	e.cursor.LastAdvanceMs = nowMs
	e.clock.Start(nowMs)
	e.scheduler.Start(nowMs)
	for _, r := range e.director.Start(e.song, nowMs) {
		e.reinitChannel(r)
	}
}

// Stop halts playback, silences every channel via AllNotesOff, and sends a
// MIDI Stop (FC) realtime byte. The step cursor position is left as-is;
// the next Start call resets it to 0.
func (e *Engine) Stop(nowMs uint32) {
	e.running = false
	e.clock.Stop()
	e.scheduler.Stop(nowMs)
	e.scheduler.Drain(nowMs)
}

// Running reports whether the engine is currently advancing the cursor.
func (e *Engine) Running() bool { return e.running }

// Cursor returns a copy of the engine's current step-cursor state.
func (e *Engine) Cursor() Cursor { return e.cursor }

// Song returns the song this engine is playing back.
func (e *Engine) Song() *song.Song { return e.song }

// Director exposes the Mode-0 song director for inspection (UI display of
// the active pattern per channel, etc).
func (e *Engine) Director() *mode0.Director { return e.director }

// ReloadMode reloads channel ch's script from source, disabling the
// channel on failure rather than taking down playback.
func (e *Engine) ReloadMode(ch int, source string) error {
	if ch < 1 || ch > NumChannels {
		return errs.OutOfRangeErr("ReloadMode", "channel", ch, 1, NumChannels)
	}
	sc := e.channels[ch]
	if sc == nil {
		return nil
	}
	return sc.Load(source)
}

// Update advances the engine by one host tick. It ticks the MIDI clock,
// steps the cursor forward drift-free (accumulating NextStepMs rather than
// recomputing from now), dispatches due steps to every channel's script,
// advances the Mode-0 director on every cursor wrap, and finally pumps the
// scheduler so due MIDI bytes reach the sink.
func (e *Engine) Update(nowMs uint32) {
	if e.running {
		e.clock.Tick(nowMs, e.scheduler)

		for e.cursor.NextStepMs <= nowMs {
			e.dispatchStep(e.cursor.Step, e.cursor.NextStepMs)

			e.cursor.Step++
			if e.cursor.Step >= song.NumSteps {
				e.cursor.Step = 0
				e.advanceDirector(nowMs)
			}

			e.cursor.LastAdvanceMs = e.cursor.NextStepMs
			e.cursor.NextStepMs += StepIntervalMs(e.cursor.TempoBPM)
		}
	}

	e.scheduler.Update(nowMs)
}

// advanceDirector runs the Mode-0 director forward one step and reloads
// any channel whose derived parameters changed.
func (e *Engine) advanceDirector(nowMs uint32) {
	for _, r := range e.director.Advance(e.song, nowMs) {
		e.reinitChannel(r)
	}
}

// reinitChannel reloads channel r.Channel's script context with the
// director's freshly derived parameters.
func (e *Engine) reinitChannel(r mode0.ReinitRequest) {
	sc := e.channels[r.Channel]
	if sc == nil {
		return
	}
	if err := sc.Init(script.InitParams{
		TempoBPM:       e.cursor.TempoBPM,
		ScaleRoot:      r.Params.ScaleRoot,
		ScaleType:      r.Params.ScaleType,
		VelocityOffset: r.Params.VelocityOffset,
		Pattern:        r.Params.Pattern,
		Channel:        r.Channel,
	}); err != nil && e.log != nil {
		e.log.Warn("channel reinit failed", "channel", r.Channel, "error", err)
	}
}

// dispatchStep feeds every track's event at step to its channel's script
// context, for every channel whose active pattern is known to the
// director.
func (e *Engine) dispatchStep(step int, stepMs uint32) {
	if e.emitter != nil {
		e.emitter.SetNow(stepMs)
	}

	for ch := 1; ch <= NumChannels; ch++ {
		sc := e.channels[ch]
		if sc == nil || sc.Disabled() {
			continue
		}

		patternIdx := e.director.PatternForChannel(ch)
		pattern, err := e.song.Pattern(ch, patternIdx)
		if err != nil {
			continue
		}

		for t := 0; t < song.NumTracks; t++ {
			track, err := pattern.Track(t)
			if err != nil {
				continue
			}
			ev, err := track.Event(step)
			if err != nil {
				continue
			}
			if err := sc.Dispatch(t, step, ev); err != nil && e.log != nil {
				e.log.Warn("script dispatch failed", "channel", ch, "step", step, "disabled", sc.Disabled(), "error", err)
			}
		}
	}
}
