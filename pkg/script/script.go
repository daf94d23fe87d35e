// Package script implements the embedded per-channel scripting runtime:
// one sandboxed Lua interpreter per channel, exposing a small host API for
// emitting MIDI and driving LEDs, isolated so that a crashing script
// disables only its own channel.
package script

import (
	"fmt"
	"log/slog"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/zurustar/groovecore/pkg/errs"
	"github.com/zurustar/groovecore/pkg/midievent"
)

// invalidArgumentMarker tags a Lua error raised by a host-API range check,
// so Dispatch can tell it apart from a generic script crash: an invalid
// argument only skips the current step, it does not disable the channel.
const invalidArgumentMarker = "invalid_argument: "

// Profile selects which Lua standard library surface a ScriptContext opens.
type Profile int

const (
	// ProfileEmbedded opens only base, table, string, and math — the
	// sandbox used on the hardware target.
	ProfileEmbedded Profile = iota
	// ProfileDesktop opens the full standard library, for development on
	// a workstation where scripts are trusted.
	ProfileDesktop
)

// InitParams mirrors mode0.ChannelParams without importing pkg/mode0, to
// keep the scripting runtime independent of the song-director package.
type InitParams struct {
	TempoBPM       int
	ScaleRoot      int
	ScaleType      int
	VelocityOffset int
	Pattern        int
	Channel        int // model channel (mode number), 1..14
}

// Emitter receives the MIDI and LED side effects a script produces while
// processing a step event.
type Emitter interface {
	NoteOn(channel int, pitch, velocity uint8, deltaMs uint32)
	NoteOff(channel int, pitch uint8, deltaMs uint32)
	ControlChange(channel int, controller, value uint8, deltaMs uint32)
	AllNotesOff(channel int, deltaMs uint32)
	SetLED(index int, value uint8)
}

// ScriptContext owns one Lua interpreter for one channel (1..14). It is not
// safe for concurrent use; the engine drives each channel's context from a
// single goroutine per tick.
type ScriptContext struct {
	channel int
	profile Profile
	emitter Emitter
	log     *slog.Logger

	state    *lua.LState
	source   string
	disabled bool

	// ModeName and SliderLabels are populated from the optional MODE_NAME
	// and SLIDER_LABELS globals after a successful load, for UI display.
	ModeName     string
	SliderLabels [4]string
}

// New constructs a ScriptContext for the given channel. Call Load before
// Init or Dispatch.
func New(channel int, profile Profile, emitter Emitter, log *slog.Logger) *ScriptContext {
	return &ScriptContext{channel: channel, profile: profile, emitter: emitter, log: log}
}

// checkByte validates a host-API argument is within the MIDI data-byte
// range 0..127. Out-of-range values raise a marked Lua error rather than
// clamping, per the host-API contract's InvalidArgument behavior.
func checkByte(L *lua.LState, v int, name string) uint8 {
	if v < 0 || v > 127 {
		L.RaiseError("%s%s=%d out of range [0,127]", invalidArgumentMarker, name, v)
	}
	return uint8(v)
}

// clampBrightness restricts an LED brightness argument to the full uint8
// range — unlike MIDI data bytes, PWM brightness is not limited to 0..127.
func clampBrightness(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Load compiles and runs the script's top-level chunk, installing the host
// API and opening the library profile's base libraries. It does not call
// init — that happens via Init once a Director hands down parameters. A
// load failure disables the channel and returns a ScriptLoad error.
func (sc *ScriptContext) Load(source string) error {
	if sc.state != nil {
		sc.state.Close()
	}
	sc.state = lua.NewState(lua.Options{SkipOpenLibs: true})
	sc.source = source
	sc.disabled = false

	sc.openLibs()
	sc.installHostAPI()

	if err := sc.state.DoString(source); err != nil {
		sc.disabled = true
		return errs.ScriptLoadErr(fmt.Sprintf("channel %d", sc.channel), sc.channel, err)
	}

	sc.ModeName = sc.readStringGlobal("MODE_NAME")
	sc.SliderLabels = sc.readSliderLabels()

	return nil
}

func (sc *ScriptContext) readStringGlobal(name string) string {
	v := sc.state.GetGlobal(name)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// readSliderLabels reads the optional SLIDER_LABELS global: an array of up
// to 4 strings naming the channel's four pot sliders for UI display.
func (sc *ScriptContext) readSliderLabels() [4]string {
	var labels [4]string
	tbl, ok := sc.state.GetGlobal("SLIDER_LABELS").(*lua.LTable)
	if !ok {
		return labels
	}
	for i := 0; i < 4; i++ {
		if s, ok := tbl.RawGetInt(i + 1).(lua.LString); ok {
			labels[i] = string(s)
		}
	}
	return labels
}

// openLibs opens the Lua standard library subset allowed by the context's
// sandboxing profile.
func (sc *ScriptContext) openLibs() {
	base := map[string]lua.LGFunction{
		lua.BaseLibName:   lua.OpenBase,
		lua.TabLibName:    lua.OpenTable,
		lua.StringLibName: lua.OpenString,
		lua.MathLibName:   lua.OpenMath,
	}
	if sc.profile == ProfileDesktop {
		base[lua.IoLibName] = lua.OpenIo
		base[lua.OsLibName] = lua.OpenOs
		base[lua.LoadLibName] = lua.OpenPackage
		base[lua.CoroutineLibName] = lua.OpenCoroutine
		base[lua.DebugLibName] = lua.OpenDebug
	}
	for name, fn := range base {
		sc.state.Push(sc.state.NewFunction(fn))
		sc.state.Push(lua.LString(name))
		sc.state.Call(1, 0)
	}
}

// installHostAPI exposes note/off/cc/stopall/led to the script's global
// scope. note/off/cc validate their pitch/velocity/controller/value
// arguments against the MIDI data-byte range 0..127 and raise rather than
// clamp on violation, per the host-API contract.
func (sc *ScriptContext) installHostAPI() {
	// Script channels are numbered 1..14 (channel 0 is Mode-0, the song
	// director, and emits no MIDI of its own); the wire channel used for
	// every emitted message is one less, so script channel 1 lands on
	// MIDI channel 0.
	ch := sc.channel - 1
	reg := func(name string, fn lua.LGFunction) {
		sc.state.SetGlobal(name, sc.state.NewFunction(fn))
	}

	reg("note", func(L *lua.LState) int {
		pitch := checkByte(L, L.CheckInt(1), "pitch")
		velocity := checkByte(L, L.OptInt(2, 100), "velocity")
		deltaMs := uint32(L.OptInt(3, 0))
		sc.emitter.NoteOn(ch, pitch, velocity, deltaMs)
		return 0
	})
	reg("off", func(L *lua.LState) int {
		pitch := checkByte(L, L.CheckInt(1), "pitch")
		deltaMs := uint32(L.OptInt(2, 0))
		sc.emitter.NoteOff(ch, pitch, deltaMs)
		return 0
	})
	reg("cc", func(L *lua.LState) int {
		controller := checkByte(L, L.CheckInt(1), "controller")
		value := checkByte(L, L.CheckInt(2), "value")
		deltaMs := uint32(L.OptInt(3, 0))
		sc.emitter.ControlChange(ch, controller, value, deltaMs)
		return 0
	})
	reg("stopall", func(L *lua.LState) int {
		deltaMs := uint32(L.OptInt(1, 0))
		sc.emitter.AllNotesOff(ch, deltaMs)
		return 0
	})
	reg("led", func(L *lua.LState) int {
		// pattern_name selects a lamp animation; the only animation this
		// runtime currently renders is a flat brightness write to the
		// channel's own indicator, so the name is accepted (and
		// type-checked) but otherwise unused. See DESIGN.md.
		L.CheckString(1)
		brightness := clampBrightness(L.OptInt(2, 255))
		sc.emitter.SetLED(sc.channel, brightness)
		return 0
	})
}

// Disabled reports whether the channel has been disabled by a load or
// runtime failure.
func (sc *ScriptContext) Disabled() bool { return sc.disabled }

// Init calls the script's init(ctx) entry point with the channel's current
// scale, velocity, and pattern parameters. A runtime error here disables
// the channel until the next successful Load; Init is a no-op on a
// disabled channel.
func (sc *ScriptContext) Init(p InitParams) error {
	if sc.disabled || sc.state == nil {
		return nil
	}

	fn := sc.state.GetGlobal("init")
	if fn == lua.LNil {
		return nil
	}

	ctx := sc.state.NewTable()
	sc.state.SetField(ctx, "tempo", lua.LNumber(p.TempoBPM))
	sc.state.SetField(ctx, "channel", lua.LNumber(sc.channel-1)) // wire channel 0..15
	sc.state.SetField(ctx, "mode", lua.LNumber(p.Channel))       // mode number 1..14
	sc.state.SetField(ctx, "scale_root", lua.LNumber(p.ScaleRoot))
	sc.state.SetField(ctx, "scale_type", lua.LNumber(p.ScaleType))
	sc.state.SetField(ctx, "velocity_offset", lua.LNumber(p.VelocityOffset))
	sc.state.SetField(ctx, "pattern", lua.LNumber(p.Pattern))

	if err := sc.state.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, ctx); err != nil {
		sc.disabled = true
		if sc.log != nil {
			sc.log.Warn("script init failed, channel disabled", "channel", sc.channel, "error", err)
		}
		return errs.ScriptRuntimeErr(fmt.Sprintf("channel %d init", sc.channel), sc.channel, -1, err)
	}
	return nil
}

// Dispatch calls the script's process_event(track_index, event) entry
// point for one step. A runtime error here disables the channel for the
// current and all subsequent steps until the next successful Load; it
// never propagates to other channels.
func (sc *ScriptContext) Dispatch(trackIndex int, step int, e midievent.Event) error {
	if sc.disabled || sc.state == nil {
		return nil
	}

	fn := sc.state.GetGlobal("process_event")
	if fn == lua.LNil {
		return nil
	}

	ev := sc.state.NewTable()
	sc.state.SetField(ev, "switch", lua.LBool(e.Switch()))
	pots := sc.state.NewTable()
	for i, v := range e.Pots() {
		pots.RawSetInt(i+1, lua.LNumber(v))
	}
	sc.state.SetField(ev, "pots", pots)
	sc.state.SetField(ev, "step", lua.LNumber(step))

	if err := sc.state.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, lua.LNumber(trackIndex), ev); err != nil {
		if strings.Contains(err.Error(), invalidArgumentMarker) {
			if sc.log != nil {
				sc.log.Warn("invalid host-API argument, step skipped", "channel", sc.channel, "step", step, "error", err)
			}
			return errs.InvalidArgumentErr(fmt.Sprintf("channel %d process_event", sc.channel), sc.channel, step, err)
		}
		sc.disabled = true
		if sc.log != nil {
			sc.log.Warn("script runtime error, channel disabled", "channel", sc.channel, "step", step, "error", err)
		}
		return errs.ScriptRuntimeErr(fmt.Sprintf("channel %d process_event", sc.channel), sc.channel, step, err)
	}
	return nil
}

// Close releases the interpreter's resources.
func (sc *ScriptContext) Close() {
	if sc.state != nil {
		sc.state.Close()
		sc.state = nil
	}
}
