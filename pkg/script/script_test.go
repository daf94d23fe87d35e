package script

import (
	"testing"

	lua "github.com/yuin/gopher-lua"

	"github.com/zurustar/groovecore/pkg/midievent"
)

type recordingEmitter struct {
	notesOn  []uint8
	notesOff []uint8
	ccs      [][2]uint8
	stopped  bool
	leds     [][2]int
}

func (r *recordingEmitter) NoteOn(channel int, pitch, velocity uint8, deltaMs uint32) {
	r.notesOn = append(r.notesOn, pitch, velocity)
}
func (r *recordingEmitter) NoteOff(channel int, pitch uint8, deltaMs uint32) {
	r.notesOff = append(r.notesOff, pitch)
}
func (r *recordingEmitter) ControlChange(channel int, controller, value uint8, deltaMs uint32) {
	r.ccs = append(r.ccs, [2]uint8{controller, value})
}
func (r *recordingEmitter) AllNotesOff(channel int, deltaMs uint32) { r.stopped = true }
func (r *recordingEmitter) SetLED(index int, value uint8) {
	r.leds = append(r.leds, [2]int{index, int(value)})
}

func TestLoadAndDispatchCallsHostAPI(t *testing.T) {
	emitter := &recordingEmitter{}
	sc := New(1, ProfileEmbedded, emitter, nil)

	src := `
function process_event(track_index, event)
  if event.switch then
    note(event.pots[1], event.pots[2])
  end
end
`
	if err := sc.Load(src); err != nil {
		t.Fatalf("Load: %v", err)
	}

	var e midievent.Event
	e.SetSwitch(true)
	e.SetPot(0, 60)
	e.SetPot(1, 100)

	if err := sc.Dispatch(0, 0, e); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(emitter.notesOn) != 2 || emitter.notesOn[0] != 60 || emitter.notesOn[1] != 100 {
		t.Fatalf("expected note(60,100), got %v", emitter.notesOn)
	}
}

func TestHostAPIRejectsOutOfRangeArgs(t *testing.T) {
	emitter := &recordingEmitter{}
	sc := New(1, ProfileEmbedded, emitter, nil)
	src := `
function process_event(track_index, event)
  note(200, -5)
end
`
	if err := sc.Load(src); err != nil {
		t.Fatalf("Load: %v", err)
	}
	var e midievent.Event
	if err := sc.Dispatch(0, 0, e); err == nil {
		t.Fatalf("expected an InvalidArgument error for an out-of-range pitch")
	}
	if len(emitter.notesOn) != 0 {
		t.Fatalf("expected note() to never reach the emitter, got %v", emitter.notesOn)
	}
	if sc.Disabled() {
		t.Fatalf("expected the channel to remain enabled after an InvalidArgument error")
	}

	// The channel must still process subsequent, well-formed steps.
	if err := sc.Dispatch(0, 1, e); err != nil {
		t.Fatalf("expected subsequent dispatch to succeed, got %v", err)
	}
}

func TestLoadFailureDisablesChannel(t *testing.T) {
	sc := New(1, ProfileEmbedded, &recordingEmitter{}, nil)
	err := sc.Load("this is not valid lua (((")
	if err == nil {
		t.Fatalf("expected load error for invalid syntax")
	}
	if !sc.Disabled() {
		t.Fatalf("expected channel disabled after load failure")
	}
}

func TestRuntimeErrorDisablesChannelOnly(t *testing.T) {
	sc := New(1, ProfileEmbedded, &recordingEmitter{}, nil)
	src := `
function process_event(track_index, event)
  error("boom")
end
`
	if err := sc.Load(src); err != nil {
		t.Fatalf("Load: %v", err)
	}
	var e midievent.Event
	if err := sc.Dispatch(0, 0, e); err == nil {
		t.Fatalf("expected runtime error to propagate")
	}
	if !sc.Disabled() {
		t.Fatalf("expected channel disabled after runtime error")
	}

	// Dispatch again: should be a silent no-op, not a repeated panic.
	if err := sc.Dispatch(0, 1, e); err != nil {
		t.Fatalf("expected no-op dispatch on disabled channel, got %v", err)
	}
}

func TestInitReceivesParams(t *testing.T) {
	sc := New(3, ProfileEmbedded, &recordingEmitter{}, nil)
	src := `
received = nil
function init(ctx)
  received = ctx
end
`
	if err := sc.Load(src); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := sc.Init(InitParams{ScaleRoot: 2, ScaleType: 1, VelocityOffset: -10, Pattern: 5, Channel: 3}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	received, ok := sc.state.GetGlobal("received").(*lua.LTable)
	if !ok {
		t.Fatalf("expected init to receive a ctx table")
	}
	if got := received.RawGetString("scale_root"); got != lua.LNumber(2) {
		t.Fatalf("expected scale_root 2, got %v", got)
	}
	if got := received.RawGetString("velocity_offset"); got != lua.LNumber(-10) {
		t.Fatalf("expected velocity_offset -10, got %v", got)
	}
	if got := received.RawGetString("mode"); got != lua.LNumber(3) {
		t.Fatalf("expected mode 3, got %v", got)
	}
}

func TestSandboxEmbeddedHasNoIOLibrary(t *testing.T) {
	sc := New(1, ProfileEmbedded, &recordingEmitter{}, nil)
	src := `
function process_event(track_index, event)
  io.write("leak")
end
`
	if err := sc.Load(src); err != nil {
		t.Fatalf("Load: %v", err)
	}
	var e midievent.Event
	if err := sc.Dispatch(0, 0, e); err == nil {
		t.Fatalf("expected process_event referencing io to fail on the embedded profile")
	}
}

func TestOptionalModeNameGlobal(t *testing.T) {
	sc := New(1, ProfileEmbedded, &recordingEmitter{}, nil)
	if err := sc.Load(`MODE_NAME = "kick"`); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sc.ModeName != "kick" {
		t.Fatalf("expected ModeName 'kick', got %q", sc.ModeName)
	}
}

func TestOptionalSliderLabelsGlobal(t *testing.T) {
	sc := New(1, ProfileEmbedded, &recordingEmitter{}, nil)
	if err := sc.Load(`SLIDER_LABELS = {"pitch", "decay", "tone"}`); err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := [4]string{"pitch", "decay", "tone", ""}
	if sc.SliderLabels != want {
		t.Fatalf("expected slider labels %v, got %v", want, sc.SliderLabels)
	}
}
