package engine

import (
	"github.com/zurustar/groovecore/pkg/scheduler"
)

// LEDSetter is the hardware collaborator surface a script-driven LED write
// needs; it is satisfied by pkg/hardware's HardwareIO.
type LEDSetter interface {
	SetLEDBrightness(index int, value uint8)
}

// Emitter adapts a scheduler.Scheduler (and an optional LED collaborator)
// to the script.Emitter interface, so that Lua host-API calls turn
// directly into scheduled MIDI bytes, delivered deltaMs after the scheduled
// time of the step being dispatched.
type Emitter struct {
	sched *scheduler.Scheduler
	leds  LEDSetter
	now   uint32
}

// NewEmitter constructs an Emitter over sched. leds may be nil, in which
// case led() calls from scripts are silently dropped.
func NewEmitter(sched *scheduler.Scheduler, leds LEDSetter) *Emitter {
	return &Emitter{sched: sched, leds: leds}
}

// SetNow updates the timestamp used as the delivery time for every
// subsequent immediate emission; the engine calls this before dispatching
// each step, with that step's scheduled time.
func (e *Emitter) SetNow(nowMs uint32) { e.now = nowMs }

func (e *Emitter) NoteOn(channel int, pitch, velocity uint8, deltaMs uint32) {
	e.sched.NoteOn(e.now, uint8(channel&0x0F), pitch, velocity, deltaMs)
}

func (e *Emitter) NoteOff(channel int, pitch uint8, deltaMs uint32) {
	e.sched.NoteOff(e.now, uint8(channel&0x0F), pitch, deltaMs)
}

func (e *Emitter) ControlChange(channel int, controller, value uint8, deltaMs uint32) {
	e.sched.CC(e.now, uint8(channel&0x0F), controller, value, deltaMs)
}

func (e *Emitter) AllNotesOff(channel int, deltaMs uint32) {
	e.sched.AllNotesOff(e.now, uint8(channel&0x0F), deltaMs)
}

func (e *Emitter) SetLED(index int, value uint8) {
	if e.leds != nil {
		e.leds.SetLEDBrightness(index, value)
	}
}
