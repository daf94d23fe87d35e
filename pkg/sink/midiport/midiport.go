// Package midiport implements a scheduler.Sink backed by a real or virtual
// MIDI output port via gitlab.com/gomidi/midi/v2.
package midiport

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // registers the RtMIDI driver backend

	"github.com/zurustar/groovecore/pkg/errs"
)

// Sink sends scheduled MIDI packets out a real output port. It implements
// scheduler.Sink.
type Sink struct {
	port drivers.Out
	send func(msg midi.Message) error
}

// ListPorts returns the names of every available MIDI output port.
func ListPorts() []string {
	ports := midi.GetOutPorts()
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.String()
	}
	return names
}

// Open opens the named MIDI output port. An empty name opens the first
// available port.
func Open(name string) (*Sink, error) {
	ports := midi.GetOutPorts()
	if len(ports) == 0 {
		return nil, errs.SinkBusyErr("midiport.Open: no MIDI output ports available")
	}

	index := 0
	if name != "" {
		found := false
		for i, p := range ports {
			if p.String() == name {
				index = i
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("midiport: no output port named %q", name)
		}
	}

	port, err := midi.OutPort(index)
	if err != nil {
		return nil, fmt.Errorf("midiport: open port %d: %w", index, err)
	}

	send, err := midi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("midiport: create sender: %w", err)
	}

	return &Sink{port: port, send: send}, nil
}

// Send transmits payload immediately; deliveryMs is unused since the
// scheduler has already determined it is due.
func (s *Sink) Send(payload []byte, deliveryMs uint32) error {
	return s.send(midi.Message(payload))
}

// Close closes the underlying MIDI port.
func (s *Sink) Close() error {
	return s.port.Close()
}
