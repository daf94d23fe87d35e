// Package synth implements an optional software-synthesizer scheduler.Sink:
// it decodes scheduled MIDI bytes directly into a go-meltysynth Synthesizer
// and streams the result through Ebitengine's audio player. This is a
// non-core collaborator — a hardware groovebox has no need for it, but it
// lets the engine be auditioned on a workstation with no MIDI gear
// attached.
package synth

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/zurustar/groovecore/pkg/errs"
)

// SampleRate is the audio sample rate used for synthesis.
const SampleRate = 44100

// Sink renders scheduled MIDI bytes live through an in-process
// synthesizer instead of a physical MIDI port. It implements
// scheduler.Sink.
type Sink struct {
	synth  *meltysynth.Synthesizer
	stream *liveStream

	audioCtx *audio.Context
	player   *audio.Player
}

// Open loads soundFontPath and starts a live audio player rendering from
// the synthesizer. soundFontPath must name a readable SoundFont (.sf2)
// file.
func Open(soundFontPath string) (*Sink, error) {
	if soundFontPath == "" {
		return nil, errs.SinkBusyErr("synth.Open: no SoundFont path configured")
	}

	data, err := os.ReadFile(soundFontPath)
	if err != nil {
		return nil, fmt.Errorf("synth: read SoundFont: %w", err)
	}

	soundFont, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("synth: parse SoundFont: %w", err)
	}

	settings := meltysynth.NewSynthesizerSettings(SampleRate)
	synthesizer, err := meltysynth.NewSynthesizer(soundFont, settings)
	if err != nil {
		return nil, fmt.Errorf("synth: create synthesizer: %w", err)
	}

	stream := &liveStream{synth: synthesizer}

	ctx := audio.NewContext(SampleRate)
	player, err := ctx.NewPlayer(stream)
	if err != nil {
		return nil, fmt.Errorf("synth: create audio player: %w", err)
	}
	player.Play()

	return &Sink{synth: synthesizer, stream: stream, audioCtx: ctx, player: player}, nil
}

// Send decodes payload (a raw channel-voice or realtime MIDI packet) and
// forwards note/CC/program-change events straight into the synthesizer.
// Realtime bytes (clock, start/stop) carry no audible meaning for a synth
// and are accepted as no-ops.
func (s *Sink) Send(payload []byte, deliveryMs uint32) error {
	if len(payload) == 0 {
		return nil
	}
	status := payload[0]
	if status >= 0xF8 {
		return nil
	}

	command := int32(status & 0xF0)
	channel := int32(status & 0x0F)

	var data1, data2 int32
	if len(payload) > 1 {
		data1 = int32(payload[1])
	}
	if len(payload) > 2 {
		data2 = int32(payload[2])
	}

	s.stream.mu.Lock()
	defer s.stream.mu.Unlock()
	s.synth.ProcessMidiMessage(channel, command, data1, data2)
	return nil
}

// Close stops playback and releases the audio player.
func (s *Sink) Close() error {
	s.stream.Stop()
	if s.player != nil {
		return s.player.Close()
	}
	return nil
}

// liveStream is an io.Reader rendering live synthesizer output, in the
// same int16-interleaved-stereo shape Ebitengine's audio package expects —
// adapted from a file-based sequencer stream to render directly from
// Synthesizer.Render instead of a MidiFileSequencer.
type liveStream struct {
	synth   *meltysynth.Synthesizer
	stopped bool
	mu      sync.Mutex
}

func (s *liveStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	samples := len(p) / 4
	if samples == 0 {
		return 0, nil
	}

	left := make([]float32, samples)
	right := make([]float32, samples)
	s.synth.Render(left, right)

	for i := 0; i < samples; i++ {
		l := int16(clamp(left[i], -1, 1) * 32767)
		r := int16(clamp(right[i], -1, 1) * 32767)
		binary.LittleEndian.PutUint16(p[i*4:], uint16(l))
		binary.LittleEndian.PutUint16(p[i*4+2:], uint16(r))
	}

	return len(p), nil
}

func (s *liveStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
