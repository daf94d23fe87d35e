// Package scheduler implements the groovebox's delta-timed MIDI scheduler: a
// priority queue of outgoing MIDI packets ordered by (delivery_ms, sequence),
// flushed to a sink as wall-clock time reaches each event.
package scheduler

import (
	"container/heap"
	"log/slog"

	"gitlab.com/gomidi/midi/v2"

	"github.com/zurustar/groovecore/pkg/errs"
)

// Sink is the MIDI output collaborator: it accepts a complete MIDI byte
// packet with an absolute delivery timestamp. Send must be non-blocking;
// if it would block it returns ErrWouldBlock and the scheduler retries the
// same event next Update.
type Sink interface {
	Send(payload []byte, deliveryMs uint32) error
}

// ErrWouldBlock is returned by a Sink whose Send call would otherwise block.
var ErrWouldBlock = errs.SinkBusyErr("scheduler.Sink.Send")

// Event is a single scheduled MIDI packet.
type Event struct {
	Payload    []byte
	DeliveryMs uint32
	Sequence   uint64
}

// pq is a binary-heap priority queue of Events ordered by (DeliveryMs, Sequence).
type pq []*Event

func (q pq) Len() int { return len(q) }
func (q pq) Less(i, j int) bool {
	if q[i].DeliveryMs != q[j].DeliveryMs {
		return q[i].DeliveryMs < q[j].DeliveryMs
	}
	return q[i].Sequence < q[j].Sequence
}
func (q pq) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *pq) Push(x any)        { *q = append(*q, x.(*Event)) }
func (q *pq) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// Scheduler is the MIDI event priority queue.
type Scheduler struct {
	queue     pq
	sink      Sink
	nextSeq   uint64
	errCount  int
	log       *slog.Logger
}

// New creates a Scheduler that flushes due events to sink.
func New(sink Sink, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{sink: sink, log: log}
	heap.Init(&s.queue)
	return s
}

// Enqueue schedules payload for delivery at deliveryMs. Payloads that are
// too short for their status byte are dropped as InvalidMidi and the
// error counter increments; Enqueue never returns an error to the caller,
// matching the "no exception propagates into the stepper" guarantee.
func (s *Scheduler) Enqueue(payload []byte, deliveryMs uint32) {
	if !validPayload(payload) {
		s.errCount++
		s.log.Warn("dropping invalid MIDI payload", "len", len(payload))
		return
	}
	heap.Push(&s.queue, &Event{Payload: payload, DeliveryMs: deliveryMs, Sequence: s.nextSeq})
	s.nextSeq++
}

func validPayload(payload []byte) bool {
	if len(payload) == 0 {
		return false
	}
	status := payload[0]
	switch {
	case status >= 0xF8: // realtime: single byte
		return len(payload) == 1
	case status >= 0xC0 && status <= 0xDF: // program change / channel pressure: 2 bytes
		return len(payload) == 2
	case status >= 0x80 && status <= 0xEF: // note on/off, cc, pitch bend, poly pressure: 3 bytes
		return len(payload) == 3
	default:
		return false
	}
}

// ErrorCount returns the number of payloads dropped as InvalidMidi since
// construction.
func (s *Scheduler) ErrorCount() int { return s.errCount }

// Len returns the number of events currently queued.
func (s *Scheduler) Len() int { return s.queue.Len() }

// Update pops and delivers every event whose DeliveryMs is <= now. If the
// sink reports ErrWouldBlock, that event (and the rest of the queue) is
// left for the next Update call.
func (s *Scheduler) Update(now uint32) {
	for s.queue.Len() > 0 {
		next := s.queue[0]
		if next.DeliveryMs > now {
			return
		}
		if err := s.sink.Send(next.Payload, next.DeliveryMs); err != nil {
			return
		}
		heap.Pop(&s.queue)
	}
}

// --- convenience constructors ---

// NoteOn enqueues a Note On at now+deltaMs.
func (s *Scheduler) NoteOn(now uint32, ch, pitch, velocity uint8, deltaMs uint32) {
	s.Enqueue([]byte(midi.NoteOn(ch, pitch, velocity)), now+deltaMs)
}

// NoteOff enqueues a Note Off (velocity 0x40, per wire format) at now+deltaMs.
func (s *Scheduler) NoteOff(now uint32, ch, pitch uint8, deltaMs uint32) {
	s.Enqueue([]byte{0x80 | (ch & 0x0F), pitch & 0x7F, 0x40}, now+deltaMs)
}

// CC enqueues a Control Change at now+deltaMs.
func (s *Scheduler) CC(now uint32, ch, controller, value uint8, deltaMs uint32) {
	s.Enqueue([]byte(midi.ControlChange(ch, controller, value)), now+deltaMs)
}

// ProgramChange enqueues a Program Change at now+deltaMs.
func (s *Scheduler) ProgramChange(now uint32, ch, program uint8, deltaMs uint32) {
	s.Enqueue([]byte(midi.ProgramChange(ch, program)), now+deltaMs)
}

// AllNotesOff enqueues a controller-123 All-Notes-Off for channel ch.
func (s *Scheduler) AllNotesOff(now uint32, ch uint8, deltaMs uint32) {
	s.CC(now, ch, 123, 0, deltaMs)
}

// Clock enqueues a single F8 MIDI Clock realtime byte.
func (s *Scheduler) Clock(deliveryMs uint32) {
	s.Enqueue([]byte{0xF8}, deliveryMs)
}

// Start enqueues a single FA MIDI Start realtime byte.
func (s *Scheduler) Start(deliveryMs uint32) {
	s.Enqueue([]byte{0xFA}, deliveryMs)
}

// Stop enqueues a single FC MIDI Stop realtime byte.
func (s *Scheduler) Stop(deliveryMs uint32) {
	s.Enqueue([]byte{0xFC}, deliveryMs)
}

// Continue enqueues a single FB MIDI Continue realtime byte.
func (s *Scheduler) Continue(deliveryMs uint32) {
	s.Enqueue([]byte{0xFB}, deliveryMs)
}

// Drain enqueues an All-Notes-Off on every channel 0..15 at now+0, then
// delivers every queued event due at or before now — the scheduler's stop
// sequence.
func (s *Scheduler) Drain(now uint32) {
	for ch := uint8(0); ch < 16; ch++ {
		s.AllNotesOff(now, ch, 0)
	}
	s.Update(now)
}
