// Package song holds the groovebox's dense song data model: 15 modes of 32
// patterns of 8 tracks of 16 events, and nothing else. All containers are
// preallocated arrays; index access is by-index only, no hidden iteration.
package song

import (
	"github.com/zurustar/groovecore/pkg/errs"
	"github.com/zurustar/groovecore/pkg/midievent"
)

const (
	// NumModes is the number of modes (channels), 0..14.
	NumModes = 15
	// NumPatterns is the number of patterns per mode, 0..31.
	NumPatterns = 32
	// NumTracks is the number of tracks per pattern, 0..7.
	NumTracks = 8
	// NumSteps is the number of steps (events) per track, 0..15.
	NumSteps = 16
)

// Track is an ordered vector of exactly NumSteps events.
type Track struct {
	events [NumSteps]midievent.Event
}

// Event returns a copy of the event at step s.
func (t *Track) Event(s int) (midievent.Event, error) {
	if s < 0 || s >= NumSteps {
		return midievent.Event{}, errs.OutOfRangeErr("song.Track.Event", "step", s, 0, NumSteps-1)
	}
	return t.events[s], nil
}

// SetEvent replaces the event at step s.
func (t *Track) SetEvent(s int, e midievent.Event) error {
	if s < 0 || s >= NumSteps {
		return errs.OutOfRangeErr("song.Track.SetEvent", "step", s, 0, NumSteps-1)
	}
	t.events[s] = e
	return nil
}

// EventPtr returns a mutable pointer to the event at step s, for in-place
// edits (e.g. the input router toggling a switch bit).
func (t *Track) EventPtr(s int) (*midievent.Event, error) {
	if s < 0 || s >= NumSteps {
		return nil, errs.OutOfRangeErr("song.Track.EventPtr", "step", s, 0, NumSteps-1)
	}
	return &t.events[s], nil
}

func (t *Track) clear() {
	for i := range t.events {
		t.events[i] = midievent.Event{}
	}
}

// Pattern is exactly NumTracks tracks.
type Pattern struct {
	tracks [NumTracks]Track
}

// Track returns a pointer to track t within the pattern.
func (p *Pattern) Track(t int) (*Track, error) {
	if t < 0 || t >= NumTracks {
		return nil, errs.OutOfRangeErr("song.Pattern.Track", "track", t, 0, NumTracks-1)
	}
	return &p.tracks[t], nil
}

func (p *Pattern) clear() {
	for i := range p.tracks {
		p.tracks[i].clear()
	}
}

// Mode is exactly NumPatterns patterns.
type Mode struct {
	patterns [NumPatterns]Pattern
}

// Pattern returns a pointer to pattern p within the mode.
func (m *Mode) Pattern(p int) (*Pattern, error) {
	if p < 0 || p >= NumPatterns {
		return nil, errs.OutOfRangeErr("song.Mode.Pattern", "pattern", p, 0, NumPatterns-1)
	}
	return &m.patterns[p], nil
}

func (m *Mode) clear() {
	for i := range m.patterns {
		m.patterns[i].clear()
	}
}

// Song is exactly NumModes modes. Its static capacity (15*32*8*16 events,
// 4 bytes each) is allocated once by New and never reallocated.
type Song struct {
	modes [NumModes]Mode
	Name  string
	Tempo int

	dirty bool
}

// New returns an empty song at 120 BPM.
func New() *Song {
	return &Song{Tempo: 120}
}

// Mode returns a pointer to mode m.
func (s *Song) Mode(m int) (*Mode, error) {
	if m < 0 || m >= NumModes {
		return nil, errs.OutOfRangeErr("song.Song.Mode", "mode", m, 0, NumModes-1)
	}
	return &s.modes[m], nil
}

// Pattern is a convenience accessor equivalent to Mode(m).Pattern(p).
func (s *Song) Pattern(m, p int) (*Pattern, error) {
	mode, err := s.Mode(m)
	if err != nil {
		return nil, err
	}
	return mode.Pattern(p)
}

// Track is a convenience accessor equivalent to Mode(m).Pattern(p).Track(t).
func (s *Song) Track(m, p, t int) (*Track, error) {
	pattern, err := s.Pattern(m, p)
	if err != nil {
		return nil, err
	}
	return pattern.Track(t)
}

// Event is a convenience accessor reading a single event by full index.
func (s *Song) Event(m, p, t, step int) (midievent.Event, error) {
	track, err := s.Track(m, p, t)
	if err != nil {
		return midievent.Event{}, err
	}
	return track.Event(step)
}

// SetEvent is a convenience mutator writing a single event by full index,
// and marks the song dirty.
func (s *Song) SetEvent(m, p, t, step int, e midievent.Event) error {
	track, err := s.Track(m, p, t)
	if err != nil {
		return err
	}
	if err := track.SetEvent(step, e); err != nil {
		return err
	}
	s.dirty = true
	return nil
}

// EventPtr returns a mutable pointer to a single event by full index,
// for callers (the input router) that need to read-modify-write without
// a redundant SetEvent call. Marks the song dirty.
func (s *Song) EventPtr(m, p, t, step int) (*midievent.Event, error) {
	track, err := s.Track(m, p, t)
	if err != nil {
		return nil, err
	}
	ptr, err := track.EventPtr(step)
	if err != nil {
		return nil, err
	}
	s.dirty = true
	return ptr, nil
}

// Clear resets every event in the song to empty, in place. The data area
// is not reallocated.
func (s *Song) Clear() {
	for i := range s.modes {
		s.modes[i].clear()
	}
	s.dirty = true
}

// IsDirty reports whether the song has been mutated since the last
// ClearDirty call.
func (s *Song) IsDirty() bool { return s.dirty }

// ClearDirty resets the dirty flag.
func (s *Song) ClearDirty() { s.dirty = false }
