package persistence

import (
	"strings"
	"testing"

	"github.com/zurustar/groovecore/pkg/midievent"
	"github.com/zurustar/groovecore/pkg/song"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	s := song.New()
	s.Name = "test song"
	s.Tempo = 140

	var e midievent.Event
	e.SetSwitch(true)
	e.SetPot(0, 60)
	e.SetPot(1, 100)
	if err := s.SetEvent(3, 5, 2, 7, e); err != nil {
		t.Fatalf("SetEvent: %v", err)
	}

	data, err := Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	loaded, warnings, err := Unmarshal(data, nil)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if warnings != 0 {
		t.Fatalf("expected no warnings, got %d", warnings)
	}
	if loaded.Name != "test song" || loaded.Tempo != 140 {
		t.Fatalf("expected name/tempo to round-trip, got %q/%d", loaded.Name, loaded.Tempo)
	}

	got, err := loaded.Event(3, 5, 2, 7)
	if err != nil {
		t.Fatalf("Event: %v", err)
	}
	if !got.Switch() || got.Pot(0) != 60 || got.Pot(1) != 100 {
		t.Fatalf("expected event to round-trip, got switch=%v pots=%v", got.Switch(), got.Pots())
	}
}

func TestMarshalOmitsEmptyEvents(t *testing.T) {
	s := song.New()
	data, err := Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(data), "events:") {
		t.Fatalf("expected no events key for an empty song, got:\n%s", data)
	}
}

func TestUnmarshalVersionMismatch(t *testing.T) {
	_, _, err := Unmarshal([]byte("version: \"999\"\nname: x\ntempo: 120\n"), nil)
	if err == nil {
		t.Fatalf("expected version mismatch error")
	}
}

func TestUnmarshalMissingEventsIsEmptySong(t *testing.T) {
	s, warnings, err := Unmarshal([]byte("version: \"1.0\"\nname: empty\ntempo: 90\n"), nil)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if warnings != 0 {
		t.Fatalf("expected no warnings for a document with no events array")
	}
	if s.Name != "empty" || s.Tempo != 90 {
		t.Fatalf("expected name/tempo to load, got %q/%d", s.Name, s.Tempo)
	}
}

func TestUnmarshalMalformedEntrySkippedWithWarning(t *testing.T) {
	doc := `
version: "1.0"
name: x
tempo: 120
events:
  - mode: 0
    pattern: 0
    track: 0
    step: 0
    switch: true
    pots: [0, 0, 0, 0]
  - mode: 99
    pattern: 0
    track: 0
    step: 0
    switch: true
    pots: [0, 0, 0, 0]
`
	s, warnings, err := Unmarshal([]byte(doc), nil)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if warnings != 1 {
		t.Fatalf("expected exactly one warning for the out-of-range mode, got %d", warnings)
	}
	e, err := s.Event(0, 0, 0, 0)
	if err != nil {
		t.Fatalf("Event: %v", err)
	}
	if !e.Switch() {
		t.Fatalf("expected the valid entry to have loaded")
	}
}

func TestUnmarshalMalformedYAMLIsError(t *testing.T) {
	_, _, err := Unmarshal([]byte("not: [valid yaml"), nil)
	if err == nil {
		t.Fatalf("expected malformed document error")
	}
}
