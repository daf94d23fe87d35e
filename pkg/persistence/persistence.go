// Package persistence saves and loads Song documents as self-describing
// YAML: a version tag, name, tempo, and a sparse list of non-empty events.
package persistence

import (
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/zurustar/groovecore/pkg/errs"
	"github.com/zurustar/groovecore/pkg/midievent"
	"github.com/zurustar/groovecore/pkg/song"
)

// CurrentVersion is the document version this package writes and the only
// version it accepts on load.
const CurrentVersion = "1.0"

// document is the on-disk YAML shape.
type document struct {
	Version string        `yaml:"version"`
	Name    string        `yaml:"name"`
	Tempo   int           `yaml:"tempo"`
	Events  []eventRecord `yaml:"events,omitempty"`
}

// eventRecord is one sparse, non-empty event: its coordinates plus its
// switch and pot values.
type eventRecord struct {
	Mode    int    `yaml:"mode"`
	Pattern int    `yaml:"pattern"`
	Track   int    `yaml:"track"`
	Step    int    `yaml:"step"`
	Switch  bool   `yaml:"switch"`
	Pots    [4]int `yaml:"pots"`
}

// Marshal serializes s into the YAML document format. Only non-empty
// events (switch on, or any pot nonzero) are written, keeping a mostly
// silent song small.
func Marshal(s *song.Song) ([]byte, error) {
	doc := document{
		Version: CurrentVersion,
		Name:    s.Name,
		Tempo:   s.Tempo,
	}

	for m := 0; m < song.NumModes; m++ {
		for p := 0; p < song.NumPatterns; p++ {
			for t := 0; t < song.NumTracks; t++ {
				for step := 0; step < song.NumSteps; step++ {
					e, err := s.Event(m, p, t, step)
					if err != nil {
						continue
					}
					pots := e.Pots()
					if !e.Switch() && pots[0] == 0 && pots[1] == 0 && pots[2] == 0 && pots[3] == 0 {
						continue
					}
					doc.Events = append(doc.Events, eventRecord{
						Mode: m, Pattern: p, Track: t, Step: step,
						Switch: e.Switch(),
						Pots:   [4]int{int(pots[0]), int(pots[1]), int(pots[2]), int(pots[3])},
					})
				}
			}
		}
	}

	return yaml.Marshal(&doc)
}

// Unmarshal parses data into a new Song. A version mismatch is a hard
// failure (errs.UnsupportedVersion). Malformed or out-of-range event
// entries are skipped and counted rather than failing the whole load; the
// returned warning count lets the caller decide whether to surface it.
func Unmarshal(data []byte, log *slog.Logger) (*song.Song, int, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, 0, errs.MalformedDocumentErr("persistence.Unmarshal", err)
	}

	if doc.Version != CurrentVersion {
		return nil, 0, errs.UnsupportedVersionErr("persistence.Unmarshal", doc.Version)
	}

	s := song.New()
	s.Name = doc.Name
	if doc.Tempo > 0 {
		s.Tempo = doc.Tempo
	}

	warnings := 0
	for _, rec := range doc.Events {
		var e midievent.Event
		e.SetSwitch(rec.Switch)
		for i, v := range rec.Pots {
			e.SetPot(i, v)
		}
		if err := s.SetEvent(rec.Mode, rec.Pattern, rec.Track, rec.Step, e); err != nil {
			warnings++
			if log != nil {
				log.Warn("skipping malformed event entry", "mode", rec.Mode, "pattern", rec.Pattern,
					"track", rec.Track, "step", rec.Step, "error", err)
			}
			continue
		}
	}

	s.ClearDirty()
	return s, warnings, nil
}
