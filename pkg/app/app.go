// Package app wires together the groovebox's collaborators: CLI config,
// logger, song, script contexts, scheduler, engine, and hardware/sink
// pair, and drives the playback loop.
package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/zurustar/groovecore/pkg/cli"
	"github.com/zurustar/groovecore/pkg/engine"
	"github.com/zurustar/groovecore/pkg/hardware"
	"github.com/zurustar/groovecore/pkg/input"
	"github.com/zurustar/groovecore/pkg/logger"
	"github.com/zurustar/groovecore/pkg/persistence"
	"github.com/zurustar/groovecore/pkg/scheduler"
	"github.com/zurustar/groovecore/pkg/script"
	"github.com/zurustar/groovecore/pkg/sink/midiport"
	"github.com/zurustar/groovecore/pkg/sink/synth"
	"github.com/zurustar/groovecore/pkg/song"
)

// Application owns every top-level collaborator and the Run loop that
// drives them.
type Application struct {
	config *cli.Config
	log    *slog.Logger

	song   *song.Song
	hw     hardware.HardwareIO
	router *input.Router
	eng    *engine.Engine

	midiSink interface {
		Send(payload []byte, deliveryMs uint32) error
	}
	closeSink func() error
}

// New returns an unconfigured Application; call Run to parse args and
// start the loop.
func New() *Application {
	return &Application{}
}

// Run parses args, wires every collaborator, and runs the playback loop,
// calling tick before each step and stopping once tick returns false (a
// nil tick loops forever) — for a CLI entrypoint this simply runs until
// the host process exits.
func (app *Application) Run(args []string, tick func() bool) error {
	if err := app.parseArgs(args); err != nil {
		return fmt.Errorf("parse args: %w", err)
	}
	if app.config.ShowHelp {
		cli.PrintHelp()
		return nil
	}

	if err := app.initLogger(); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	app.log.Info("groovebox starting", "headless", app.config.Headless)

	if err := app.loadSong(); err != nil {
		return fmt.Errorf("load song: %w", err)
	}

	if err := app.openHardwareAndSink(); err != nil {
		return fmt.Errorf("open hardware/sink: %w", err)
	}
	defer app.shutdown()

	sources, err := app.loadScriptSources()
	if err != nil {
		return fmt.Errorf("load scripts: %w", err)
	}

	sched := scheduler.New(app.midiSink, app.log)
	emitter := engine.NewEmitter(sched, app.hw)

	var channels [engine.NumChannels + 1]*script.ScriptContext
	for ch := 1; ch <= engine.NumChannels; ch++ {
		source, ok := sources[ch]
		if !ok {
			continue
		}
		sc := script.New(ch, profileFor(app.config.Headless), emitter, app.log)
		if err := sc.Load(source); err != nil {
			app.log.Warn("script failed to load, channel disabled", "channel", ch, "error", err)
		}
		channels[ch] = sc
	}

	app.eng = engine.New(app.song, channels, sched, emitter, app.log)
	app.router = input.New()

	if app.config.TempoBPM > 0 {
		app.eng.SetTempo(app.config.TempoBPM)
	}

	app.eng.Start(app.hw.Millis())
	app.log.Info("playback started")

	for tick == nil || tick() {
		app.stepOnce()
	}

	return nil
}

// stepOnce drives one host tick: polls hardware input into the router,
// applies parameter-lock edits, and advances the engine.
func (app *Application) stepOnce() {
	app.hw.Update()
	now := app.hw.Millis()

	sel := app.router.Selection()
	app.router.UpdateModeRotary(app.hw.ReadRotary("mode"))
	app.router.UpdateTempoRotary(app.hw.ReadRotary("tempo"))
	app.router.UpdatePatternRotary(app.hw.ReadRotary("pattern"))
	app.router.UpdateTrackRotary(app.hw.ReadRotary("track"))
	if newSel := app.router.Selection(); newSel.TempoBPM != sel.TempoBPM {
		app.eng.SetTempo(newSel.TempoBPM)
	}

	var sliders [4]uint8
	for i := range sliders {
		sliders[i] = app.hw.ReadSlider(i)
	}

	for step := 0; step < song.NumSteps; step++ {
		pressed := app.hw.ReadButton(step)
		if app.router.UpdateStepButton(step, pressed, now) {
			sel := app.router.Selection()
			if e, err := app.song.EventPtr(sel.Mode, sel.Pattern, sel.Track, step); err == nil {
				input.LockSliders(e, sliders)
			}
		}
	}

	app.eng.Update(now)
}

func profileFor(headless bool) script.Profile {
	if headless {
		return script.ProfileEmbedded
	}
	return script.ProfileDesktop
}

func (app *Application) parseArgs(args []string) error {
	config, err := cli.ParseArgs(args)
	if err != nil {
		return err
	}
	app.config = config
	return nil
}

func (app *Application) initLogger() error {
	if err := logger.InitLogger(app.config.LogLevel); err != nil {
		return err
	}
	app.log = logger.GetLogger()
	return nil
}

func (app *Application) loadSong() error {
	if app.config.SongPath == "" {
		app.song = song.New()
		return nil
	}
	data, err := os.ReadFile(app.config.SongPath)
	if err != nil {
		return fmt.Errorf("read song file: %w", err)
	}
	s, warnings, err := persistence.Unmarshal(data, app.log)
	if err != nil {
		return err
	}
	if warnings > 0 {
		app.log.Warn("song loaded with malformed entries skipped", "count", warnings)
	}
	app.song = s
	return nil
}

// SaveSong writes the current song back to its configured path.
func (app *Application) SaveSong() error {
	if app.config.SongPath == "" {
		return fmt.Errorf("no song path configured")
	}
	data, err := persistence.Marshal(app.song)
	if err != nil {
		return err
	}
	if err := os.WriteFile(app.config.SongPath, data, 0o644); err != nil {
		return err
	}
	app.song.ClearDirty()
	return nil
}

func (app *Application) openHardwareAndSink() error {
	if app.config.Headless {
		app.hw = hardware.NewSimulator()
	} else {
		// A real front panel is out of this module's scope (see
		// DESIGN.md, pkg/app); the simulator stands in for it on any
		// host that lacks the actual GPIO/ADC wiring.
		app.hw = hardware.NewSimulator()
	}
	if err := app.hw.Init(); err != nil {
		return err
	}

	if app.config.SoundFont != "" {
		s, err := synth.Open(app.config.SoundFont)
		if err != nil {
			return err
		}
		app.midiSink = s
		app.closeSink = s.Close
		return nil
	}

	s, err := midiport.Open(app.config.MIDIPort)
	if err != nil {
		app.log.Warn("falling back to a discarding MIDI sink", "error", err)
		app.midiSink = discardSink{}
		return nil
	}
	app.midiSink = s
	app.closeSink = s.Close
	return nil
}

func (app *Application) shutdown() {
	if app.eng != nil {
		app.eng.Stop(app.hw.Millis())
	}
	if app.closeSink != nil {
		_ = app.closeSink()
	}
	if app.hw != nil {
		_ = app.hw.Shutdown()
	}
}

// loadScriptSources reads every channel's script source from disk without
// constructing any ScriptContext, since those need the engine's shared
// Emitter, built later in Run.
func (app *Application) loadScriptSources() (map[int]string, error) {
	sources := map[int]string{}
	if app.config.ScriptDir == "" {
		return sources, nil
	}

	loader := script.NewLoader(app.config.ScriptDir)
	for ch := 1; ch <= engine.NumChannels; ch++ {
		source, found, err := loader.Load(ch)
		if err != nil {
			return nil, err
		}
		if found {
			sources[ch] = source
		}
	}
	return sources, nil
}

type discardSink struct{}

func (discardSink) Send(payload []byte, deliveryMs uint32) error { return nil }
