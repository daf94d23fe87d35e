// Package cli parses groovecore's command-line arguments.
package cli

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the settings parsed from command-line arguments and
// environment variables.
type Config struct {
	SongPath    string // path to a YAML song file to load at startup
	ScriptDir   string // directory containing per-channel <channel>.lua scripts
	SoundFont   string // path to a SoundFont for the software-synth sink; empty disables it
	MIDIPort    string // name of the hardware/virtual MIDI output port to open
	LogLevel    string // debug, info, warn, error
	Headless    bool   // run without the hardware collaborator, driving a simulator instead
	TempoBPM    int    // initial tempo; when set (>0) it overrides the song's tempo
	ShowHelp    bool
}

// ParseArgs parses args (excluding the program name) into a Config.
// Command-line flags take priority over the matching environment variable.
func ParseArgs(args []string) (*Config, error) {
	reordered := reorderArgs(args)

	fs := flag.NewFlagSet("groovebox", flag.ContinueOnError)
	config := &Config{}
	var tempo int

	fs.StringVar(&config.ScriptDir, "scripts", "", "directory of per-channel .lua scripts")
	fs.StringVar(&config.ScriptDir, "s", "", "directory of per-channel .lua scripts (short form)")
	fs.StringVar(&config.SoundFont, "soundfont", "", "SoundFont path for the built-in software synth")
	fs.StringVar(&config.MIDIPort, "midi-port", "", "name of the MIDI output port to open")
	fs.StringVar(&config.MIDIPort, "m", "", "name of the MIDI output port to open (short form)")
	fs.StringVar(&config.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&config.LogLevel, "l", "info", "log level (short form)")
	fs.IntVar(&tempo, "tempo", 0, "initial tempo in BPM, overriding the song file's tempo")
	fs.BoolVar(&config.Headless, "headless", false, "run without hardware I/O, using a simulator")
	fs.BoolVar(&config.ShowHelp, "help", false, "show usage")
	fs.BoolVar(&config.ShowHelp, "h", false, "show usage (short form)")

	if err := fs.Parse(reordered); err != nil {
		return nil, err
	}

	if !config.Headless {
		if v := os.Getenv("GROOVECORE_HEADLESS"); v != "" {
			config.Headless = v == "1" || strings.EqualFold(v, "true")
		}
	}
	if config.MIDIPort == "" {
		config.MIDIPort = os.Getenv("GROOVECORE_MIDI_PORT")
	}
	if config.ScriptDir == "" {
		config.ScriptDir = os.Getenv("GROOVECORE_SCRIPT_DIR")
	}
	if config.SoundFont == "" {
		config.SoundFont = os.Getenv("GROOVECORE_SOUNDFONT")
	}
	if config.LogLevel == "info" {
		if v := os.Getenv("GROOVECORE_LOG_LEVEL"); v != "" {
			config.LogLevel = strings.ToLower(v)
		}
	}
	if tempo == 0 {
		if v := os.Getenv("GROOVECORE_TEMPO"); v != "" {
			if t, err := strconv.Atoi(v); err == nil && t > 0 {
				tempo = t
			}
		}
	}
	config.TempoBPM = tempo

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	if fs.NArg() > 0 {
		config.SongPath = fs.Arg(0)
	}

	return config, nil
}

// reorderArgs moves flags (and their values) ahead of positional
// arguments, so flag.FlagSet's strict left-to-right parsing accepts a
// trailing song-path argument after any flag.
func reorderArgs(args []string) []string {
	var flags, positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if len(arg) > 0 && arg[0] == '-' {
			flags = append(flags, arg)
			if i+1 < len(args) && len(args[i+1]) > 0 && args[i+1][0] != '-' {
				if arg != "-h" && arg != "--help" && arg != "--headless" {
					i++
					flags = append(flags, args[i])
				}
			}
		} else {
			positional = append(positional, arg)
		}
	}

	return append(flags, positional...)
}

// PrintHelp writes usage information to stdout.
func PrintHelp() {
	fmt.Fprint(os.Stdout, `groovebox - embedded MIDI sequencer engine

Usage:
  groovebox [options] [song-file]

Arguments:
  song-file                   path to a YAML song to load at startup (optional)

Options:
  -s, --scripts <dir>         directory of per-channel .lua scripts
      --soundfont <path>      SoundFont path for the built-in software synth
  -m, --midi-port <name>      name of the MIDI output port to open
  -l, --log-level <level>     log level: debug, info, warn, error (default: info)
      --tempo <bpm>           initial tempo in BPM
      --headless              run without hardware I/O, using a simulator
  -h, --help                  show this help
`)
}
