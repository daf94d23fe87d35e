package cli

import "testing"

func TestParseArgsDefaults(t *testing.T) {
	cfg, err := ParseArgs(nil)
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.LogLevel)
	}
	if cfg.Headless {
		t.Fatalf("expected headless false by default")
	}
}

func TestParseArgsSongPathAfterFlags(t *testing.T) {
	cfg, err := ParseArgs([]string{"--tempo", "140", "-l", "debug", "song.yaml"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if cfg.TempoBPM != 140 {
		t.Fatalf("expected tempo 140, got %d", cfg.TempoBPM)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log level debug, got %q", cfg.LogLevel)
	}
	if cfg.SongPath != "song.yaml" {
		t.Fatalf("expected song path song.yaml, got %q", cfg.SongPath)
	}
}

func TestParseArgsInvalidLogLevel(t *testing.T) {
	_, err := ParseArgs([]string{"-l", "verbose"})
	if err == nil {
		t.Fatalf("expected error for invalid log level")
	}
}

func TestParseArgsHeadlessFlag(t *testing.T) {
	cfg, err := ParseArgs([]string{"--headless"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if !cfg.Headless {
		t.Fatalf("expected headless true")
	}
}

func TestParseArgsShortMidiPortFlag(t *testing.T) {
	cfg, err := ParseArgs([]string{"-m", "IAC Driver Bus 1"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if cfg.MIDIPort != "IAC Driver Bus 1" {
		t.Fatalf("expected midi port set, got %q", cfg.MIDIPort)
	}
}
