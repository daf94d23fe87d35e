package script

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Loader discovers and reads per-channel Lua scripts from a directory,
// one file per channel named "<channel>.lua" (case-insensitive), mirroring
// the case-insensitive file discovery the rest of the corpus uses for its
// own script/asset loading.
type Loader struct {
	dir string
}

// NewLoader creates a Loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Load reads the script source for the given channel (1..14). A missing
// file is not an error: the channel simply has no script and stays idle.
func (l *Loader) Load(channel int) (source string, found bool, err error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return "", false, fmt.Errorf("read script dir %s: %w", l.dir, err)
	}

	want := fmt.Sprintf("%d.lua", channel)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(e.Name(), want) {
			data, err := os.ReadFile(filepath.Join(l.dir, e.Name()))
			if err != nil {
				return "", false, fmt.Errorf("read script %s: %w", e.Name(), err)
			}
			return string(data), true, nil
		}
	}
	return "", false, nil
}
