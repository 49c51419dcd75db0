package domain

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Level is the session difficulty preset.
type Level string

const (
	LevelLight   Level = "light"
	LevelMedium  Level = "medium"
	LevelIntense Level = "intense"
)

// Valid reports whether the level is a known value.
func (l Level) Valid() bool {
	switch l {
	case LevelLight, LevelMedium, LevelIntense:
		return true
	}
	return false
}

// DefaultDuration returns the built-in target duration for the level.
// Unknown levels fall back to the medium preset.
func (l Level) DefaultDuration() time.Duration {
	if d, ok := builtinPresets[l]; ok {
		return d
	}
	return builtinPresets[LevelMedium]
}

var builtinPresets = map[Level]time.Duration{
	LevelLight:   25 * time.Minute,
	LevelMedium:  45 * time.Minute,
	LevelIntense: 90 * time.Minute,
}

// LevelPresets maps each level to its target session duration.
type LevelPresets map[Level]time.Duration

// DurationSec returns the preset duration for a level in whole seconds.
func (p LevelPresets) DurationSec(l Level) int {
	if d, ok := p[l]; ok {
		return int(d.Seconds())
	}
	return int(l.DefaultDuration().Seconds())
}

// DefaultLevelPresets returns a copy of the built-in presets.
func DefaultLevelPresets() LevelPresets {
	presets := make(LevelPresets, len(builtinPresets))
	for level, d := range builtinPresets {
		presets[level] = d
	}
	return presets
}

// LoadLevelPresets reads duration overrides from a YAML file keyed by
// level name, with Go duration strings as values:
//
//	light: 25m
//	medium: 45m
//	intense: 90m
//
// A missing file returns the built-in presets. Unknown levels and
// non-positive durations are rejected.
func LoadLevelPresets(path string) (LevelPresets, error) {
	presets := DefaultLevelPresets()
	if path == "" {
		return presets, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return presets, nil
		}
		return nil, fmt.Errorf("read level presets: %w", err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse level presets: %w", err)
	}

	for name, value := range raw {
		level := Level(name)
		if !level.Valid() {
			return nil, fmt.Errorf("unknown level %q in presets", name)
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("level %s duration: %w", name, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("level %s duration must be positive, got %s", name, d)
		}
		presets[level] = d
	}

	return presets, nil
}
