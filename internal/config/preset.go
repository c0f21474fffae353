package config

import (
	"sort"
	"strings"

	"melodypath/internal/types"
)

// preset overrides a subset of the post-processing and hook options.
type preset struct {
	transpose     int
	minSeconds    float64
	maxSeconds    float64
	quantize      bool
	strength      float64
	targetSeconds float64
}

var presets = map[string]preset{
	"easy":   {transpose: 12, minSeconds: 0.150, maxSeconds: 0.8, quantize: true, strength: 0.9, targetSeconds: 7},
	"medium": {transpose: 12, minSeconds: 0.110, maxSeconds: 0.6, quantize: true, strength: 0.7, targetSeconds: 8},
	"hard":   {transpose: 19, minSeconds: 0.090, maxSeconds: 0.5, targetSeconds: 9},
}

// Presets lists the known difficulty names in order.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyPreset overwrites the options a difficulty controls and turns on hook
// selection. Hard keeps the configured quantize strength and disables snapping.
func (c *Config) ApplyPreset(name string) error {
	key := strings.ToLower(strings.TrimSpace(name))
	p, ok := presets[key]
	if !ok {
		return types.InvalidConfig("difficulty", "unknown preset %q (want %s)", name, strings.Join(Presets(), ", "))
	}
	c.Difficulty = key
	c.Post.TransposeSemitones = p.transpose
	c.Post.MinDurationSeconds = p.minSeconds
	c.Post.MaxDurationSeconds = p.maxSeconds
	c.Post.Quantize.Enabled = p.quantize
	if p.quantize {
		c.Post.Quantize.Strength = p.strength
	}
	c.ChooseHook = true
	c.Hook.TargetSeconds = p.targetSeconds
	return nil
}
