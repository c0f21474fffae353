package placement

import (
	"fmt"
	"math"

	"melodypath/internal/common/utils"
	"melodypath/internal/types"
)

const (
	CategoryLong   = "long"
	CategoryAccent = "accent"
	CategoryMedium = "medium"
	CategoryShort  = "short"

	PaletteGradient  = "gradient"
	PaletteChromatic = "chromatic"
)

// Hints derives the cosmetic attributes of an anchor. Thresholds are tuning
// knobs; only the ordering matters to callers.
type Hints struct {
	BaseSize      float64 `json:"base_size" yaml:"base_size"`
	LongSeconds   float64 `json:"long_seconds" yaml:"long_seconds"`
	MediumSeconds float64 `json:"medium_seconds" yaml:"medium_seconds"`
	LoudVelocity  int     `json:"loud_velocity" yaml:"loud_velocity"`
	Palette       string  `json:"palette" yaml:"palette"`
}

func DefaultHints() Hints {
	return Hints{
		BaseSize:      1,
		LongSeconds:   0.3,
		MediumSeconds: 0.15,
		LoudVelocity:  100,
		Palette:       PaletteGradient,
	}
}

func (h Hints) Validate() error {
	if !(h.BaseSize > 0) || math.IsInf(h.BaseSize, 0) {
		return types.InvalidConfig("placement.hints.base_size", "must be positive, got %v", h.BaseSize)
	}
	if !utils.Finite(h.MediumSeconds, h.LongSeconds) || h.MediumSeconds < 0 || h.LongSeconds < h.MediumSeconds {
		return types.InvalidConfig("placement.hints.long_seconds", "need 0 <= medium (%v) <= long (%v)", h.MediumSeconds, h.LongSeconds)
	}
	if h.LoudVelocity < 0 || h.LoudVelocity > 127 {
		return types.InvalidConfig("placement.hints.loud_velocity", "must be within [0,127], got %d", h.LoudVelocity)
	}
	switch h.Palette {
	case PaletteGradient, PaletteChromatic, "":
	default:
		return types.InvalidConfig("placement.hints.palette", "unknown palette %q", h.Palette)
	}
	return nil
}

// Size grows linearly with velocity, from 0.8 to 1.6 times BaseSize.
func (h Hints) Size(velocity int) float64 {
	v := float64(utils.ClampInt(velocity, 0, 127))
	return h.BaseSize * (0.8 + v/127*0.8)
}

// Category buckets a note. Duration wins over loudness.
func (h Hints) Category(duration float64, velocity int) string {
	switch {
	case duration > h.LongSeconds:
		return CategoryLong
	case velocity > h.LoudVelocity:
		return CategoryAccent
	case duration > h.MediumSeconds:
		return CategoryMedium
	default:
		return CategoryShort
	}
}

var chromatic = [12]uint32{
	0xff0000, 0xff7f00, 0xffff00, 0x00ff00,
	0x0000ff, 0x4b0082, 0x9400d3, 0xff1493,
	0x00ffff, 0xff00ff, 0xffd700, 0x00ff7f,
}

type palette struct {
	kind     string
	minPitch int
	span     int
}

func newPalette(kind string, notes []types.CleanNote) palette {
	pitches := make([]int, len(notes))
	for i, n := range notes {
		pitches[i] = n.Pitch
	}
	lo, hi := utils.MinMaxInt(pitches...)
	return palette{kind: kind, minPitch: lo, span: hi - lo}
}

func (p palette) color(pitch int) string {
	if p.kind == PaletteChromatic {
		return fmt.Sprintf("#%06x", chromatic[utils.ClampInt(pitch, 0, 127)%12])
	}
	norm := 0.0
	if p.span > 0 {
		norm = float64(pitch-p.minPitch) / float64(p.span)
	}
	// low notes blue, high notes red
	return hslHex((1-norm)*240, 70, 60)
}

func hslHex(h, s, l float64) string {
	l /= 100
	a := s * math.Min(l, 1-l) / 100
	channel := func(n float64) int {
		k := math.Mod(n+h/30, 12)
		c := l - a*math.Max(math.Min(math.Min(k-3, 9-k), 1), -1)
		return int(math.Round(255 * c))
	}
	return fmt.Sprintf("#%02x%02x%02x", channel(0), channel(8), channel(4))
}
