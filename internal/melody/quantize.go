package melody

import (
	"math"

	"melodypath/internal/types"
)

// DefaultTempoBPM is used when a track carries no usable tempo.
const DefaultTempoBPM = 120.0

type QuantizeOptions struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Subdivision is the grid note value: 16 means sixteenth notes.
	Subdivision int     `json:"subdivision" yaml:"subdivision"`
	Strength    float64 `json:"strength" yaml:"strength"`
	// End snaps note ends independently instead of preserving durations.
	End bool `json:"end" yaml:"end"`
}

func DefaultQuantizeOptions() QuantizeOptions {
	return QuantizeOptions{Subdivision: 16, Strength: 0.7}
}

func (o QuantizeOptions) Validate() error {
	if o.Subdivision <= 0 {
		return types.InvalidConfig("quantize.subdivision", "must be positive, got %d", o.Subdivision)
	}
	if o.Strength < 0 || o.Strength > 1 || math.IsNaN(o.Strength) {
		return types.InvalidConfig("quantize.strength", "must be within [0,1], got %v", o.Strength)
	}
	return nil
}

// GridSize returns the grid cell in seconds for a tempo and subdivision.
func GridSize(tempoBPM float64, subdivision int) float64 {
	if !(tempoBPM > 0) || math.IsInf(tempoBPM, 0) {
		tempoBPM = DefaultTempoBPM
	}
	if subdivision <= 0 {
		subdivision = 16
	}
	return (60.0 / tempoBPM) / (float64(subdivision) / 4.0)
}

// Quantize pulls note onsets towards the tempo grid by opts.Strength.
// Durations are kept unless opts.End is set.
func Quantize(notes []types.CleanNote, tempoBPM float64, opts QuantizeOptions) []types.CleanNote {
	grid := GridSize(tempoBPM, opts.Subdivision)
	snap := func(x float64) float64 {
		target := math.Round(x/grid) * grid
		return x + (target-x)*opts.Strength
	}

	out := make([]types.CleanNote, len(notes))
	for i, n := range notes {
		start := snap(n.Start)
		end := start + n.Duration()
		if opts.End {
			end = snap(n.End)
			if end <= start {
				end = start + grid
			}
		}
		n.Start, n.End = start, end
		out[i] = n
	}
	return out
}
