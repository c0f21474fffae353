// Package hook picks the most interesting fixed-length excerpt of a melody.
package hook

import (
	"math"

	"melodypath/internal/common/utils"
	"melodypath/internal/types"
)

const (
	weightDensity    = 0.35
	weightVariety    = 0.30
	weightEnergy     = 0.20
	weightContinuity = 0.15

	stepEpsilon = 1e-9

	// Bounds keep the window scan finite for any accepted configuration.
	minStepSeconds   = 0.01
	maxTargetSeconds = 3600
)

type Options struct {
	TargetSeconds float64 `json:"target_seconds" yaml:"target_seconds"`
	StepSeconds   float64 `json:"step_seconds" yaml:"step_seconds"`
	// DensityNorm is the notes-per-second rate that scores full density.
	DensityNorm float64 `json:"density_norm" yaml:"density_norm"`
	// VarietyNorm is the pitch range in semitones that scores full variety.
	VarietyNorm float64 `json:"variety_norm" yaml:"variety_norm"`
	// GapNorm is the average silence in seconds that zeroes continuity.
	GapNorm float64 `json:"gap_norm" yaml:"gap_norm"`
}

func DefaultOptions() Options {
	return Options{
		TargetSeconds: 8,
		StepSeconds:   0.5,
		DensityNorm:   5,
		VarietyNorm:   24,
		GapNorm:       2,
	}
}

func (o Options) Validate() error {
	if !(o.TargetSeconds > 0) || o.TargetSeconds > maxTargetSeconds {
		return types.InvalidConfig("hook.target_seconds", "must be within (0,%v], got %v", maxTargetSeconds, o.TargetSeconds)
	}
	if !(o.StepSeconds >= minStepSeconds) || math.IsInf(o.StepSeconds, 0) {
		return types.InvalidConfig("hook.step_seconds", "must be finite and at least %v, got %v", minStepSeconds, o.StepSeconds)
	}
	if !utils.Finite(o.DensityNorm, o.VarietyNorm, o.GapNorm) || !(o.DensityNorm > 0) || !(o.VarietyNorm > 0) || !(o.GapNorm > 0) {
		return types.InvalidConfig("hook", "normalizers must be positive and finite")
	}
	return nil
}

type Result struct {
	Window types.HookWindow
	// Notes are the window's notes shifted so the window starts at 0.
	Notes []types.CleanNote
	// Scored counts windows that contained at least one note.
	Scored int
}

// Select slides a window of opts.TargetSeconds across the melody and keeps
// the best scoring one. The earliest window wins a tie.
func Select(notes []types.CleanNote, opts Options) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	if len(notes) == 0 {
		return fallback(notes, opts), nil
	}

	span := types.Span(notes)
	if span < opts.TargetSeconds {
		out := make([]types.CleanNote, len(notes))
		copy(out, notes)
		return Result{Window: types.HookWindow{Start: 0, End: span, Score: 1}, Notes: out}, nil
	}

	last := int(math.Floor((span-opts.TargetSeconds)/opts.StepSeconds + stepEpsilon))
	res := Result{}
	bestScore := math.Inf(-1)
	var best []types.CleanNote
	for k := 0; k <= last; k++ {
		start := float64(k) * opts.StepSeconds
		end := start + opts.TargetSeconds
		members := inWindow(notes, start, end)
		if len(members) == 0 {
			continue
		}
		res.Scored++
		score := Score(members, opts.TargetSeconds, opts)
		if score > bestScore {
			bestScore = score
			best = members
			res.Window = types.HookWindow{Start: start, End: end, Score: score}
		}
	}
	if best == nil {
		return fallback(notes, opts), nil
	}
	res.Notes = rebase(best, res.Window.Start)
	return res, nil
}

func fallback(notes []types.CleanNote, opts Options) Result {
	return Result{
		Window: types.HookWindow{Start: 0, End: opts.TargetSeconds, Score: 0},
		Notes:  rebase(inWindow(notes, 0, opts.TargetSeconds), 0),
	}
}

// Score rates a set of notes played within windowSeconds. The result is in [0,1].
func Score(notes []types.CleanNote, windowSeconds float64, opts Options) float64 {
	if len(notes) == 0 || !(windowSeconds > 0) {
		return 0
	}
	density := math.Min(float64(len(notes))/windowSeconds/opts.DensityNorm, 1)

	pitches := make([]int, len(notes))
	velocities := make([]float64, len(notes))
	for i, n := range notes {
		pitches[i] = n.Pitch
		velocities[i] = float64(n.Velocity)
	}
	lo, hi := utils.MinMaxInt(pitches...)
	variety := math.Min(float64(hi-lo)/opts.VarietyNorm, 1)
	energy := utils.Clamp(utils.Mean(velocities...)/127, 0, 1)

	var gaps []float64
	for i := 1; i < len(notes); i++ {
		if gap := notes[i].Start - notes[i-1].End; gap > 0 {
			gaps = append(gaps, gap)
		}
	}
	continuity := math.Max(0, 1-utils.Mean(gaps...)/opts.GapNorm)

	return weightDensity*density + weightVariety*variety + weightEnergy*energy + weightContinuity*continuity
}

// inWindow returns notes whose onset falls in [start, end).
func inWindow(notes []types.CleanNote, start, end float64) []types.CleanNote {
	var out []types.CleanNote
	for _, n := range notes {
		if n.Start >= start-stepEpsilon && n.Start < end-stepEpsilon {
			out = append(out, n)
		}
	}
	return out
}

func rebase(notes []types.CleanNote, offset float64) []types.CleanNote {
	out := make([]types.CleanNote, len(notes))
	for i, n := range notes {
		n.Start -= offset
		n.End -= offset
		out[i] = n
	}
	return out
}
