package melody

import (
	"math"
	"sort"

	"melodypath/internal/common/utils"
	"melodypath/internal/types"
)

// durationEpsilon absorbs float noise such as 0.41-0.30 < 0.11.
const durationEpsilon = 1e-9

type PostOptions struct {
	MinDurationSeconds float64         `json:"min_duration_seconds" yaml:"min_duration_seconds"`
	MaxDurationSeconds float64         `json:"max_duration_seconds" yaml:"max_duration_seconds"`
	TransposeSemitones int             `json:"transpose_semitones" yaml:"transpose_semitones"`
	VelocityMin        int             `json:"velocity_min" yaml:"velocity_min"`
	VelocityMax        int             `json:"velocity_max" yaml:"velocity_max"`
	Quantize           QuantizeOptions `json:"quantize" yaml:"quantize"`
}

func DefaultPostOptions() PostOptions {
	return PostOptions{
		MinDurationSeconds: 0.11,
		MaxDurationSeconds: 0.6,
		VelocityMin:        70,
		VelocityMax:        115,
		Quantize:           DefaultQuantizeOptions(),
	}
}

func (o PostOptions) Validate() error {
	if o.MinDurationSeconds < 0 || math.IsNaN(o.MinDurationSeconds) {
		return types.InvalidConfig("min_duration_seconds", "must not be negative, got %v", o.MinDurationSeconds)
	}
	if !(o.MaxDurationSeconds > 0) || math.IsInf(o.MaxDurationSeconds, 0) {
		return types.InvalidConfig("max_duration_seconds", "must be positive and finite, got %v", o.MaxDurationSeconds)
	}
	if o.MinDurationSeconds > o.MaxDurationSeconds {
		return types.InvalidConfig("min_duration_seconds", "%v exceeds max_duration_seconds %v", o.MinDurationSeconds, o.MaxDurationSeconds)
	}
	if o.VelocityMin < 0 || o.VelocityMin > 127 {
		return types.InvalidConfig("velocity_min", "must be within [0,127], got %d", o.VelocityMin)
	}
	if o.VelocityMax < 0 || o.VelocityMax > 127 {
		return types.InvalidConfig("velocity_max", "must be within [0,127], got %d", o.VelocityMax)
	}
	if o.VelocityMin > o.VelocityMax {
		return types.InvalidConfig("velocity_min", "%d exceeds velocity_max %d", o.VelocityMin, o.VelocityMax)
	}
	return o.Quantize.Validate()
}

type PostStats struct {
	Input            int     `json:"input"`
	RemovedShort     int     `json:"removed_short"`
	Capped           int     `json:"capped"`
	RemovedCollapsed int     `json:"removed_collapsed"`
	RemovedOverlap   int     `json:"removed_overlap"`
	Output           int     `json:"output"`
	Quantized        bool    `json:"quantized"`
	GridSeconds      float64 `json:"grid_seconds,omitempty"`
}

type PostResult struct {
	Notes       []types.CleanNote
	Stats       PostStats
	Diagnostics types.Diagnostics
}

// PostProcess turns the reduced line into CleanNotes: short notes are
// dropped, long ones shortened, pitch shifted, velocity remapped, onsets
// optionally quantized, and any overlap left afterwards is removed by
// dropping the later note.
func PostProcess(notes []types.RawNote, tempoBPM float64, opts PostOptions) (PostResult, error) {
	if err := opts.Validate(); err != nil {
		return PostResult{}, err
	}
	res := PostResult{Stats: PostStats{Input: len(notes)}}

	clean := make([]types.CleanNote, 0, len(notes))
	for _, n := range notes {
		dur := n.Duration()
		if dur+durationEpsilon < opts.MinDurationSeconds {
			res.Stats.RemovedShort++
			continue
		}
		end := n.End
		if dur > opts.MaxDurationSeconds {
			end = n.Start + opts.MaxDurationSeconds
			res.Stats.Capped++
		}
		clean = append(clean, types.CleanNote{
			Start:    n.Start,
			End:      end,
			Pitch:    utils.ClampInt(n.Pitch+opts.TransposeSemitones, 0, 127),
			Velocity: NormalizeVelocity(n.Velocity, opts.VelocityMin, opts.VelocityMax),
		})
	}

	if opts.Quantize.Enabled && len(clean) > 0 {
		clean = Quantize(clean, tempoBPM, opts.Quantize)
		res.Stats.Quantized = true
		res.Stats.GridSeconds = GridSize(tempoBPM, opts.Quantize.Subdivision)
		clean = res.revalidate(clean, opts)
	}

	sort.SliceStable(clean, func(i, j int) bool {
		if clean[i].Start != clean[j].Start {
			return clean[i].Start < clean[j].Start
		}
		if clean[i].Pitch != clean[j].Pitch {
			return clean[i].Pitch > clean[j].Pitch
		}
		return clean[i].Velocity > clean[j].Velocity
	})

	res.Notes = make([]types.CleanNote, 0, len(clean))
	for i, n := range clean {
		if k := len(res.Notes); k > 0 && n.Start < res.Notes[k-1].End-durationEpsilon {
			res.Stats.RemovedOverlap++
			res.Diagnostics.Add(types.AnomalyOverlapDropped, i, n.Start,
				"pitch %d overlaps note ending at %.4f", n.Pitch, res.Notes[k-1].End)
			continue
		}
		res.Notes = append(res.Notes, n)
	}
	res.Stats.Output = len(res.Notes)
	if len(res.Notes) == 0 {
		res.Diagnostics.MarkEmpty()
	}
	return res, nil
}

// revalidate re-applies the duration bounds after quantization moved ends.
func (res *PostResult) revalidate(notes []types.CleanNote, opts PostOptions) []types.CleanNote {
	out := notes[:0]
	for i, n := range notes {
		dur := n.Duration()
		if dur+durationEpsilon < opts.MinDurationSeconds {
			res.Stats.RemovedCollapsed++
			res.Diagnostics.Add(types.AnomalyQuantizeCollapsed, i, n.Start,
				"duration %.4f below minimum after quantize", dur)
			continue
		}
		if dur > opts.MaxDurationSeconds {
			n.End = n.Start + opts.MaxDurationSeconds
			res.Stats.Capped++
		}
		out = append(out, n)
	}
	return out
}

// NormalizeVelocity maps 0..127 onto [vMin,vMax], floors, and keeps the
// result audible.
func NormalizeVelocity(v, vMin, vMax int) int {
	scaled := float64(vMin) + float64(v)/127.0*float64(vMax-vMin)
	return utils.ClampInt(int(math.Floor(scaled)), 1, 127)
}
