package melody

import (
	"math"
	"sort"

	"melodypath/internal/types"
)

// binEpsilon keeps onsets that sit exactly on a bin edge (0.6/0.02) in the upper bin.
const binEpsilon = 1e-9

// minBinSeconds is far below any audible difference in onset.
const minBinSeconds = 1e-6

type ReduceOptions struct {
	TimeBinSeconds float64 `json:"time_bin_seconds" yaml:"time_bin_seconds"`
}

func DefaultReduceOptions() ReduceOptions {
	return ReduceOptions{TimeBinSeconds: 0.02}
}

func (o ReduceOptions) Validate() error {
	if !(o.TimeBinSeconds >= minBinSeconds) || math.IsInf(o.TimeBinSeconds, 0) {
		return types.InvalidConfig("time_bin_seconds", "must be finite and at least %v, got %v", minBinSeconds, o.TimeBinSeconds)
	}
	return nil
}

type ReduceStats struct {
	Input            int `json:"input"`
	Bins             int `json:"bins"`
	DroppedPolyphony int `json:"dropped_polyphony"`
	InvalidSkipped   int `json:"invalid_skipped"`
}

type Reduction struct {
	Notes       []types.RawNote
	Stats       ReduceStats
	Diagnostics types.Diagnostics
}

// Reduce collapses simultaneous notes to a single melody line. Notes whose
// onsets share a time bin compete and only the dominant one survives.
func Reduce(notes []types.RawNote, opts ReduceOptions) (Reduction, error) {
	if err := opts.Validate(); err != nil {
		return Reduction{}, err
	}
	out := Reduction{Stats: ReduceStats{Input: len(notes)}}

	winners := make(map[int]types.RawNote)
	valid := 0
	for i, n := range notes {
		if err := n.Validate(); err != nil {
			out.Stats.InvalidSkipped++
			out.Diagnostics.Add(types.AnomalyInvalidNote, i, n.Start, "skipped: %v", err)
			continue
		}
		valid++
		bin := BinIndex(n.Start, opts.TimeBinSeconds)
		cur, ok := winners[bin]
		if !ok || Dominates(n, cur) {
			winners[bin] = n
		}
	}

	bins := make([]int, 0, len(winners))
	for b := range winners {
		bins = append(bins, b)
	}
	sort.Ints(bins)

	out.Notes = make([]types.RawNote, 0, len(bins))
	for _, b := range bins {
		out.Notes = append(out.Notes, winners[b])
	}
	out.Stats.Bins = len(bins)
	out.Stats.DroppedPolyphony = valid - len(bins)
	if len(out.Notes) == 0 {
		out.Diagnostics.MarkEmpty()
	}
	return out, nil
}

// BinIndex returns the time bin a note onset falls in. Onsets beyond the
// int range share the last bin.
func BinIndex(start, width float64) int {
	q := math.Floor(start/width + binEpsilon)
	switch {
	case math.IsNaN(q):
		return 0
	case q >= math.MaxInt:
		return math.MaxInt
	case q <= math.MinInt:
		return math.MinInt
	}
	return int(q)
}

// Dominates reports whether a beats b inside one bin: higher pitch, then
// louder. Remaining ties go to the earlier, then longer note, then the lower
// channel and track so the result never depends on input order.
func Dominates(a, b types.RawNote) bool {
	if a.Pitch != b.Pitch {
		return a.Pitch > b.Pitch
	}
	if a.Velocity != b.Velocity {
		return a.Velocity > b.Velocity
	}
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	if da, db := a.Duration(), b.Duration(); da != db {
		return da > db
	}
	if a.Channel != b.Channel {
		return a.Channel < b.Channel
	}
	return a.Track < b.Track
}
