package trajectory

import (
	"math"

	"melodypath/internal/types"
)

// sameTime is the tolerance under which two keyframes share a timestamp.
const sameTime = 1e-9

// Track accumulates keyframes in time order. A keyframe at the same time as
// the last one replaces it, and a keyframe from the past is pulled forward to
// the last timestamp, so the output is strictly increasing.
type Track struct {
	frames []types.Keyframe
}

func (t *Track) Push(k types.Keyframe) {
	n := len(t.frames)
	if n == 0 {
		t.frames = append(t.frames, k)
		return
	}
	last := &t.frames[n-1]
	if k.Time < last.Time || math.Abs(k.Time-last.Time) < sameTime {
		k.Time = last.Time
		*last = k
		return
	}
	t.frames = append(t.frames, k)
}

func (t *Track) Len() int { return len(t.frames) }

// End returns the time of the last keyframe, or 0.
func (t *Track) End() float64 {
	if len(t.frames) == 0 {
		return 0
	}
	return t.frames[len(t.frames)-1].Time
}

func (t *Track) Frames() []types.Keyframe {
	out := make([]types.Keyframe, len(t.frames))
	copy(out, t.frames)
	return out
}
