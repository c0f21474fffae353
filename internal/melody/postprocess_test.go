package melody

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"melodypath/internal/types"
)

const tol = 1e-9

func TestPipelineWorkedExample(t *testing.T) {
	in := []types.RawNote{
		{Start: 0.0, End: 0.5, Pitch: 60, Velocity: 90},
		{Start: 0.0, End: 0.3, Pitch: 67, Velocity: 60},
		{Start: 0.6, End: 1.0, Pitch: 64, Velocity: 100},
	}
	red, err := Reduce(in, DefaultReduceOptions())
	require.NoError(t, err)
	post, err := PostProcess(red.Notes, 120, DefaultPostOptions())
	require.NoError(t, err)

	require.Len(t, post.Notes, 2)
	require.InDelta(t, 0.0, post.Notes[0].Start, tol)
	require.InDelta(t, 0.3, post.Notes[0].End, tol)
	require.Equal(t, 67, post.Notes[0].Pitch)
	require.InDelta(t, 0.6, post.Notes[1].Start, tol)
	require.InDelta(t, 1.0, post.Notes[1].End, tol)
	require.Equal(t, 64, post.Notes[1].Pitch)
}

func TestPostProcessFiltersAndCaps(t *testing.T) {
	in := []types.RawNote{
		{Start: 0.0, End: 0.05, Pitch: 60, Velocity: 64},
		{Start: 0.2, End: 1.7, Pitch: 62, Velocity: 64},
		{Start: 2.0, End: 2.11, Pitch: 64, Velocity: 64},
	}
	post, err := PostProcess(in, 120, DefaultPostOptions())
	require.NoError(t, err)
	require.Equal(t, 1, post.Stats.RemovedShort)
	require.Equal(t, 1, post.Stats.Capped)
	require.Len(t, post.Notes, 2)
	require.InDelta(t, 0.8, post.Notes[0].End, tol)
	for _, n := range post.Notes {
		d := n.Duration()
		if d < 0.11-tol || d > 0.6+tol {
			t.Fatalf("duration %v out of bounds", d)
		}
	}
}

func TestPostProcessTransposeClamps(t *testing.T) {
	opts := DefaultPostOptions()
	opts.TransposeSemitones = 12
	in := []types.RawNote{
		{Start: 0, End: 0.3, Pitch: 120, Velocity: 64},
		{Start: 0.5, End: 0.8, Pitch: 60, Velocity: 64},
	}
	post, err := PostProcess(in, 120, opts)
	require.NoError(t, err)
	require.Equal(t, 127, post.Notes[0].Pitch)
	require.Equal(t, 72, post.Notes[1].Pitch)

	opts.TransposeSemitones = -70
	post, err = PostProcess(in, 120, opts)
	require.NoError(t, err)
	require.Equal(t, 50, post.Notes[0].Pitch)
	require.Equal(t, 0, post.Notes[1].Pitch)
}

func TestNormalizeVelocity(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 70},
		{127, 115},
		{60, 91},
		{100, 105},
	}
	for _, c := range cases {
		if got := NormalizeVelocity(c.in, 70, 115); got != c.want {
			t.Fatalf("NormalizeVelocity(%d) = %d, want %d", c.in, got, c.want)
		}
	}
	if got := NormalizeVelocity(0, 0, 0); got != 1 {
		t.Fatalf("velocity must be clamped to 1, got %d", got)
	}
}

func TestPostProcessDropsLaterOverlap(t *testing.T) {
	// Quantize pushes the second onset back into the first note.
	opts := DefaultPostOptions()
	opts.Quantize = QuantizeOptions{Enabled: true, Subdivision: 16, Strength: 1}
	in := []types.RawNote{
		{Start: 0.0, End: 0.3, Pitch: 60, Velocity: 64},
		{Start: 0.26, End: 0.5, Pitch: 65, Velocity: 64},
	}
	post, err := PostProcess(in, 120, opts)
	require.NoError(t, err)
	require.Len(t, post.Notes, 1)
	require.Equal(t, 60, post.Notes[0].Pitch)
	require.Equal(t, 1, post.Diagnostics.Count(types.AnomalyOverlapDropped))
}

func TestPostProcessMonophonicAndSorted(t *testing.T) {
	in := []types.RawNote{
		{Start: 1.0, End: 1.4, Pitch: 60, Velocity: 64},
		{Start: 0.0, End: 0.5, Pitch: 62, Velocity: 64},
		{Start: 0.4, End: 0.9, Pitch: 64, Velocity: 64},
		{Start: 1.2, End: 1.5, Pitch: 66, Velocity: 64},
	}
	post, err := PostProcess(in, 120, DefaultPostOptions())
	require.NoError(t, err)
	for i := 1; i < len(post.Notes); i++ {
		prev, cur := post.Notes[i-1], post.Notes[i]
		if cur.Start < prev.Start {
			t.Fatalf("not sorted: %+v", post.Notes)
		}
		if cur.Start < prev.End-tol {
			t.Fatalf("overlap between %+v and %+v", prev, cur)
		}
	}
	require.Equal(t, 2, post.Stats.RemovedOverlap)
}

func TestPostProcessEmpty(t *testing.T) {
	post, err := PostProcess(nil, 0, DefaultPostOptions())
	require.NoError(t, err)
	require.True(t, post.Diagnostics.Empty)
}

func TestPostOptionsValidate(t *testing.T) {
	bad := []func(o *PostOptions){
		func(o *PostOptions) { o.VelocityMin, o.VelocityMax = 120, 80 },
		func(o *PostOptions) { o.MinDurationSeconds = -0.1 },
		func(o *PostOptions) { o.MinDurationSeconds, o.MaxDurationSeconds = 0.8, 0.5 },
		func(o *PostOptions) { o.VelocityMax = 200 },
		func(o *PostOptions) { o.Quantize.Strength = 1.5 },
		func(o *PostOptions) { o.Quantize.Subdivision = 0 },
		func(o *PostOptions) { o.MinDurationSeconds = math.NaN() },
		func(o *PostOptions) { o.MaxDurationSeconds = math.Inf(1) },
		func(o *PostOptions) { o.Quantize.Strength = math.NaN() },
	}
	for i, mutate := range bad {
		opts := DefaultPostOptions()
		mutate(&opts)
		_, err := PostProcess(nil, 120, opts)
		if !errors.Is(err, types.ErrInvalidConfiguration) {
			t.Fatalf("case %d: expected invalid configuration, got %v", i, err)
		}
	}
}
