package hook

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"melodypath/internal/types"
)

func note(start, dur float64, pitch, vel int) types.CleanNote {
	return types.CleanNote{Start: start, End: start + dur, Pitch: pitch, Velocity: vel}
}

func TestSelectShortMelodyUsesWholeSpan(t *testing.T) {
	notes := []types.CleanNote{note(0, 0.4, 60, 80), note(1, 0.5, 62, 80), note(2.5, 0.5, 64, 80)}
	res, err := Select(notes, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 1.0, res.Window.Score)
	require.Equal(t, 0.0, res.Window.Start)
	require.InDelta(t, 3.0, res.Window.End, 1e-9)
	require.Equal(t, notes, res.Notes)
}

func TestSelectPrefersDenseVariedSection(t *testing.T) {
	var notes []types.CleanNote
	for _, at := range []float64{0, 2, 4, 6} {
		notes = append(notes, note(at, 0.2, 60, 40))
	}
	for i := 0; i < 16; i++ {
		pitch := 60
		if i%2 == 1 {
			pitch = 84
		}
		notes = append(notes, note(10+float64(i)*0.25, 0.2, pitch, 120))
	}
	notes = append(notes, note(16, 0.2, 60, 40))

	opts := DefaultOptions()
	opts.TargetSeconds = 4
	res, err := Select(notes, opts)
	require.NoError(t, err)
	require.InDelta(t, 10.0, res.Window.Start, 1e-9)
	require.InDelta(t, 14.0, res.Window.End, 1e-9)
	require.Len(t, res.Notes, 16)
	require.InDelta(t, 0.0, res.Notes[0].Start, 1e-9)
	require.GreaterOrEqual(t, res.Window.Score, 0.0)
	require.LessOrEqual(t, res.Window.Score, 1.0)
}

func TestSelectTieKeepsEarliestWindow(t *testing.T) {
	var notes []types.CleanNote
	for i := 0; i < 20; i++ {
		notes = append(notes, note(float64(i), 0.2, 60, 90))
	}
	opts := DefaultOptions()
	opts.TargetSeconds = 4
	res, err := Select(notes, opts)
	require.NoError(t, err)
	require.Equal(t, 0.0, res.Window.Start)
	require.Len(t, res.Notes, 4)
}

func TestSelectEmptyFallsBack(t *testing.T) {
	res, err := Select(nil, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, types.HookWindow{Start: 0, End: 8, Score: 0}, res.Window)
	require.Empty(t, res.Notes)
}

func TestScoreComponents(t *testing.T) {
	notes := []types.CleanNote{note(0, 0.5, 60, 127), note(1, 0.5, 72, 127)}
	// density 0.2, variety 0.5, energy 1, continuity 0.75
	require.InDelta(t, 0.5325, Score(notes, 2, DefaultOptions()), 1e-9)
}

func TestScoreIsBounded(t *testing.T) {
	var notes []types.CleanNote
	for i := 0; i < 100; i++ {
		notes = append(notes, note(float64(i)*0.05, 0.05, i%128, 127))
	}
	s := Score(notes, 1, DefaultOptions())
	require.InDelta(t, 1.0, s, 1e-9)
	require.Equal(t, 0.0, Score(nil, 1, DefaultOptions()))
}

func TestSelectRejectsBadOptions(t *testing.T) {
	bad := []func(o *Options){
		func(o *Options) { o.StepSeconds = 0 },
		func(o *Options) { o.StepSeconds = 1e-12 },
		func(o *Options) { o.StepSeconds = math.Inf(1) },
		func(o *Options) { o.TargetSeconds = math.Inf(1) },
		func(o *Options) { o.TargetSeconds = math.NaN() },
		func(o *Options) { o.GapNorm = math.Inf(1) },
	}
	for i, mutate := range bad {
		opts := DefaultOptions()
		mutate(&opts)
		if _, err := Select(nil, opts); !errors.Is(err, types.ErrInvalidConfiguration) {
			t.Fatalf("case %d: expected invalid configuration, got %v", i, err)
		}
	}
}
