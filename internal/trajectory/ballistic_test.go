package trajectory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"melodypath/internal/types"
)

func ballisticSolver(t *testing.T) Solver {
	t.Helper()
	opts := DefaultOptions()
	opts.Mode = ModeBallistic
	s, err := New(opts)
	require.NoError(t, err)
	return s
}

func TestBallisticPlacesEveryNote(t *testing.T) {
	anchors := []types.Anchor{
		anchorAt(0, 0, types.Vec3{X: -4, Y: 25, Z: 1}),
		anchorAt(1, 1, types.Vec3{}),
		anchorAt(2, 2, types.Vec3{}),
		anchorAt(3, 3, types.Vec3{}),
	}
	res := ballisticSolver(t).Solve(anchors)
	require.Empty(t, res.Diagnostics.Anomalies)
	requireStrictlyIncreasing(t, res.Keyframes)

	require.Equal(t, anchors[0].Position, res.Anchors[0].Position)
	for i := 1; i < len(res.Anchors); i++ {
		a := res.Anchors[i]
		require.False(t, a.Missing)
		require.LessOrEqual(t, a.Time, anchors[i].Time+1e-9)
		require.Greater(t, a.Time, res.Anchors[i-1].Time)
		require.GreaterOrEqual(t, a.Position.HorizontalDistance(res.Anchors[i-1].Position), 1.5)
	}
	// the input is left untouched
	require.Equal(t, types.Vec3{}, anchors[1].Position)
}

func TestBallisticAlternatesDirection(t *testing.T) {
	anchors := []types.Anchor{
		anchorAt(0, 0, types.Vec3{Y: 25}),
		anchorAt(1, 1, types.Vec3{}),
		anchorAt(2, 2, types.Vec3{}),
	}
	res := ballisticSolver(t).Solve(anchors)
	require.Greater(t, res.Anchors[1].Position.X, res.Anchors[0].Position.X)
	require.Less(t, res.Anchors[2].Position.X, res.Anchors[1].Position.X)
}

func TestBallisticMarksUnplaceableNote(t *testing.T) {
	anchors := []types.Anchor{
		anchorAt(0, 0, types.Vec3{Y: 25}),
		anchorAt(1, 1, types.Vec3{}),
		anchorAt(2, 1.05, types.Vec3{}),
		anchorAt(3, 2.5, types.Vec3{}),
	}
	res := ballisticSolver(t).Solve(anchors)
	require.Equal(t, 1, res.Diagnostics.Count(types.AnomalyUnplaceableAnchor))
	require.True(t, res.Anchors[2].Missing)
	require.False(t, res.Anchors[3].Missing)
	requireStrictlyIncreasing(t, res.Keyframes)
}

func TestBallisticIsDeterministic(t *testing.T) {
	anchors := []types.Anchor{
		anchorAt(0, 0, types.Vec3{Y: 25}),
		anchorAt(1, 0.8, types.Vec3{}),
		anchorAt(2, 1.9, types.Vec3{}),
	}
	a := ballisticSolver(t).Solve(anchors)
	b := ballisticSolver(t).Solve(anchors)
	require.Equal(t, a, b)
}
