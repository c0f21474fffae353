// Package trajectory turns timed anchors into a sampled motion path under
// constant gravity.
package trajectory

import (
	"fmt"

	"melodypath/internal/types"
)

type Result struct {
	// Anchors as visited. Ballistic mode moves them and may mark some missing.
	Anchors     []types.Anchor    `json:"anchors"`
	Keyframes   []types.Keyframe  `json:"keyframes"`
	SpanSeconds float64           `json:"span_seconds"`
	Diagnostics types.Diagnostics `json:"diagnostics"`
}

type Solver interface {
	Mode() Mode
	Solve(anchors []types.Anchor) Result
}

// New validates opts and returns the solver for opts.Mode.
func New(opts Options) (Solver, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	switch opts.Mode {
	case ModeArc:
		return &ArcSolver{opts: opts}, nil
	case ModeBallistic:
		return &BallisticSolver{opts: opts}, nil
	}
	return nil, fmt.Errorf("trajectory: unhandled mode %q", opts.Mode)
}

func copyAnchors(in []types.Anchor) []types.Anchor {
	out := make([]types.Anchor, len(in))
	copy(out, in)
	return out
}
