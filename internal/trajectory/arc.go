package trajectory

import (
	"math"

	"melodypath/internal/types"
)

type arcState int

const (
	awaitingFirstAnchor arcState = iota
	solvingSegment
	terminalTail
	done
)

// ArcSolver connects consecutive anchors with parabolic arcs that land on
// each anchor exactly at its time. It makes a single forward pass.
type ArcSolver struct {
	opts Options
}

func (s *ArcSolver) Mode() Mode { return ModeArc }

// arcCursor is where the path currently is.
type arcCursor struct {
	time     float64
	position types.Vec3
	velocity types.Vec3
}

func (s *ArcSolver) Solve(anchors []types.Anchor) Result {
	res := Result{Anchors: copyAnchors(anchors)}
	if len(anchors) == 0 {
		res.Diagnostics.MarkEmpty()
		return res
	}

	var (
		tr    Track
		cur   arcCursor
		next  int
		state = awaitingFirstAnchor
	)
	for state != done {
		switch state {
		case awaitingFirstAnchor:
			cur = s.release(&tr, anchors[0])
			next = 1
			state = solvingSegment
		case solvingSegment:
			if next >= len(anchors) {
				state = terminalTail
				continue
			}
			cur = s.segment(&tr, cur, anchors[next], &res.Diagnostics)
			next++
		case terminalTail:
			s.tail(&tr, cur)
			state = done
		}
	}

	res.Keyframes = tr.Frames()
	res.SpanSeconds = tr.End()
	return res
}

// release drops the path from rest, StartClearance above the first anchor,
// so that it reaches the anchor at its time. An anchor earlier than the fall
// time pulls the release frame before zero.
func (s *ArcSolver) release(tr *Track, a types.Anchor) arcCursor {
	height := s.opts.StartClearance
	if height <= 0 {
		tr.Push(types.Keyframe{Time: a.Time, Position: a.Position})
		return arcCursor{time: a.Time, position: a.Position}
	}
	fall := math.Sqrt(2 * height / -s.opts.Gravity)
	top := a.Position
	top.Y += height
	start := a.Time - fall
	tr.Push(types.Keyframe{Time: start, Position: top})
	seg := freeFall(top, start, a.Time, s.opts.Gravity)
	seg.To = a.Position
	vel := seg.sample(tr, s.opts.SamplesPerSecond, s.opts.MinSamples)
	return arcCursor{time: a.Time, position: a.Position, velocity: vel}
}

func (s *ArcSolver) segment(tr *Track, cur arcCursor, a types.Anchor, diag *types.Diagnostics) arcCursor {
	dt := a.Time - cur.time
	if dt <= 0 {
		at := math.Max(a.Time, cur.time)
		diag.Add(types.AnomalyDegenerateSegment, a.Index, a.Time,
			"anchor %d scheduled %.4fs after the previous one", a.Index, dt)
		vel := types.Vec3{Y: s.opts.DegenerateVY}
		tr.Push(types.Keyframe{Time: at, Position: a.Position, Velocity: vel})
		return arcCursor{time: at, position: a.Position, velocity: vel}
	}
	seg := SolveSegment(cur.position, a.Position, cur.time, a.Time, s.opts.Gravity, s.opts.LiftBias)
	vel := seg.sample(tr, s.opts.SamplesPerSecond, s.opts.MinSamples)
	return arcCursor{time: a.Time, position: a.Position, velocity: vel}
}

// tail lets the path settle RestDrop below the last anchor, keeping its
// horizontal drift.
func (s *ArcSolver) tail(tr *Track, cur arcCursor) {
	if s.opts.TailSeconds <= 0 {
		return
	}
	rest := cur.position.Add(types.Vec3{
		X: cur.velocity.X * s.opts.TailSeconds,
		Y: -s.opts.RestDrop,
		Z: cur.velocity.Z * s.opts.TailSeconds,
	})
	end := cur.time + s.opts.TailSeconds
	seg := SolveSegment(cur.position, rest, cur.time, end, s.opts.Gravity, 0)
	seg.sample(tr, s.opts.SamplesPerSecond, s.opts.MinSamples)
}
