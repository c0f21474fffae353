package trajectory

import "melodypath/internal/types"

// BallisticSolver integrates a free body forward in time and places each note
// on the simulated path instead of following the placement policy. Only the
// first anchor keeps its given position; the rest are discovered. Timing is
// approximate: an anchor lands on the last suitable sample before its note.
type BallisticSolver struct {
	opts Options
}

func (s *BallisticSolver) Mode() Mode { return ModeBallistic }

type body struct {
	time float64
	pos  types.Vec3
	vel  types.Vec3
}

func (b body) keyframe() types.Keyframe {
	return types.Keyframe{Time: b.time, Position: b.pos, Velocity: b.vel}
}

func (s *BallisticSolver) Solve(anchors []types.Anchor) Result {
	res := Result{Anchors: copyAnchors(anchors)}
	if len(anchors) == 0 {
		res.Diagnostics.MarkEmpty()
		return res
	}

	var tr Track
	first := res.Anchors[0]
	cur := body{time: first.Time, pos: first.Position, vel: s.opts.Ballistic.InitialVelocity}
	tr.Push(cur.keyframe())
	placed := first.Position

	for i := 1; i < len(res.Anchors); i++ {
		a := &res.Anchors[i]
		path := s.fly(cur, a.Time)
		hit := s.pick(path, placed, a.Time)
		if hit < 0 {
			a.Missing = true
			res.Diagnostics.Add(types.AnomalyUnplaceableAnchor, a.Index, a.Time,
				"no descending point %.2f away from the previous anchor before %.3fs", s.opts.Ballistic.MinSeparation, a.Time)
			for _, b := range path {
				tr.Push(b.keyframe())
			}
			if len(path) > 0 {
				cur = path[len(path)-1]
			}
			continue
		}
		for _, b := range path[:hit+1] {
			tr.Push(b.keyframe())
		}
		a.Position = path[hit].pos
		a.Time = path[hit].time
		placed = a.Position
		cur = s.bounce(path[hit])
		tr.Push(cur.keyframe())
	}

	if s.opts.TailSeconds > 0 {
		for _, b := range s.fly(cur, cur.time+s.opts.TailSeconds) {
			tr.Push(b.keyframe())
		}
	}

	res.Keyframes = tr.Frames()
	res.SpanSeconds = tr.End()
	return res
}

// fly steps the body with semi-implicit Euler until the given time.
func (s *BallisticSolver) fly(from body, until float64) []body {
	dt := s.opts.Ballistic.Timestep
	var out []body
	cur := from
	for k := 1; ; k++ {
		at := from.time + float64(k)*dt
		if at > until+sameTime {
			break
		}
		cur.vel.Y += s.opts.Gravity * dt
		cur.pos = cur.pos.Add(cur.vel.Scale(dt))
		cur.time = at
		out = append(out, cur)
	}
	return out
}

// pick returns the index of the latest valid placement sample, or -1.
func (s *BallisticSolver) pick(path []body, placed types.Vec3, noteTime float64) int {
	b := s.opts.Ballistic
	for i := len(path) - 1; i >= 0; i-- {
		p := path[i]
		if b.HorizonSeconds > 0 && p.time < noteTime-b.HorizonSeconds {
			break
		}
		if p.vel.Y >= -b.DescentThreshold {
			continue
		}
		if p.pos.HorizontalDistance(placed) < b.MinSeparation {
			continue
		}
		return i
	}
	return -1
}

func (s *BallisticSolver) bounce(b body) body {
	b.vel.Y = -b.vel.Y * s.opts.Ballistic.Restitution
	if s.opts.Ballistic.AlternateDirection {
		b.vel.X = -b.vel.X
		b.vel.Z = -b.vel.Z
	}
	return b
}
