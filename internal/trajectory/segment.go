package trajectory

import (
	"math"

	"melodypath/internal/types"
)

// Segment is a closed-form parabola between two points. Horizontal velocity
// is constant and vertical acceleration is Accel.
//
// The launch velocity carries LiftBias on top of the velocity that would hit
// the target under plain gravity. To still arrive on time the lift is bled
// off through the acceleration: Accel = g - 2*lift/Duration. Position and
// velocity both use Accel, so they stay consistent and y(Duration) == To.Y.
type Segment struct {
	From     types.Vec3
	To       types.Vec3
	T0       float64
	T1       float64
	Duration float64
	Velocity types.Vec3
	DirectVY float64
	Accel    float64
}

// SolveSegment fits an arc leaving from at t0 and reaching to at t1.
// t1 must be after t0.
func SolveSegment(from, to types.Vec3, t0, t1, gravity, lift float64) Segment {
	dt := t1 - t0
	d := to.Sub(from)
	direct := (d.Y - 0.5*gravity*dt*dt) / dt
	return Segment{
		From:     from,
		To:       to,
		T0:       t0,
		T1:       t1,
		Duration: dt,
		Velocity: types.Vec3{X: d.X / dt, Y: direct + lift, Z: d.Z / dt},
		DirectVY: direct,
		Accel:    gravity - 2*lift/dt,
	}
}

// freeFall drops from rest between t0 and t1.
func freeFall(from types.Vec3, t0, t1, gravity float64) Segment {
	dur := t1 - t0
	to := from
	to.Y += 0.5 * gravity * dur * dur
	return Segment{From: from, To: to, T0: t0, T1: t1, Duration: dur, Accel: gravity}
}

// At evaluates position and velocity e seconds after T0.
func (s Segment) At(e float64) (types.Vec3, types.Vec3) {
	pos := types.Vec3{
		X: s.From.X + s.Velocity.X*e,
		Y: s.From.Y + s.Velocity.Y*e + 0.5*s.Accel*e*e,
		Z: s.From.Z + s.Velocity.Z*e,
	}
	vel := types.Vec3{X: s.Velocity.X, Y: s.Velocity.Y + s.Accel*e, Z: s.Velocity.Z}
	return pos, vel
}

// Steps is the number of samples taken along the segment.
func (s Segment) Steps(perSecond float64, minSamples int) int {
	return max(minSamples, int(math.Floor(s.Duration*perSecond)))
}

// sample pushes the keyframes after the segment start. The final sample is
// pinned to the segment's target time and position.
func (s Segment) sample(tr *Track, perSecond float64, minSamples int) types.Vec3 {
	n := s.Steps(perSecond, minSamples)
	var vel types.Vec3
	for step := 1; step <= n; step++ {
		e := float64(step) / float64(n) * s.Duration
		var pos types.Vec3
		pos, vel = s.At(e)
		at := s.T0 + e
		if step == n {
			pos = s.To
			at = s.T1
		}
		tr.Push(types.Keyframe{Time: at, Position: pos, Velocity: vel})
	}
	return vel
}
