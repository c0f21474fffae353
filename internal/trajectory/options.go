package trajectory

import (
	"math"
	"strings"

	"melodypath/internal/common/utils"
	"melodypath/internal/types"
)

type Mode string

const (
	maxSamplesPerSecond  = 1000
	minBallisticTimestep = 1e-4
)

const (
	ModeArc       Mode = "arc"
	ModeBallistic Mode = "ballistic"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeArc, ModeBallistic:
		return m, nil
	}
	return "", types.InvalidConfig("trajectory.mode", "unknown mode %q (want arc or ballistic)", s)
}

type Options struct {
	Mode Mode `json:"mode" yaml:"mode"`
	// Gravity is the vertical acceleration; negative pulls down.
	Gravity float64 `json:"gravity" yaml:"gravity"`
	// LiftBias is added to the launch velocity of every arc so paths bow upwards.
	// Each segment still lands exactly on its anchor because the lift is folded
	// into the segment's vertical acceleration, g - 2*lift/dt. Short segments
	// therefore pull much harder than Gravity: about 5g for dt=0.25 at the
	// default bias. Set it to 0 for arcs under constant gravity.
	LiftBias         float64 `json:"lift_bias" yaml:"lift_bias"`
	SamplesPerSecond float64 `json:"samples_per_second" yaml:"samples_per_second"`
	MinSamples       int     `json:"min_samples" yaml:"min_samples"`
	// StartClearance is how far above the first anchor the path is released.
	// The release frame is timed so a free fall from it reaches the first
	// anchor on time, which puts it before zero when the first note is early.
	StartClearance float64 `json:"start_clearance" yaml:"start_clearance"`
	// DegenerateVY is the vertical velocity given to a keyframe that has no time to move.
	DegenerateVY float64 `json:"degenerate_vy" yaml:"degenerate_vy"`
	// TailSeconds of motion are appended after the last anchor; zero disables the tail.
	TailSeconds float64 `json:"tail_seconds" yaml:"tail_seconds"`
	// RestDrop is how far below the last anchor the tail comes to rest.
	RestDrop  float64          `json:"rest_drop" yaml:"rest_drop"`
	Ballistic BallisticOptions `json:"ballistic" yaml:"ballistic"`
}

type BallisticOptions struct {
	Timestep    float64 `json:"timestep" yaml:"timestep"`
	Restitution float64 `json:"restitution" yaml:"restitution"`
	// DescentThreshold: a placement point must be falling faster than this.
	DescentThreshold float64    `json:"descent_threshold" yaml:"descent_threshold"`
	MinSeparation    float64    `json:"min_separation" yaml:"min_separation"`
	InitialVelocity  types.Vec3 `json:"initial_velocity" yaml:"initial_velocity"`
	// HorizonSeconds limits the search to this long before each note; zero
	// searches the whole interval since the previous anchor.
	HorizonSeconds float64 `json:"horizon_seconds" yaml:"horizon_seconds"`
	// AlternateDirection flips horizontal travel on every bounce.
	AlternateDirection bool `json:"alternate_direction" yaml:"alternate_direction"`
}

func DefaultOptions() Options {
	return Options{
		Mode:             ModeArc,
		Gravity:          -9.8,
		LiftBias:         5,
		SamplesPerSecond: 30,
		MinSamples:       8,
		StartClearance:   2,
		DegenerateVY:     -2,
		TailSeconds:      0.5,
		RestDrop:         2,
		Ballistic: BallisticOptions{
			Timestep:           1.0 / 60.0,
			Restitution:        0.75,
			DescentThreshold:   2,
			MinSeparation:      1.5,
			InitialVelocity:    types.Vec3{X: 3},
			AlternateDirection: true,
		},
	}
}

func (o Options) Validate() error {
	if _, err := ParseMode(string(o.Mode)); err != nil {
		return err
	}
	if !(o.Gravity < 0) || math.IsInf(o.Gravity, 0) {
		return types.InvalidConfig("trajectory.gravity", "must be negative and finite, got %v", o.Gravity)
	}
	if !utils.Finite(o.LiftBias, o.DegenerateVY) {
		return types.InvalidConfig("trajectory", "lift_bias and degenerate_vy must be finite")
	}
	if !(o.SamplesPerSecond > 0) || o.SamplesPerSecond > maxSamplesPerSecond {
		return types.InvalidConfig("trajectory.samples_per_second", "must be within (0,%v], got %v", maxSamplesPerSecond, o.SamplesPerSecond)
	}
	if o.MinSamples < 1 {
		return types.InvalidConfig("trajectory.min_samples", "must be at least 1, got %d", o.MinSamples)
	}
	if !utils.Finite(o.StartClearance, o.TailSeconds, o.RestDrop) || o.StartClearance < 0 || o.TailSeconds < 0 || o.RestDrop < 0 {
		return types.InvalidConfig("trajectory", "start_clearance, tail_seconds and rest_drop must be finite and not negative")
	}
	if o.Mode != ModeBallistic {
		return nil
	}
	b := o.Ballistic
	if !(b.Timestep >= minBallisticTimestep) || math.IsInf(b.Timestep, 0) {
		return types.InvalidConfig("trajectory.ballistic.timestep", "must be finite and at least %v, got %v", minBallisticTimestep, b.Timestep)
	}
	if b.Restitution < 0 || b.Restitution > 1 || math.IsNaN(b.Restitution) {
		return types.InvalidConfig("trajectory.ballistic.restitution", "must be within [0,1], got %v", b.Restitution)
	}
	if !utils.Finite(b.DescentThreshold, b.MinSeparation, b.HorizonSeconds) || b.DescentThreshold < 0 || b.MinSeparation < 0 || b.HorizonSeconds < 0 {
		return types.InvalidConfig("trajectory.ballistic", "thresholds must be finite and not negative")
	}
	if v := b.InitialVelocity; !utils.Finite(v.X, v.Y, v.Z) {
		return types.InvalidConfig("trajectory.ballistic.initial_velocity", "must be finite")
	}
	return nil
}
