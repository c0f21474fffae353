package placement

import (
	"math"

	"melodypath/internal/types"
)

// Zigzag alternates left and right of the center line while descending.
// Even indices go left.
type Zigzag struct {
	Width           float64 `json:"width" yaml:"width"`
	StartHeight     float64 `json:"start_height" yaml:"start_height"`
	VerticalSpacing float64 `json:"vertical_spacing" yaml:"vertical_spacing"`
	DepthBase       float64 `json:"depth_base" yaml:"depth_base"`
	DepthWobble     float64 `json:"depth_wobble" yaml:"depth_wobble"`
}

func (Zigzag) Name() Kind { return KindZigzag }

func (z Zigzag) Position(n NoteContext) types.Vec3 {
	side := -1.0
	if n.Index%2 == 1 {
		side = 1
	}
	i := float64(n.Index)
	return types.Vec3{
		X: side * z.Width,
		Y: z.StartHeight - i*z.VerticalSpacing,
		Z: z.DepthBase + math.Sin(i*0.3)*z.DepthWobble,
	}
}

// Stack is a staircase: a fixed step per note on every axis.
type Stack struct {
	StartX       float64 `json:"start_x" yaml:"start_x"`
	StartZ       float64 `json:"start_z" yaml:"start_z"`
	StartHeight  float64 `json:"start_height" yaml:"start_height"`
	VerticalDrop float64 `json:"vertical_drop" yaml:"vertical_drop"`
	LateralStep  float64 `json:"lateral_step" yaml:"lateral_step"`
	DepthStep    float64 `json:"depth_step" yaml:"depth_step"`
}

func (Stack) Name() Kind { return KindStack }

func (s Stack) Position(n NoteContext) types.Vec3 {
	i := float64(n.Index)
	return types.Vec3{
		X: s.StartX + i*s.LateralStep,
		Y: s.StartHeight - i*s.VerticalDrop,
		Z: s.StartZ + i*s.DepthStep,
	}
}

// Spiral winds Turns times around a vertical axis over the whole melody.
type Spiral struct {
	CenterX         float64 `json:"center_x" yaml:"center_x"`
	CenterZ         float64 `json:"center_z" yaml:"center_z"`
	Radius          float64 `json:"radius" yaml:"radius"`
	Turns           float64 `json:"turns" yaml:"turns"`
	StartHeight     float64 `json:"start_height" yaml:"start_height"`
	VerticalSpacing float64 `json:"vertical_spacing" yaml:"vertical_spacing"`
	// PitchOffset adds this many radians per semitone away from middle C.
	PitchOffset float64 `json:"pitch_offset" yaml:"pitch_offset"`
}

func (Spiral) Name() Kind { return KindSpiral }

func (s Spiral) Position(n NoteContext) types.Vec3 {
	frac := 0.0
	if n.Total > 0 {
		frac = float64(n.Index) / float64(n.Total)
	}
	theta := frac*s.Turns*2*math.Pi + s.PitchOffset*float64(n.Pitch-60)
	return types.Vec3{
		X: s.CenterX + s.Radius*math.Cos(theta),
		Y: s.StartHeight - float64(n.Index)*s.VerticalSpacing,
		Z: s.CenterZ + s.Radius*math.Sin(theta),
	}
}

// Wall lays anchors on a plane tilted AngleDegrees from horizontal, receding
// into -Z, with a sideways sine wobble.
type Wall struct {
	AngleDegrees    float64 `json:"angle_degrees" yaml:"angle_degrees"`
	Spacing         float64 `json:"spacing" yaml:"spacing"`
	ZigzagAmplitude float64 `json:"zigzag_amplitude" yaml:"zigzag_amplitude"`
	StartHeight     float64 `json:"start_height" yaml:"start_height"`
}

func (Wall) Name() Kind { return KindWall }

func (w Wall) Position(n NoteContext) types.Vec3 {
	angle := w.AngleDegrees * math.Pi / 180
	i := float64(n.Index)
	d := i * w.Spacing
	return types.Vec3{
		X: math.Sin(i*0.5) * w.ZigzagAmplitude,
		Y: w.StartHeight - d*math.Sin(angle),
		Z: -d * math.Cos(angle),
	}
}
