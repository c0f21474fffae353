package types

import "math"

// Vec3 is a point or a velocity in world units. Y is up.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(k float64) Vec3 { return Vec3{v.X * k, v.Y * k, v.Z * k} }

func (v Vec3) Len() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// HorizontalDistance ignores the vertical axis.
func (v Vec3) HorizontalDistance(o Vec3) float64 {
	dx := v.X - o.X
	dz := v.Z - o.Z
	return math.Sqrt(dx*dx + dz*dz)
}

// Anchor is a point the trajectory must visit at Time.
type Anchor struct {
	Index    int     `json:"index"`
	Time     float64 `json:"time"`
	Position Vec3    `json:"position"`
	Size     float64 `json:"size"`
	Category string  `json:"category"`
	Color    string  `json:"color,omitempty"`
	Pitch    int     `json:"pitch"`
	Velocity int     `json:"velocity"`
	Duration float64 `json:"duration"`
	// Missing is set when no reachable position existed for the note.
	Missing bool `json:"missing,omitempty"`
}

// Keyframe is one sample of the motion path.
type Keyframe struct {
	Time     float64 `json:"time"`
	Position Vec3    `json:"position"`
	Velocity Vec3    `json:"velocity"`
}

// Connector is a straight ramp between two consecutive anchors.
type Connector struct {
	From   int     `json:"from"`
	To     int     `json:"to"`
	Start  Vec3    `json:"start"`
	End    Vec3    `json:"end"`
	Length float64 `json:"length"`
	// Slope is the descent angle in radians, positive when going down.
	Slope float64 `json:"slope"`
	// Yaw is the heading in the horizontal plane, radians from +X towards +Z.
	Yaw float64 `json:"yaw"`
}
