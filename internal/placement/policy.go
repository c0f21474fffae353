// Package placement maps notes to anchor positions in 3D space.
//
// A Policy only decides where a note sits. Size, category and color are
// derived the same way for every policy by Place.
package placement

import (
	"fmt"
	"strings"

	"melodypath/internal/common/utils"
	"melodypath/internal/types"
)

type Kind string

const (
	KindZigzag Kind = "zigzag"
	KindStack  Kind = "stack"
	KindSpiral Kind = "spiral"
	KindWall   Kind = "wall"
)

var kinds = []Kind{KindZigzag, KindStack, KindSpiral, KindWall}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range kinds {
		if k == known {
			return k, nil
		}
	}
	return "", types.InvalidConfig("placement.policy", "unknown policy %q (want zigzag, stack, spiral or wall)", s)
}

// NoteContext is what a policy may look at when placing one note.
type NoteContext struct {
	Index    int
	Total    int
	Pitch    int
	Velocity int
	Duration float64
	Time     float64
}

// Policy positions notes. Implementations must be pure.
type Policy interface {
	Name() Kind
	Position(n NoteContext) types.Vec3
}

type Options struct {
	Policy Kind   `json:"policy" yaml:"policy"`
	Zigzag Zigzag `json:"zigzag" yaml:"zigzag"`
	Stack  Stack  `json:"stack" yaml:"stack"`
	Spiral Spiral `json:"spiral" yaml:"spiral"`
	Wall   Wall   `json:"wall" yaml:"wall"`
	Hints  Hints  `json:"hints" yaml:"hints"`
}

func DefaultOptions() Options {
	return Options{
		Policy: KindZigzag,
		Zigzag: Zigzag{Width: 3.5, StartHeight: 25, VerticalSpacing: 2, DepthBase: 1, DepthWobble: 0.5},
		Stack:  Stack{StartHeight: 20, VerticalDrop: 2, DepthStep: 3},
		Spiral: Spiral{CenterZ: 13.5, Radius: 6, Turns: 4, StartHeight: 20, VerticalSpacing: 1},
		Wall:   Wall{AngleDegrees: 35, Spacing: 1.5, ZigzagAmplitude: 2.5, StartHeight: 25},
		Hints:  DefaultHints(),
	}
}

func (o Options) Validate() error {
	if _, err := ParseKind(string(o.Policy)); err != nil {
		return err
	}
	for _, c := range o.fields() {
		if !utils.Finite(c.value) {
			return types.InvalidConfig(c.field, "must be finite, got %v", c.value)
		}
		if c.nonNegative && c.value < 0 {
			return types.InvalidConfig(c.field, "must not be negative, got %v", c.value)
		}
	}
	if o.Wall.AngleDegrees < 0 || o.Wall.AngleDegrees > 90 {
		return types.InvalidConfig("placement.wall.angle_degrees", "must be within [0,90], got %v", o.Wall.AngleDegrees)
	}
	return o.Hints.Validate()
}

type floatField struct {
	field       string
	value       float64
	nonNegative bool
}

func (o Options) fields() []floatField {
	z, st, sp, w := o.Zigzag, o.Stack, o.Spiral, o.Wall
	return []floatField{
		{"placement.zigzag.width", z.Width, true},
		{"placement.zigzag.start_height", z.StartHeight, false},
		{"placement.zigzag.vertical_spacing", z.VerticalSpacing, true},
		{"placement.zigzag.depth_base", z.DepthBase, false},
		{"placement.zigzag.depth_wobble", z.DepthWobble, false},
		{"placement.stack.start_x", st.StartX, false},
		{"placement.stack.start_z", st.StartZ, false},
		{"placement.stack.start_height", st.StartHeight, false},
		{"placement.stack.vertical_drop", st.VerticalDrop, true},
		{"placement.stack.lateral_step", st.LateralStep, false},
		{"placement.stack.depth_step", st.DepthStep, false},
		{"placement.spiral.center_x", sp.CenterX, false},
		{"placement.spiral.center_z", sp.CenterZ, false},
		{"placement.spiral.radius", sp.Radius, true},
		{"placement.spiral.turns", sp.Turns, false},
		{"placement.spiral.start_height", sp.StartHeight, false},
		{"placement.spiral.vertical_spacing", sp.VerticalSpacing, true},
		{"placement.spiral.pitch_offset", sp.PitchOffset, false},
		{"placement.wall.angle_degrees", w.AngleDegrees, true},
		{"placement.wall.spacing", w.Spacing, true},
		{"placement.wall.zigzag_amplitude", w.ZigzagAmplitude, false},
		{"placement.wall.start_height", w.StartHeight, false},
	}
}

// New returns the policy selected by o.Policy.
func New(o Options) (Policy, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	switch o.Policy {
	case KindZigzag:
		return o.Zigzag, nil
	case KindStack:
		return o.Stack, nil
	case KindSpiral:
		return o.Spiral, nil
	case KindWall:
		return o.Wall, nil
	}
	return nil, fmt.Errorf("placement: unhandled policy %q", o.Policy)
}

// Place builds one anchor per note, in order.
func Place(p Policy, notes []types.CleanNote, hints Hints) []types.Anchor {
	if len(notes) == 0 {
		return nil
	}
	pal := newPalette(hints.Palette, notes)
	out := make([]types.Anchor, len(notes))
	for i, n := range notes {
		ctx := NoteContext{
			Index:    i,
			Total:    len(notes),
			Pitch:    n.Pitch,
			Velocity: n.Velocity,
			Duration: n.Duration(),
			Time:     n.Start,
		}
		out[i] = types.Anchor{
			Index:    i,
			Time:     n.Start,
			Position: p.Position(ctx),
			Size:     hints.Size(n.Velocity),
			Category: hints.Category(ctx.Duration, n.Velocity),
			Color:    pal.color(n.Pitch),
			Pitch:    n.Pitch,
			Velocity: n.Velocity,
			Duration: ctx.Duration,
		}
	}
	return out
}
