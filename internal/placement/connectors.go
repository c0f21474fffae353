package placement

import (
	"math"

	"melodypath/internal/types"
)

// Connectors returns a ramp between each pair of consecutive placed anchors.
// Missing anchors are bridged over.
func Connectors(anchors []types.Anchor) []types.Connector {
	var out []types.Connector
	prev := -1
	for i, a := range anchors {
		if a.Missing {
			continue
		}
		if prev >= 0 {
			out = append(out, connect(anchors[prev], a))
		}
		prev = i
	}
	return out
}

func connect(from, to types.Anchor) types.Connector {
	d := to.Position.Sub(from.Position)
	horizontal := math.Hypot(d.X, d.Z)
	return types.Connector{
		From:   from.Index,
		To:     to.Index,
		Start:  from.Position,
		End:    to.Position,
		Length: d.Len(),
		Slope:  math.Atan2(-d.Y, horizontal),
		Yaw:    math.Atan2(d.Z, d.X),
	}
}
