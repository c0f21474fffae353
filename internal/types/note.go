package types

import (
	"fmt"
	"math"
)

// RawNote is one event from a transcription or a decoded MIDI track.
// Times are in seconds from the start of the recording.
type RawNote struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Pitch    int     `json:"pitch"`
	Velocity int     `json:"velocity"`
	Channel  int     `json:"channel,omitempty"`
	Track    int     `json:"track,omitempty"`
}

func (n RawNote) Duration() float64 { return n.End - n.Start }

// Validate reports why a note cannot enter the pipeline, or nil.
func (n RawNote) Validate() error {
	switch {
	case math.IsInf(n.Start, 0) || math.IsInf(n.End, 0):
		return fmt.Errorf("start %v or end %v is not finite", n.Start, n.End)
	case n.Start < 0:
		return fmt.Errorf("start %.6f is negative", n.Start)
	case !(n.End > n.Start):
		return fmt.Errorf("end %.6f is not after start %.6f", n.End, n.Start)
	case n.Pitch < 0 || n.Pitch > 127:
		return fmt.Errorf("pitch %d outside 0..127", n.Pitch)
	case n.Velocity < 0 || n.Velocity > 127:
		return fmt.Errorf("velocity %d outside 0..127", n.Velocity)
	}
	return nil
}

// CleanNote is a post-processed, monophonic note.
type CleanNote struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Pitch    int     `json:"pitch"`
	Velocity int     `json:"velocity"`
}

func (n CleanNote) Duration() float64 { return n.End - n.Start }

// HookWindow is the chosen excerpt of a melody.
type HookWindow struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Score float64 `json:"score"`
}

func (w HookWindow) Duration() float64 { return w.End - w.Start }

// Span returns the end time of the latest note.
func Span(notes []CleanNote) float64 {
	span := 0.0
	for _, n := range notes {
		if n.End > span {
			span = n.End
		}
	}
	return span
}
