package types

import (
	"errors"
	"fmt"
	"sort"
)

// AnomalyKind classifies a non-fatal condition found while processing.
type AnomalyKind string

const (
	AnomalyEmptyInput        AnomalyKind = "empty_input"
	AnomalyDegenerateSegment AnomalyKind = "degenerate_segment"
	AnomalyUnplaceableAnchor AnomalyKind = "unplaceable_anchor"
	AnomalyInvalidNote       AnomalyKind = "invalid_note"
	AnomalyOverlapDropped    AnomalyKind = "overlap_dropped"
	AnomalyQuantizeCollapsed AnomalyKind = "quantize_collapsed"
)

type Anomaly struct {
	Kind    AnomalyKind `json:"kind"`
	Index   int         `json:"index"`
	Time    float64     `json:"time"`
	Message string      `json:"message,omitempty"`
}

// Diagnostics travels next to every stage result. Empty is a flag, not an error.
type Diagnostics struct {
	Empty     bool      `json:"empty,omitempty"`
	Anomalies []Anomaly `json:"anomalies,omitempty"`
}

func (d *Diagnostics) Add(kind AnomalyKind, index int, at float64, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	d.Anomalies = append(d.Anomalies, Anomaly{Kind: kind, Index: index, Time: at, Message: msg})
}

func (d *Diagnostics) MarkEmpty() {
	if d.Empty {
		return
	}
	d.Empty = true
	d.Add(AnomalyEmptyInput, -1, 0, "no notes")
}

func (d *Diagnostics) Merge(other Diagnostics) {
	if other.Empty {
		d.MarkEmpty()
	}
	for _, a := range other.Anomalies {
		if a.Kind == AnomalyEmptyInput {
			continue
		}
		d.Anomalies = append(d.Anomalies, a)
	}
}

func (d Diagnostics) Count(kind AnomalyKind) int {
	n := 0
	for _, a := range d.Anomalies {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// Counts returns the number of anomalies per kind.
func (d Diagnostics) Counts() map[AnomalyKind]int {
	out := make(map[AnomalyKind]int)
	for _, a := range d.Anomalies {
		out[a.Kind]++
	}
	return out
}

// Kinds lists the kinds present, sorted.
func (d Diagnostics) Kinds() []AnomalyKind {
	counts := d.Counts()
	out := make([]AnomalyKind, 0, len(counts))
	for k := range counts {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ErrInvalidConfiguration is the only failure the processing stages return.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// ConfigError names the offending setting. It matches ErrInvalidConfiguration with errors.Is.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfiguration }

func InvalidConfig(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
