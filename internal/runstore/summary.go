package runstore

import (
	"time"

	"melodypath/internal/artifact"
)

// FromSummary builds the record stored for a finished run.
func FromSummary(sum artifact.Summary, at time.Time) Record {
	r := Record{
		RunID:         sum.RunID,
		TrackID:       sum.TrackID,
		Fingerprint:   sum.Fingerprint,
		Policy:        string(sum.Policy),
		Mode:          string(sum.Mode),
		NoteCount:     sum.Notes,
		AnchorCount:   sum.Anchors,
		KeyframeCount: sum.Keyframes,
		SpanSeconds:   sum.SpanSeconds,
		CreatedAt:     at.UTC(),
	}
	if len(sum.AnomalyCounts) > 0 {
		r.Anomalies = make(map[string]int, len(sum.AnomalyCounts))
		for k, n := range sum.AnomalyCounts {
			r.Anomalies[string(k)] = n
		}
	}
	return r
}
