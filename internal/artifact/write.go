package artifact

import (
	"context"
	"encoding/json"
	"fmt"

	"melodypath/internal/pipeline"
	"melodypath/internal/placement"
	"melodypath/internal/trajectory"
	"melodypath/internal/types"
)

const (
	NotesFile      = "notes.json"
	AnchorsFile    = "anchors.json"
	ConnectorsFile = "connectors.json"
	KeyframesFile  = "keyframes.json"
	SummaryFile    = "summary.json"
)

// Files lists what WriteResult produces, in write order.
var Files = []string{NotesFile, AnchorsFile, ConnectorsFile, KeyframesFile, SummaryFile}

// Summary is the small, human-readable description of a run.
type Summary struct {
	RunID         string                    `json:"run_id"`
	TrackID       string                    `json:"track_id"`
	Fingerprint   string                    `json:"fingerprint"`
	TempoBPM      float64                   `json:"tempo_bpm"`
	Policy        placement.Kind            `json:"policy"`
	Mode          trajectory.Mode           `json:"mode"`
	Notes         int                       `json:"notes"`
	Anchors       int                       `json:"anchors"`
	Missing       int                       `json:"missing_anchors,omitempty"`
	Keyframes     int                       `json:"keyframes"`
	SpanSeconds   float64                   `json:"span_seconds"`
	Hook          *types.HookWindow         `json:"hook,omitempty"`
	Empty         bool                      `json:"empty,omitempty"`
	AnomalyCounts map[types.AnomalyKind]int `json:"anomaly_counts,omitempty"`
	Stats         pipeline.Stats            `json:"stats"`
	Diagnostics   types.Diagnostics         `json:"diagnostics"`
}

func Summarize(runID string, res pipeline.Result) Summary {
	missing := 0
	for _, a := range res.Anchors {
		if a.Missing {
			missing++
		}
	}
	s := Summary{
		RunID:       runID,
		TrackID:     res.TrackID,
		Fingerprint: res.Fingerprint,
		TempoBPM:    res.TempoBPM,
		Policy:      res.Policy,
		Mode:        res.Mode,
		Notes:       len(res.CleanNotes),
		Anchors:     len(res.Anchors),
		Missing:     missing,
		Keyframes:   len(res.Keyframes),
		SpanSeconds: res.SpanSeconds,
		Hook:        res.Hook,
		Empty:       res.Diagnostics.Empty,
		Stats:       res.Stats,
		Diagnostics: res.Diagnostics,
	}
	if counts := res.Diagnostics.Counts(); len(counts) > 0 {
		s.AnomalyCounts = counts
	}
	return s
}

// WriteResult stores every artifact of one run and returns the summary.
func WriteResult(ctx context.Context, store Store, runID string, res pipeline.Result) (Summary, error) {
	sum := Summarize(runID, res)
	docs := map[string]any{
		NotesFile:      nonNil(res.CleanNotes),
		AnchorsFile:    nonNil(res.Anchors),
		ConnectorsFile: nonNil(res.Connectors),
		KeyframesFile:  nonNil(res.Keyframes),
		SummaryFile:    sum,
	}
	for _, name := range Files {
		raw, err := json.MarshalIndent(docs[name], "", "  ")
		if err != nil {
			return sum, fmt.Errorf("artifact: encode %s: %w", name, err)
		}
		if err := store.Put(ctx, runID, name, raw); err != nil {
			return sum, fmt.Errorf("artifact: put %s/%s: %w", runID, name, err)
		}
	}
	return sum, nil
}

// nonNil keeps empty outputs encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
