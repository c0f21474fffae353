package runstore

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is the bookkeeping row for one pipeline run. Artifacts live in the
// artifact store under RunID.
type Record struct {
	RunID         string         `json:"run_id"`
	TrackID       string         `json:"track_id"`
	Fingerprint   string         `json:"fingerprint"`
	Policy        string         `json:"policy"`
	Mode          string         `json:"mode"`
	NoteCount     int            `json:"note_count"`
	AnchorCount   int            `json:"anchor_count"`
	KeyframeCount int            `json:"keyframe_count"`
	SpanSeconds   float64        `json:"span_seconds"`
	Anomalies     map[string]int `json:"anomalies,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

func normalizeRecord(r Record) Record {
	r.RunID = strings.TrimSpace(r.RunID)
	r.TrackID = strings.TrimSpace(r.TrackID)
	r.Fingerprint = strings.TrimSpace(r.Fingerprint)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if len(r.Anomalies) == 0 {
		r.Anomalies = nil
	}
	return r
}

type rowScanner interface {
	Scan(dest ...any) error
}
