package runstore

import (
	"database/sql"
	"encoding/json"
	"errors"
)

func (s *Store) ensureSchema() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS runs (
  run_id TEXT PRIMARY KEY,
  track_id TEXT NOT NULL DEFAULT '',
  fingerprint TEXT NOT NULL DEFAULT '',
  policy TEXT NOT NULL DEFAULT '',
  mode TEXT NOT NULL DEFAULT '',
  note_count INTEGER NOT NULL DEFAULT 0,
  anchor_count INTEGER NOT NULL DEFAULT 0,
  keyframe_count INTEGER NOT NULL DEFAULT 0,
  span_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
  anomalies JSONB NOT NULL DEFAULT '{}'::jsonb,
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs (fingerprint);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs (created_at DESC);
`)
	})
	return s.schemaErr
}

const selectRun = `SELECT run_id, track_id, fingerprint, policy, mode,
  note_count, anchor_count, keyframe_count, span_seconds, anomalies, created_at
FROM runs`

func scanRecordDB(row rowScanner) (Record, error) {
	var (
		r         Record
		anomalies []byte
	)
	err := row.Scan(
		&r.RunID,
		&r.TrackID,
		&r.Fingerprint,
		&r.Policy,
		&r.Mode,
		&r.NoteCount,
		&r.AnchorCount,
		&r.KeyframeCount,
		&r.SpanSeconds,
		&anomalies,
		&r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	if len(anomalies) > 0 {
		if err := json.Unmarshal(anomalies, &r.Anomalies); err != nil {
			return Record{}, err
		}
	}
	return normalizeRecord(r), nil
}

func (s *Store) getDB(id string) (Record, error) {
	if r, ok := s.recordCache.Get(id); ok {
		return r, nil
	}
	if err := s.ensureSchema(); err != nil {
		return Record{}, err
	}
	r, err := scanRecordDB(s.db.QueryRow(selectRun+` WHERE run_id = $1`, id))
	if err != nil {
		return Record{}, err
	}
	s.recordCache.Add(id, r)
	return r, nil
}

func (s *Store) putDB(r Record) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	anomalies := []byte("{}")
	if len(r.Anomalies) > 0 {
		b, err := json.Marshal(r.Anomalies)
		if err != nil {
			return err
		}
		anomalies = b
	}
	_, err := s.db.Exec(`
INSERT INTO runs (
  run_id, track_id, fingerprint, policy, mode,
  note_count, anchor_count, keyframe_count, span_seconds, anomalies, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (run_id)
DO UPDATE SET track_id=EXCLUDED.track_id,
  fingerprint=EXCLUDED.fingerprint,
  policy=EXCLUDED.policy,
  mode=EXCLUDED.mode,
  note_count=EXCLUDED.note_count,
  anchor_count=EXCLUDED.anchor_count,
  keyframe_count=EXCLUDED.keyframe_count,
  span_seconds=EXCLUDED.span_seconds,
  anomalies=EXCLUDED.anomalies`,
		r.RunID, r.TrackID, r.Fingerprint, r.Policy, r.Mode,
		r.NoteCount, r.AnchorCount, r.KeyframeCount, r.SpanSeconds, anomalies, r.CreatedAt,
	)
	s.recordCache.Remove(r.RunID)
	return err
}

func (s *Store) listDB(limit int) ([]Record, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	query := selectRun + ` ORDER BY created_at DESC, run_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Record, 0, 16)
	for rows.Next() {
		r, err := scanRecordDB(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
