package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"melodypath/internal/config"
	"melodypath/internal/pipeline"
	"melodypath/internal/source"
	"melodypath/internal/types"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	local, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	return map[string]Store{"memory": NewMemoryStore(), "local": local}
}

func TestStoresRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Put(ctx, "run-1", "/keyframes.json", []byte(`[]`)); err != nil {
				t.Fatalf("put: %v", err)
			}
			if err := s.Put(ctx, "run-1", "debug/segments.json", []byte(`{}`)); err != nil {
				t.Fatalf("put nested: %v", err)
			}
			if err := s.Put(ctx, "run-2", "summary.json", []byte(`{}`)); err != nil {
				t.Fatalf("put other run: %v", err)
			}
			got, err := s.Get(ctx, "run-1", "keyframes.json")
			if err != nil || string(got) != "[]" {
				t.Fatalf("get: %q %v", got, err)
			}
			names, err := s.List(ctx, "run-1")
			require.NoError(t, err)
			require.Equal(t, []string{"debug/segments.json", "keyframes.json"}, names)

			if _, err := s.Get(ctx, "run-1", "absent.json"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			names, err = s.List(ctx, "run-3")
			require.NoError(t, err)
			require.Empty(t, names)
		})
	}
}

func TestStoresRejectBadKeys(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, bad := range [][2]string{{"", "a.json"}, {"run", ""}, {"../run", "a.json"}, {"run", "../../a.json"}} {
				if err := s.Put(ctx, bad[0], bad[1], []byte("x")); err == nil {
					t.Fatalf("expected error for %q/%q", bad[0], bad[1])
				}
			}
		})
	}
}

func TestTeeWritesEveryStore(t *testing.T) {
	ctx := context.Background()
	a, b := NewMemoryStore(), NewMemoryStore()
	tee := NewTee(a, b)
	require.NoError(t, tee.Put(ctx, "r", "x.json", []byte("1")))
	for _, s := range []Store{a, b} {
		got, err := s.Get(ctx, "r", "x.json")
		require.NoError(t, err)
		require.Equal(t, "1", string(got))
	}
}

func TestWriteResult(t *testing.T) {
	ctx := context.Background()
	notes := []types.RawNote{
		{Start: 0, End: 0.3, Pitch: 60, Velocity: 90},
		{Start: 0.5, End: 0.8, Pitch: 64, Velocity: 90},
		{Start: 1.0, End: 1.3, Pitch: 67, Velocity: 90},
	}
	res, err := pipeline.Run(config.Default(), source.Track{ID: "triad", Notes: notes, TempoBPM: 120})
	require.NoError(t, err)

	s := NewMemoryStore()
	sum, err := WriteResult(ctx, s, "run-42", res)
	require.NoError(t, err)
	require.Equal(t, 3, sum.Notes)
	require.Equal(t, 3, sum.Anchors)
	require.Equal(t, len(res.Keyframes), sum.Keyframes)

	names, err := s.List(ctx, "run-42")
	require.NoError(t, err)
	require.ElementsMatch(t, Files, names)

	raw, err := s.Get(ctx, "run-42", AnchorsFile)
	require.NoError(t, err)
	var anchors []types.Anchor
	require.NoError(t, json.Unmarshal(raw, &anchors))
	require.Equal(t, res.Anchors, anchors)

	raw, err = s.Get(ctx, "run-42", SummaryFile)
	require.NoError(t, err)
	var decoded Summary
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "run-42", decoded.RunID)
	require.Equal(t, "triad", decoded.TrackID)
}

func TestWriteResultEncodesEmptyAsArrays(t *testing.T) {
	ctx := context.Background()
	res, err := pipeline.Run(config.Default(), source.Track{ID: "silence"})
	require.NoError(t, err)
	s := NewMemoryStore()
	sum, err := WriteResult(ctx, s, "empty", res)
	require.NoError(t, err)
	require.True(t, sum.Empty)
	raw, err := s.Get(ctx, "empty", KeyframesFile)
	require.NoError(t, err)
	require.JSONEq(t, `[]`, string(raw))
}
