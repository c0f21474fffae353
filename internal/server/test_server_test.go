package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"melodypath/internal/artifact"
	"melodypath/internal/config"
	"melodypath/internal/runstore"
	"melodypath/internal/types"
)

const onsetTrack = `{"id":"clap","tempo_bpm":100,"onsets":[0,0.5,1.0,{"t":1.5,"strength":0.5},2.0,2.5]}`

type fakeLinks struct{}

func (fakeLinks) URL(_ context.Context, runID, name string, _ time.Duration) (string, error) {
	return "https://cdn.example/" + runID + "/" + name, nil
}

func newTestHandler(t *testing.T) (*Handler, artifact.Store) {
	t.Helper()
	store := artifact.NewMemoryStore()
	h := NewHandler(Deps{
		Config:    config.Default(),
		Artifacts: store,
		Runs:      runstore.New(filepath.Join(t.TempDir(), "runs.json")),
	})
	return h, store
}

func createRun(t *testing.T, srv *httptest.Server, query string) artifact.Summary {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/runs"+query, "application/json", strings.NewReader(onsetTrack))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var sum artifact.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sum))
	require.Equal(t, sum.RunID, resp.Header.Get("X-Run-Id"))
	return sum
}

func TestHealthz(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok","runstore":"file"}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/runs", nil)
	req.Header.Set("Origin", "http://viewer.local")
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://viewer.local", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCreateAndFetchRun(t *testing.T) {
	h, store := newTestHandler(t)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	sum := createRun(t, srv, "?policy=spiral")
	require.Equal(t, "clap", sum.TrackID)
	require.Equal(t, 6, sum.Notes)
	require.Equal(t, 6, sum.Anchors)
	require.EqualValues(t, "spiral", sum.Policy)

	names, err := store.List(context.Background(), sum.RunID)
	require.NoError(t, err)
	require.ElementsMatch(t, artifact.Files, names)

	resp, err := http.Get(srv.URL + "/api/runs/" + sum.RunID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		Run       runstore.Record `json:"run"`
		Artifacts []string        `json:"artifacts"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, sum.Fingerprint, got.Run.Fingerprint)
	require.Equal(t, "spiral", got.Run.Policy)
	require.Len(t, got.Artifacts, len(artifact.Files))

	resp2, err := http.Get(srv.URL + "/api/runs/" + sum.RunID + "/" + artifact.AnchorsFile)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	var anchors []types.Anchor
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&anchors))
	require.Len(t, anchors, 6)

	resp3, err := http.Get(srv.URL + "/api/runs")
	require.NoError(t, err)
	defer resp3.Body.Close()
	var list struct {
		Runs []runstore.Record `json:"runs"`
	}
	require.NoError(t, json.NewDecoder(resp3.Body).Decode(&list))
	require.Len(t, list.Runs, 1)
}

func TestCreateRunRejectsBadInput(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.Router()
	cases := map[string]struct {
		query string
		body  string
	}{
		"unknown preset": {"?preset=nightmare", onsetTrack},
		"unknown mode":   {"?mode=spline", onsetTrack},
		"bad track":      {"?track=x", onsetTrack},
		"garbage body":   {"", "not json"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/runs"+tc.query, strings.NewReader(tc.body))
			router.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestMissingRunAndArtifact(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.Router()
	for _, path := range []string{"/api/runs/nope", "/api/runs/nope/anchors.json"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestArtifactRedirectsWhenPresigned(t *testing.T) {
	h, _ := newTestHandler(t)
	h.deps.Links = fakeLinks{}
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/r1/keyframes.json", nil))
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	require.Equal(t, "https://cdn.example/r1/keyframes.json", rec.Header().Get("Location"))
}

func TestKeyframeStream(t *testing.T) {
	h, store := newTestHandler(t)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()
	sum := createRun(t, srv, "")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/keyframes?batch=7&run_id=" + sum.RunID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var (
		frames []types.Keyframe
		kinds []string
	)
	for {
		var msg keyframeWSOutbound
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		kinds = append(kinds, msg.Type)
		require.Equal(t, sum.Keyframes, msg.Total)
		if msg.Type == "keyframes" {
			require.Equal(t, len(frames), msg.Offset)
			require.LessOrEqual(t, len(msg.Keyframes), 7)
			frames = append(frames, msg.Keyframes...)
		}
		if msg.Type == "done" {
			break
		}
	}
	require.Equal(t, "start", kinds[0])
	require.Len(t, frames, sum.Keyframes)

	raw, err := store.Get(context.Background(), sum.RunID, artifact.KeyframesFile)
	require.NoError(t, err)
	var stored []types.Keyframe
	require.NoError(t, json.Unmarshal(raw, &stored))
	require.Equal(t, stored, frames)

	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close, got %v", err)
	}
}

func TestKeyframeStreamUnknownRun(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/keyframes?run_id=missing"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
