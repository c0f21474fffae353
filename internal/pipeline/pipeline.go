// Package pipeline runs a decoded track through every stage, from melody
// reduction to the sampled trajectory.
package pipeline

import (
	"fmt"
	"log"
	"strings"

	"melodypath/internal/config"
	"melodypath/internal/hook"
	"melodypath/internal/melody"
	"melodypath/internal/placement"
	"melodypath/internal/source"
	"melodypath/internal/trajectory"
	"melodypath/internal/types"
)

type Stats struct {
	Reduce melody.ReduceStats `json:"reduce"`
	Post   melody.PostStats   `json:"post"`
	// HookWindows counts the windows that were scored, when hook selection ran.
	HookWindows int `json:"hook_windows,omitempty"`
}

type Result struct {
	TrackID     string            `json:"track_id"`
	Fingerprint string            `json:"fingerprint"`
	TempoBPM    float64           `json:"tempo_bpm"`
	Policy      placement.Kind    `json:"policy"`
	Mode        trajectory.Mode   `json:"mode"`
	CleanNotes  []types.CleanNote `json:"clean_notes"`
	Hook        *types.HookWindow `json:"hook,omitempty"`
	Anchors     []types.Anchor    `json:"anchors"`
	Connectors  []types.Connector `json:"connectors"`
	Keyframes   []types.Keyframe  `json:"keyframes"`
	SpanSeconds float64           `json:"span_seconds"`
	Stats       Stats             `json:"stats"`
	Diagnostics types.Diagnostics `json:"diagnostics"`
}

// Run is deterministic: the same cfg and track always give the same Result.
// The only error is an invalid configuration, reported before any work.
func Run(cfg config.Config, in source.Track) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	policy, err := placement.New(cfg.Placement)
	if err != nil {
		return Result{}, err
	}
	solver, err := trajectory.New(cfg.Trajectory)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		TrackID:     in.ID,
		Fingerprint: Fingerprint(cfg, in),
		TempoBPM:    in.TempoBPM,
		Policy:      policy.Name(),
		Mode:        solver.Mode(),
	}
	track := in.Melody(cfg.MelodyTrack)

	red, err := melody.Reduce(track.Notes, cfg.Reduce)
	if err != nil {
		return Result{}, err
	}
	res.Stats.Reduce = red.Stats
	res.Diagnostics.Merge(red.Diagnostics)

	post, err := melody.PostProcess(red.Notes, track.TempoBPM, cfg.Post)
	if err != nil {
		return Result{}, err
	}
	res.Stats.Post = post.Stats
	res.Diagnostics.Merge(post.Diagnostics)
	notes := post.Notes

	if cfg.ChooseHook {
		h, err := hook.Select(notes, cfg.Hook)
		if err != nil {
			return Result{}, err
		}
		window := h.Window
		res.Hook = &window
		res.Stats.HookWindows = h.Scored
		notes = h.Notes
	}
	res.CleanNotes = notes

	sol := solver.Solve(placement.Place(policy, notes, cfg.Placement.Hints))
	res.Anchors = sol.Anchors
	res.Keyframes = sol.Keyframes
	res.SpanSeconds = sol.SpanSeconds
	res.Connectors = placement.Connectors(sol.Anchors)
	res.Diagnostics.Merge(sol.Diagnostics)

	logSummary(res)
	return res, nil
}

func logSummary(res Result) {
	log.Printf("pipeline: track=%s notes=%d->%d anchors=%d keyframes=%d span=%.2fs policy=%s mode=%s",
		res.TrackID, res.Stats.Reduce.Input, len(res.CleanNotes), len(res.Anchors),
		len(res.Keyframes), res.SpanSeconds, res.Policy, res.Mode)
	if res.Hook != nil {
		log.Printf("pipeline: track=%s hook=%.2f-%.2fs score=%.3f", res.TrackID, res.Hook.Start, res.Hook.End, res.Hook.Score)
	}
	counts := res.Diagnostics.Counts()
	if len(counts) == 0 {
		return
	}
	parts := make([]string, 0, len(counts))
	for _, kind := range res.Diagnostics.Kinds() {
		parts = append(parts, fmt.Sprintf("%s=%d", kind, counts[kind]))
	}
	log.Printf("pipeline: track=%s anomalies %s", res.TrackID, strings.Join(parts, " "))
}
