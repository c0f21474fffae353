package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"melodypath/internal/app"
	"melodypath/internal/artifact"
	"melodypath/internal/config"
	"melodypath/internal/pipeline"
	"melodypath/internal/runstore"
	"melodypath/internal/safeio"
	"melodypath/internal/source"
)

type options struct {
	in, outDir, cfgPath  string
	preset, policy, mode string
	parallel             int
	upload               bool
}

func main() {
	var o options
	flag.StringVar(&o.in, "in", "", "input .mid/.midi/.json file or a directory of them")
	flag.StringVar(&o.outDir, "out", "", "output directory (defaults to $OUT_DIR or ./out)")
	flag.StringVar(&o.cfgPath, "config", "", "YAML config file (defaults to $MELODYPATH_CONFIG)")
	flag.StringVar(&o.preset, "preset", "", "difficulty preset: easy, medium, hard")
	flag.StringVar(&o.policy, "policy", "", "placement policy: zigzag, stack, spiral, wall")
	flag.StringVar(&o.mode, "mode", "", "trajectory mode: arc, ballistic")
	flag.IntVar(&o.parallel, "parallel", runtime.NumCPU(), "tracks processed concurrently")
	flag.BoolVar(&o.upload, "upload", false, "mirror artifacts to the configured S3 bucket")
	flag.Parse()
	if o.in == "" {
		log.Fatal("--in is required")
	}
	if err := run(o); err != nil {
		log.Fatal(err)
	}
}

func run(o options) error {
	cfg, err := config.Load(o.cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Override(o.preset, o.policy, o.mode); err != nil {
		return fmt.Errorf("flags: %w", err)
	}
	if o.outDir != "" {
		cfg.Service.OutDir = o.outDir
	}

	tracks, err := loadTracks(o.in, cfg.MelodyTrack)
	if err != nil {
		return err
	}
	log.Printf("loaded %d track(s) from %s", len(tracks), o.in)

	stores, err := app.OpenStores(cfg, o.upload)
	if err != nil {
		return err
	}
	defer stores.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := pipeline.RunBatch(ctx, stores.Runner, cfg, tracks, o.parallel)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	failed := 0
	for _, res := range results {
		if err := record(ctx, stores, res); err != nil {
			log.Printf("%s: %v", res.TrackID, err)
			failed++
		}
	}
	st := stores.Runner.Stats()
	log.Printf("done: %d run(s), cache memory=%d disk=%d miss=%d, output %s",
		len(results)-failed, st.MemoryHits, st.DiskHits, st.Misses, stores.OutDir)
	if failed > 0 {
		return fmt.Errorf("%d of %d run(s) could not be stored", failed, len(results))
	}
	return nil
}

// loadTracks reads one file or every supported file in a directory and
// reduces each to its melody track.
func loadTracks(in string, melodyTrack int) ([]source.Track, error) {
	info, err := os.Stat(in)
	if err != nil {
		return nil, err
	}
	dir, names := filepath.Dir(in), []string{filepath.Base(in)}
	if info.IsDir() {
		dir = in
	}
	fsys, err := safeio.NewSafeFS(dir)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		if names, err = source.List(fsys, "."); err != nil {
			return nil, err
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("no .mid, .midi or .json files in %s", in)
		}
	}
	tracks := make([]source.Track, 0, len(names))
	for _, name := range names {
		tr, err := source.Load(fsys, name, source.DefaultSMFOptions())
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		tracks = append(tracks, tr.Melody(melodyTrack))
	}
	return tracks, nil
}

func record(ctx context.Context, stores *app.Stores, res pipeline.Result) error {
	runID := runstore.NewRunID()
	sum, err := artifact.WriteResult(ctx, stores.Artifacts, runID, res)
	if err != nil {
		return err
	}
	if _, err := stores.Runs.Put(runstore.FromSummary(sum, time.Now())); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	log.Printf("%s: run=%s notes=%d anchors=%d keyframes=%d span=%.2fs anomalies=%d",
		res.TrackID, runID, sum.Notes, sum.Anchors, sum.Keyframes, sum.SpanSeconds, len(res.Diagnostics.Anomalies))
	return nil
}
