package app

import (
	"fmt"
	"log"
	"path/filepath"

	"melodypath/internal/artifact"
	"melodypath/internal/cache/disk"
	"melodypath/internal/config"
	"melodypath/internal/pipeline"
	"melodypath/internal/runstore"
)

// Stores bundles everything a run needs besides the pipeline itself.
type Stores struct {
	Artifacts artifact.Store
	// Links is set only when artifacts are mirrored to a bucket.
	Links  *artifact.CachedStore
	Runs   *runstore.Store
	Runner *pipeline.CachedRunner
	// OutDir is the absolute local artifact root.
	OutDir string
}

// OpenStores writes artifacts under Service.OutDir and, when useS3 is set
// and the bucket settings are complete, mirrors them to S3.
func OpenStores(cfg config.Config, useS3 bool) (*Stores, error) {
	local, err := artifact.NewLocalStore(cfg.Service.OutDir)
	if err != nil {
		return nil, fmt.Errorf("open output dir: %w", err)
	}
	st := &Stores{Artifacts: local, OutDir: local.Root()}
	log.Printf("artifact store: local root=%s", st.OutDir)

	a := cfg.Service.Artifact
	switch {
	case useS3 && a.CanUseS3():
		s3Store, err := artifact.NewS3Store(artifact.S3Config{
			Endpoint:  a.Endpoint,
			Region:    a.Region,
			AccessKey: a.AccessKey,
			SecretKey: a.SecretKey,
			Bucket:    a.Bucket,
			UseSSL:    a.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize artifact s3 store: %w", err)
		}
		log.Printf("artifact store: s3 bucket=%s endpoint=%s", a.Bucket, a.Endpoint)
		st.Links = artifact.NewCachedStore(s3Store, artifact.DefaultCacheConfig())
		st.Artifacts = artifact.NewTee(local, st.Links)
	case useS3 && a.Enabled:
		log.Printf("artifact store: using local fallback (s3 config incomplete)")
	}

	results, err := disk.New(disk.DefaultConfig(filepath.Join(cfg.Service.CacheDir, "results")))
	if err != nil {
		return nil, fmt.Errorf("open result cache: %w", err)
	}
	st.Runner = pipeline.NewCachedRunner(pipeline.DefaultCacheConfig(), results)
	st.Runs = runstore.Open(cfg.Service.RunstorePGDSN, cfg.Service.RunstorePath)
	log.Printf("run store: %s", st.Runs.Backend())
	return st, nil
}

func (s *Stores) Close() error {
	return s.Runs.Close()
}
