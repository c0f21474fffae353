// Package config assembles the options of every pipeline stage plus the
// service settings used by the binaries.
package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"melodypath/internal/hook"
	"melodypath/internal/melody"
	"melodypath/internal/placement"
	"melodypath/internal/trajectory"
)

type Config struct {
	Reduce     melody.ReduceOptions `json:"reduce" yaml:"reduce"`
	Post       melody.PostOptions   `json:"post" yaml:"post"`
	ChooseHook bool                 `json:"choose_hook" yaml:"choose_hook"`
	Hook       hook.Options         `json:"hook" yaml:"hook"`
	Placement  placement.Options    `json:"placement" yaml:"placement"`
	Trajectory trajectory.Options   `json:"trajectory" yaml:"trajectory"`
	// Difficulty names the preset applied last; empty means none.
	Difficulty string `json:"difficulty,omitempty" yaml:"difficulty"`
	// MelodyTrack selects a source track by index; negative picks automatically.
	MelodyTrack int `json:"melody_track" yaml:"melody_track"`

	Service Service `json:"-" yaml:"service"`
}

// Service holds settings that never affect pipeline output.
type Service struct {
	Port          string         `yaml:"port"`
	Env           string         `yaml:"env"`
	CacheDir      string         `yaml:"cache_dir"`
	OutDir        string         `yaml:"out_dir"`
	RunstorePath  string         `yaml:"runstore_path"`
	RunstorePGDSN string         `yaml:"runstore_pg_dsn"`
	Artifact      ArtifactConfig `yaml:"artifact"`
}

type ArtifactConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// CanUseS3 reports whether enough is configured to talk to a bucket.
func (a ArtifactConfig) CanUseS3() bool {
	return a.Enabled &&
		strings.TrimSpace(a.Endpoint) != "" &&
		strings.TrimSpace(a.AccessKey) != "" &&
		strings.TrimSpace(a.SecretKey) != "" &&
		strings.TrimSpace(a.Bucket) != ""
}

func Default() Config {
	return Config{
		Reduce:      melody.DefaultReduceOptions(),
		Post:        melody.DefaultPostOptions(),
		Hook:        hook.DefaultOptions(),
		Placement:   placement.DefaultOptions(),
		Trajectory:  trajectory.DefaultOptions(),
		MelodyTrack: -1,
		Service: Service{
			Port:         ":8081",
			Env:          "local",
			CacheDir:     ".cache/melodypath",
			OutDir:       "out",
			RunstorePath: "tmp/runs.json",
			Artifact: ArtifactConfig{
				Region: "us-east-1",
				Bucket: "melodypath-artifacts",
				UseSSL: true,
			},
		},
	}
}

// Load builds a Config from defaults, an optional YAML file, the process
// environment (including a .env file) and finally the difficulty preset.
// path may be empty, in which case MELODYPATH_CONFIG is consulted.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if p := firstNonEmpty(strings.TrimSpace(path), strings.TrimSpace(os.Getenv("MELODYPATH_CONFIG"))); p != "" {
		if err := cfg.overlayFile(p); err != nil {
			return cfg, err
		}
	}
	if err := cfg.overlayEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if cfg.Difficulty != "" {
		if err := cfg.ApplyPreset(cfg.Difficulty); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid stage option at once.
func (c Config) Validate() error {
	var errs []error
	for _, v := range []interface{ Validate() error }{c.Reduce, c.Post, c.Hook, c.Placement, c.Trajectory} {
		if err := v.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
