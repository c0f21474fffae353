package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"melodypath/internal/placement"
	"melodypath/internal/trajectory"
)

type lookupFunc func(key string) (string, bool)

// envReader collects parse failures so one bad variable does not hide the rest.
type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (r *envReader) get(key string) (string, bool) {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *envReader) number(key string, dst *float64) {
	if v, ok := r.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("config: %s=%q: %w", key, v, err))
			return
		}
		*dst = f
	}
}

// scaled reads a value given in another unit, such as milliseconds.
func (r *envReader) scaled(key string, factor float64, dst *float64) {
	if _, ok := r.get(key); !ok {
		return
	}
	f := *dst / factor
	r.number(key, &f)
	*dst = f * factor
}

func (r *envReader) integer(key string, dst *int) {
	if v, ok := r.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("config: %s=%q: %w", key, v, err))
			return
		}
		*dst = n
	}
}

func (r *envReader) boolean(key string, dst *bool) {
	if v, ok := r.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("config: %s=%q: %w", key, v, err))
			return
		}
		*dst = b
	}
}

func (c *Config) overlayEnv(lookup lookupFunc) error {
	r := &envReader{lookup: lookup}

	r.scaled("TIME_BIN_MS", 0.001, &c.Reduce.TimeBinSeconds)
	r.scaled("MIN_NOTE_MS", 0.001, &c.Post.MinDurationSeconds)
	r.number("MAX_NOTE_SEC", &c.Post.MaxDurationSeconds)
	r.integer("TRANSPOSE_SEMITONES", &c.Post.TransposeSemitones)
	r.integer("VELOCITY_MIN", &c.Post.VelocityMin)
	r.integer("VELOCITY_MAX", &c.Post.VelocityMax)
	r.boolean("ENABLE_QUANTIZE", &c.Post.Quantize.Enabled)
	r.integer("QUANTIZE_SUBDIVISION", &c.Post.Quantize.Subdivision)
	r.number("QUANTIZE_STRENGTH", &c.Post.Quantize.Strength)
	r.boolean("QUANTIZE_END", &c.Post.Quantize.End)
	r.boolean("CHOOSE_HOOK", &c.ChooseHook)
	r.number("HOOK_SECONDS", &c.Hook.TargetSeconds)
	r.number("HOOK_STEP_SECONDS", &c.Hook.StepSeconds)
	if v, ok := r.get("PLACEMENT_POLICY"); ok {
		c.Placement.Policy = placement.Kind(strings.ToLower(v))
	}
	r.number("GRAVITY", &c.Trajectory.Gravity)
	r.number("LIFT_BIAS", &c.Trajectory.LiftBias)
	r.number("SAMPLES_PER_SECOND", &c.Trajectory.SamplesPerSecond)
	if v, ok := r.get("TRAJECTORY_MODE"); ok {
		c.Trajectory.Mode = trajectory.Mode(strings.ToLower(v))
	}
	r.number("RESTITUTION", &c.Trajectory.Ballistic.Restitution)
	r.number("TAIL_SECONDS", &c.Trajectory.TailSeconds)
	r.str("DIFFICULTY", &c.Difficulty)
	r.integer("MELODY_TRACK", &c.MelodyTrack)

	c.overlayServiceEnv(r)
	return errors.Join(r.errs...)
}

func (c *Config) overlayServiceEnv(r *envReader) {
	s := &c.Service
	if v, ok := r.get("PORT"); ok {
		if strings.HasPrefix(v, ":") {
			s.Port = v
		} else {
			s.Port = ":" + v
		}
	}
	r.str("APP_ENV", &s.Env)
	r.str("CACHE_DIR", &s.CacheDir)
	r.str("OUT_DIR", &s.OutDir)
	r.str("RUNSTORE_PATH", &s.RunstorePath)
	r.str("RUNSTORE_PG_DSN", &s.RunstorePGDSN)
	s.Artifact = loadArtifactConfig(r, s.Env, s.Artifact)
}

func loadArtifactConfig(r *envReader, env string, base ArtifactConfig) ArtifactConfig {
	val := func(key string) string {
		v, _ := r.get(key)
		return v
	}
	out := base
	out.Endpoint = firstNonEmpty(resolveArtifactEndpoint(r, env), base.Endpoint)
	out.Enabled = base.Enabled || out.Endpoint != ""
	out.Region = firstNonEmpty(val("ARTIFACT_S3_REGION"), base.Region, "us-east-1")
	out.AccessKey = firstNonEmpty(val("ARTIFACT_S3_ACCESS_KEY"), val("MINIO_ROOT_USER"), base.AccessKey)
	out.SecretKey = firstNonEmpty(val("ARTIFACT_S3_SECRET_KEY"), val("MINIO_ROOT_PASSWORD"), base.SecretKey)
	out.Bucket = firstNonEmpty(val("ARTIFACT_S3_BUCKET"), base.Bucket)
	out.UseSSL = resolveArtifactUseSSL(r, env, base.UseSSL)
	return out
}

// resolveArtifactEndpoint only uses the local MinIO default when some
// artifact variable is present; a bare local run writes to disk only.
func resolveArtifactEndpoint(r *envReader, env string) string {
	if v, ok := r.get("ARTIFACT_S3_ENDPOINT"); ok {
		return v
	}
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		if v, ok := r.get("ARTIFACT_MINIO_ENDPOINT"); ok {
			return v
		}
		if _, ok := r.get("MINIO_ROOT_USER"); ok {
			return "minio:9000"
		}
	}
	return ""
}

// resolveArtifactUseSSL prefers ARTIFACT_S3_USE_SSL. Without it a local run
// talks plain HTTP to MinIO and anything else keeps the configured value.
func resolveArtifactUseSSL(r *envReader, env string, base bool) bool {
	if raw, ok := r.get("ARTIFACT_S3_USE_SSL"); ok {
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
	}
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	return base
}
