package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"melodypath/internal/placement"
	"melodypath/internal/trajectory"
	"melodypath/internal/types"
)

func mapLookup(m map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestOverlayEnv(t *testing.T) {
	cfg := Default()
	err := cfg.overlayEnv(mapLookup(map[string]string{
		"TIME_BIN_MS":       "30",
		"MIN_NOTE_MS":       "90",
		"MAX_NOTE_SEC":      "0.5",
		"ENABLE_QUANTIZE":   "true",
		"PLACEMENT_POLICY":  "Spiral",
		"TRAJECTORY_MODE":   "BALLISTIC",
		"RESTITUTION":       "0.6",
		"CHOOSE_HOOK":       "1",
		"HOOK_SECONDS":      "6",
		"PORT":              "9000",
		"VELOCITY_MAX":      " ",
		"QUANTIZE_STRENGTH": "",
	}))
	require.NoError(t, err)
	require.InDelta(t, 0.03, cfg.Reduce.TimeBinSeconds, 1e-12)
	require.InDelta(t, 0.09, cfg.Post.MinDurationSeconds, 1e-12)
	require.Equal(t, 0.5, cfg.Post.MaxDurationSeconds)
	require.True(t, cfg.Post.Quantize.Enabled)
	require.Equal(t, placement.KindSpiral, cfg.Placement.Policy)
	require.Equal(t, trajectory.ModeBallistic, cfg.Trajectory.Mode)
	require.Equal(t, 0.6, cfg.Trajectory.Ballistic.Restitution)
	require.True(t, cfg.ChooseHook)
	require.Equal(t, 6.0, cfg.Hook.TargetSeconds)
	require.Equal(t, ":9000", cfg.Service.Port)
	// blank values keep the defaults
	require.Equal(t, 115, cfg.Post.VelocityMax)
	require.Equal(t, 0.7, cfg.Post.Quantize.Strength)
	require.NoError(t, cfg.Validate())
}

func TestOverlayEnvReportsEveryBadValue(t *testing.T) {
	cfg := Default()
	err := cfg.overlayEnv(mapLookup(map[string]string{
		"VELOCITY_MIN": "loud",
		"GRAVITY":      "down",
	}))
	if err == nil {
		t.Fatalf("expected parse errors")
	}
	for _, key := range []string{"VELOCITY_MIN", "GRAVITY"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("error %q does not mention %s", err, key)
		}
	}
	require.Equal(t, 70, cfg.Post.VelocityMin)
}

func TestArtifactConfig(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.overlayEnv(mapLookup(map[string]string{"APP_ENV": "local"})))
	require.False(t, cfg.Service.Artifact.Enabled)

	cfg = Default()
	require.NoError(t, cfg.overlayEnv(mapLookup(map[string]string{
		"APP_ENV":             "local",
		"MINIO_ROOT_USER":     "minio",
		"MINIO_ROOT_PASSWORD": "secret",
	})))
	a := cfg.Service.Artifact
	require.True(t, a.Enabled)
	require.Equal(t, "minio:9000", a.Endpoint)
	require.Equal(t, "minio", a.AccessKey)
	require.False(t, a.UseSSL)
	require.True(t, a.CanUseS3())

	cfg = Default()
	require.NoError(t, cfg.overlayEnv(mapLookup(map[string]string{
		"APP_ENV":              "prod",
		"ARTIFACT_S3_ENDPOINT": "s3.example.com",
		"ARTIFACT_S3_BUCKET":   "paths",
	})))
	a = cfg.Service.Artifact
	require.True(t, a.Enabled)
	require.True(t, a.UseSSL)
	require.Equal(t, "paths", a.Bucket)
	// no credentials yet
	require.False(t, a.CanUseS3())
}

func TestArtifactUseSSLFallsBackToFile(t *testing.T) {
	cfg := Default()
	cfg.Service.Artifact.UseSSL = false
	require.NoError(t, cfg.overlayEnv(mapLookup(map[string]string{
		"APP_ENV":              "prod",
		"ARTIFACT_S3_ENDPOINT": "minio.internal:9000",
	})))
	require.False(t, cfg.Service.Artifact.UseSSL)

	cfg = Default()
	require.NoError(t, cfg.overlayEnv(mapLookup(map[string]string{
		"APP_ENV":             "local",
		"ARTIFACT_S3_USE_SSL": "true",
	})))
	require.True(t, cfg.Service.Artifact.UseSSL)
}

func TestLoadRejectsNonFiniteValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "melodypath.yaml")
	doc := `
placement:
  zigzag:
    start_height: .nan
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load(path)
	if !errors.Is(err, types.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
	require.Contains(t, err.Error(), "placement.zigzag.start_height")

	cfg := Default()
	require.NoError(t, cfg.overlayEnv(mapLookup(map[string]string{"LIFT_BIAS": "NaN"})))
	require.Error(t, cfg.Validate())
}

func TestApplyPreset(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyPreset("Easy"))
	require.Equal(t, "easy", cfg.Difficulty)
	require.Equal(t, 12, cfg.Post.TransposeSemitones)
	require.InDelta(t, 0.15, cfg.Post.MinDurationSeconds, 1e-12)
	require.Equal(t, 0.8, cfg.Post.MaxDurationSeconds)
	require.True(t, cfg.Post.Quantize.Enabled)
	require.Equal(t, 0.9, cfg.Post.Quantize.Strength)
	require.True(t, cfg.ChooseHook)
	require.Equal(t, 7.0, cfg.Hook.TargetSeconds)

	require.NoError(t, cfg.ApplyPreset("hard"))
	require.Equal(t, 19, cfg.Post.TransposeSemitones)
	require.False(t, cfg.Post.Quantize.Enabled)
	require.Equal(t, 9.0, cfg.Hook.TargetSeconds)
	require.NoError(t, cfg.Validate())

	err := cfg.ApplyPreset("insane")
	if !errors.Is(err, types.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Reduce.TimeBinSeconds = 0
	cfg.Trajectory.Gravity = 9.8
	cfg.Placement.Policy = "helix"
	err := cfg.Validate()
	if !errors.Is(err, types.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
	for _, field := range []string{"time_bin_seconds", "trajectory.gravity", "placement.policy"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("error %q does not mention %s", err, field)
		}
	}
}

func TestLoadLayersFileEnvAndPreset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "melodypath.yaml")
	doc := `
post:
  transpose_semitones: 3
  velocity_min: 60
placement:
  policy: wall
  wall:
    angle_degrees: 20
trajectory:
  mode: ballistic
  ballistic:
    initial_velocity: {x: 2, y: 0, z: 1}
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LIFT_BIAS", "3")
	t.Setenv("DIFFICULTY", "hard")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 60, cfg.Post.VelocityMin)
	require.Equal(t, 115, cfg.Post.VelocityMax)
	require.Equal(t, placement.KindWall, cfg.Placement.Policy)
	require.Equal(t, 20.0, cfg.Placement.Wall.AngleDegrees)
	require.Equal(t, 1.5, cfg.Placement.Wall.Spacing)
	require.Equal(t, trajectory.ModeBallistic, cfg.Trajectory.Mode)
	require.Equal(t, types.Vec3{X: 2, Z: 1}, cfg.Trajectory.Ballistic.InitialVelocity)
	require.Equal(t, 3.0, cfg.Trajectory.LiftBias)
	// the preset wins over the file
	require.Equal(t, 19, cfg.Post.TransposeSemitones)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestOverrideAppliesPresetThenKnobs(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Override("hard", "Spiral", " ballistic "))
	require.Equal(t, 19, cfg.Post.TransposeSemitones)
	require.Equal(t, placement.KindSpiral, cfg.Placement.Policy)
	require.Equal(t, trajectory.ModeBallistic, cfg.Trajectory.Mode)

	untouched := Default()
	require.NoError(t, untouched.Override("", "", ""))
	require.Equal(t, Default(), untouched)

	for _, bad := range [][3]string{{"impossible", "", ""}, {"", "circle", ""}, {"", "", "spline"}} {
		c := Default()
		if err := c.Override(bad[0], bad[1], bad[2]); !errors.Is(err, types.ErrInvalidConfiguration) {
			t.Fatalf("expected invalid configuration for %v, got %v", bad, err)
		}
	}
}
