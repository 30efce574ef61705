package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/motiondb/builder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadBuildFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.yaml")
	writeFile(t, path, `
output: out/hero.mdb
clips:
  - clips/walk.json
  - /abs/run.json
config:
  time_horizon: 0.5
  training:
    num_iterations: 8
metrics:
  - name: locomotion
    trait_type: Locomotion
    joints: [hips, leftFoot]
    num_pose_samples: 5
resources:
  max_workers: 2
`)

	bf, err := loadBuildFile(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "out", "hero.mdb"), bf.Output)
	assert.Equal(t, []string{filepath.Join(dir, "clips", "walk.json"), "/abs/run.json"}, bf.Clips)
	assert.Equal(t, "zstd", bf.Compression)
	assert.Equal(t, "go-json", bf.Codec)

	def := builder.DefaultConfig()
	assert.Equal(t, def.SampleRate, bf.Config.SampleRate)
	assert.Equal(t, 0.5, bf.Config.TimeHorizon)
	assert.Equal(t, 8, bf.Config.Training.NumIterations)
	assert.Equal(t, def.Training.NumAttempts, bf.Config.Training.NumAttempts)

	require.Len(t, bf.Metrics, 1)
	m := bf.Metrics[0]
	want := builder.DefaultMetricConfig("locomotion", "Locomotion", "hips", "leftFoot")
	want.NumPoseSamples = 5
	assert.Equal(t, want, m)

	assert.Equal(t, int64(2), bf.Resources.MaxWorkers)
}

func TestLoadBuildFile_RemoteOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.yaml")
	writeFile(t, path, "output: s3://assets/hero.mdb\nclips: [walk.json]\n")

	bf, err := loadBuildFile(path)
	require.NoError(t, err)
	assert.Equal(t, "s3://assets/hero.mdb", bf.Output)
}

func TestLoadBuildFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", "output: a.mdb\nclips: [a.json]\nworkers: 3\n"},
		{"no output", "clips: [a.json]\n"},
		{"no clips", "output: a.mdb\n"},
		{"compression", "output: a.mdb\nclips: [a.json]\ncompression: brotli\n"},
		{"codec", "output: a.mdb\nclips: [a.json]\ncodec: msgpack\n"},
		{"config", "output: a.mdb\nclips: [a.json]\nconfig:\n  sample_rate: -1\n"},
		{"location", "output: gs://bucket/a.mdb\nclips: [a.json]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "build.yaml")
			writeFile(t, path, tt.content)
			_, err := loadBuildFile(path)
			assert.Error(t, err)
		})
	}

	_, err := loadBuildFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
