package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hupe1980/motiondb"
	"github.com/hupe1980/motiondb/anim"
	"github.com/hupe1980/motiondb/codec"
	"github.com/hupe1980/motiondb/testutil"
	"github.com/hupe1980/motiondb/trait"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBuildFile = `
output: out/walk.mdb
compression: lz4
clips: [clips/walk.json, clips/run.json]
config:
  sample_rate: 30
  time_horizon: 0.2
  training:
    num_attempts: 1
    num_iterations: 4
metrics:
  - name: locomotion
    trait_type: Locomotion
    joints: [hips, leftFoot, rightFoot]
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeClipFile(t *testing.T, path string, clips ...anim.Clip) {
	t.Helper()
	set, err := codec.NewClipSet(testutil.Rig(), []trait.Type{testutil.LocomotionType}, clips)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, codec.WriteClipSet(nil, f, set))
}

func tagged(name string, frames int, speed float64) anim.Clip {
	c := testutil.WalkClip(testutil.ClipOptions{Name: name, NumFrames: frames, Speed: speed})
	testutil.TagAll(&c, testutil.Locomotion(speed))
	return c
}

// setup writes clip files and a build file and runs the build.
func setup(t *testing.T) (dir, dbPath string) {
	t.Helper()
	dir = t.TempDir()
	writeClipFile(t, filepath.Join(dir, "clips", "walk.json"), tagged("walk", 60, 1.5))
	writeClipFile(t, filepath.Join(dir, "clips", "run.json"), tagged("run", 45, 4))
	writeFile(t, filepath.Join(dir, "build.yaml"), testBuildFile)

	metricsFile := filepath.Join(dir, "metrics.prom")
	out, err := run(t, "build", "-f", filepath.Join(dir, "build.yaml"), "--metrics-file", metricsFile)
	require.NoError(t, err)

	dbPath = filepath.Join(dir, "out", "walk.mdb")
	assert.Contains(t, out, "wrote "+dbPath)
	assert.Contains(t, out, "105 frames")

	metrics, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `motiondb_builds_total{status="ok"} 1`)
	assert.Contains(t, string(metrics), `motiondb_saves_total{status="ok"} 1`)
	return dir, dbPath
}

func TestCLI_BuildInspectQuery(t *testing.T) {
	_, dbPath := setup(t)

	t.Run("inspect", func(t *testing.T) {
		out, err := run(t, "inspect", dbPath)
		require.NoError(t, err)
		assert.Contains(t, out, "frames:       105")
		assert.Contains(t, out, "segments:     2")
		assert.Contains(t, out, "codebooks:    2")
		assert.Contains(t, out, `"Locomotion speed=1.5"`)
	})

	t.Run("inspect json", func(t *testing.T) {
		out, err := run(t, "inspect", dbPath, "--json")
		require.NoError(t, err)

		var r report
		require.NoError(t, codec.GoJSON{}.Unmarshal([]byte(out), &r))
		assert.Equal(t, 105, r.Frames)
		assert.Equal(t, 30.0, r.SampleRate)
		require.Len(t, r.CodeBooks, 2)
		for _, cb := range r.CodeBooks {
			assert.Equal(t, "locomotion", cb.Metric)
			assert.Positive(t, cb.PoseFeatures)
		}
	})

	t.Run("inspect debug", func(t *testing.T) {
		out, err := run(t, "inspect", dbPath, "--debug", "yaml")
		require.NoError(t, err)
		assert.Contains(t, out, "walk")

		out, err = run(t, "inspect", dbPath, "--debug", "xml")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "<"))

		_, err = run(t, "inspect", dbPath, "--debug", "html")
		assert.Error(t, err)
	})

	t.Run("query", func(t *testing.T) {
		out, err := run(t, "query", dbPath, "--segment", "0", "--frame", "20", "-k", "3", "--json")
		require.NoError(t, err)

		var matches []queryMatch
		require.NoError(t, codec.GoJSON{}.Unmarshal([]byte(out), &matches))
		require.Len(t, matches, 3)
		for i, m := range matches {
			assert.Equal(t, i+1, m.Rank)
			assert.Equal(t, "walk", m.Clip)
			if i > 0 {
				assert.LessOrEqual(t, matches[i-1].Cost, m.Cost)
			}
		}
	})

	t.Run("query text", func(t *testing.T) {
		out, err := run(t, "query", dbPath, "--segment", "1", "--frame", "5", "--advance", "0.1")
		require.NoError(t, err)
		assert.Contains(t, out, "query: segment 1 frame 8")
		assert.Contains(t, out, "run")
	})

	t.Run("query errors", func(t *testing.T) {
		_, err := run(t, "query", dbPath, "--segment", "9")
		assert.Error(t, err)

		_, err = run(t, "query", dbPath, "-k", "0")
		assert.ErrorIs(t, err, motiondb.ErrInvalidK)
	})
}

func TestCLI_Errors(t *testing.T) {
	_, err := run(t, "inspect", filepath.Join(t.TempDir(), "missing.mdb"))
	assert.ErrorIs(t, err, motiondb.ErrNotFound)

	_, err = run(t, "build", "-f", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = run(t, "inspect")
	assert.Error(t, err)

	out, err := run(t, "inspect", "x.mdb", "--log-format", "xml")
	assert.Error(t, err)
	assert.Empty(t, out)
}

func TestLoadClips_RigMismatch(t *testing.T) {
	dir := t.TempDir()
	writeClipFile(t, filepath.Join(dir, "a.json"), tagged("a", 10, 1))

	other := anim.Rig{Joints: []anim.Joint{{Name: "root", Parent: -1}}}
	clip := anim.Clip{Name: "b", SampleRate: 30, NumFrames: 1, Frames: testutil.WalkClip(testutil.ClipOptions{NumFrames: 1}).Frames[:1]}
	set, err := codec.NewClipSet(other, nil, []anim.Clip{clip})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, codec.WriteClipSet(nil, &buf, set))
	writeFile(t, filepath.Join(dir, "b.json"), buf.String())

	_, _, _, err = loadClips(codec.Default, []string{filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")})
	assert.ErrorContains(t, err, "rig differs")

	rig, types, clips, err := loadClips(codec.Default, []string{filepath.Join(dir, "a.json")})
	require.NoError(t, err)
	assert.Equal(t, testutil.Rig(), rig)
	assert.Equal(t, 1, types.Len())
	assert.Len(t, clips, 1)
}
