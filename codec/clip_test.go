package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hupe1980/motiondb/anim"
	"github.com/hupe1980/motiondb/testutil"
	"github.com/hupe1980/motiondb/trait"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClips() []anim.Clip {
	walk := testutil.WalkClip(testutil.ClipOptions{Name: "walk", NumFrames: 12, Speed: 1.5, TurnRate: 0.4})
	testutil.TagAll(&walk, testutil.Locomotion(1.5))
	walk.Markers = []anim.Marker{{Time: 0.2, Trait: testutil.Idle()}}
	walk.PostBoundaryClip = "idle"

	idle := testutil.WalkClip(testutil.ClipOptions{Name: "idle", NumFrames: 6})
	testutil.TagFrames(&idle, 1, 5, testutil.Idle())
	idle.PreBoundaryClip = "walk"
	return []anim.Clip{walk, idle}
}

func TestClipSet_RoundTrip(t *testing.T) {
	types := []trait.Type{testutil.LocomotionType, testutil.IdleType}
	clips := testClips()

	for _, c := range []Codec{JSON{}, GoJSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			s, err := NewClipSet(testutil.Rig(), types, clips)
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, WriteClipSet(c, &buf, s))

			got, err := ReadClipSet(c, &buf)
			require.NoError(t, err)
			assert.Equal(t, testutil.Rig(), got.Rig)

			gotTypes, err := got.TraitTypes()
			require.NoError(t, err)
			assert.Equal(t, types, gotTypes)

			reg, err := got.Registry()
			require.NoError(t, err)
			decoded, err := got.Decode(reg)
			require.NoError(t, err)
			require.Len(t, decoded, len(clips))

			for i, want := range clips {
				d := decoded[i]
				assert.Equal(t, want.Name, d.Name)
				assert.Equal(t, want.SampleRate, d.SampleRate)
				assert.Equal(t, want.NumFrames, d.NumFrames)
				assert.Equal(t, want.PreBoundaryClip, d.PreBoundaryClip)
				assert.Equal(t, want.PostBoundaryClip, d.PostBoundaryClip)
				assert.Equal(t, want.Frames, d.Frames)
				assert.Equal(t, want.Tags, d.Tags)
				assert.Equal(t, want.Markers, d.Markers)
			}
		})
	}
}

func TestClipSet_CrossCodec(t *testing.T) {
	s, err := NewClipSet(testutil.Rig(), []trait.Type{testutil.LocomotionType, testutil.IdleType}, testClips())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteClipSet(JSON{}, &buf, s))

	got, err := ReadClipSet(GoJSON{}, &buf)
	require.NoError(t, err)
	assert.Equal(t, s.Clips[0].Frames, got.Clips[0].Frames)
}

func TestNewClipSet_UnknownTrait(t *testing.T) {
	_, err := NewClipSet(testutil.Rig(), []trait.Type{testutil.IdleType}, testClips())
	assert.ErrorIs(t, err, trait.ErrUnknownType)
}

func TestReadClipSet_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"syntax", `{"version":`},
		{"version", `{"version": 7, "clips": []}`},
		{"missing version", `{"clips": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadClipSet(nil, strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestClipSet_DecodeErrors(t *testing.T) {
	doc := `{
		"version": 1,
		"rig": {"joints": [{"name": "root", "parent": -1}, {"name": "hips", "parent": 0}]},
		"types": [{"name": "Locomotion", "fields": [{"name": "speed", "kind": "float32"}]}],
		"clips": [{
			"name": "walk",
			"sampleRate": 30,
			"frames": [[{"p": [0, 0, 0], "q": [1, 0, 0, 0]}, {"p": [0, 1, 0], "q": [1, 0, 0, 0]}]],
			"tags": [{"start": 0, "duration": 1, "trait": {"type": "Locomotion", "fields": {"speed": 2}}}]
		}]
	}`

	s, err := ReadClipSet(GoJSON{}, strings.NewReader(doc))
	require.NoError(t, err)
	reg, err := s.Registry()
	require.NoError(t, err)

	clips, err := s.Decode(reg)
	require.NoError(t, err)
	require.Len(t, clips, 1)
	assert.Equal(t, 1, clips[0].NumFrames)
	assert.Equal(t, testutil.Locomotion(2), clips[0].Tags[0].Trait)

	t.Run("JointCount", func(t *testing.T) {
		bad := *s
		bad.Clips = []ClipDoc{s.Clips[0]}
		bad.Clips[0].Frames = [][]TransformDoc{{{Q: [4]float64{1}}}}
		_, err := bad.Decode(reg)
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})

	t.Run("MissingField", func(t *testing.T) {
		bad := *s
		bad.Clips = []ClipDoc{s.Clips[0]}
		bad.Clips[0].Tags = []TagDoc{{Duration: 1, Trait: TraitDoc{Type: "Locomotion", Fields: map[string]any{"pace": 1.0}}}}
		_, err := bad.Decode(reg)
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})

	t.Run("UnknownType", func(t *testing.T) {
		bad := *s
		bad.Clips = []ClipDoc{s.Clips[0]}
		bad.Clips[0].Tags = []TagDoc{{Duration: 1, Trait: TraitDoc{Type: "Jump"}}}
		_, err := bad.Decode(reg)
		assert.ErrorIs(t, err, trait.ErrUnknownType)
	})

	t.Run("UnknownKind", func(t *testing.T) {
		bad := *s
		bad.Types = []TypeDoc{{Name: "X", Fields: []FieldDoc{{Name: "a", Kind: "complex"}}}}
		_, err := bad.Registry()
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok)
		assert.Equal(t, name, c.Name())
	}
	_, ok := ByName("msgpack")
	assert.False(t, ok)
}

func TestGoJSON_MatchesStdlib(t *testing.T) {
	v := TraitDoc{Type: "Locomotion", Fields: map[string]any{"speed": 1.5, "loop": true}}

	std, err := JSON{}.Marshal(v)
	require.NoError(t, err)
	fast, err := GoJSON{}.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, string(std), string(fast))

	buf, err := GoJSON{}.Append([]byte("x"), v)
	require.NoError(t, err)
	assert.Equal(t, "x"+string(fast), string(buf))
}
