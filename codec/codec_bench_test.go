package codec

import (
	"testing"

	"github.com/hupe1980/motiondb/anim"
	"github.com/hupe1980/motiondb/testutil"
	"github.com/hupe1980/motiondb/trait"
)

func benchClipSet(b *testing.B) *ClipSet {
	b.Helper()
	clip := testutil.WalkClip(testutil.ClipOptions{Name: "walk", NumFrames: 300, Speed: 1.5, TurnRate: 0.3})
	testutil.TagAll(&clip, testutil.Locomotion(1.5))

	s, err := NewClipSet(testutil.Rig(), []trait.Type{testutil.LocomotionType, testutil.IdleType}, []anim.Clip{clip})
	if err != nil {
		b.Fatal(err)
	}
	return s
}

func benchmarkCodecMarshal(b *testing.B, c Codec, v any) {
	b.Helper()
	b.ReportAllocs()

	warm, err := c.Marshal(v)
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(warm)))

	var sink []byte
	b.ResetTimer()
	for b.Loop() {
		out, err := c.Marshal(v)
		if err != nil {
			b.Fatal(err)
		}
		sink = out
	}
	_ = sink
}

func benchmarkCodecUnmarshal[T any](b *testing.B, c Codec, data []byte, dst *T) {
	b.Helper()
	b.ReportAllocs()
	b.SetBytes(int64(len(data)))

	var v T
	b.ResetTimer()
	for b.Loop() {
		if err := c.Unmarshal(data, &v); err != nil {
			b.Fatal(err)
		}
	}
	if dst != nil {
		*dst = v
	}
}

func BenchmarkCodec_Marshal_ClipSet(b *testing.B) {
	s := benchClipSet(b)

	b.Run("stdlib", func(b *testing.B) { benchmarkCodecMarshal(b, JSON{}, s) })
	b.Run("go-json", func(b *testing.B) { benchmarkCodecMarshal(b, GoJSON{}, s) })
}

func BenchmarkCodec_Unmarshal_ClipSet(b *testing.B) {
	jsonData := MustMarshal(JSON{}, benchClipSet(b))

	b.Run("stdlib", func(b *testing.B) {
		var sink ClipSet
		benchmarkCodecUnmarshal(b, JSON{}, jsonData, &sink)
		_ = sink
	})
	b.Run("go-json", func(b *testing.B) {
		var sink ClipSet
		benchmarkCodecUnmarshal(b, GoJSON{}, jsonData, &sink)
		_ = sink
	})
}
