package trait

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var locomotion = Type{
	Name: "Locomotion",
	Fields: []Field{
		{Name: "speed", Kind: KindFloat32},
		{Name: "loop", Kind: KindBool},
	},
}

var idle = Type{Name: "Idle"}

func TestType_Hash(t *testing.T) {
	same := Type{Name: "Locomotion", Fields: []Field{{Name: "speed", Kind: KindFloat32}, {Name: "loop", Kind: KindBool}}}
	assert.Equal(t, locomotion.Hash(), same.Hash())

	reordered := Type{Name: "Locomotion", Fields: []Field{{Name: "loop", Kind: KindBool}, {Name: "speed", Kind: KindFloat32}}}
	assert.NotEqual(t, locomotion.Hash(), reordered.Hash())
	assert.NotEqual(t, locomotion.Hash(), idle.Hash())
	assert.Equal(t, 5, locomotion.NumBytes())
	assert.Equal(t, 0, idle.NumBytes())
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(locomotion, idle)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	idx, err := r.Register(locomotion)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	_, err = r.Register(Type{Name: "Locomotion", Fields: []Field{{Name: "speed", Kind: KindFloat64}}})
	assert.ErrorIs(t, err, ErrLayoutConflict)

	got, ok := r.LookupHash(idle.Hash())
	require.True(t, ok)
	assert.Equal(t, "Idle", got.Name)

	names := []string{}
	for _, typ := range r.Types() {
		names = append(names, typ.Name)
	}
	assert.Equal(t, []string{"Idle", "Locomotion"}, names)
}

func TestRegistry_Check(t *testing.T) {
	r, err := NewRegistry(locomotion)
	require.NoError(t, err)

	v := MustValue(locomotion, 1.5, true)
	_, err = r.Check(v)
	require.NoError(t, err)

	_, err = r.Check(Value{Type: "Locomotion", Payload: []byte{1}})
	assert.ErrorIs(t, err, ErrPayloadSize)

	_, err = r.Check(Value{Type: "Jump"})
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestValue_Format(t *testing.T) {
	v, err := NewValue(locomotion, float32(2.5), false)
	require.NoError(t, err)

	s, err := locomotion.Format(v.Payload)
	require.NoError(t, err)
	assert.Equal(t, "speed=2.5 loop=false", s)

	_, err = NewValue(locomotion, "fast", false)
	assert.Error(t, err)
	_, err = NewValue(locomotion, 1.0)
	assert.Error(t, err)
}

func TestType_Decode(t *testing.T) {
	all := Type{Name: "All", Fields: []Field{
		{Name: "b", Kind: KindBool},
		{Name: "i", Kind: KindInt32},
		{Name: "u", Kind: KindUint32},
		{Name: "f", Kind: KindFloat32},
		{Name: "l", Kind: KindInt64},
		{Name: "d", Kind: KindFloat64},
	}}
	want := []any{true, int32(-3), uint32(7), float32(1.25), int64(-1 << 40), 0.1}

	v, err := NewValue(all, want...)
	require.NoError(t, err)

	got, err := all.Decode(v.Payload)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Decoded values encode back to the same payload.
	again, err := NewValue(all, got...)
	require.NoError(t, err)
	assert.Equal(t, v.Payload, again.Payload)

	_, err = all.Decode(v.Payload[1:])
	assert.ErrorIs(t, err, ErrPayloadSize)
}

func TestValidate(t *testing.T) {
	assert.Error(t, Type{}.Validate())
	assert.Error(t, Type{Name: "X", Fields: []Field{{Name: "a", Kind: 99}}}.Validate())
	assert.Error(t, Type{Name: "X", Fields: []Field{{Name: "a", Kind: KindBool}, {Name: "a", Kind: KindBool}}}.Validate())

	k, err := ParseKind("float32")
	require.NoError(t, err)
	assert.Equal(t, KindFloat32, k)
}
