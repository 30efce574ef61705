package quantization

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestSolveSymmetric_MatchesGonum(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 100; i++ {
		m := SymmetricMatrix{
			A00: rng.NormFloat64(), A01: rng.NormFloat64(), A02: rng.NormFloat64(),
			A11: rng.NormFloat64(), A12: rng.NormFloat64(),
			A22: rng.NormFloat64(),
		}

		sym := mat.NewSymDense(3, []float64{
			m.A00, m.A01, m.A02,
			m.A01, m.A11, m.A12,
			m.A02, m.A12, m.A22,
		})
		var ref mat.EigenSym
		require.True(t, ref.Factorize(sym, false))
		want := ref.Values(nil)

		got := SolveSymmetric(m)
		for k := 0; k < 3; k++ {
			assert.InDelta(t, want[k], got.Values[k], 1e-9)

			// A v = lambda v
			av := m.mulVec(got.Vectors[k])
			lv := r3.Scale(got.Values[k], got.Vectors[k])
			assert.InDelta(t, 0, r3.Norm(r3.Sub(av, lv)), 1e-8)
			assert.InDelta(t, 1, r3.Norm(got.Vectors[k]), 1e-9)
		}
		assert.InDelta(t, 0, r3.Dot(got.Vectors[0], got.Vectors[1]), 1e-9)
		assert.InDelta(t, 0, r3.Dot(got.Vectors[1], got.Vectors[2]), 1e-9)
	}
}

func TestSolveSymmetric_Diagonal(t *testing.T) {
	got := SolveSymmetric(SymmetricMatrix{A00: 3, A11: 1, A22: 2})
	assert.InDelta(t, 1, got.Values[0], 1e-12)
	assert.InDelta(t, 2, got.Values[1], 1e-12)
	assert.InDelta(t, 3, got.Values[2], 1e-12)
	assert.Equal(t, r3.Vec{Y: 1}, got.Vectors[0])
	assert.Equal(t, r3.Vec{Z: 1}, got.Vectors[1])
	assert.Equal(t, r3.Vec{X: 1}, got.Vectors[2])
}

func TestSolveSymmetric_Zero(t *testing.T) {
	got := SolveSymmetric(SymmetricMatrix{})
	assert.Equal(t, [3]float64{}, got.Values)
	assert.False(t, math.IsNaN(got.Vectors[0].X))
}
