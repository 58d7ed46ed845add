package vectorops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKernelsScoreRange(t *testing.T) {
	metrics := []Metric{Cosine, Euclidean, Dot, Manhattan, Hamming, Jaccard}
	a := []float32{1, 0, 0}
	b := []float32{0.9, 0.1, 0}
	for _, m := range metrics {
		k, err := ForMetric(m)
		require.NoError(t, err)
		s, err := k.Score(a, b)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, s, float32(0))
		assert.LessOrEqual(t, s, float32(1))
	}
}

func TestCosineIdenticalAndOpposite(t *testing.T) {
	k, err := ForMetric(Cosine)
	require.NoError(t, err)

	s, err := k.Score([]float32{1, 0, 0}, []float32{1, 0, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s, 1e-6)

	s, err = k.Score([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, s, 1e-6)

	s, err = k.Score([]float32{1, 0}, []float32{-1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, s, 1e-6)
}

func TestDimensionMismatch(t *testing.T) {
	k, err := ForMetric(Euclidean)
	require.NoError(t, err)
	_, err = k.Score([]float32{1, 2}, []float32{1, 2, 3})
	require.Error(t, err)
	var dimErr *ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
}

func TestSparseDotMerge(t *testing.T) {
	a := Sparse{Indices: []uint32{1, 3, 5}, Values: []float32{1, 2, 3}}
	b := Sparse{Indices: []uint32{0, 3, 5, 9}, Values: []float32{9, 4, 1, 2}}
	got := SparseDot(a, b)
	assert.InDelta(t, 2*4+3*1, got, 1e-6)
}

func TestSparseValidate(t *testing.T) {
	ok := Sparse{Indices: []uint32{0, 2, 5}, Values: []float32{1, 1, 1}}
	require.NoError(t, ok.Validate(10))

	bad := Sparse{Indices: []uint32{2, 2}, Values: []float32{1, 1}}
	require.Error(t, bad.Validate(10))

	oob := Sparse{Indices: []uint32{11}, Values: []float32{1}}
	require.Error(t, oob.Validate(10))
}

func TestDetectedLevelStable(t *testing.T) {
	l1 := DetectedLevel()
	l2 := DetectedLevel()
	assert.Equal(t, l1, l2)
}
