package hnsw

import (
	"bytes"
	"testing"

	"github.com/kavlex/vectorcore/pkg/vectorops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosineDist() DistanceFunc {
	k, _ := vectorops.ForMetric(vectorops.Cosine)
	return DistanceFunc(k.Score)
}

func TestDenseRecallToySet(t *testing.T) {
	g := New(DefaultConfig(), cosineDist())

	require.NoError(t, g.Insert("A", []float32{1, 0, 0}))
	require.NoError(t, g.Insert("B", []float32{0.9, 0.1, 0}))
	require.NoError(t, g.Insert("C", []float32{0, 1, 0}))
	require.NoError(t, g.Insert("D", []float32{0, 0, 1}))
	require.NoError(t, g.Insert("E", []float32{-1, 0, 0}))

	hits, truncated, err := g.Search([]float32{1, 0, 0}, SearchOptions{K: 3, Ef: 50})
	require.NoError(t, err)
	assert.False(t, truncated)
	require.Len(t, hits, 3)
	assert.Equal(t, "A", hits[0].ID)
	assert.Equal(t, "B", hits[1].ID)
}

func TestDeleteSuppressesFromResults(t *testing.T) {
	g := New(DefaultConfig(), cosineDist())
	require.NoError(t, g.Insert("A", []float32{1, 0}))
	require.NoError(t, g.Insert("B", []float32{0.9, 0.1}))

	require.NoError(t, g.Delete("A"))
	hits, _, err := g.Search([]float32{1, 0}, SearchOptions{K: 2, Ef: 20})
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "A", h.ID)
	}
	assert.Equal(t, 1, g.Len())
}

func TestSearchWithFilter(t *testing.T) {
	g := New(DefaultConfig(), cosineDist())
	for i, v := range [][]float32{{1, 0}, {0.95, 0.05}, {0.9, 0.1}, {0, 1}} {
		_ = i
		require.NoError(t, g.Insert(string(rune('A'+i)), v))
	}
	accept := func(id string) bool { return id == "D" }
	hits, _, err := g.Search([]float32{1, 0}, SearchOptions{K: 1, Ef: 4, Accept: accept})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "D", hits[0].ID)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	g := New(DefaultConfig(), cosineDist())
	for i, v := range [][]float32{{1, 0}, {0, 1}, {0.5, 0.5}} {
		require.NoError(t, g.Insert(string(rune('A'+i)), v))
	}

	var buf bytes.Buffer
	require.NoError(t, g.Save(&buf))

	g2 := New(DefaultConfig(), cosineDist())
	require.NoError(t, g2.Load(&buf))

	hits, _, err := g2.Search([]float32{1, 0}, SearchOptions{K: 1, Ef: 10})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "A", hits[0].ID)
}

func TestInsertDuplicateIDFails(t *testing.T) {
	g := New(DefaultConfig(), cosineDist())
	require.NoError(t, g.Insert("A", []float32{1, 0}))
	err := g.Insert("A", []float32{0, 1})
	require.Error(t, err)
}
