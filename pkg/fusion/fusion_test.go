package fusion

import (
	"testing"

	"github.com/kavlex/vectorcore/pkg/vectorops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRRFExample(t *testing.T) {
	dense := Source{Name: "dense", Hits: []Ranked{{ID: "A", Score: 0.9}, {ID: "B", Score: 0.8}, {ID: "C", Score: 0.7}}}
	sparse := Source{Name: "sparse", Hits: []Ranked{{ID: "B", Score: 5.0}, {ID: "C", Score: 4.0}, {ID: "A", Score: 1.0}}}

	fused, err := Fuse(StrategyRRF, []Source{dense, sparse})
	require.NoError(t, err)
	require.Len(t, fused, 3)

	want := map[string]float64{
		"A": 1.0/61 + 1.0/63,
		"B": 1.0/62 + 1.0/61,
		"C": 1.0/63 + 1.0/62,
	}
	for _, f := range fused {
		assert.InDelta(t, want[f.ID], f.Score, 1e-9)
	}
	assert.Equal(t, "B", fused[0].ID)
}

func TestWeightedSumCombinesPresentSourcesOnly(t *testing.T) {
	// Weighted-sum min-max normalizes each source to [0,1] before weighting.
	// dense has a single hit, so it normalizes to 1.0; sparse's two hits
	// normalize to 0 (worst) and 1 (best).
	dense := Source{Name: "dense", Weight: 0.7, Hits: []Ranked{{ID: "A", Score: 1.0}}}
	sparse := Source{Name: "sparse", Weight: 0.3, Hits: []Ranked{{ID: "A", Score: 0.5}, {ID: "B", Score: 0.9}}}

	fused, err := Fuse(StrategyWeightedSum, []Source{dense, sparse})
	require.NoError(t, err)
	require.Len(t, fused, 2)

	byID := map[string]Fused{}
	for _, f := range fused {
		byID[f.ID] = f
	}
	assert.InDelta(t, 0.7*1.0+0.3*0.0, byID["A"].Score, 1e-9)
	assert.InDelta(t, 0.3*1.0, byID["B"].Score, 1e-9)
}

func TestUnknownStrategyErrors(t *testing.T) {
	_, err := Fuse(Strategy("bogus"), nil)
	require.Error(t, err)
}

func TestAutocutFindsCliff(t *testing.T) {
	scores := []float64{0.95, 0.93, 0.91, 0.40, 0.38, 0.35}
	n := Autocut(scores, 1, 3)
	assert.Equal(t, 3, n)
}

func TestAutocutFindsNthCliff(t *testing.T) {
	scores := []float64{0.95, 0.93, 0.50, 0.48, 0.10, 0.08}
	assert.Equal(t, 4, Autocut(scores, 2, 3))
}

func TestAutocutShortListKeepsAll(t *testing.T) {
	assert.Equal(t, 2, Autocut([]float64{0.9, 0.1}, 1, 3))
}

func TestMMRPrefersDiversity(t *testing.T) {
	reranker, err := MMR(0.5, vectorops.Cosine)
	require.NoError(t, err)

	candidates := []Candidate{
		{ID: "A", Score: 1.0, Vector: []float32{1, 0}},
		{ID: "B", Score: 0.99, Vector: []float32{1, 0}},
		{ID: "C", Score: 0.5, Vector: []float32{0, 1}},
	}
	out := reranker.Rerank([]float32{1, 0}, candidates)
	require.Len(t, out, 3)
	assert.Equal(t, "A", out[0].ID)
	assert.Equal(t, "C", out[1].ID)
}

func TestIdentityPassesThrough(t *testing.T) {
	candidates := []Candidate{{ID: "A", Score: 1}, {ID: "B", Score: 2}}
	out := Identity().Rerank(nil, candidates)
	assert.Equal(t, candidates, out)
}

func TestScoreBasedReorders(t *testing.T) {
	reranker := ScoreBased(func(id string, original float64) float64 {
		if id == "B" {
			return original + 10
		}
		return original
	})
	out := reranker.Rerank(nil, []Candidate{{ID: "A", Score: 5}, {ID: "B", Score: 1}})
	assert.Equal(t, "B", out[0].ID)
}
