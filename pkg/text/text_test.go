package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBM25RanksByRelevance(t *testing.T) {
	idx := New(DefaultConfig())
	idx.Upsert("d1", FieldTokens{"": "the quick brown fox"})
	idx.Upsert("d2", FieldTokens{"": "the lazy dog"})
	idx.Upsert("d3", FieldTokens{"": "quick fox quick"})

	hits := idx.Search("quick fox", 10, nil)
	require.Len(t, hits, 2)
	assert.Equal(t, "d3", hits[0].ID)
	assert.Equal(t, "d1", hits[1].ID)
	for _, h := range hits {
		assert.NotEqual(t, "d2", h.ID)
	}
}

func TestBM25FFieldWeights(t *testing.T) {
	idx := New(DefaultConfig())
	idx.Upsert("d1", FieldTokens{"title": "quick fox", "body": "a story about a dog"})
	idx.Upsert("d2", FieldTokens{"title": "a story", "body": "quick fox quick fox"})

	hits := idx.Search("quick fox", 10, FieldWeights{"title": 3, "body": 1})
	require.Len(t, hits, 2)
	assert.Equal(t, "d1", hits[0].ID)
}

func TestDeleteExcludesFromSearch(t *testing.T) {
	idx := New(DefaultConfig())
	idx.Upsert("d1", FieldTokens{"": "quick fox"})
	require.NoError(t, idx.Delete("d1"))

	hits := idx.Search("quick fox", 10, nil)
	assert.Empty(t, hits)
	assert.Equal(t, 0, idx.Len())

	require.NoError(t, idx.Restore("d1"))
	assert.Equal(t, 1, idx.Len())
}

func TestUpsertReplacesPriorPostings(t *testing.T) {
	idx := New(DefaultConfig())
	idx.Upsert("d1", FieldTokens{"": "quick fox"})
	idx.Upsert("d1", FieldTokens{"": "lazy dog"})

	assert.Empty(t, idx.Search("quick fox", 10, nil))
	hits := idx.Search("lazy dog", 10, nil)
	require.Len(t, hits, 1)
	assert.Equal(t, "d1", hits[0].ID)
}

func TestExplainScoreBreaksDownTerms(t *testing.T) {
	idx := New(DefaultConfig())
	idx.Upsert("d1", FieldTokens{"": "quick fox quick"})
	idx.Upsert("d2", FieldTokens{"": "lazy dog"})

	exp := idx.ExplainScore("quick fox", "d1", nil)
	require.NotEmpty(t, exp)
	var total float64
	for _, e := range exp {
		total += e.Score
	}
	hits := idx.Search("quick fox", 10, nil)
	require.Len(t, hits, 1)
	assert.InDelta(t, hits[0].Score, total, 1e-9)
}

func TestLanguageTokenizerDropsStopwordsAndStems(t *testing.T) {
	tok := NewLanguageTokenizer(nil, true)
	terms := tok.Tokenize("The quick foxes are running")
	assert.NotContains(t, terms, "the")
	assert.NotContains(t, terms, "are")
	assert.Contains(t, terms, "fox")
}
