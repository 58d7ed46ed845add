package engine

import (
	"fmt"
	"testing"

	"github.com/kavlex/vectorcore/pkg/fusion"
	"github.com/kavlex/vectorcore/pkg/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir, WithSnapshotInterval(0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertAndGet(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Upsert(UpsertInput{ID: "a", Dense: []float32{1, 0, 0}, Metadata: record.Metadata{"color": record.String("red")}})
	require.NoError(t, err)

	rec, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", rec.ID)
	assert.Equal(t, "red", rec.Metadata["color"].Str)
}

func TestDenseQuery(t *testing.T) {
	s := openTestStore(t)
	_, _ = s.Upsert(UpsertInput{ID: "a", Dense: []float32{1, 0}})
	_, _ = s.Upsert(UpsertInput{ID: "b", Dense: []float32{0, 1}})

	results, err := s.Query([]float32{1, 0}, QueryOptions{K: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestHybridQueryWithFilterReturnsOnlyMatching(t *testing.T) {
	s := openTestStore(t)
	_, _ = s.Upsert(UpsertInput{
		ID: "a", Dense: []float32{1, 0}, Text: map[string]string{"": "quick fox"},
		Metadata: record.Metadata{"category": record.String("a")},
	})
	_, _ = s.Upsert(UpsertInput{
		ID: "b", Dense: []float32{0.9, 0.1}, Text: map[string]string{"": "quick brown fox"},
		Metadata: record.Metadata{"category": record.String("b")},
	})
	_, _ = s.Upsert(UpsertInput{
		ID: "c", Dense: []float32{0.8, 0.2}, Text: map[string]string{"": "lazy dog"},
		Metadata: record.Metadata{"category": record.String("a")},
	})

	results, err := s.QueryHybrid([]float32{1, 0}, "quick fox", QueryOptions{
		K: 10, Strategy: fusion.StrategyRRF, FilterExpr: `category = 'a'`,
	})
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "a", r.Record.Metadata["category"].Str)
	}
}

func TestDeleteSuppressesFromQuery(t *testing.T) {
	s := openTestStore(t)
	_, _ = s.Upsert(UpsertInput{ID: "a", Dense: []float32{1, 0}})
	require.NoError(t, s.Delete("a"))

	_, err := s.Get("a")
	require.Error(t, err)

	results, err := s.Query([]float32{1, 0}, QueryOptions{K: 5})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "a", r.ID)
	}
}

func TestCompactionRebuildsIndexesOverLiveOnly(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 1000; i++ {
		id := fmt.Sprintf("rec-%d", i)
		_, err := s.Upsert(UpsertInput{ID: id, Dense: []float32{float32(i), 0}})
		require.NoError(t, err)
	}
	for i := 0; i < 600; i++ {
		require.NoError(t, s.Delete(fmt.Sprintf("rec-%d", i)))
	}

	require.NoError(t, s.Compact())

	stats := s.Stats()
	assert.Equal(t, 400, stats.Live)
	assert.Equal(t, 0, stats.Deleted)
	assert.Equal(t, 400, stats.GraphNodes)
}

func TestRecoveryReplaysWALAfterRestart(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, WithSnapshotInterval(0))
	require.NoError(t, err)

	_, err = s.Upsert(UpsertInput{ID: "a", Dense: []float32{1, 0}})
	require.NoError(t, err)
	_, err = s.Upsert(UpsertInput{ID: "b", Dense: []float32{0, 1}})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(dir, WithSnapshotInterval(0))
	require.NoError(t, err)
	defer s2.Close()

	rec, err := s2.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", rec.ID)
	assert.Equal(t, 2, s2.Stats().Live)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Upsert(UpsertInput{ID: "a", Dense: []float32{1, 0}, Text: map[string]string{"": "hello"}})
	require.NoError(t, err)

	dir, err := s.Snapshot("v1")
	require.NoError(t, err)
	assert.DirExists(t, dir)

	_, err = s.Upsert(UpsertInput{ID: "b", Dense: []float32{0, 1}})
	require.NoError(t, err)

	require.NoError(t, s.RestoreSnapshot("v1"))
	assert.Equal(t, 1, s.Stats().Live)
	_, err = s.Get("b")
	require.Error(t, err)
}

func TestBatchPartialSuccess(t *testing.T) {
	s := openTestStore(t)
	_, _ = s.Upsert(UpsertInput{ID: "existing", Dense: []float32{1, 0}})

	result := s.Batch([]BatchItem{
		{Op: record.BatchUpsert, ID: "x", Dense: []float32{1, 0}},
		{Op: record.BatchUpsert, ID: "y", Dense: []float32{1, 0, 0}},
	})
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
}
