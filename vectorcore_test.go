package vectorcore

import (
	"testing"

	"github.com/kavlex/vectorcore/pkg/engine"
	"github.com/stretchr/testify/require"
)

func TestOpenQuickStart(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir, WithDimension(3), WithSnapshotInterval(0))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Upsert(engine.UpsertInput{
		ID:    "doc-1",
		Dense: []float32{0.1, 0.2, 0.3},
		Text:  map[string]string{"body": "vectorcore is a go retrieval engine"},
	})
	require.NoError(t, err)

	results, err := db.Query([]float32{0.1, 0.2, 0.29}, engine.QueryOptions{K: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "doc-1", results[0].ID)
}
