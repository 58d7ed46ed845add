package snapshot

import (
	"fmt"
	"testing"
	"time"

	"github.com/kavlex/vectorcore/pkg/hnsw"
	"github.com/kavlex/vectorcore/pkg/record"
	"github.com/kavlex/vectorcore/pkg/text"
	"github.com/kavlex/vectorcore/pkg/vectorops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dist() hnsw.DistanceFunc {
	k, _ := vectorops.ForMetric(vectorops.Cosine)
	return hnsw.DistanceFunc(k.Score)
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	g := hnsw.New(hnsw.DefaultConfig(), dist())
	require.NoError(t, g.Insert("a", []float32{1, 0}))

	recs := []*record.Record{
		{ID: "a", Vector: record.Vector{Dense: []float32{1, 0}}},
	}

	meta := Meta{TakenAt: time.Unix(0, 0), Dimension: 2, Metric: "cosine"}
	require.NoError(t, Write(dir, meta, recs, 5, g, []TextDoc{{ID: "a", Fields: text.FieldTokens{"": "hello world"}}}))

	gotMeta, gotRecs, nextSeq, hnswBytes, docs, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, gotMeta.RecordCount)
	require.Len(t, gotRecs, 1)
	assert.Equal(t, "a", gotRecs[0].ID)
	assert.Equal(t, uint64(5), nextSeq)
	assert.NotEmpty(t, hnswBytes)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].ID)
}

func TestCompactionDropsTombstones(t *testing.T) {
	live := make([]*record.Record, 0, 400)
	for i := 0; i < 1000; i++ {
		if i%5 < 3 { // 600 of 1000 tombstoned, matching the 60% tombstone scenario
			continue
		}
		live = append(live, &record.Record{ID: fmt.Sprintf("rec-%d", i), Vector: record.Vector{Dense: []float32{float32(i), 0}}})
	}

	graph, idx, err := Compact(live, hnsw.DefaultConfig(), dist(), text.DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, len(live), graph.Len())
	assert.Equal(t, 0, idx.Len())
}

func TestBackupAndRestore(t *testing.T) {
	snapDir := t.TempDir()
	backupDir := t.TempDir() + "/backup"
	restoreDir := t.TempDir()

	require.NoError(t, Write(snapDir, Meta{TakenAt: time.Unix(0, 0)}, nil, 0, nil, nil))
	require.NoError(t, Backup(snapDir, backupDir))
	require.NoError(t, Restore(backupDir, restoreDir))

	meta, _, _, _, _, err := Read(restoreDir)
	require.NoError(t, err)
	assert.Equal(t, 0, meta.RecordCount)
}
