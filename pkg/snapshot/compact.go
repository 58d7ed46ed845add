package snapshot

import (
	"github.com/kavlex/vectorcore/pkg/hnsw"
	"github.com/kavlex/vectorcore/pkg/record"
	"github.com/kavlex/vectorcore/pkg/text"
)

// Compact rebuilds a fresh HNSW graph and text index over liveRecords only,
// physically discarding whatever tombstoned entries the live graph/index
// carried (spec §4.6: "Compaction rebuilds the HNSW graph and text index
// over live records only."). fields supplies each record's per-field text,
// or nil/empty if the record carries no text payload.
func Compact(liveRecords []*record.Record, hnswCfg hnsw.Config, dist hnsw.DistanceFunc, textCfg text.Config, fields func(id string) text.FieldTokens) (*hnsw.Graph, *text.Index, error) {
	ids := make([]string, 0, len(liveRecords))
	vectors := make([][]float32, 0, len(liveRecords))
	for _, r := range liveRecords {
		if r.Vector.Dense == nil {
			continue
		}
		ids = append(ids, r.ID)
		vectors = append(vectors, r.Vector.Dense)
	}

	graph, err := hnsw.Rebuild(hnswCfg, dist, ids, vectors)
	if err != nil {
		return nil, nil, err
	}

	idx := text.New(textCfg)
	if fields != nil {
		for _, r := range liveRecords {
			if ft := fields(r.ID); len(ft) > 0 {
				idx.Upsert(r.ID, ft)
			}
		}
	}

	return graph, idx, nil
}
