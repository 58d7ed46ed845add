package hnsw

import (
	"encoding/gob"
	"io"
	"math"

	"github.com/bits-and-blooms/bitset"
)

// gobNode is the wire shape persisted for a single node; unexported fields
// on node itself aren't visible to encoding/gob.
type gobNode struct {
	ExtID     string
	Vector    []float32
	Level     int
	Neighbors [][]uint32
}

type gobGraph struct {
	M              int
	EfConstruction int
	EfSearch       int
	Entry          int64
	Nodes          []gobNode
	Tombstones     []byte
}

// Save serializes the graph with encoding/gob, matching the teacher's own
// choice in pkg/index/hnsw.go. The caller is expected to wrap w with
// compression (pkg/snapshot does this with zstd).
func (g *Graph) Save(w io.Writer) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	gg := gobGraph{
		M:              g.cfg.M,
		EfConstruction: g.cfg.EfConstruction,
		EfSearch:       g.cfg.EfSearch,
		Entry:          g.entry,
		Nodes:          make([]gobNode, len(g.nodes)),
	}
	for i, n := range g.nodes {
		gg.Nodes[i] = gobNode{ExtID: n.extID, Vector: n.vector, Level: n.level, Neighbors: n.neighbors}
	}
	tomb, err := g.tomb.MarshalBinary()
	if err != nil {
		return err
	}
	gg.Tombstones = tomb

	return gob.NewEncoder(w).Encode(&gg)
}

// Load replaces the graph's contents with the serialized state from r.
func (g *Graph) Load(r io.Reader) error {
	var gg gobGraph
	if err := gob.NewDecoder(r).Decode(&gg); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.cfg.M = gg.M
	g.cfg.EfConstruction = gg.EfConstruction
	g.cfg.EfSearch = gg.EfSearch
	g.ml = 1.0 / math.Log(float64(maxInt(g.cfg.M, 2)))
	g.entry = gg.Entry

	g.nodes = make([]*node, len(gg.Nodes))
	g.idToNode = make(map[string]uint32, len(gg.Nodes))
	for i, gn := range gg.Nodes {
		g.nodes[i] = &node{id: uint32(i), extID: gn.ExtID, vector: gn.Vector, level: gn.Level, neighbors: gn.Neighbors}
		g.idToNode[gn.ExtID] = uint32(i)
	}

	tomb := bitset.New(0)
	if len(gg.Tombstones) > 0 {
		if err := tomb.UnmarshalBinary(gg.Tombstones); err != nil {
			return err
		}
	}
	g.tomb = tomb
	return nil
}

// Rebuild discards the current graph and reinserts ids/vectors in order,
// used by compaction to eliminate tombstoned nodes entirely (spec §4.6).
func Rebuild(cfg Config, dist DistanceFunc, ids []string, vectors [][]float32) (*Graph, error) {
	g := New(cfg, dist)
	for i, id := range ids {
		if err := g.Insert(id, vectors[i]); err != nil {
			return nil, err
		}
	}
	return g, nil
}
