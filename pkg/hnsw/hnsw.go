// Package hnsw implements the Hierarchical Navigable Small World graph
// index described in spec §4.3: a layered proximity graph searched with a
// greedy descent followed by a best-first beam at layer 0.
//
// Nodes live in an arena (a growable slice) addressed by uint32 id; edges
// are ids, not pointers, so the graph has no reference cycles and clones
// trivially for snapshots (spec §9 "owned vs referenced graph nodes").
package hnsw

import (
	"container/heap"
	"context"
	"math"
	"math/rand"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/kavlex/vectorcore/pkg/vcerrors"
)

// Config holds the construction/search parameters of spec §4.3.
type Config struct {
	M              int // max connections per node per layer (default 16)
	EfConstruction int // beam width at build time (default 200)
	EfSearch       int // beam width at query time (default max(k,50))
	Seed           int64
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{M: 16, EfConstruction: 200, EfSearch: 50, Seed: 1}
}

// DistanceFunc returns a similarity score in [0,1], higher is better,
// matching the store-wide score convention of spec §4.1. The graph orders
// candidates by this score directly (higher is better), so one comparison
// works for every metric.
type DistanceFunc func(a, b []float32) (float32, error)

type node struct {
	id        uint32
	extID     string
	vector    []float32
	level     int
	neighbors [][]uint32 // neighbors[l] for l in [0, level]
}

// Graph is the layered proximity graph over live records.
type Graph struct {
	cfg      Config
	dist     DistanceFunc
	mu       sync.RWMutex
	nodes    []*node
	idToNode map[string]uint32
	entry    int64 // -1 if empty, else index into nodes
	ml       float64
	rng      *rand.Rand
	tomb     *bitset.BitSet
}

// New creates an empty graph dispatched to dist for distance computation.
func New(cfg Config, dist DistanceFunc) *Graph {
	if cfg.M <= 0 {
		cfg.M = 16
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = 200
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = 50
	}
	return &Graph{
		cfg:      cfg,
		dist:     dist,
		idToNode: make(map[string]uint32),
		entry:    -1,
		ml:       1.0 / math.Log(float64(maxInt(cfg.M, 2))),
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		tomb:     bitset.New(0),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (g *Graph) maxMForLayer(layer int) int {
	if layer == 0 {
		return g.cfg.M * 2
	}
	return g.cfg.M
}

// selectLevel draws a layer per spec §4.3: floor(-ln(U(0,1)) / ln(M)).
func (g *Graph) selectLevel() int {
	u := g.rng.Float64()
	if u <= 0 {
		u = 1e-12
	}
	level := int(math.Floor(-math.Log(u) * g.ml))
	if level > 32 {
		level = 32
	}
	return level
}

// Insert adds id/vector to the graph. A failed insert (dimension handled by
// the caller) leaves the graph unchanged.
func (g *Graph) Insert(id string, vector []float32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.idToNode[id]; exists {
		return vcerrors.New("hnsw_insert", vcerrors.KindAlreadyExists, vcerrors.ErrAlreadyExists).WithContext("id", id)
	}

	level := g.selectLevel()
	n := &node{
		id:        uint32(len(g.nodes)),
		extID:     id,
		vector:    vector,
		level:     level,
		neighbors: make([][]uint32, level+1),
	}
	for i := range n.neighbors {
		n.neighbors[i] = make([]uint32, 0, g.maxMForLayer(i))
	}

	nodeIdx := uint32(len(g.nodes))
	g.nodes = append(g.nodes, n)
	g.idToNode[id] = nodeIdx

	if g.entry < 0 {
		g.entry = int64(nodeIdx)
		return nil
	}

	entryNode := g.nodes[g.entry]
	curr := []uint32{uint32(g.entry)}

	for lc := entryNode.level; lc > level; lc-- {
		curr = g.searchLayer(vector, curr, 1, lc)
	}

	for lc := level; lc >= 0; lc-- {
		maxM := g.maxMForLayer(lc)
		candidates := g.searchLayer(vector, curr, g.cfg.EfConstruction, lc)
		selected := g.selectNeighborsHeuristic(vector, candidates, maxM)

		n.neighbors[lc] = selected
		for _, nb := range selected {
			g.addConnection(nb, nodeIdx, lc)
			g.pruneIfNeeded(nb, lc)
		}
		if len(selected) > 0 {
			curr = selected
		}
	}

	if level > entryNode.level {
		g.entry = int64(nodeIdx)
	}
	return nil
}

// Upsert inserts id/vector, or, if id is already present, retires its old
// arena node (tombstoning it so it stops being a search result and a
// routing target gets re-pruned away over time) and inserts a fresh node
// with the new vector under the same external id. The graph has no
// in-place vector mutation — nodes are append-only arena entries with
// fixed neighbor lists computed at insertion time — so an update is always
// a logical delete-then-reinsert, same as most HNSW implementations.
func (g *Graph) Upsert(id string, vector []float32) error {
	g.mu.Lock()
	if idx, exists := g.idToNode[id]; exists {
		g.tomb.Set(uint(idx))
		delete(g.idToNode, id)
	}
	g.mu.Unlock()
	return g.Insert(id, vector)
}

func (g *Graph) addConnection(from, to uint32, layer int) {
	fn := g.nodes[from]
	if layer >= len(fn.neighbors) {
		return
	}
	for _, nb := range fn.neighbors[layer] {
		if nb == to {
			return
		}
	}
	fn.neighbors[layer] = append(fn.neighbors[layer], to)
}

func (g *Graph) pruneIfNeeded(id uint32, layer int) {
	n := g.nodes[id]
	if layer >= len(n.neighbors) {
		return
	}
	maxM := g.maxMForLayer(layer)
	if len(n.neighbors[layer]) <= maxM {
		return
	}
	selected := g.selectNeighborsHeuristic(n.vector, n.neighbors[layer], maxM)
	n.neighbors[layer] = selected
}

// Delete marks id tombstoned in the shared bitset. The graph structure is
// untouched; the node stays traversable for routing but is suppressed from
// results (spec §4.3).
func (g *Graph) Delete(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx, ok := g.idToNode[id]
	if !ok {
		return vcerrors.New("hnsw_delete", vcerrors.KindNotFound, vcerrors.ErrNotFound).WithContext("id", id)
	}
	g.tomb.Set(uint(idx))
	return nil
}

// Restore clears id's tombstone bit, if present.
func (g *Graph) Restore(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx, ok := g.idToNode[id]
	if !ok {
		return vcerrors.New("hnsw_restore", vcerrors.KindNotFound, vcerrors.ErrNotFound).WithContext("id", id)
	}
	g.tomb.Clear(uint(idx))
	return nil
}

// Len reports the number of live (non-tombstoned) nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes) - int(g.tomb.Count())
}

// Contains reports whether id is present in the graph, live or tombstoned.
func (g *Graph) Contains(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.idToNode[id]
	return ok
}

// Hit is one search result: external id plus similarity score in [0,1].
type Hit struct {
	ID    string
	Score float32
}

// SearchOptions configures Search.
type SearchOptions struct {
	K       int
	Ef      int                // beam width; default max(K, cfg.EfSearch)
	Accept  func(id string) bool // optional post-filter predicate (spec §4.8)
	Ctx     context.Context
	CheckEvery int // check ctx.Done() every N expanded candidates
}

// Search runs the greedy descent to layer 0 followed by a beam search of
// width Ef, returning up to K live hits ordered by descending score
// (spec §4.3). If Accept is set and fewer than K candidates pass it, the
// beam width is doubled and layer 0 searched again, up to six attempts in
// all, stopping early once the width reaches 4*len(nodes)+16
// (post-filter strategy, spec §4.8).
func (g *Graph) Search(query []float32, opts SearchOptions) ([]Hit, bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.entry < 0 {
		return nil, false, nil
	}
	ef := opts.Ef
	if ef <= 0 {
		ef = maxInt(opts.K, g.cfg.EfSearch)
	}

	entryNode := g.nodes[g.entry]
	curr := []uint32{uint32(g.entry)}
	for lc := entryNode.level; lc > 0; lc-- {
		curr = g.searchLayer(query, curr, 1, lc)
	}

	budget := ef
	truncated := false
	var hits []Hit
	for attempt := 0; attempt < 6; attempt++ {
		cands, trunc := g.searchLayerBounded(query, curr, budget, 0, opts)
		truncated = truncated || trunc
		hits = hits[:0]
		for _, id := range cands {
			if g.tomb.Test(uint(id)) {
				continue
			}
			n := g.nodes[id]
			if opts.Accept != nil && !opts.Accept(n.extID) {
				continue
			}
			score, err := g.dist(query, n.vector)
			if err != nil {
				return nil, false, err
			}
			hits = append(hits, Hit{ID: n.extID, Score: score})
		}
		if opts.Accept == nil || len(hits) >= opts.K || budget >= len(g.nodes)*4+16 {
			break
		}
		budget *= 2
	}

	sortHitsDesc(hits)
	if len(hits) > opts.K {
		hits = hits[:opts.K]
	}
	return hits, truncated, nil
}

func sortHitsDesc(hits []Hit) {
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].Score > hits[j-1].Score; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
}

// searchLayerBounded wraps searchLayer with a context deadline check every
// CheckEvery expanded candidates (spec §5 cancellation).
func (g *Graph) searchLayerBounded(query []float32, entryPoints []uint32, ef, layer int, opts SearchOptions) ([]uint32, bool) {
	if opts.Ctx == nil {
		return g.searchLayer(query, entryPoints, ef, layer), false
	}
	checkEvery := opts.CheckEvery
	if checkEvery <= 0 {
		checkEvery = 256
	}
	return g.searchLayerCtx(query, entryPoints, ef, layer, opts.Ctx, checkEvery)
}

func (g *Graph) distTo(query []float32, id uint32) float32 {
	s, err := g.dist(query, g.nodes[id].vector)
	if err != nil {
		return -1
	}
	return s
}

// searchLayer performs best-first search at one layer. It orders
// internally by similarity (higher is better) using a max-heap frontier
// (closest unexplored candidate popped first) and a min-heap of the ef
// best candidates found so far (worst-kept on top, for cheap eviction),
// matching the teacher's two-heap technique in pkg/index/hnsw.go.
func (g *Graph) searchLayer(query []float32, entryPoints []uint32, ef, layer int) []uint32 {
	ids, _ := g.searchLayerCtx(query, entryPoints, ef, layer, nil, 0)
	return ids
}

func (g *Graph) searchLayerCtx(query []float32, entryPoints []uint32, ef, layer int, ctx context.Context, checkEvery int) ([]uint32, bool) {
	visited := make(map[uint32]bool, ef*2)
	frontier := &maxScoreHeap{} // max-heap by score: closest unexplored candidate first
	dynamic := &scoreHeap{}     // min-heap by score: worst of the kept set on top, to evict

	for _, p := range entryPoints {
		s := g.distTo(query, p)
		heap.Push(frontier, scoreItem{id: p, score: s})
		heap.Push(dynamic, scoreItem{id: p, score: s})
		visited[p] = true
	}

	expanded := 0
	truncated := false
	for frontier.Len() > 0 {
		if ctx != nil {
			expanded++
			if checkEvery > 0 && expanded%checkEvery == 0 {
				select {
				case <-ctx.Done():
					truncated = true
					goto done
				default:
				}
			}
		}

		best := heap.Pop(frontier).(scoreItem)
		if dynamic.Len() >= ef && best.score < (*dynamic)[0].score {
			break
		}
		cur := g.nodes[best.id]
		if layer >= len(cur.neighbors) {
			continue
		}
		for _, nb := range cur.neighbors[layer] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			s := g.distTo(query, nb)
			if dynamic.Len() < ef || s > (*dynamic)[0].score {
				heap.Push(frontier, scoreItem{id: nb, score: s})
				heap.Push(dynamic, scoreItem{id: nb, score: s})
				if dynamic.Len() > ef {
					heap.Pop(dynamic)
				}
			}
		}
	}
done:
	result := make([]uint32, dynamic.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(dynamic).(scoreItem).id
	}
	return result, truncated
}

// selectNeighborsHeuristic prefers diverse neighbors over merely-closest
// ones: a candidate is kept only if it is closer to the query than to
// every neighbor already selected, which thins out hub-like clusters
// (spec §4.3's "heuristic neighbor selection").
func (g *Graph) selectNeighborsHeuristic(query []float32, candidates []uint32, m int) []uint32 {
	if len(candidates) <= m {
		out := make([]uint32, len(candidates))
		copy(out, candidates)
		return out
	}

	type scored struct {
		id    uint32
		score float32
	}
	scoredCands := make([]scored, len(candidates))
	for i, c := range candidates {
		scoredCands[i] = scored{id: c, score: g.distTo(query, c)}
	}
	for i := 1; i < len(scoredCands); i++ {
		for j := i; j > 0 && scoredCands[j].score > scoredCands[j-1].score; j-- {
			scoredCands[j], scoredCands[j-1] = scoredCands[j-1], scoredCands[j]
		}
	}

	selected := make([]uint32, 0, m)
	for _, c := range scoredCands {
		if len(selected) >= m {
			break
		}
		diverse := true
		for _, s := range selected {
			simToSelected := g.distTo(g.nodes[c.id].vector, s)
			if simToSelected > c.score {
				diverse = false
				break
			}
		}
		if diverse {
			selected = append(selected, c.id)
		}
	}
	// If the heuristic was too strict to fill m slots, backfill with the
	// remaining closest candidates.
	if len(selected) < m {
		have := make(map[uint32]bool, len(selected))
		for _, s := range selected {
			have[s] = true
		}
		for _, c := range scoredCands {
			if len(selected) >= m {
				break
			}
			if !have[c.id] {
				selected = append(selected, c.id)
			}
		}
	}
	return selected
}

type scoreItem struct {
	id    uint32
	score float32
}

// scoreHeap is a min-heap on score (worst candidate at the top), used as
// the bounded "best-ef-so-far" set so the worst-kept item is cheap to evict.
type scoreHeap []scoreItem

func (h scoreHeap) Len() int            { return len(h) }
func (h scoreHeap) Less(i, j int) bool  { return h[i].score < h[j].score }
func (h scoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scoreHeap) Push(x interface{}) { *h = append(*h, x.(scoreItem)) }
func (h *scoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// maxScoreHeap is a max-heap on score (best/closest candidate at the top),
// used as the expansion frontier so the nearest unexplored candidate is
// always popped first, mirroring the teacher's two-heap technique
// (pkg/index/hnsw.go's closest-candidate-first frontier).
type maxScoreHeap []scoreItem

func (h maxScoreHeap) Len() int            { return len(h) }
func (h maxScoreHeap) Less(i, j int) bool  { return h[i].score > h[j].score }
func (h maxScoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxScoreHeap) Push(x interface{}) { *h = append(*h, x.(scoreItem)) }
func (h *maxScoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
