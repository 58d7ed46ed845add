package engine

import (
	"context"

	"github.com/kavlex/vectorcore/pkg/filter"
	"github.com/kavlex/vectorcore/pkg/fusion"
	"github.com/kavlex/vectorcore/pkg/hnsw"
	"github.com/kavlex/vectorcore/pkg/record"
	"github.com/kavlex/vectorcore/pkg/text"
	"github.com/kavlex/vectorcore/pkg/vcerrors"
)

// overfetchMultiplier widens the candidate sets of QueryText and QueryHybrid
// before filtering/fusion/rerank/autocut shrink the list back down to k
// (spec §4.8's post-filter strategy). Dense Query does not use it; with a
// filter set it relies on hnsw.Search widening its own beam.
const overfetchMultiplier = 4

// QueryOptions configures a single query (spec §4.8, §4.9).
type QueryOptions struct {
	K          int
	Ctx        context.Context
	Filter     *filter.Expr
	FilterExpr string // parsed into Filter if non-empty and Filter is nil
	Ef         int
	FieldWeights text.FieldWeights
	Strategy   fusion.Strategy
	DenseWeight, SparseWeight float64
	Reranker   fusion.Reranker
	Autocut    float64 // 0 disables autocut; gap-vs-median factor otherwise
	AutocutN   int     // which jump to cut at; 0 defaults to the 1st
	Explain    bool
}

// Result is one scored, optionally explained hit.
type Result struct {
	ID       string
	Score    float64
	Record   *record.Record
	Explain  []text.Explain
}

func (s *Store) resolveFilter(opts QueryOptions) (*filter.Expr, error) {
	if opts.Filter != nil {
		return opts.Filter, nil
	}
	if opts.FilterExpr == "" {
		return nil, nil
	}
	return filter.Parse(opts.FilterExpr)
}

// Query performs dense (HNSW) nearest-neighbor search.
func (s *Store) Query(vector []float32, opts QueryOptions) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, vcerrors.New("query", vcerrors.KindUnavailable, vcerrors.ErrStoreClosed)
	}

	expr, err := s.resolveFilter(opts)
	if err != nil {
		return nil, err
	}

	k := opts.K
	if k <= 0 {
		k = 10
	}
	ef := opts.Ef
	if ef <= 0 {
		ef = s.cfg.HNSW.EfSearch
	}

	accept := s.acceptFn(expr)
	hits, _, err := s.graph.Search(vector, hnsw.SearchOptions{K: k, Ef: ef, Accept: accept, Ctx: opts.Ctx})
	if err != nil {
		return nil, err
	}

	return s.toResults(hits, opts)
}

func (s *Store) acceptFn(expr *filter.Expr) func(string) bool {
	if expr == nil {
		return nil
	}
	return func(id string) bool {
		rec, err := s.records.Get(id)
		if err != nil {
			return false
		}
		return filter.Eval(expr, stripReservedText(rec).Metadata)
	}
}

func (s *Store) toResults(hits []hnsw.Hit, opts QueryOptions) ([]Result, error) {
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		rec, err := s.records.Get(h.ID)
		if err != nil {
			continue
		}
		out = append(out, Result{ID: h.ID, Score: float64(h.Score), Record: stripReservedText(rec)})
	}
	return applyRerankAndAutocut(out, opts, nil)
}

// QueryText performs sparse BM25/BM25F search over the text index.
func (s *Store) QueryText(query string, opts QueryOptions) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, vcerrors.New("query_text", vcerrors.KindUnavailable, vcerrors.ErrStoreClosed)
	}

	expr, err := s.resolveFilter(opts)
	if err != nil {
		return nil, err
	}

	k := opts.K
	if k <= 0 {
		k = 10
	}

	hits := s.textIdx.Search(query, k*overfetchMultiplier, opts.FieldWeights)
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		rec, err := s.records.Get(h.ID)
		if err != nil {
			continue
		}
		rec = stripReservedText(rec)
		if expr != nil && !filter.Eval(expr, rec.Metadata) {
			continue
		}
		res := Result{ID: h.ID, Score: h.Score, Record: rec}
		if opts.Explain {
			res.Explain = s.textIdx.ExplainScore(query, h.ID, opts.FieldWeights)
		}
		out = append(out, res)
		if len(out) >= k && opts.Autocut == 0 {
			break
		}
	}
	return applyRerankAndAutocut(out, opts, nil)
}

// QueryHybrid combines a dense vector query and a sparse text query via a
// fusion.Strategy (spec §4.5).
func (s *Store) QueryHybrid(vector []float32, query string, opts QueryOptions) ([]Result, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, vcerrors.New("query_hybrid", vcerrors.KindUnavailable, vcerrors.ErrStoreClosed)
	}

	expr, err := s.resolveFilter(opts)
	if err != nil {
		s.mu.RUnlock()
		return nil, err
	}

	k := opts.K
	if k <= 0 {
		k = 10
	}
	ef := opts.Ef
	if ef <= 0 {
		ef = s.cfg.HNSW.EfSearch
	}
	accept := s.acceptFn(expr)

	denseHits, _, err := s.graph.Search(vector, hnsw.SearchOptions{K: k * overfetchMultiplier, Ef: ef, Accept: accept, Ctx: opts.Ctx})
	if err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	sparseHits := s.textIdx.Search(query, k*overfetchMultiplier, opts.FieldWeights)
	s.mu.RUnlock()

	denseRanked := make([]fusion.Ranked, len(denseHits))
	for i, h := range denseHits {
		denseRanked[i] = fusion.Ranked{ID: h.ID, Score: float64(h.Score)}
	}
	sparseRanked := make([]fusion.Ranked, len(sparseHits))
	for i, h := range sparseHits {
		sparseRanked[i] = fusion.Ranked{ID: h.ID, Score: h.Score}
	}

	strategy := opts.Strategy
	if strategy == "" {
		strategy = fusion.StrategyRRF
	}
	sources := []fusion.Source{
		{Name: "dense", Weight: nonZero(opts.DenseWeight, 1), Hits: denseRanked},
		{Name: "sparse", Weight: nonZero(opts.SparseWeight, 1), Hits: sparseRanked},
	}
	fused, err := fusion.Fuse(strategy, sources)
	if err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(fused))
	for _, f := range fused {
		rec, err := s.records.Get(f.ID)
		if err != nil {
			continue
		}
		rec = stripReservedText(rec)
		if expr != nil && !filter.Eval(expr, rec.Metadata) {
			continue
		}
		out = append(out, Result{ID: f.ID, Score: f.Score, Record: rec})
	}

	return applyRerankAndAutocut(out, opts, vector)
}

func nonZero(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func applyRerankAndAutocut(results []Result, opts QueryOptions, query []float32) ([]Result, error) {
	if opts.Reranker != nil {
		candidates := make([]fusion.Candidate, len(results))
		byID := make(map[string]*Result, len(results))
		for i, r := range results {
			candidates[i] = fusion.Candidate{ID: r.ID, Score: r.Score, Vector: r.Record.Vector.Dense}
			byID[r.ID] = &results[i]
		}
		reranked := opts.Reranker.Rerank(query, candidates)
		next := make([]Result, 0, len(reranked))
		for _, c := range reranked {
			r := byID[c.ID]
			r.Score = c.Score
			next = append(next, *r)
		}
		results = next
	}

	if opts.Autocut > 0 && len(results) > 0 {
		scores := make([]float64, len(results))
		for i, r := range results {
			scores[i] = r.Score
		}
		cut := fusion.Autocut(scores, opts.AutocutN, opts.Autocut)
		results = results[:cut]
	}

	k := opts.K
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}
