// Package fusion combines ranked result lists from multiple retrieval
// strategies (dense HNSW, sparse BM25) into one ranking, per spec §4.5.
// Strategies are pure functions selected once per query by a tagged enum,
// matching the teacher's pkg/core/reranker.go/advanced_search.go style of
// avoiding per-call dynamic dispatch on the hot path.
package fusion

import (
	"math"
	"sort"

	"github.com/kavlex/vectorcore/pkg/vcerrors"
)

// Strategy selects a fusion algorithm (spec §4.5, §6 config enum).
type Strategy string

const (
	StrategyWeightedSum    Strategy = "weighted_sum"
	StrategyRRF            Strategy = "rrf"
	StrategyDBSF           Strategy = "dbsf"
	StrategyRelativeScore  Strategy = "relative_score"
	StrategyMax            Strategy = "max"
	StrategyMin            Strategy = "min"
	StrategyHarmonicMean   Strategy = "harmonic_mean"
	StrategyGeometricMean  Strategy = "geometric_mean"
)

// RRFK is the spec-documented RRF smoothing constant.
const RRFK = 60.0

// Ranked is one scored item from a single source ranking, identified by id.
type Ranked struct {
	ID    string
	Score float64
}

// Source is one retrieval strategy's ranking plus its fusion weight
// (weighted_sum, relative_score, max, min, harmonic_mean and geometric_mean
// apply Weight; rrf and dbsf ignore it).
type Source struct {
	Name   string
	Weight float64
	Hits   []Ranked
}

// Fused is one item in the fused ranking, keeping each source's
// contribution for explanation (spec §4.9 diagnostics, ambient expansion).
type Fused struct {
	ID           string
	Score        float64
	PerSource    map[string]float64
	SourceRanks  map[string]int
}

// Fuse merges sources into a single ranking using strategy.
func Fuse(strategy Strategy, sources []Source) ([]Fused, error) {
	switch strategy {
	case StrategyWeightedSum, "":
		return fuseWeightedSum(sources), nil
	case StrategyRRF:
		return fuseRRF(sources), nil
	case StrategyDBSF:
		return fuseDBSF(sources), nil
	case StrategyRelativeScore:
		return fuseRelativeScore(sources), nil
	case StrategyMax:
		return fuseWeighted(sources, maxCombine), nil
	case StrategyMin:
		return fuseWeighted(sources, minCombine), nil
	case StrategyHarmonicMean:
		return fuseWeighted(sources, harmonicCombine), nil
	case StrategyGeometricMean:
		return fuseWeighted(sources, geometricCombine), nil
	default:
		return nil, vcerrors.New("fuse", vcerrors.KindInvalidArgument, nil).WithContext("strategy", string(strategy))
	}
}

type combineFunc func(scores []float64) float64

func weightedCombine(scores []float64) float64 {
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum
}

func maxCombine(scores []float64) float64 {
	m := scores[0]
	for _, s := range scores[1:] {
		if s > m {
			m = s
		}
	}
	return m
}

func minCombine(scores []float64) float64 {
	m := scores[0]
	for _, s := range scores[1:] {
		if s < m {
			m = s
		}
	}
	return m
}

func harmonicCombine(scores []float64) float64 {
	var denom float64
	for _, s := range scores {
		if s <= 0 {
			return 0
		}
		denom += 1 / s
	}
	return float64(len(scores)) / denom
}

func geometricCombine(scores []float64) float64 {
	product := 1.0
	for _, s := range scores {
		if s <= 0 {
			return 0
		}
		product *= s
	}
	return math.Pow(product, 1.0/float64(len(scores)))
}

// fuseWeightedSum min-max normalizes each source to [0,1] before applying
// weight*score and summing, per spec §4.5 ("normalize each list to [0,1],
// then alpha*s_dense+(1-alpha)*s_sparse"): without this, an unbounded BM25
// sparse score would swamp a dense side already scaled to [0,1].
func fuseWeightedSum(sources []Source) []Fused {
	normalized := make([]Source, len(sources))
	for i, src := range sources {
		normalized[i] = Source{Name: src.Name, Weight: src.Weight, Hits: minMaxNormalize(src.Hits)}
	}
	return fuseWeighted(normalized, weightedCombine)
}

// fuseWeighted applies weight*score per source then combine across sources
// present for a given id (ids absent from a source contribute nothing).
func fuseWeighted(sources []Source, combine combineFunc) []Fused {
	byID := make(map[string]*Fused)
	order := make([]string, 0)

	for _, src := range sources {
		w := src.Weight
		if w == 0 {
			w = 1
		}
		for rank, hit := range src.Hits {
			f, ok := byID[hit.ID]
			if !ok {
				f = &Fused{ID: hit.ID, PerSource: map[string]float64{}, SourceRanks: map[string]int{}}
				byID[hit.ID] = f
				order = append(order, hit.ID)
			}
			f.PerSource[src.Name] = w * hit.Score
			f.SourceRanks[src.Name] = rank + 1
		}
	}

	out := make([]Fused, 0, len(order))
	for _, id := range order {
		f := byID[id]
		scores := make([]float64, 0, len(f.PerSource))
		for _, s := range f.PerSource {
			scores = append(scores, s)
		}
		f.Score = combine(scores)
		out = append(out, *f)
	}
	sortFused(out)
	return out
}

func fuseRRF(sources []Source) []Fused {
	byID := make(map[string]*Fused)
	order := make([]string, 0)

	for _, src := range sources {
		for rank, hit := range src.Hits {
			f, ok := byID[hit.ID]
			if !ok {
				f = &Fused{ID: hit.ID, PerSource: map[string]float64{}, SourceRanks: map[string]int{}}
				byID[hit.ID] = f
				order = append(order, hit.ID)
			}
			contribution := 1.0 / (RRFK + float64(rank+1))
			f.PerSource[src.Name] = contribution
			f.SourceRanks[src.Name] = rank + 1
			f.Score += contribution
		}
	}

	out := make([]Fused, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sortFused(out)
	return out
}

// fuseDBSF normalizes each source's scores to a mu +/- 3*sigma z-score
// window before summing, per spec §4.5's distribution-based score fusion.
func fuseDBSF(sources []Source) []Fused {
	normalized := make([]Source, len(sources))
	for i, src := range sources {
		normalized[i] = Source{Name: src.Name, Weight: 1, Hits: zScoreNormalize(src.Hits)}
	}
	return fuseWeighted(normalized, weightedCombine)
}

func zScoreNormalize(hits []Ranked) []Ranked {
	if len(hits) == 0 {
		return hits
	}
	var mean float64
	for _, h := range hits {
		mean += h.Score
	}
	mean /= float64(len(hits))

	var variance float64
	for _, h := range hits {
		d := h.Score - mean
		variance += d * d
	}
	variance /= float64(len(hits))
	std := math.Sqrt(variance)

	out := make([]Ranked, len(hits))
	for i, h := range hits {
		if std == 0 {
			out[i] = Ranked{ID: h.ID, Score: 0}
			continue
		}
		z := (h.Score - mean) / std
		z = math.Max(-3, math.Min(3, z))
		out[i] = Ranked{ID: h.ID, Score: (z + 3) / 6}
	}
	return out
}

func fuseRelativeScore(sources []Source) []Fused {
	normalized := make([]Source, len(sources))
	for i, src := range sources {
		normalized[i] = Source{Name: src.Name, Weight: src.Weight, Hits: minMaxNormalize(src.Hits)}
	}
	return fuseWeighted(normalized, weightedCombine)
}

func minMaxNormalize(hits []Ranked) []Ranked {
	if len(hits) == 0 {
		return hits
	}
	lo, hi := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < lo {
			lo = h.Score
		}
		if h.Score > hi {
			hi = h.Score
		}
	}
	span := hi - lo
	out := make([]Ranked, len(hits))
	for i, h := range hits {
		if span == 0 {
			out[i] = Ranked{ID: h.ID, Score: 1}
			continue
		}
		out[i] = Ranked{ID: h.ID, Score: (h.Score - lo) / span}
	}
	return out
}

func sortFused(out []Fused) {
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
}
