package fusion

import "github.com/kavlex/vectorcore/pkg/vectorops"

// Candidate is one fused result carried into the rerank stage; Vector is
// only populated when the reranker needs it (MMR, cross-encoder).
type Candidate struct {
	ID     string
	Score  float64
	Vector []float32
}

// Reranker reorders (and may rescore) a candidate list. Identity, MMR, and
// score-based rerankers are provided; CrossEncoder is left as an opaque
// closure type so callers can plug in a model-backed reranker without this
// package depending on any model-loading library (spec §4.5 Open Question:
// cross-encoder support is a plug-point, not a bundled implementation).
type Reranker interface {
	Rerank(query []float32, candidates []Candidate) []Candidate
}

// RerankerFunc adapts a plain function to Reranker, mirroring the teacher's
// CustomReranker closure wrapper (pkg/core/reranker.go).
type RerankerFunc func(query []float32, candidates []Candidate) []Candidate

func (f RerankerFunc) Rerank(query []float32, candidates []Candidate) []Candidate {
	return f(query, candidates)
}

// Identity returns candidates unchanged.
func Identity() Reranker {
	return RerankerFunc(func(_ []float32, candidates []Candidate) []Candidate {
		return candidates
	})
}

// CrossEncoder wraps an external scoring closure (e.g. a cross-encoder
// model's Score(query, doc) call) that fully replaces each candidate's
// score, then re-sorts descending.
func CrossEncoder(score func(query []float32, candidate Candidate) float64) Reranker {
	return RerankerFunc(func(query []float32, candidates []Candidate) []Candidate {
		out := make([]Candidate, len(candidates))
		copy(out, candidates)
		for i := range out {
			out[i].Score = score(query, out[i])
		}
		sortCandidates(out)
		return out
	})
}

// MMR implements Maximal Marginal Relevance reranking (spec §4.5): at each
// step it picks the candidate maximizing
//
//	lambda*relevance(query, candidate) - (1-lambda)*max(similarity(candidate, selected))
//
// trading off relevance against diversity from already-selected results.
// Grounded on the teacher's DiversityReranker (pkg/core/reranker.go).
func MMR(lambda float64, metric vectorops.Metric) (Reranker, error) {
	kernel, err := vectorops.ForMetric(metric)
	if err != nil {
		return nil, err
	}
	return RerankerFunc(func(query []float32, candidates []Candidate) []Candidate {
		remaining := append([]Candidate(nil), candidates...)
		selected := make([]Candidate, 0, len(candidates))

		for len(remaining) > 0 {
			bestIdx := -1
			var bestScore float64 = -1e18

			for i, c := range remaining {
				relevance := c.Score
				maxSim := 0.0
				for _, s := range selected {
					if len(c.Vector) == 0 || len(s.Vector) == 0 {
						continue
					}
					sim, err := kernel.Score(c.Vector, s.Vector)
					if err != nil {
						continue
					}
					if float64(sim) > maxSim {
						maxSim = float64(sim)
					}
				}
				mmrScore := lambda*relevance - (1-lambda)*maxSim
				if mmrScore > bestScore {
					bestScore = mmrScore
					bestIdx = i
				}
			}

			selected = append(selected, remaining[bestIdx])
			remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
		}
		return selected
	}), nil
}

// ScoreBased wraps a pure ID->score lookup into a reranker, useful for
// business-rule boosting (e.g. recency, popularity) layered on top of
// retrieval scores without touching the fusion stage.
func ScoreBased(score func(id string, original float64) float64) Reranker {
	return RerankerFunc(func(_ []float32, candidates []Candidate) []Candidate {
		out := make([]Candidate, len(candidates))
		copy(out, candidates)
		for i := range out {
			out[i].Score = score(out[i].ID, out[i].Score)
		}
		sortCandidates(out)
		return out
	})
}

func sortCandidates(c []Candidate) {
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && c[j-1].Score < c[j].Score; j-- {
			c[j-1], c[j] = c[j], c[j-1]
		}
	}
}
