package text

// Explain is the contribution of one (term, field) pair to a document's
// score, as returned by ExplainScore, for the
// score-explanation feature carried forward from the teacher's diagnostic
// tooling (SPEC_FULL.md AMBIENT expansion).
type Explain struct {
	Term  string
	Field string
	IDF   float64
	TF    float64
	Score float64
}

// ExplainScore recomputes Search's BM25/BM25F formula for a single document,
// breaking the total down per (term, field) so callers can show their work.
func (idx *Index) ExplainScore(query, id string, weights FieldWeights) []Explain {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	docID, ok := idx.extIDToDoc[id]
	if !ok || idx.tombstone[docID] {
		return nil
	}

	N := idx.totalDocsLocked()
	if N == 0 {
		return nil
	}

	var out []Explain
	for _, term := range uniq(idx.tokenizer.Tokenize(query)) {
		entry, ok := idx.dict[term]
		if !ok {
			continue
		}
		idf := bm25IDF(N, entry.docFreq)
		for field, postings := range entry.postings {
			weight := 1.0
			if weights != nil {
				w, ok := weights[field]
				if !ok {
					continue
				}
				weight = w
			}
			for _, p := range postings {
				if p.docID != docID {
					continue
				}
				avgdl := idx.avgDocLen(field)
				dl := float64(idx.docLen[docID][field])
				normF := weight * float64(p.freq)
				if avgdl > 0 {
					normF /= (1 - idx.b + idx.b*dl/avgdl)
				}
				saturated := normF * (idx.k1 + 1) / (normF + idx.k1)
				out = append(out, Explain{
					Term:  term,
					Field: field,
					IDF:   idf,
					TF:    float64(p.freq),
					Score: idf * saturated,
				})
			}
		}
	}
	return out
}
