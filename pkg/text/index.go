package text

import (
	"math"
	"sort"
	"sync"

	"github.com/kavlex/vectorcore/pkg/vcerrors"
)

// posting is one (docID, termFrequency) entry for a term, optionally scoped
// to a field for BM25F (spec §4.4).
type posting struct {
	docID uint32
	freq  int
}

type termEntry struct {
	docFreq  int
	postings map[string][]posting // field -> postings, "" for unfielded docs
}

// Index is the inverted posting store plus per-document length statistics
// (spec §4.4). Doc ids here are the engine's external record ids; Index
// keeps its own dense uint32 mapping for compact postings.
type Index struct {
	mu         sync.RWMutex
	tokenizer  Tokenizer
	k1, b      float64
	dict       map[string]*termEntry
	docExtID   map[uint32]string
	extIDToDoc map[string]uint32
	docLen     map[uint32]map[string]int // docID -> field -> length
	totalLen   map[string]int            // field -> sum of lengths
	docCount   map[string]int            // field -> number of docs with that field
	nextDocID  uint32
	tombstone  map[uint32]bool
}

// Config configures BM25/BM25F parameters (spec §4.4, §6).
type Config struct {
	K1        float64
	B         float64
	Tokenizer Tokenizer
}

// DefaultConfig returns the spec's documented BM25 defaults.
func DefaultConfig() Config {
	return Config{K1: 1.2, B: 0.75, Tokenizer: WhitespaceTokenizer{}}
}

// New creates an empty text index.
func New(cfg Config) *Index {
	if cfg.Tokenizer == nil {
		cfg.Tokenizer = WhitespaceTokenizer{}
	}
	if cfg.K1 == 0 {
		cfg.K1 = 1.2
	}
	if cfg.B == 0 {
		cfg.B = 0.75
	}
	return &Index{
		tokenizer:  cfg.Tokenizer,
		k1:         cfg.K1,
		b:          cfg.B,
		dict:       make(map[string]*termEntry),
		docExtID:   make(map[uint32]string),
		extIDToDoc: make(map[string]uint32),
		docLen:     make(map[uint32]map[string]int),
		totalLen:   make(map[string]int),
		docCount:   make(map[string]int),
		tombstone:  make(map[uint32]bool),
	}
}

// FieldTokens maps a field name to its raw text for multi-field indexing
// (BM25F, spec §4.4). A single-field document can use the empty field name.
type FieldTokens map[string]string

// Upsert (re)indexes id against the given fields, replacing any prior
// posting contribution from id.
func (idx *Index) Upsert(id string, fields FieldTokens) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if docID, ok := idx.extIDToDoc[id]; ok {
		idx.removeLocked(docID)
	}

	docID := idx.nextDocID
	idx.nextDocID++
	idx.docExtID[docID] = id
	idx.extIDToDoc[id] = docID
	idx.docLen[docID] = make(map[string]int)
	delete(idx.tombstone, docID)

	for field, text := range fields {
		terms := idx.tokenizer.Tokenize(text)
		if len(terms) == 0 {
			continue
		}
		counts := make(map[string]int, len(terms))
		for _, t := range terms {
			counts[t]++
		}
		idx.docLen[docID][field] = len(terms)
		idx.totalLen[field] += len(terms)
		idx.docCount[field]++

		for term, freq := range counts {
			entry, ok := idx.dict[term]
			if !ok {
				entry = &termEntry{postings: make(map[string][]posting)}
				idx.dict[term] = entry
			}
			entry.docFreq++
			entry.postings[field] = append(entry.postings[field], posting{docID: docID, freq: freq})
		}
	}
}

func (idx *Index) removeLocked(docID uint32) {
	id := idx.docExtID[docID]
	lens := idx.docLen[docID]
	for field, l := range lens {
		idx.totalLen[field] -= l
		idx.docCount[field]--
	}
	for term, entry := range idx.dict {
		changed := false
		for field, postings := range entry.postings {
			kept := postings[:0]
			for _, p := range postings {
				if p.docID != docID {
					kept = append(kept, p)
				} else {
					changed = true
				}
			}
			entry.postings[field] = kept
		}
		if changed {
			entry.docFreq--
			if entry.docFreq <= 0 {
				delete(idx.dict, term)
			}
		}
	}
	delete(idx.docExtID, docID)
	delete(idx.extIDToDoc, id)
	delete(idx.docLen, docID)
	delete(idx.tombstone, docID)
}

// Delete tombstones id so it is excluded from future scoring without
// rewriting postings (compaction reclaims the space, spec §4.6).
func (idx *Index) Delete(id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	docID, ok := idx.extIDToDoc[id]
	if !ok {
		return vcerrors.New("text_delete", vcerrors.KindNotFound, vcerrors.ErrNotFound).WithContext("id", id)
	}
	idx.tombstone[docID] = true
	return nil
}

// Restore clears id's tombstone.
func (idx *Index) Restore(id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	docID, ok := idx.extIDToDoc[id]
	if !ok {
		return vcerrors.New("text_restore", vcerrors.KindNotFound, vcerrors.ErrNotFound).WithContext("id", id)
	}
	delete(idx.tombstone, docID)
	return nil
}

func (idx *Index) avgDocLen(field string) float64 {
	n := idx.docCount[field]
	if n == 0 {
		return 0
	}
	return float64(idx.totalLen[field]) / float64(n)
}

// Hit is one scored search result.
type Hit struct {
	ID    string
	Score float64
}

// FieldWeights maps field name to boost for BM25F (spec §4.4). A nil map
// scores every field with weight 1.
type FieldWeights map[string]float64

// Search scores query against every indexed document using BM25/BM25F and
// returns the top results in descending score order (ties broken by
// insertion order, ascending docID, to match the teacher's deterministic
// scan order and spec §8 scenario 1's tie-break convention).
func (idx *Index) Search(query string, k int, weights FieldWeights) []Hit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	terms := idx.tokenizer.Tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	N := idx.totalDocsLocked()
	if N == 0 {
		return nil
	}

	scores := make(map[uint32]float64)
	for _, term := range uniq(terms) {
		entry, ok := idx.dict[term]
		if !ok {
			continue
		}
		df := entry.docFreq
		idf := bm25IDF(N, df)

		for field, postings := range entry.postings {
			weight := 1.0
			if weights != nil {
				w, ok := weights[field]
				if !ok {
					continue
				}
				weight = w
			}
			avgdl := idx.avgDocLen(field)
			for _, p := range postings {
				if idx.tombstone[p.docID] {
					continue
				}
				dl := float64(idx.docLen[p.docID][field])
				normF := weight * float64(p.freq)
				if avgdl > 0 {
					normF /= (1 - idx.b + idx.b*dl/avgdl)
				}
				saturated := normF * (idx.k1 + 1) / (normF + idx.k1)
				scores[p.docID] += idf * saturated
			}
		}
	}

	hits := make([]Hit, 0, len(scores))
	for docID, score := range scores {
		if idx.tombstone[docID] {
			continue
		}
		hits = append(hits, Hit{ID: idx.docExtID[docID], Score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return idx.extIDToDoc[hits[i].ID] < idx.extIDToDoc[hits[j].ID]
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func (idx *Index) totalDocsLocked() int {
	return len(idx.docExtID) - len(idx.tombstone)
}

func bm25IDF(N, df int) float64 {
	return math.Log((float64(N)-float64(df)+0.5)/(float64(df)+0.5) + 1)
}

func uniq(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := terms[:0:0]
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of live indexed documents.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.totalDocsLocked()
}
