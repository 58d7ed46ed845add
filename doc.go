// Package vectorcore provides a lightweight, embeddable vector search and
// retrieval engine for Go AI projects.
//
// vectorcore stores dense vectors, sparse vectors, and arbitrary metadata
// under a single string id, indexes dense vectors with an in-memory HNSW
// graph and text fields with a BM25/BM25F inverted index, and persists
// everything through a write-ahead log plus periodic snapshots so a crash
// never loses acknowledged writes.
//
// # Quick Start
//
//	db, err := vectorcore.Open("./data", vectorcore.WithDimension(3))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	_, err = db.Upsert(engine.UpsertInput{
//	    ID:    "doc-1",
//	    Dense: []float32{0.1, 0.2, 0.3},
//	    Text:  map[string]string{"body": "vectorcore is a Go retrieval engine"},
//	})
//
//	results, err := db.Query([]float32{0.1, 0.2, 0.29}, engine.QueryOptions{K: 5})
//
// # Hybrid Search
//
// Combine dense and sparse retrieval with a fusion strategy:
//
//	results, err := db.QueryHybrid(queryVec, "search term", engine.QueryOptions{
//	    K:        10,
//	    Strategy: fusion.StrategyRRF,
//	})
//
// # Multi-tenancy
//
// Use pkg/namespace.Manager to lazily open one Store per tenant id, each
// under its own quota.
package vectorcore
