package engine

import (
	"time"

	"github.com/kavlex/vectorcore/pkg/record"
	"github.com/kavlex/vectorcore/pkg/vcerrors"
	"github.com/kavlex/vectorcore/pkg/vectorops"
)

// UpsertInput is the payload for Store.Upsert (spec §4.2, §4.4).
type UpsertInput struct {
	ID       string
	Dense    []float32
	Sparse   *vectorops.Sparse
	Metadata record.Metadata
	Text     map[string]string
	TTL      *time.Duration
}

// Upsert inserts or overwrites a record, indexing its dense vector into
// the HNSW graph and its text fields into the BM25 index.
func (s *Store) Upsert(in UpsertInput) (*record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, vcerrors.New("upsert", vcerrors.KindUnavailable, vcerrors.ErrStoreClosed)
	}

	vec := record.Vector{Dense: in.Dense, Sparse: in.Sparse}
	meta := withText(in.Metadata, in.Text)

	rec, err := s.records.Upsert(in.ID, vec, meta, in.TTL)
	if err != nil {
		return nil, err
	}
	rec = stripReservedText(rec)

	if in.Dense != nil {
		if err := s.graph.Upsert(in.ID, in.Dense); err != nil {
			s.logger.Warn("hnsw upsert failed", "id", in.ID, "error", err)
		}
	}
	if len(in.Text) > 0 {
		s.textIdx.Upsert(in.ID, in.Text)
	}

	return rec, nil
}

// Get returns the live record for id.
func (s *Store) Get(id string) (*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.records.Get(id)
	if err != nil {
		return nil, err
	}
	return stripReservedText(rec), nil
}

// Delete tombstones id across the record table, HNSW graph, and text
// index (spec §4.2, §4.3, §4.4).
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return vcerrors.New("delete", vcerrors.KindUnavailable, vcerrors.ErrStoreClosed)
	}
	if err := s.records.Tombstone(id); err != nil {
		return err
	}
	_ = s.graph.Delete(id)
	_ = s.textIdx.Delete(id)
	return nil
}

// Restore clears id's tombstone across the record table, HNSW graph, and
// text index.
func (s *Store) Restore(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return vcerrors.New("restore", vcerrors.KindUnavailable, vcerrors.ErrStoreClosed)
	}
	if err := s.records.Restore(id); err != nil {
		return err
	}
	_ = s.graph.Restore(id)
	_ = s.textIdx.Restore(id)
	return nil
}

// ExpireTTL sweeps and tombstones every record whose TTL has elapsed.
func (s *Store) ExpireTTL() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.records.ExpireTTL(time.Now())
	return n, err
}

// BatchItem mirrors record.BatchItem plus the optional text payload for
// batch upserts.
type BatchItem struct {
	Op       record.BatchOpKind
	ID       string
	Dense    []float32
	Sparse   *vectorops.Sparse
	Metadata record.Metadata
	Text     map[string]string
	TTL      *time.Duration
}

// Batch applies items in order with per-item partial-success semantics
// (spec §4.2: "batches exist for throughput, not atomicity").
func (s *Store) Batch(items []BatchItem) record.BatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	recItems := make([]record.BatchItem, len(items))
	for i, it := range items {
		recItems[i] = record.BatchItem{
			Op:       it.Op,
			ID:       it.ID,
			Vector:   record.Vector{Dense: it.Dense, Sparse: it.Sparse},
			Metadata: withText(it.Metadata, it.Text),
			TTL:      it.TTL,
		}
	}
	result := s.records.Batch(recItems)

	failed := make(map[int]bool, len(result.Errors))
	for _, e := range result.Errors {
		failed[e.Index] = true
	}
	for i, it := range items {
		if failed[i] {
			continue
		}
		switch it.Op {
		case record.BatchUpsert:
			if it.Dense != nil {
				_ = s.graph.Upsert(it.ID, it.Dense)
			}
			if len(it.Text) > 0 {
				s.textIdx.Upsert(it.ID, it.Text)
			}
		case record.BatchTombstone:
			_ = s.graph.Delete(it.ID)
			_ = s.textIdx.Delete(it.ID)
		case record.BatchRestore:
			_ = s.graph.Restore(it.ID)
			_ = s.textIdx.Restore(it.ID)
		}
	}
	return result
}
