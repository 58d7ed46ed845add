package engine

import (
	"bytes"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/kavlex/vectorcore/pkg/hnsw"
	"github.com/kavlex/vectorcore/pkg/record"
	"github.com/kavlex/vectorcore/pkg/snapshot"
	"github.com/kavlex/vectorcore/pkg/text"
	"github.com/kavlex/vectorcore/pkg/vcerrors"
)

// Stats summarizes the store for diagnostics and namespace quota checks
// (spec §4.2, §4.9).
type Stats struct {
	Live        int
	Deleted     int
	Dimension   int
	ApproxBytes int64
	GraphNodes  int
	TextDocs    int
}

// Stats returns a point-in-time summary of the store.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs := s.records.Stats()
	return Stats{
		Live:        rs.Live,
		Deleted:     rs.Deleted,
		Dimension:   rs.Dimension,
		ApproxBytes: rs.ApproxBytes,
		GraphNodes:  s.graph.Len(),
		TextDocs:    s.textIdx.Len(),
	}
}

// Estimate reports a rough cost heuristic for a query of the given shape,
// carried forward from the teacher's own diagnostic tooling (pulled into
// SPEC_FULL.md's ambient expansion since original_source/ contributed no
// additional detail here).
type Estimate struct {
	ExpectedCandidates int
	Warnings           []string
}

// Estimate predicts roughly how much work a query with the given k and
// ef would touch, and surfaces warnings about likely-slow configurations.
func (s *Store) Estimate(k, ef int) Estimate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ef <= 0 {
		ef = s.cfg.HNSW.EfSearch
	}
	est := Estimate{ExpectedCandidates: ef * overfetchMultiplier}

	if k > ef {
		est.Warnings = append(est.Warnings, "k exceeds ef; results may be truncated below requested k")
	}
	if s.records.DeletedCount() > 0 && s.records.Len() > 0 {
		ratio := float64(s.records.DeletedCount()) / float64(s.records.Len()+s.records.DeletedCount())
		if ratio > s.cfg.Compaction.MinRatio {
			est.Warnings = append(est.Warnings, "tombstone ratio is high; consider compaction")
		}
	}
	return est
}

// maybeCompact runs Compact if the deleted-record count/ratio crosses the
// configured CompactionPolicy thresholds (spec §4.6).
func (s *Store) maybeCompact() error {
	s.mu.RLock()
	rs := s.records.Stats()
	s.mu.RUnlock()

	total := rs.Live + rs.Deleted
	if total == 0 {
		return nil
	}
	ratio := float64(rs.Deleted) / float64(total)
	if rs.Deleted < s.cfg.Compaction.MinDeleted && ratio < s.cfg.Compaction.MinRatio {
		return nil
	}
	return s.Compact()
}

// Compact rebuilds the HNSW graph and text index over live records only,
// physically discarding tombstoned entries everywhere, then writes a
// snapshot covering the rebuilt state and checkpoints the WAL so a crash
// immediately after compaction cannot replay tombstoned records back in
// (spec §4.6: compaction's new snapshot supersedes prior state).
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return vcerrors.New("compact", vcerrors.KindUnavailable, vcerrors.ErrStoreClosed)
	}

	live := s.records.Compact()

	byID := make(map[string]record.Metadata, len(live))
	for _, r := range live {
		byID[r.ID] = r.Metadata
	}
	graph, idx, err := snapshot.Compact(live, s.cfg.HNSW, hnsw.DistanceFunc(s.kernel.Score), s.cfg.Text, func(id string) text.FieldTokens {
		return extractText(byID[id])
	})
	if err != nil {
		return err
	}

	s.graph = graph
	s.textIdx = idx

	nextSeq := s.records.Seq()
	dim := s.records.Dimension()
	metric := string(s.cfg.Metric)
	if _, err := s.writeSnapshotLocked("compact-"+uuid.NewString(), live, nextSeq, graph, dim, metric); err != nil {
		return err
	}
	return nil
}

// Snapshot writes the current store state to dir/snapshots/<name>, refreshes
// dir/snapshot (the copy Open recovers from), and checkpoints the WAL so TruncateBefore can later reclaim fully-covered
// segments. An empty name is given a generated id, so callers that just
// want "a snapshot now" don't have to invent one.
func (s *Store) Snapshot(name string) (string, error) {
	if name == "" {
		name = uuid.NewString()
	}

	s.mu.RLock()
	live := make([]*record.Record, 0, s.records.Len())
	s.records.IterLive(func(r *record.Record) bool {
		live = append(live, r)
		return true
	})
	nextSeq := s.records.Seq()
	graph := s.graph
	dim := s.records.Dimension()
	metric := string(s.cfg.Metric)
	s.mu.RUnlock()

	return s.writeSnapshotLocked(name, live, nextSeq, graph, dim, metric)
}

// writeSnapshotLocked writes the given point-in-time state to disk and
// checkpoints the WAL. It touches no Store fields guarded by s.mu beyond
// s.dir/s.walW (both fixed for the Store's lifetime), so it is safe to call
// both with s.mu held (from Compact, already under the write lock) and
// without it (from Snapshot, which only needed the lock to copy out its
// arguments).
func (s *Store) writeSnapshotLocked(name string, live []*record.Record, nextSeq uint64, graph *hnsw.Graph, dim int, metric string) (string, error) {
	docs := make([]snapshot.TextDoc, 0, len(live))
	for _, r := range live {
		if ft := extractText(r.Metadata); len(ft) > 0 {
			docs = append(docs, snapshot.TextDoc{ID: r.ID, Fields: ft})
		}
	}

	dir := filepath.Join(s.dir, "snapshots", name)
	meta := snapshot.Meta{TakenAt: time.Now(), Dimension: dim, Metric: metric, WALSeq: nextSeq}
	if err := snapshot.Write(dir, meta, live, nextSeq, graph, docs); err != nil {
		return "", err
	}

	if err := snapshot.Write(filepath.Join(s.dir, "snapshot"), meta, live, nextSeq, graph, docs); err != nil {
		return "", err
	}

	_ = s.walW.Checkpoint(nextSeq)
	return dir, nil
}

// RestoreSnapshot replaces the live store state with the named snapshot's
// contents.
func (s *Store) RestoreSnapshot(name string) error {
	dir := filepath.Join(s.dir, "snapshots", name)
	meta, records, nextSeq, hnswBytes, docs, err := snapshot.Read(dir)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records.LoadSnapshot(records, nextSeq)
	graph := hnsw.New(s.cfg.HNSW, hnsw.DistanceFunc(s.kernel.Score))
	if len(hnswBytes) > 0 {
		if err := graph.Load(bytes.NewReader(hnswBytes)); err != nil {
			return vcerrors.New("restore_snapshot", vcerrors.KindCorruption, err)
		}
	}
	idx := text.New(s.cfg.Text)
	for _, d := range docs {
		idx.Upsert(d.ID, d.Fields)
	}
	s.graph = graph
	s.textIdx = idx
	s.cfg.Dimension = meta.Dimension
	return nil
}

// Backup copies the named snapshot directory to dir/backups/<name>.
func (s *Store) Backup(name string) (string, error) {
	src := filepath.Join(s.dir, "snapshots", name)
	dst := filepath.Join(s.dir, "backups", name)
	if err := snapshot.Backup(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}
