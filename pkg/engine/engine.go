package engine

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/kavlex/vectorcore/pkg/hnsw"
	"github.com/kavlex/vectorcore/pkg/record"
	"github.com/kavlex/vectorcore/pkg/snapshot"
	"github.com/kavlex/vectorcore/pkg/text"
	"github.com/kavlex/vectorcore/pkg/vcerrors"
	"github.com/kavlex/vectorcore/pkg/vclog"
	"github.com/kavlex/vectorcore/pkg/vectorops"
	"github.com/kavlex/vectorcore/pkg/wal"
	"golang.org/x/sync/errgroup"
)

const reservedTextKey = "_text"

// Store is the single-writer/multi-reader facade spec §4 describes:
// upserts, queries, compaction, and snapshots over one namespace's data
// directory.
type Store struct {
	mu     sync.RWMutex
	dir    string
	cfg    Config
	kernel vectorops.Kernel
	logger vclog.Logger

	records *record.Store
	graph   *hnsw.Graph
	textIdx *text.Index
	walW    *wal.Writer

	closed bool
	cancel context.CancelFunc
	bg     *errgroup.Group
}

// Open opens (creating if absent) a store rooted at dir, replaying its WAL
// over the latest snapshot, and starting the background compaction/
// snapshot worker (spec §4.6, §4.7, §4.9).
func Open(dir string, opts ...Option) (*Store, error) {
	cfg := applyOptions(DefaultConfig(), opts)

	kernel, err := vectorops.ForMetric(cfg.Metric)
	if err != nil {
		return nil, vcerrors.New("engine_open", vcerrors.KindInvalidArgument, err)
	}

	walDir := filepath.Join(dir, "wal")
	snapDir := filepath.Join(dir, "snapshot")

	walWriter, err := wal.Open(wal.WriterConfig{Dir: walDir, Policy: cfg.FsyncPolicy})
	if err != nil {
		return nil, err
	}

	appender := wal.NewRecordAppender(walWriter)
	recStore := record.New(cfg.Dimension, appender)
	graph := hnsw.New(cfg.HNSW, hnsw.DistanceFunc(kernel.Score))
	textIdx := text.New(cfg.Text)

	if hasSnapshot(snapDir) {
		if err := loadSnapshot(snapDir, recStore, graph, textIdx, cfg); err != nil {
			walWriter.Close()
			return nil, err
		}
	}
	watermark := recStore.Seq()

	maxSeq, err := wal.Replay(walDir, func(e wal.Entry) error {
		if e.Seq <= watermark {
			return nil
		}
		return wal.ApplyToStore(recStore, e)
	})
	if err != nil {
		walWriter.Close()
		return nil, err
	}
	recStore.SetSeq(maxSeq)
	reindexFromStore(recStore, graph, textIdx)

	ctx, cancel := context.WithCancel(context.Background())
	bg, bgCtx := errgroup.WithContext(ctx)

	s := &Store{
		dir:     dir,
		cfg:     cfg,
		kernel:  kernel,
		logger:  cfg.Logger,
		records: recStore,
		graph:   graph,
		textIdx: textIdx,
		walW:    walWriter,
		cancel:  cancel,
		bg:      bg,
	}

	if cfg.SnapshotInterval > 0 {
		bg.Go(func() error { return s.backgroundLoop(bgCtx) })
	}

	return s, nil
}

func hasSnapshot(dir string) bool {
	_, _, _, _, _, err := snapshot.Read(dir)
	return err == nil
}

func loadSnapshot(dir string, recStore *record.Store, graph *hnsw.Graph, textIdx *text.Index, cfg Config) error {
	_, records, nextSeq, hnswBytes, _, err := snapshot.Read(dir)
	if err != nil {
		return err
	}
	recStore.LoadSnapshot(records, nextSeq)
	if len(hnswBytes) > 0 {
		if err := graph.Load(bytes.NewReader(hnswBytes)); err != nil {
			return vcerrors.New("engine_open", vcerrors.KindCorruption, err)
		}
	}
	return nil
}

// reindexFromStore rebuilds the HNSW graph and text index from whatever
// live records the record.Store now holds that the graph/index don't yet
// reflect (entries replayed from the WAL past the snapshot). A full
// Compact-style rebuild is avoided here: recovery only needs to catch the
// tail up, not rebuild everything snapshot already restored.
func reindexFromStore(recStore *record.Store, graph *hnsw.Graph, textIdx *text.Index) {
	recStore.IterLive(func(r *record.Record) bool {
		if r.Vector.Dense != nil && !graph.Contains(r.ID) {
			_ = graph.Insert(r.ID, r.Vector.Dense)
		}
		if ft := extractText(r.Metadata); len(ft) > 0 {
			textIdx.Upsert(r.ID, ft)
		}
		return true
	})
}

func extractText(meta record.Metadata) text.FieldTokens {
	v, ok := meta[reservedTextKey]
	if !ok || v.Kind != record.KindMap {
		return nil
	}
	ft := make(text.FieldTokens, len(v.Map))
	for k, val := range v.Map {
		if val.Kind == record.KindString {
			ft[k] = val.Str
		}
	}
	return ft
}

// stripReservedText removes the internal "_text" metadata key before a
// record crosses the package boundary, so Get/query results and
// filter.Eval never see storage-internal bookkeeping. rec is expected to
// already be a caller-owned copy (record.Store's accessors clone before
// returning), so deleting in place is safe.
func stripReservedText(rec *record.Record) *record.Record {
	if rec == nil || rec.Metadata == nil {
		return rec
	}
	if _, ok := rec.Metadata[reservedTextKey]; ok {
		delete(rec.Metadata, reservedTextKey)
	}
	return rec
}

func withText(meta record.Metadata, fields map[string]string) record.Metadata {
	if len(fields) == 0 {
		return meta
	}
	out := meta.Clone()
	if out == nil {
		out = record.Metadata{}
	}
	m := make(map[string]record.Value, len(fields))
	for k, v := range fields {
		m[k] = record.String(v)
	}
	out[reservedTextKey] = record.Map(m)
	return out
}

func (s *Store) backgroundLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SnapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.maybeCompact(); err != nil {
				s.logger.Warn("background compaction failed", "error", err)
			}
			if _, err := s.Snapshot("auto"); err != nil {
				s.logger.Warn("background snapshot failed", "error", err)
			}
		}
	}
}

// Close stops the background worker and closes the WAL file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	_ = s.bg.Wait()
	return s.walW.Close()
}

// RecordCount implements namespace.Store.
func (s *Store) RecordCount() int { return s.records.Len() }

// ApproxBytes implements namespace.Store.
func (s *Store) ApproxBytes() int64 { return s.records.Stats().ApproxBytes }
