package record

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kavlex/vectorcore/pkg/vcerrors"
)

// Appender is the write-ahead-log sink the record store writes through
// before acknowledging any mutation (spec §4.2: "All mutations append a
// WAL entry before updating in-memory state"). pkg/wal.Writer implements
// this; record does not import pkg/wal to keep the dependency direction
// pointing from engine down to leaves, not sideways.
type Appender interface {
	Append(seq uint64, op Op) error
}

// Op is one WAL-encodable mutation, mirroring spec §4.6's payload kinds.
type Op struct {
	Kind      OpKind
	ID        string
	Vector    Vector
	Metadata  Metadata
	ExpiresAt *time.Time
}

type OpKind int

const (
	OpUpsert OpKind = iota
	OpUpdateMetadata
	OpTombstone
	OpRestore
)

// Store is the id -> record table (spec §4.2). All mutating methods are
// serialized by the caller (pkg/engine holds the single-writer lock);
// reads here take only the store's own RWMutex so concurrent readers are
// never blocked by each other.
type Store struct {
	mu       sync.RWMutex
	dim      int
	records  map[string]*Record
	deleted  int
	seq      atomic.Uint64
	appender Appender
}

// New creates an empty record store for the given dense dimension (0 means
// "infer from first insert", per spec §3 invariant 2).
func New(dim int, appender Appender) *Store {
	return &Store{
		dim:      dim,
		records:  make(map[string]*Record),
		appender: appender,
	}
}

// Dimension returns the store's fixed dense dimension, or 0 if not yet
// established.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// NextSeq reserves the next monotonic sequence number (spec §3 invariant 5).
func (s *Store) NextSeq() uint64 { return s.seq.Add(1) }

// Seq returns the current sequence counter value without advancing it.
func (s *Store) Seq() uint64 { return s.seq.Load() }

// SetSeq fast-forwards the sequence counter, used during WAL replay /
// snapshot load to resume exactly where the durable state left off.
func (s *Store) SetSeq(v uint64) {
	for {
		cur := s.seq.Load()
		if v <= cur {
			return
		}
		if s.seq.CompareAndSwap(cur, v) {
			return
		}
	}
}

// Upsert inserts or overwrites id's vector and metadata (idempotent on id,
// per spec §4.2) and clears any tombstone. The WAL append happens before
// the in-memory map is mutated, and a WAL failure leaves the store
// unchanged.
func (s *Store) Upsert(id string, vec Vector, meta Metadata, ttl *time.Duration) (*Record, error) {
	if id == "" {
		return nil, vcerrors.New("upsert", vcerrors.KindInvalidArgument, fmt.Errorf("id must not be empty"))
	}
	if vec.Dense != nil {
		s.mu.RLock()
		dim := s.dim
		s.mu.RUnlock()
		if dim == 0 {
			dim = len(vec.Dense)
		}
		if err := validateDense(dim, vec.Dense); err != nil {
			return nil, vcerrors.New("upsert", vcerrors.KindDimensionMismatch, err).WithContext("id", id).WithContext("expected_dimension", dim)
		}
	}

	var expiresAt *time.Time
	if ttl != nil {
		t := time.Now().Add(*ttl)
		expiresAt = &t
	}

	seq := s.NextSeq()
	if s.appender != nil {
		op := Op{Kind: OpUpsert, ID: id, Vector: vec, Metadata: meta, ExpiresAt: expiresAt}
		if err := s.appender.Append(seq, op); err != nil {
			return nil, vcerrors.New("upsert", vcerrors.KindIoError, err).WithContext("id", id)
		}
	}

	rec := &Record{ID: id, Vector: vec, Metadata: meta.Clone(), Seq: seq, ExpiresAt: expiresAt}

	s.mu.Lock()
	if vec.Dense != nil && s.dim == 0 {
		s.dim = len(vec.Dense)
	}
	if old, ok := s.records[id]; ok && old.Tombstone {
		s.deleted--
	}
	s.records[id] = rec
	s.mu.Unlock()

	return rec.Clone(), nil
}

// Get returns a deep copy of the live (non-tombstoned) record for id.
func (s *Store) Get(id string) (*Record, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok || rec.Tombstone {
		return nil, vcerrors.New("get", vcerrors.KindNotFound, vcerrors.ErrNotFound).WithContext("id", id)
	}
	return rec.Clone(), nil
}

// Tombstone marks id deleted without physically removing it (O(1), spec §4.2).
func (s *Store) Tombstone(id string) error {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok || rec.Tombstone {
		return vcerrors.New("tombstone", vcerrors.KindNotFound, vcerrors.ErrNotFound).WithContext("id", id)
	}

	seq := s.NextSeq()
	if s.appender != nil {
		if err := s.appender.Append(seq, Op{Kind: OpTombstone, ID: id}); err != nil {
			return vcerrors.New("tombstone", vcerrors.KindIoError, err).WithContext("id", id)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok = s.records[id]
	if !ok || rec.Tombstone {
		return nil
	}
	rec.Tombstone = true
	rec.Seq = seq
	s.deleted++
	return nil
}

// Restore clears a record's tombstone, making it live again.
func (s *Store) Restore(id string) error {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok || !rec.Tombstone {
		return vcerrors.New("restore", vcerrors.KindNotFound, vcerrors.ErrNotFound).WithContext("id", id)
	}

	seq := s.NextSeq()
	if s.appender != nil {
		if err := s.appender.Append(seq, Op{Kind: OpRestore, ID: id}); err != nil {
			return vcerrors.New("restore", vcerrors.KindIoError, err).WithContext("id", id)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok = s.records[id]
	if !ok || !rec.Tombstone {
		return nil
	}
	rec.Tombstone = false
	rec.Seq = seq
	s.deleted--
	return nil
}

// UpdateMetadata replaces a live record's metadata in place, preserving its
// vector and tombstone state.
func (s *Store) UpdateMetadata(id string, meta Metadata) error {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok || rec.Tombstone {
		return vcerrors.New("update_metadata", vcerrors.KindNotFound, vcerrors.ErrNotFound).WithContext("id", id)
	}

	seq := s.NextSeq()
	if s.appender != nil {
		if err := s.appender.Append(seq, Op{Kind: OpUpdateMetadata, ID: id, Metadata: meta}); err != nil {
			return vcerrors.New("update_metadata", vcerrors.KindIoError, err).WithContext("id", id)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok = s.records[id]
	if !ok || rec.Tombstone {
		return nil
	}
	rec.Metadata = meta.Clone()
	rec.Seq = seq
	return nil
}

// ApplyReplay applies a WAL-replayed or snapshot-loaded Op directly to
// memory, bypassing the appender (the entry is already durable).
func (s *Store) ApplyReplay(seq uint64, op Op) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch op.Kind {
	case OpUpsert:
		if op.Vector.Dense != nil && s.dim == 0 {
			s.dim = len(op.Vector.Dense)
		}
		if old, ok := s.records[op.ID]; ok && old.Tombstone {
			s.deleted--
		}
		s.records[op.ID] = &Record{ID: op.ID, Vector: op.Vector, Metadata: op.Metadata.Clone(), Seq: seq, ExpiresAt: op.ExpiresAt}
	case OpUpdateMetadata:
		if rec, ok := s.records[op.ID]; ok {
			rec.Metadata = op.Metadata.Clone()
			rec.Seq = seq
		}
	case OpTombstone:
		if rec, ok := s.records[op.ID]; ok && !rec.Tombstone {
			rec.Tombstone = true
			rec.Seq = seq
			s.deleted++
		}
	case OpRestore:
		if rec, ok := s.records[op.ID]; ok && rec.Tombstone {
			rec.Tombstone = false
			rec.Seq = seq
			s.deleted--
		}
	}
	s.SetSeq(seq)
}

// LoadSnapshot replaces the store's contents with records wholesale,
// bypassing the appender: the snapshot on disk is already the durable
// source of truth, so re-logging it to the WAL would be redundant (spec
// §4.6 recovery: "load latest snapshot, then replay WAL records with
// seq > snapshot's recorded seq").
func (s *Store) LoadSnapshot(records []Record, nextSeq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*Record, len(records))
	s.deleted = 0
	for i := range records {
		r := records[i]
		if r.Vector.Dense != nil && s.dim == 0 {
			s.dim = len(r.Vector.Dense)
		}
		if r.Tombstone {
			s.deleted++
		}
		s.records[r.ID] = &r
	}
	s.SetSeq(nextSeq)
}

// Len returns the number of live (non-tombstoned) records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records) - s.deleted
}

// DeletedCount returns the number of tombstoned records retained.
func (s *Store) DeletedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deleted
}

// IterLive calls fn for every live record. fn receives a cloned record;
// mutating it has no effect on the store. Iteration stops early if fn
// returns false.
func (s *Store) IterLive(fn func(*Record) bool) {
	s.mu.RLock()
	snapshot := make([]*Record, 0, len(s.records))
	for _, r := range s.records {
		if !r.Tombstone {
			snapshot = append(snapshot, r)
		}
	}
	s.mu.RUnlock()

	for _, r := range snapshot {
		if !fn(r.Clone()) {
			return
		}
	}
}

// ExpireTTL tombstones every live record whose expiry has passed, per
// spec §4.2's lazy-sweep contract. Returns the number tombstoned.
func (s *Store) ExpireTTL(now time.Time) (int, error) {
	var expired []string
	s.mu.RLock()
	for id, r := range s.records {
		if !r.Tombstone && r.Expired(now) {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	n := 0
	for _, id := range expired {
		if err := s.Tombstone(id); err != nil && vcerrors.KindOf(err) != vcerrors.KindNotFound {
			return n, err
		}
		n++
	}
	return n, nil
}

// Stats summarizes store-wide counters for Store.stats()/estimate() (spec §4.2, §4.7).
type Stats struct {
	Live       int
	Deleted    int
	Dimension  int
	ApproxBytes int64
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var bytes int64
	for _, r := range s.records {
		bytes += int64(len(r.Vector.Dense) * 4)
		if r.Vector.Sparse != nil {
			bytes += int64(len(r.Vector.Sparse.Indices)*4 + len(r.Vector.Sparse.Values)*4)
		}
	}
	return Stats{
		Live:        len(s.records) - s.deleted,
		Deleted:     s.deleted,
		Dimension:   s.dim,
		ApproxBytes: bytes,
	}
}

// Compact discards tombstoned records entirely and returns the surviving
// live records in seq order, for rebuilding downstream indexes (spec §4.6).
func (s *Store) Compact() []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := make([]*Record, 0, len(s.records)-s.deleted)
	for id, r := range s.records {
		if r.Tombstone {
			delete(s.records, id)
		} else {
			live = append(live, r)
		}
	}
	s.deleted = 0
	sort.Slice(live, func(i, j int) bool { return live[i].Seq < live[j].Seq })
	return live
}
