package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/kavlex/vectorcore/pkg/vcerrors"
)

const segmentPrefix = "segment-"
const segmentSuffix = ".wal"

func segmentName(n int) string {
	return fmt.Sprintf("%s%06d%s", segmentPrefix, n, segmentSuffix)
}

func segmentNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, segmentPrefix) || !strings.HasSuffix(name, segmentSuffix) {
		return 0, false
	}
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, segmentPrefix), segmentSuffix)
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ListSegments returns segment numbers present in dir, ascending.
func ListSegments(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var nums []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n, ok := segmentNumber(e.Name()); ok {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	return nums, nil
}

// Writer appends entries to the active WAL segment, rotating to a new
// segment once MaxSegmentBytes is exceeded (spec §4.7).
type Writer struct {
	mu              sync.Mutex
	dir             string
	policy          FsyncPolicy
	maxSegmentBytes int64
	opsPerBatch     int

	file       *os.File
	segmentNum int
	written    int64
	sinceSync  int
}

// WriterConfig configures segment rotation and fsync cadence.
type WriterConfig struct {
	Dir             string
	Policy          FsyncPolicy
	MaxSegmentBytes int64
	// BatchSize is the op count threshold for FsyncPerBatch.
	BatchSize int
}

// Open creates dir if needed and opens (or creates) the newest segment for
// appending.
func Open(cfg WriterConfig) (*Writer, error) {
	if cfg.MaxSegmentBytes <= 0 {
		cfg.MaxSegmentBytes = 64 << 20
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Policy == "" {
		cfg.Policy = FsyncPerOp
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, vcerrors.New("wal_open", vcerrors.KindIoError, err)
	}

	nums, err := ListSegments(cfg.Dir)
	if err != nil {
		return nil, vcerrors.New("wal_open", vcerrors.KindIoError, err)
	}
	segNum := 0
	if len(nums) > 0 {
		segNum = nums[len(nums)-1]
	}

	path := filepath.Join(cfg.Dir, segmentName(segNum))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, vcerrors.New("wal_open", vcerrors.KindIoError, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, vcerrors.New("wal_open", vcerrors.KindIoError, err)
	}

	return &Writer{
		dir:             cfg.Dir,
		policy:          cfg.Policy,
		maxSegmentBytes: cfg.MaxSegmentBytes,
		opsPerBatch:     cfg.BatchSize,
		file:            f,
		segmentNum:      segNum,
		written:         info.Size(),
	}, nil
}

// Append writes e to the active segment, rotating first if needed, and
// syncs according to the configured FsyncPolicy.
func (w *Writer) Append(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	frame, err := encodeFrame(e)
	if err != nil {
		return vcerrors.New("wal_append", vcerrors.KindIoError, err)
	}

	if w.written > 0 && w.written+int64(len(frame)) > w.maxSegmentBytes {
		if err := w.rotateLocked(); err != nil {
			return err
		}
	}

	n, err := w.file.Write(frame)
	if err != nil {
		return vcerrors.New("wal_append", vcerrors.KindIoError, err)
	}
	w.written += int64(n)
	w.sinceSync++

	switch w.policy {
	case FsyncPerOp:
		return w.syncLocked()
	case FsyncPerBatch:
		if w.sinceSync >= w.opsPerBatch {
			return w.syncLocked()
		}
	}
	return nil
}

// BeginTx marks the start of a transaction grouping subsequent entries with
// the same TxID (spec §4.7 transaction replay semantics).
func (w *Writer) BeginTx(txID uint64) error {
	return w.Append(Entry{Kind: OpBeginTx, TxID: txID})
}

// CommitTx marks txID as durably committed; Replay only applies a
// transaction's buffered entries once this record is seen.
func (w *Writer) CommitTx(txID uint64) error {
	return w.Append(Entry{Kind: OpCommitTx, TxID: txID})
}

// AbortTx discards txID's buffered entries during replay.
func (w *Writer) AbortTx(txID uint64) error {
	return w.Append(Entry{Kind: OpAbortTx, TxID: txID})
}

// Checkpoint records the highest seq a just-completed snapshot covers, so
// TruncateBefore can later reclaim segments entirely below it.
func (w *Writer) Checkpoint(seq uint64) error {
	return w.Append(Entry{Kind: OpCheckpoint, Seq: seq})
}

// Sync flushes pending writes to stable storage, for FsyncPeriodic callers
// driving their own timer.
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncLocked()
}

func (w *Writer) syncLocked() error {
	if w.sinceSync == 0 {
		return nil
	}
	if err := w.file.Sync(); err != nil {
		return vcerrors.New("wal_sync", vcerrors.KindIoError, err)
	}
	w.sinceSync = 0
	return nil
}

func (w *Writer) rotateLocked() error {
	if err := w.file.Close(); err != nil {
		return vcerrors.New("wal_rotate", vcerrors.KindIoError, err)
	}
	w.segmentNum++
	path := filepath.Join(w.dir, segmentName(w.segmentNum))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return vcerrors.New("wal_rotate", vcerrors.KindIoError, err)
	}
	w.file = f
	w.written = 0
	return nil
}

// Close syncs and closes the active segment file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.syncLocked(); err != nil {
		return err
	}
	return w.file.Close()
}

// TruncateBefore deletes whole segments strictly below the segment
// currently being written, if every entry in them has a seq at or below
// watermark. Segments are append-only and not rewritten, so truncation is
// conservative: it only removes segments fully subsumed by watermark,
// leaving partially-covered segments in place (spec §4.7/§4.6: WAL
// segments are truncated below the active snapshot sequence).
func TruncateBefore(dir string, watermark uint64, maxSeqInSegment func(segNum int) (uint64, bool)) error {
	nums, err := ListSegments(dir)
	if err != nil {
		return err
	}
	for _, n := range nums {
		maxSeq, ok := maxSeqInSegment(n)
		if !ok || maxSeq > watermark {
			continue
		}
		if err := os.Remove(filepath.Join(dir, segmentName(n))); err != nil && !os.IsNotExist(err) {
			return vcerrors.New("wal_truncate", vcerrors.KindIoError, err)
		}
	}
	return nil
}
