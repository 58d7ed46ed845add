package wal

import (
	"github.com/kavlex/vectorcore/pkg/record"
	"github.com/kavlex/vectorcore/pkg/vcerrors"
)

// RecordAppender adapts a Writer to record.Appender, so pkg/record never
// imports pkg/wal directly (dependency direction flows from pkg/engine
// down to both leaves).
type RecordAppender struct {
	w *Writer
}

// NewRecordAppender wraps w for use as a record.Store's Appender.
func NewRecordAppender(w *Writer) *RecordAppender {
	return &RecordAppender{w: w}
}

func (a *RecordAppender) Append(seq uint64, op record.Op) error {
	entry := Entry{Seq: seq, ID: op.ID, Vector: op.Vector, Metadata: op.Metadata, ExpiresAt: op.ExpiresAt}
	switch op.Kind {
	case record.OpUpsert:
		entry.Kind = OpUpsert
	case record.OpUpdateMetadata:
		entry.Kind = OpUpdateMetadata
	case record.OpTombstone:
		entry.Kind = OpTombstone
	case record.OpRestore:
		entry.Kind = OpRestore
	default:
		return vcerrors.New("wal_append", vcerrors.KindInvalidArgument, nil).WithContext("op_kind", op.Kind)
	}
	return a.w.Append(entry)
}

// ApplyToStore converts a WAL entry back into a record.Op and applies it
// directly to store via ApplyReplay, bypassing the append path (used by
// crash recovery).
func ApplyToStore(store *record.Store, e Entry) error {
	op := record.Op{ID: e.ID, Vector: e.Vector, Metadata: e.Metadata, ExpiresAt: e.ExpiresAt}
	switch e.Kind {
	case OpUpsert:
		op.Kind = record.OpUpsert
	case OpUpdateMetadata:
		op.Kind = record.OpUpdateMetadata
	case OpTombstone:
		op.Kind = record.OpTombstone
	case OpRestore:
		op.Kind = record.OpRestore
	default:
		return nil
	}
	store.ApplyReplay(e.Seq, op)
	return nil
}
