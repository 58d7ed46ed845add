// Package wal implements the write-ahead log described in spec §4.7:
// framed (length, crc32, payload) records in segmented append-only files,
// fsync policies, and crash-safe replay with torn-tail truncation and
// transaction semantics. Framing uses hash/crc32 directly, following the
// pattern in other_examples' write-ahead-log-before-memory-mutation stores;
// record payloads are gob-encoded to match the snapshot format's choice.
package wal

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"hash/crc32"
	"io"
	"time"

	"github.com/kavlex/vectorcore/pkg/record"
	"github.com/kavlex/vectorcore/pkg/vcerrors"
)

// OpKind tags the payload kind of one WAL record (spec §4.7).
type OpKind uint8

const (
	OpUpsert OpKind = iota + 1
	OpUpdateMetadata
	OpTombstone
	OpRestore
	OpBeginTx
	OpCommitTx
	OpAbortTx
	OpCheckpoint
)

// Entry is one logical write-ahead log record.
type Entry struct {
	Seq       uint64
	Kind      OpKind
	TxID      uint64
	ID        string
	Vector    record.Vector
	Metadata  record.Metadata
	ExpiresAt *time.Time
	// CheckpointSeq is not set by this package: Writer.Checkpoint records
	// the seq a snapshot has durably covered in Seq, and Replay reads it
	// from there.
	CheckpointSeq uint64
}

// FsyncPolicy controls durability vs. throughput trade-off (spec §4.7,
// §6 config enum).
type FsyncPolicy string

const (
	FsyncPerOp    FsyncPolicy = "per_op"
	FsyncPerBatch FsyncPolicy = "per_batch"
	FsyncPeriodic FsyncPolicy = "periodic"
)

func encodeFrame(e Entry) ([]byte, error) {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(&e); err != nil {
		return nil, err
	}
	body := payload.Bytes()
	sum := crc32.ChecksumIEEE(body)

	frame := make([]byte, 8+len(body))
	binary.BigEndian.PutUint32(frame[0:4], uint32(len(body)))
	binary.BigEndian.PutUint32(frame[4:8], sum)
	copy(frame[8:], body)
	return frame, nil
}

// readFrame reads one frame from r, verifying its checksum. A short read
// (fewer than 8 header bytes, or a payload truncated before length bytes
// are available) is reported via io.ErrUnexpectedEOF so callers can treat
// it as a torn tail rather than real corruption. A complete frame whose
// checksum fails to match is reported via ErrChecksumMismatch.
func readFrame(r io.Reader) (Entry, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Entry{}, err
	}
	length := binary.BigEndian.Uint32(header[0:4])
	wantSum := binary.BigEndian.Uint32(header[4:8])

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Entry{}, io.ErrUnexpectedEOF
	}

	if crc32.ChecksumIEEE(body) != wantSum {
		return Entry{}, ErrChecksumMismatch
	}

	var e Entry
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&e); err != nil {
		return Entry{}, vcerrors.New("wal_decode", vcerrors.KindCorruption, err)
	}
	return e, nil
}

// ErrChecksumMismatch marks a frame whose payload failed its crc32 check.
var ErrChecksumMismatch = vcerrors.New("wal_frame", vcerrors.KindCorruption, nil)
