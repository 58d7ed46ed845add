package wal

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/kavlex/vectorcore/pkg/vcerrors"
)

// Apply receives one committed entry during replay, in seq order.
type Apply func(Entry) error

// Replay reads every segment in dir in order and invokes apply for each
// entry that is durably committed:
//
//   - Entries outside a transaction apply immediately.
//   - Entries between OpBeginTx and OpCommitTx are buffered and applied
//     only once OpCommitTx is seen.
//   - OpAbortTx discards the buffered entries for its TxID.
//   - A transaction left open at end-of-log (crash before commit) is
//     discarded, never applied.
//   - The first frame that fails its checksum, or is truncated mid-frame,
//     ends replay of that segment: everything after it is presumed to be
//     a torn tail from an in-flight write during a crash, not an error,
//     and the segment file is truncated at the start of that frame.
//
// MaxSeq returns the highest applied seq across all segments, for seeding
// Store.SetSeq after recovery.
func Replay(dir string, apply Apply) (maxSeq uint64, err error) {
	nums, err := ListSegments(dir)
	if err != nil {
		return 0, err
	}

	pending := make(map[uint64][]Entry)

	for _, n := range nums {
		path := filepath.Join(dir, segmentName(n))
		f, err := os.Open(path)
		if err != nil {
			return maxSeq, vcerrors.New("wal_replay", vcerrors.KindIoError, err)
		}

		for {
			offset, seekErr := f.Seek(0, io.SeekCurrent)
			if seekErr != nil {
				f.Close()
				return maxSeq, vcerrors.New("wal_replay", vcerrors.KindIoError, seekErr)
			}
			entry, readErr := readFrame(f)
			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					break
				}
				if errors.Is(readErr, io.ErrUnexpectedEOF) || readErr == ErrChecksumMismatch {
					if err := os.Truncate(path, offset); err != nil {
						f.Close()
						return maxSeq, vcerrors.New("wal_replay", vcerrors.KindIoError, err)
					}
					break
				}
				f.Close()
				return maxSeq, readErr
			}

			switch entry.Kind {
			case OpBeginTx:
				pending[entry.TxID] = nil
			case OpCommitTx:
				for _, buffered := range pending[entry.TxID] {
					if err := apply(buffered); err != nil {
						f.Close()
						return maxSeq, err
					}
					if buffered.Seq > maxSeq {
						maxSeq = buffered.Seq
					}
				}
				delete(pending, entry.TxID)
			case OpAbortTx:
				delete(pending, entry.TxID)
			case OpCheckpoint:
				if entry.Seq > maxSeq {
					maxSeq = entry.Seq
				}
			default:
				if entry.TxID != 0 {
					pending[entry.TxID] = append(pending[entry.TxID], entry)
					continue
				}
				if err := apply(entry); err != nil {
					f.Close()
					return maxSeq, err
				}
				if entry.Seq > maxSeq {
					maxSeq = entry.Seq
				}
			}
		}
		f.Close()
	}

	return maxSeq, nil
}
