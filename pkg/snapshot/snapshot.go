// Package snapshot implements the point-in-time persistence layout of
// spec §4.6: a directory of meta.json plus gob+zstd-compressed binary
// segments for records, the HNSW graph, and the text index, plus
// compaction (rebuilding those segments over live records only) and named
// backups. Binary encoding follows the teacher's own gob choice
// (pkg/index/hnsw.go); compression wraps it in klauspost/compress/zstd,
// a dependency carried from the wider example pack.
package snapshot

import (
	"encoding/gob"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/kavlex/vectorcore/pkg/hnsw"
	"github.com/kavlex/vectorcore/pkg/record"
	"github.com/kavlex/vectorcore/pkg/text"
	"github.com/kavlex/vectorcore/pkg/vcerrors"
)

const (
	metaFile    = "meta.json"
	recordsFile = "records.bin"
	hnswFile    = "hnsw.bin"
	textFile    = "text.bin"
)

// Meta describes a snapshot's provenance (spec §4.6).
type Meta struct {
	TakenAt     time.Time `json:"taken_at"`
	Dimension   int       `json:"dimension"`
	Metric      string    `json:"metric"`
	RecordCount int       `json:"record_count"`
	WALSeq      uint64    `json:"wal_seq"`
}

type gobRecords struct {
	Records []record.Record
	NextSeq uint64
}

type TextDoc struct {
	ID     string
	Fields text.FieldTokens
}

// Write persists a full, self-contained snapshot to dir (created if
// absent), overwriting any prior contents. Compaction calls Write with
// only live records so the resulting snapshot carries no tombstones.
func Write(dir string, meta Meta, records []*record.Record, nextSeq uint64, graph *hnsw.Graph, textDocs []TextDoc) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return vcerrors.New("snapshot_write", vcerrors.KindIoError, err)
	}

	meta.RecordCount = len(records)
	if err := writeJSON(filepath.Join(dir, metaFile), meta); err != nil {
		return err
	}

	plain := make([]record.Record, len(records))
	for i, r := range records {
		plain[i] = *r
	}
	if err := writeCompressedGob(filepath.Join(dir, recordsFile), gobRecords{Records: plain, NextSeq: nextSeq}); err != nil {
		return err
	}

	if graph != nil {
		if err := writeCompressed(filepath.Join(dir, hnswFile), graph.Save); err != nil {
			return err
		}
	}

	if err := writeCompressedGob(filepath.Join(dir, textFile), textDocs); err != nil {
		return err
	}

	return nil
}

// Read loads a snapshot written by Write.
func Read(dir string) (Meta, []record.Record, uint64, []byte, []TextDoc, error) {
	var meta Meta
	if err := readJSON(filepath.Join(dir, metaFile), &meta); err != nil {
		return Meta{}, nil, 0, nil, nil, err
	}

	var recs gobRecords
	if err := readCompressedGob(filepath.Join(dir, recordsFile), &recs); err != nil {
		return Meta{}, nil, 0, nil, nil, err
	}

	hnswBytes, err := readCompressedBytes(filepath.Join(dir, hnswFile))
	if err != nil && !os.IsNotExist(err) {
		return Meta{}, nil, 0, nil, nil, err
	}

	var docs []TextDoc
	if err := readCompressedGob(filepath.Join(dir, textFile), &docs); err != nil {
		return Meta{}, nil, 0, nil, nil, err
	}

	return meta, recs.Records, recs.NextSeq, hnswBytes, docs, nil
}

// Backup copies snapshotDir to backupDir as a named point-in-time backup
// (spec §4.6: "Backups are named point-in-time copies of a snapshot
// directory.").
func Backup(snapshotDir, backupDir string) error {
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return vcerrors.New("snapshot_backup", vcerrors.KindIoError, err)
	}
	entries, err := os.ReadDir(snapshotDir)
	if err != nil {
		return vcerrors.New("snapshot_backup", vcerrors.KindIoError, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(snapshotDir, e.Name()), filepath.Join(backupDir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Restore copies backupDir over snapshotDir, the inverse of Backup.
func Restore(backupDir, snapshotDir string) error {
	return Backup(backupDir, snapshotDir)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return vcerrors.New("snapshot_copy", vcerrors.KindIoError, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return vcerrors.New("snapshot_copy", vcerrors.KindIoError, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return vcerrors.New("snapshot_copy", vcerrors.KindIoError, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return vcerrors.New("snapshot_write", vcerrors.KindIoError, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return vcerrors.New("snapshot_write", vcerrors.KindIoError, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return vcerrors.New("snapshot_read", vcerrors.KindIoError, err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return vcerrors.New("snapshot_read", vcerrors.KindCorruption, err)
	}
	return nil
}

func writeCompressed(path string, encode func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return vcerrors.New("snapshot_write", vcerrors.KindIoError, err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return vcerrors.New("snapshot_write", vcerrors.KindIoError, err)
	}
	if err := encode(zw); err != nil {
		zw.Close()
		return vcerrors.New("snapshot_write", vcerrors.KindIoError, err)
	}
	return zw.Close()
}

func writeCompressedGob(path string, v any) error {
	return writeCompressed(path, func(w io.Writer) error {
		return gob.NewEncoder(w).Encode(v)
	})
}

func readCompressedBytes(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, vcerrors.New("snapshot_read", vcerrors.KindCorruption, err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func readCompressedGob(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return vcerrors.New("snapshot_read", vcerrors.KindIoError, err)
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		return vcerrors.New("snapshot_read", vcerrors.KindCorruption, err)
	}
	defer zr.Close()
	if err := gob.NewDecoder(zr).Decode(v); err != nil {
		return vcerrors.New("snapshot_read", vcerrors.KindCorruption, err)
	}
	return nil
}
