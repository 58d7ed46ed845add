package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(WriterConfig{Dir: dir, Policy: FsyncPerOp})
	require.NoError(t, err)

	require.NoError(t, w.Append(Entry{Seq: 1, Kind: OpUpsert, ID: "a"}))
	require.NoError(t, w.Append(Entry{Seq: 2, Kind: OpUpsert, ID: "b"}))
	require.NoError(t, w.Close())

	var got []string
	maxSeq, err := Replay(dir, func(e Entry) error {
		got = append(got, e.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, uint64(2), maxSeq)
}

func TestReplayTruncatesTornTail(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(WriterConfig{Dir: dir, Policy: FsyncPerOp})
	require.NoError(t, err)
	require.NoError(t, w.Append(Entry{Seq: 1, Kind: OpUpsert, ID: "a"}))
	require.NoError(t, w.Close())

	path := filepath.Join(dir, segmentName(0))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0, 0, 0, 50, 1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var got []string
	maxSeq, err := Replay(dir, func(e Entry) error {
		got = append(got, e.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)
	assert.Equal(t, uint64(1), maxSeq)
}

func TestTransactionOnlyAppliesOnCommit(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(WriterConfig{Dir: dir, Policy: FsyncPerOp})
	require.NoError(t, err)

	require.NoError(t, w.BeginTx(1))
	require.NoError(t, w.Append(Entry{Seq: 1, Kind: OpUpsert, ID: "a", TxID: 1}))
	require.NoError(t, w.Append(Entry{Seq: 2, Kind: OpUpsert, ID: "b", TxID: 1}))
	require.NoError(t, w.CommitTx(1))

	require.NoError(t, w.BeginTx(2))
	require.NoError(t, w.Append(Entry{Seq: 3, Kind: OpUpsert, ID: "c", TxID: 2}))
	require.NoError(t, w.AbortTx(2))
	require.NoError(t, w.Close())

	var got []string
	_, err = Replay(dir, func(e Entry) error {
		got = append(got, e.ID)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, got)
}

func TestOpenTransactionAtEOFIsDiscarded(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(WriterConfig{Dir: dir, Policy: FsyncPerOp})
	require.NoError(t, err)

	require.NoError(t, w.BeginTx(1))
	require.NoError(t, w.Append(Entry{Seq: 1, Kind: OpUpsert, ID: "a", TxID: 1}))
	require.NoError(t, w.Close())

	var got []string
	_, err = Replay(dir, func(e Entry) error {
		got = append(got, e.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSegmentRotation(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(WriterConfig{Dir: dir, Policy: FsyncPerOp, MaxSegmentBytes: 1})
	require.NoError(t, err)

	require.NoError(t, w.Append(Entry{Seq: 1, Kind: OpUpsert, ID: "a"}))
	require.NoError(t, w.Append(Entry{Seq: 2, Kind: OpUpsert, ID: "b"}))
	require.NoError(t, w.Close())

	nums, err := ListSegments(dir)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(nums), 2)
}
