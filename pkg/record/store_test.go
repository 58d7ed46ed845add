package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAppender struct {
	fail bool
	ops  []Op
}

func (f *fakeAppender) Append(seq uint64, op Op) error {
	if f.fail {
		return assertErr
	}
	f.ops = append(f.ops, op)
	return nil
}

var assertErr = fakeErr("wal append failed")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

func TestUpsertIdempotent(t *testing.T) {
	s := New(3, nil)
	v := Vector{Dense: []float32{1, 0, 0}}
	meta := Metadata{"k": String("v")}

	_, err := s.Upsert("a", v, meta, nil)
	require.NoError(t, err)
	_, err = s.Upsert("a", v, meta, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, s.Len())
}

func TestDimensionMismatchFails(t *testing.T) {
	s := New(3, nil)
	_, err := s.Upsert("a", Vector{Dense: []float32{1, 0, 0}}, nil, nil)
	require.NoError(t, err)

	_, err = s.Upsert("b", Vector{Dense: []float32{1, 0}}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestTombstoneAndRestore(t *testing.T) {
	s := New(0, nil)
	_, err := s.Upsert("a", Vector{Dense: []float32{1}}, nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.Tombstone("a"))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 1, s.DeletedCount())

	_, err = s.Get("a")
	require.Error(t, err)

	require.NoError(t, s.Restore("a"))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 0, s.DeletedCount())
}

func TestWalFailureLeavesStateUnchanged(t *testing.T) {
	app := &fakeAppender{fail: true}
	s := New(0, app)
	_, err := s.Upsert("a", Vector{Dense: []float32{1}}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestExpireTTL(t *testing.T) {
	s := New(0, nil)
	past := -time.Minute
	_, err := s.Upsert("a", Vector{Dense: []float32{1}}, nil, &past)
	require.NoError(t, err)

	n, err := s.ExpireTTL(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, s.Len())
}

func TestBatchPartialSuccess(t *testing.T) {
	s := New(0, nil)
	items := []BatchItem{
		{Op: BatchUpsert, ID: "a", Vector: Vector{Dense: []float32{1}}},
		{Op: BatchTombstone, ID: "missing"},
		{Op: BatchUpsert, ID: "b", Vector: Vector{Dense: []float32{1}}},
	}
	res := s.Batch(items)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)
}

func TestCompactRemovesTombstones(t *testing.T) {
	s := New(0, nil)
	for _, id := range []string{"a", "b", "c"} {
		_, err := s.Upsert(id, Vector{Dense: []float32{1}}, nil, nil)
		require.NoError(t, err)
	}
	require.NoError(t, s.Tombstone("b"))

	live := s.Compact()
	assert.Len(t, live, 2)
	assert.Equal(t, 0, s.DeletedCount())
	assert.Equal(t, 2, s.Len())
}
