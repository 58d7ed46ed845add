package namespace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	records int
	bytes   int64
	closed  bool
}

func (f *fakeStore) Close() error        { f.closed = true; return nil }
func (f *fakeStore) RecordCount() int    { return f.records }
func (f *fakeStore) ApproxBytes() int64  { return f.bytes }

func TestManagerOpensLazily(t *testing.T) {
	opened := 0
	mgr := NewManager(func(id string) (Store, error) {
		opened++
		return &fakeStore{}, nil
	}, DefaultQuota())

	ns1, err := mgr.Get("tenant-a")
	require.NoError(t, err)
	ns2, err := mgr.Get("tenant-a")
	require.NoError(t, err)
	assert.Same(t, ns1, ns2)
	assert.Equal(t, 1, opened)
}

func TestQuotaMaxRecordsBlocksWrite(t *testing.T) {
	store := &fakeStore{records: 10}
	mgr := NewManager(func(id string) (Store, error) { return store, nil }, Quota{MaxRecords: 10})
	ns, err := mgr.Get("t")
	require.NoError(t, err)

	err = ns.CheckWrite(1, 0)
	require.Error(t, err)
	var qerr *QuotaError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, "max_records", qerr.Quota)
}

func TestSuspendedNamespaceRejectsQueries(t *testing.T) {
	mgr := NewManager(func(id string) (Store, error) { return &fakeStore{}, nil }, DefaultQuota())
	ns, err := mgr.Get("t")
	require.NoError(t, err)
	ns.SetStatus(StatusSuspended)

	_, err = ns.BeginQuery()
	require.Error(t, err)
}

func TestConcurrentQueryQuota(t *testing.T) {
	mgr := NewManager(func(id string) (Store, error) { return &fakeStore{}, nil }, Quota{MaxConcurrentQueries: 1})
	ns, err := mgr.Get("t")
	require.NoError(t, err)

	done, err := ns.BeginQuery()
	require.NoError(t, err)
	_, err = ns.BeginQuery()
	require.Error(t, err)
	done()

	_, err = ns.BeginQuery()
	require.NoError(t, err)
}

func TestSlidingWindowExpiresOldEvents(t *testing.T) {
	w := newSlidingWindow(100 * time.Millisecond)
	base := time.Unix(1000, 0)
	w.Record(base)
	w.Record(base.Add(10 * time.Millisecond))
	assert.Equal(t, 2, w.Count(base.Add(20*time.Millisecond)))
	assert.Equal(t, 0, w.Count(base.Add(200*time.Millisecond)))
}

func TestDeleteClosesStore(t *testing.T) {
	store := &fakeStore{}
	mgr := NewManager(func(id string) (Store, error) { return store, nil }, DefaultQuota())
	_, err := mgr.Get("t")
	require.NoError(t, err)

	require.NoError(t, mgr.Delete("t"))
	assert.True(t, store.closed)

	ns, err := mgr.Get("t")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingDeletion, ns.Status())
}
