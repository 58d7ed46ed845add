// Package namespace implements multi-tenant isolation on top of the
// storage engine (spec §4.9): one store per namespace id, quota
// enforcement, and a sliding rate window. This layer is new relative to
// the teacher (sqvect is single-tenant); it is built in the teacher's own
// Config/functional-Option idiom (pkg/sqvect/sqvect.go).
package namespace

import (
	"sync"
	"time"

	"github.com/kavlex/vectorcore/pkg/vcerrors"
)

// Store is the subset of the engine facade a namespace needs to enforce
// quotas and report status, kept as a small interface here (rather than
// importing pkg/engine directly) so pkg/namespace stays a leaf dependency
// of pkg/engine instead of the other way around.
type Store interface {
	Close() error
	RecordCount() int
	ApproxBytes() int64
}

// Status is a namespace's lifecycle state (spec §4.9).
type Status string

const (
	StatusActive         Status = "active"
	StatusSuspended      Status = "suspended"
	StatusReadOnly       Status = "read_only"
	StatusPendingDeletion Status = "pending_deletion"
)

// Quota bounds a namespace's resource usage (spec §4.9).
type Quota struct {
	MaxRecords          int64
	MaxStorageBytes      int64
	MaxQueriesPerSecond  int
	MaxConcurrentQueries int
	MaxDimension         int
	MaxResultK           int
	MaxBatchSize         int
}

// DefaultQuota returns permissive defaults (0/unset means unlimited).
func DefaultQuota() Quota {
	return Quota{
		MaxQueriesPerSecond:  1000,
		MaxConcurrentQueries: 64,
		MaxResultK:           1000,
		MaxBatchSize:         10000,
	}
}

// Opener constructs a namespace's backing store, e.g. wrapping
// engine.Open against a per-namespace data directory.
type Opener func(id string) (Store, error)

// Namespace is one tenant's store plus its quota enforcement state.
type Namespace struct {
	ID     string
	Store  Store
	Quota  Quota
	status Status
	mu     sync.Mutex

	inflight    int
	rateWindow  *slidingWindow
}

func newNamespace(id string, store Store, quota Quota) *Namespace {
	return &Namespace{
		ID:         id,
		Store:      store,
		Quota:      quota,
		status:     StatusActive,
		rateWindow: newSlidingWindow(time.Second),
	}
}

// Status returns the namespace's current lifecycle status.
func (n *Namespace) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status
}

// SetStatus transitions the namespace's lifecycle status.
func (n *Namespace) SetStatus(s Status) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = s
}

// QuotaError reports which quota was exceeded.
type QuotaError struct {
	Namespace string
	Quota     string
	Limit     int64
	Observed  int64
}

func (e *QuotaError) Error() string {
	return "namespace " + e.Namespace + ": quota " + e.Quota + " exceeded"
}

// BeginQuery checks the namespace is writable/queryable and admits one
// query under MaxConcurrentQueries and MaxQueriesPerSecond, returning a
// function the caller must invoke when the query completes.
func (n *Namespace) BeginQuery() (func(), error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.status == StatusSuspended || n.status == StatusPendingDeletion {
		return nil, vcerrors.New("namespace_query", vcerrors.KindUnavailable, nil).WithContext("namespace", n.ID).WithContext("status", string(n.status))
	}
	if n.Quota.MaxConcurrentQueries > 0 && n.inflight >= n.Quota.MaxConcurrentQueries {
		return nil, &QuotaError{Namespace: n.ID, Quota: "max_concurrent_queries", Limit: int64(n.Quota.MaxConcurrentQueries), Observed: int64(n.inflight)}
	}
	if n.Quota.MaxQueriesPerSecond > 0 {
		count := n.rateWindow.Count(time.Now())
		if count >= n.Quota.MaxQueriesPerSecond {
			return nil, &QuotaError{Namespace: n.ID, Quota: "max_queries_per_second", Limit: int64(n.Quota.MaxQueriesPerSecond), Observed: int64(count)}
		}
		n.rateWindow.Record(time.Now())
	}

	n.inflight++
	return func() {
		n.mu.Lock()
		n.inflight--
		n.mu.Unlock()
	}, nil
}

// CheckWrite validates a pending write against record-count and storage
// quotas before the caller performs it (advisory: the caller still owns
// the actual mutation).
func (n *Namespace) CheckWrite(additionalRecords, additionalBytes int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.status == StatusSuspended || n.status == StatusReadOnly || n.status == StatusPendingDeletion {
		return vcerrors.New("namespace_write", vcerrors.KindUnavailable, nil).WithContext("namespace", n.ID).WithContext("status", string(n.status))
	}
	if n.Quota.MaxRecords > 0 {
		if proj := int64(n.Store.RecordCount()) + additionalRecords; proj > n.Quota.MaxRecords {
			return &QuotaError{Namespace: n.ID, Quota: "max_records", Limit: n.Quota.MaxRecords, Observed: proj}
		}
	}
	if n.Quota.MaxStorageBytes > 0 {
		if proj := n.Store.ApproxBytes() + additionalBytes; proj > n.Quota.MaxStorageBytes {
			return &QuotaError{Namespace: n.ID, Quota: "max_storage_bytes", Limit: n.Quota.MaxStorageBytes, Observed: proj}
		}
	}
	return nil
}

// CheckDimension validates a vector's dimension against MaxDimension.
func (n *Namespace) CheckDimension(dim int) error {
	if n.Quota.MaxDimension > 0 && dim > n.Quota.MaxDimension {
		return &QuotaError{Namespace: n.ID, Quota: "max_dimension", Limit: int64(n.Quota.MaxDimension), Observed: int64(dim)}
	}
	return nil
}

// CheckResultK validates a requested k against MaxResultK.
func (n *Namespace) CheckResultK(k int) error {
	if n.Quota.MaxResultK > 0 && k > n.Quota.MaxResultK {
		return &QuotaError{Namespace: n.ID, Quota: "max_result_k", Limit: int64(n.Quota.MaxResultK), Observed: int64(k)}
	}
	return nil
}

// CheckBatchSize validates a batch length against MaxBatchSize.
func (n *Namespace) CheckBatchSize(size int) error {
	if n.Quota.MaxBatchSize > 0 && size > n.Quota.MaxBatchSize {
		return &QuotaError{Namespace: n.ID, Quota: "max_batch_size", Limit: int64(n.Quota.MaxBatchSize), Observed: int64(size)}
	}
	return nil
}
