package vectorcore

import (
	"github.com/kavlex/vectorcore/pkg/engine"
	"github.com/kavlex/vectorcore/pkg/vcerrors"
	"github.com/kavlex/vectorcore/pkg/vclog"
)

// Re-exported so callers can depend on the root package alone for the
// common cases, the way the teacher's pkg/sqvect re-exports pkg/core's
// Store/Config surface.
type (
	Error  = vcerrors.Error
	Kind   = vcerrors.Kind
	Logger = vclog.Logger
	Config = engine.Config
	Option = engine.Option
)

var (
	ErrNotFound    = vcerrors.ErrNotFound
	ErrStoreClosed = vcerrors.ErrStoreClosed
)

const (
	KindNotFound          = vcerrors.KindNotFound
	KindDimensionMismatch = vcerrors.KindDimensionMismatch
	KindQuotaExceeded     = vcerrors.KindQuotaExceeded
	KindInvalidArgument   = vcerrors.KindInvalidArgument
)

// DefaultConfig returns the library's documented defaults: cosine
// similarity, per-op fsync, and a five-minute background
// compaction/snapshot interval.
func DefaultConfig() Config { return engine.DefaultConfig() }

var (
	WithDimension        = engine.WithDimension
	WithMetric           = engine.WithMetric
	WithHNSW             = engine.WithHNSW
	WithText             = engine.WithText
	WithFsyncPolicy      = engine.WithFsyncPolicy
	WithCompaction       = engine.WithCompaction
	WithSnapshotInterval = engine.WithSnapshotInterval
	WithLogger           = engine.WithLogger
)

// Open opens (creating if absent) a vectorcore store rooted at dir. The
// returned *engine.Store is the full API surface: Upsert/Get/Delete/
// Restore/Batch, Query/QueryText/QueryHybrid, Compact/Snapshot/
// RestoreSnapshot/Backup, Stats/Estimate.
func Open(dir string, opts ...Option) (*engine.Store, error) {
	return engine.Open(dir, opts...)
}
