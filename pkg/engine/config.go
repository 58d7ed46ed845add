// Package engine provides the Store facade that ties together the record
// table, HNSW index, text index, write-ahead log, and snapshot machinery
// into the single-writer/multi-reader API of spec §4, grounded on the
// teacher's pkg/sqvect/sqvect.go (Open/Quick/DB lifecycle shape) and
// pkg/core/store.go (NewWithConfig/Init).
package engine

import (
	"time"

	"github.com/kavlex/vectorcore/pkg/hnsw"
	"github.com/kavlex/vectorcore/pkg/text"
	"github.com/kavlex/vectorcore/pkg/vclog"
	"github.com/kavlex/vectorcore/pkg/vectorops"
	"github.com/kavlex/vectorcore/pkg/wal"
)

// CompactionPolicy controls when the background worker triggers a
// compaction pass (spec §4.6).
type CompactionPolicy struct {
	MinDeleted int
	MinRatio   float64
}

// Config is the full set of tunables for an engine.Store (spec §6).
type Config struct {
	Dimension int
	Metric    vectorops.Metric

	HNSW hnsw.Config
	Text text.Config

	FsyncPolicy      wal.FsyncPolicy
	Compaction       CompactionPolicy
	SnapshotInterval time.Duration

	Logger vclog.Logger
}

// DefaultConfig mirrors the teacher's DefaultConfig pattern
// (pkg/sqvect/sqvect.go), filling every tunable with the spec's
// documented defaults.
func DefaultConfig() Config {
	return Config{
		Metric:           vectorops.Cosine,
		HNSW:             hnsw.DefaultConfig(),
		Text:             text.DefaultConfig(),
		FsyncPolicy:      wal.FsyncPerOp,
		Compaction:       CompactionPolicy{MinDeleted: 1000, MinRatio: 0.3},
		SnapshotInterval: 5 * time.Minute,
		Logger:           vclog.Nop(),
	}
}

// Option mutates a Config, following the teacher's functional-options
// idiom (pkg/sqvect/sqvect.go).
type Option func(*Config)

func WithDimension(d int) Option        { return func(c *Config) { c.Dimension = d } }
func WithMetric(m vectorops.Metric) Option { return func(c *Config) { c.Metric = m } }
func WithHNSW(cfg hnsw.Config) Option    { return func(c *Config) { c.HNSW = cfg } }
func WithText(cfg text.Config) Option    { return func(c *Config) { c.Text = cfg } }
func WithFsyncPolicy(p wal.FsyncPolicy) Option { return func(c *Config) { c.FsyncPolicy = p } }
func WithCompaction(p CompactionPolicy) Option { return func(c *Config) { c.Compaction = p } }
func WithSnapshotInterval(d time.Duration) Option { return func(c *Config) { c.SnapshotInterval = d } }
func WithLogger(l vclog.Logger) Option   { return func(c *Config) { c.Logger = l } }

func applyOptions(cfg Config, opts []Option) Config {
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.HNSW.M == 0 {
		cfg.HNSW = hnsw.DefaultConfig()
	}
	if cfg.Text.K1 == 0 {
		cfg.Text = text.DefaultConfig()
	}
	if cfg.FsyncPolicy == "" {
		cfg.FsyncPolicy = wal.FsyncPerOp
	}
	if cfg.Logger == nil {
		cfg.Logger = vclog.Nop()
	}
	if cfg.Metric == "" {
		cfg.Metric = vectorops.Cosine
	}
	return cfg
}
