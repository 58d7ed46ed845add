// Package record implements the id -> (vector, metadata, tombstone, TTL)
// table described in spec §4.2. It owns record payload bytes exclusively;
// the HNSW graph and text index only ever hold back-references to ids.
package record

import (
	"fmt"
	"time"

	"github.com/kavlex/vectorcore/pkg/vectorops"
)

// ValueKind tags the dynamic type carried by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindArray
	KindMap
)

// Value is a small tagged union mirroring JSON's type system, used for
// record metadata (spec §3: "mapping from attribute name to typed value").
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
	Arr  []Value
	Map  map[string]Value
}

func String(s string) Value            { return Value{Kind: KindString, Str: s} }
func Number(n float64) Value           { return Value{Kind: KindNumber, Num: n} }
func Bool(b bool) Value                { return Value{Kind: KindBool, Bool: b} }
func Array(vs ...Value) Value          { return Value{Kind: KindArray, Arr: vs} }
func Map(m map[string]Value) Value     { return Value{Kind: KindMap, Map: m} }

// Metadata is the per-record attribute map.
type Metadata map[string]Value

// Clone returns a deep copy so callers and internal storage never alias
// mutable metadata.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v.clone()
	}
	return out
}

func (v Value) clone() Value {
	switch v.Kind {
	case KindArray:
		arr := make([]Value, len(v.Arr))
		for i, e := range v.Arr {
			arr[i] = e.clone()
		}
		return Value{Kind: KindArray, Arr: arr}
	case KindMap:
		m := make(map[string]Value, len(v.Map))
		for k, e := range v.Map {
			m[k] = e.clone()
		}
		return Value{Kind: KindMap, Map: m}
	default:
		return v
	}
}

// Vector is a record's dense and/or sparse embedding (spec §3: "either
// dense ... or sparse ... or hybrid: both").
type Vector struct {
	Dense  []float32
	Sparse *vectorops.Sparse
}

func (v Vector) IsEmpty() bool { return v.Dense == nil && v.Sparse == nil }

// Record is the primary entity of the store (spec §3).
type Record struct {
	ID        string
	Vector    Vector
	Metadata  Metadata
	Tombstone bool
	ExpiresAt *time.Time
	Seq       uint64
}

// Clone returns a deep copy of r suitable for handing to callers or
// snapshot machinery without risking aliasing of live store state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{
		ID:        r.ID,
		Tombstone: r.Tombstone,
		Seq:       r.Seq,
		Metadata:  r.Metadata.Clone(),
	}
	if r.Vector.Dense != nil {
		out.Vector.Dense = append([]float32(nil), r.Vector.Dense...)
	}
	if r.Vector.Sparse != nil {
		s := &vectorops.Sparse{
			Indices: append([]uint32(nil), r.Vector.Sparse.Indices...),
			Values:  append([]float32(nil), r.Vector.Sparse.Values...),
		}
		out.Vector.Sparse = s
	}
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		out.ExpiresAt = &t
	}
	return out
}

// Expired reports whether r's TTL has elapsed as of now.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}

func validateDense(dim int, v []float32) error {
	if dim > 0 && len(v) != dim {
		return fmt.Errorf("record: dense vector has dimension %d, store dimension is %d", len(v), dim)
	}
	return nil
}
