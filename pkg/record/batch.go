package record

import "time"

// BatchOpKind names the operation performed by one batch item (spec §4.2).
type BatchOpKind string

const (
	BatchUpsert         BatchOpKind = "upsert"
	BatchTombstone      BatchOpKind = "tombstone"
	BatchRestore        BatchOpKind = "restore"
	BatchUpdateMetadata BatchOpKind = "update_metadata"
)

// BatchItem is one ordered entry in a batch request.
type BatchItem struct {
	Op       BatchOpKind
	ID       string
	Vector   Vector
	Metadata Metadata
	TTL      *time.Duration
}

// BatchItemError records why one item of a batch failed.
type BatchItemError struct {
	Index  int
	Op     BatchOpKind
	Reason string
}

// BatchResult reports per-op success tracking. A batch is not a
// transaction: partial success is the expected outcome (spec §4.2).
type BatchResult struct {
	Succeeded int
	Failed    int
	Errors    []BatchItemError
}

// Batch executes items in order, continuing past individual failures.
func (s *Store) Batch(items []BatchItem) BatchResult {
	var res BatchResult
	for i, item := range items {
		var err error
		switch item.Op {
		case BatchUpsert:
			_, err = s.Upsert(item.ID, item.Vector, item.Metadata, item.TTL)
		case BatchTombstone:
			err = s.Tombstone(item.ID)
		case BatchRestore:
			err = s.Restore(item.ID)
		case BatchUpdateMetadata:
			err = s.UpdateMetadata(item.ID, item.Metadata)
		default:
			err = &unknownBatchOpError{Op: item.Op}
		}
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, BatchItemError{Index: i, Op: item.Op, Reason: err.Error()})
			continue
		}
		res.Succeeded++
	}
	return res
}

type unknownBatchOpError struct{ Op BatchOpKind }

func (e *unknownBatchOpError) Error() string { return "record: unknown batch op " + string(e.Op) }
