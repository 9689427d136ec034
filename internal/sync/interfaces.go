// Package sync implements the health-data synchronization engine: incremental
// checkpointed passes that query the device data source, normalize and
// day-bucket the results, build deterministic upload batches, and commit
// watermarks only after confirmed delivery — plus the resumable multi-year
// backfill driver.
//
// The package contains two main components:
//
//   - [Engine] runs incremental passes and the daemon loop.
//   - [Backfill] drives the day-grid historical sync.
package sync

import (
	"context"
	"time"

	"healthrelay/internal/source"
)

// DataSource provides read access to the on-device health data store.
// Implemented by [source.Simulated]; the production store is an external
// capability satisfying the same contract.
type DataSource interface {
	// QueryRecords returns raw records of the given type whose interval
	// overlaps [start, end). Quantity values are expressed in unit.
	QueryRecords(ctx context.Context, typeID, unit string, start, end time.Time) ([]source.Record, error)

	// EarliestRecordDate reports the earliest available record across the
	// given types. The second return is false when no data exists at all.
	EarliestRecordDate(ctx context.Context, typeIDs []string) (time.Time, bool, error)
}

// Uploader delivers a serialized batch file to the backend. A nil return
// confirms durable delivery; checkpoints advance only after that.
// Implemented by [upload.Client].
type Uploader interface {
	Upload(ctx context.Context, path string, payload []byte) error
}

// Settings is the persisted key-value capability backing checkpoint
// watermarks and the serialized backfill progress.
// Implemented by [state.Store].
type Settings interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
