package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"
)

// checkpointKeyPrefix namespaces watermark rows in the settings store.
const checkpointKeyPrefix = "checkpoint/"

// Checkpoints persists the per-stream watermark: the latest instant already
// confirmed delivered for that stream. Watermarks are monotonically
// non-decreasing and advance only through [Checkpoints.Commit], which callers
// invoke strictly after a confirmed upload.
type Checkpoints struct {
	settings Settings

	// mu serializes read-modify-write so a commit never observes a stale
	// watermark.
	mu stdsync.Mutex
}

// NewCheckpoints creates a checkpoint store over the given settings backend.
func NewCheckpoints(settings Settings) *Checkpoints {
	return &Checkpoints{settings: settings}
}

// Watermark returns the stream's committed watermark. The second return is
// false when the stream has never synced (callers apply the default lookback
// window).
func (c *Checkpoints) Watermark(ctx context.Context, stream string) (time.Time, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watermarkLocked(ctx, stream)
}

func (c *Checkpoints) watermarkLocked(ctx context.Context, stream string) (time.Time, bool, error) {
	raw, ok, err := c.settings.Get(ctx, checkpointKeyPrefix+stream)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("reading %s watermark: %w", stream, err)
	}
	if !ok {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing %s watermark %q: %w", stream, raw, err)
	}
	return t, true, nil
}

// Commit advances the stream's watermark to t. A commit at or before the
// current watermark is a no-op, so redelivery of an already-confirmed batch
// can never move the checkpoint backwards.
func (c *Checkpoints) Commit(ctx context.Context, stream string, t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok, err := c.watermarkLocked(ctx, stream)
	if err != nil {
		return err
	}
	if ok && !t.After(current) {
		return nil
	}
	value := t.UTC().Format(time.RFC3339Nano)
	if err := c.settings.Set(ctx, checkpointKeyPrefix+stream, value); err != nil {
		return fmt.Errorf("committing %s watermark: %w", stream, err)
	}
	return nil
}

// Clear removes the stream's watermark; the next pass falls back to the
// default lookback window.
func (c *Checkpoints) Clear(ctx context.Context, stream string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.settings.Delete(ctx, checkpointKeyPrefix+stream); err != nil {
		return fmt.Errorf("clearing %s watermark: %w", stream, err)
	}
	return nil
}
