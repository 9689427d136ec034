package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	stdsync "sync"
	"time"

	"healthrelay/internal/normalize"
)

// progressKey is the settings row the serialized grid lives under.
const progressKey = "backfill/progress"

// ErrNoHistory signals that discovery found no records at all for the
// enabled categories.
var ErrNoHistory = errors.New("no historical data available")

// ErrNotDiscovered signals an advance before the grid was built.
var ErrNotDiscovered = errors.New("backfill not discovered yet")

// ErrStateUnavailable wraps a settings-store read or write failure. Unlike a
// per-day sync failure it is fatal to the whole run: without durable progress
// a day can neither be marked nor skipped, so retrying it would spin.
var ErrStateUnavailable = errors.New("sync state store unavailable")

// BackfillConfig holds the options for NewBackfill.
type BackfillConfig struct {
	Source    DataSource
	Collector *Collector
	Uploader  Uploader
	Settings  Settings
	Local     *time.Location
	Now       func() time.Time
	Logger    *slog.Logger
}

// Backfill drives the historical sync over the full available date range,
// one day at a time. The persisted [Progress] grid is the only durable
// truth: it is saved after every mutation, so a crash at any point loses at
// most the in-flight day, which is re-run on resume.
type Backfill struct {
	src      DataSource
	coll     *Collector
	uploader Uploader
	settings Settings
	local    *time.Location
	now      func() time.Time
	log      *slog.Logger

	// mu serializes the backfill stream: one day in flight at a time, and
	// every load-mutate-persist of the grid is atomic.
	mu stdsync.Mutex
}

// NewBackfill creates a Backfill from cfg.
func NewBackfill(cfg BackfillConfig) *Backfill {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Local == nil {
		cfg.Local = time.Local
	}
	return &Backfill{
		src:      cfg.Source,
		coll:     cfg.Collector,
		uploader: cfg.Uploader,
		settings: cfg.Settings,
		local:    cfg.Local,
		now:      cfg.Now,
		log:      cfg.Logger,
	}
}

// Load reads the persisted grid. The second return is false when no backfill
// has been discovered yet.
func (b *Backfill) Load(ctx context.Context) (*Progress, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loadLocked(ctx)
}

func (b *Backfill) loadLocked(ctx context.Context) (*Progress, bool, error) {
	raw, ok, err := b.settings.Get(ctx, progressKey)
	if err != nil {
		return nil, false, fmt.Errorf("loading backfill progress: %w: %w", ErrStateUnavailable, err)
	}
	if !ok {
		return nil, false, nil
	}
	var p Progress
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, false, fmt.Errorf("decoding backfill progress: %w", err)
	}
	return &p, true, nil
}

// persistLocked writes the grid back. Every mutating operation calls this
// before returning, so the stored snapshot is always consistent.
func (b *Backfill) persistLocked(ctx context.Context, p *Progress) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding backfill progress: %w", err)
	}
	if err := b.settings.Set(ctx, progressKey, string(raw)); err != nil {
		return fmt.Errorf("persisting backfill progress: %w: %w", ErrStateUnavailable, err)
	}
	return nil
}

// Discover builds the day grid from the earliest available record through
// today, all cells pending. Idempotent: when a grid already exists it is
// returned unchanged, so re-discovering never resets work.
func (b *Backfill) Discover(ctx context.Context, categories []string) (*Progress, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p, ok, err := b.loadLocked(ctx); err != nil {
		return nil, err
	} else if ok {
		return p, nil
	}

	types := normalize.TypesForCategories(categories)
	if len(types) == 0 {
		return nil, ErrNoCategories
	}

	earliest, ok, err := b.src.EarliestRecordDate(ctx, types)
	if err != nil {
		return nil, fmt.Errorf("discovering earliest record: %w", err)
	}
	if !ok {
		return nil, ErrNoHistory
	}

	p := NewProgress(earliest, b.now(), b.local)
	if err := b.persistLocked(ctx, p); err != nil {
		return nil, err
	}
	b.log.Info("backfill discovered",
		"earliest", earliest.Format(dayKeyFormat),
		"days", p.Counts()[DayPending])
	return p, nil
}

// Advance runs the full pipeline for one day: mark it syncing (persisted
// before any work starts), collect and upload that day's batches, then mark
// it done or error (persisted before returning). An already-done day is a
// no-op. Cancellation mid-day leaves the cell syncing; a syncing cell is
// re-runnable exactly like pending.
func (b *Backfill) Advance(ctx context.Context, categories []string, year int, month time.Month, day int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok, err := b.loadLocked(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotDiscovered
	}

	st, ok := p.Day(year, month, day)
	if !ok {
		return fmt.Errorf("day %04d-%02d-%02d is outside the backfill range", year, month, day)
	}
	if st.State == DayDone {
		return nil
	}

	if err := p.SetDay(year, month, day, DayStatus{State: DaySyncing}); err != nil {
		return err
	}
	if err := b.persistLocked(ctx, p); err != nil {
		return err
	}

	dayStart := time.Date(year, month, day, 0, 0, 0, 0, b.local)
	syncErr := b.syncDay(ctx, categories, dayStart, dayStart.AddDate(0, 0, 1))

	if syncErr != nil {
		if errors.Is(syncErr, context.Canceled) || errors.Is(syncErr, context.DeadlineExceeded) {
			// Leave the cell syncing; resumption re-runs it.
			return syncErr
		}
		if err := p.SetDay(year, month, day, DayStatus{State: DayError, Reason: syncErr.Error()}); err != nil {
			return err
		}
		if err := b.persistLocked(ctx, p); err != nil {
			return err
		}
		b.log.Warn("backfill day failed",
			"day", dayStart.Format(dayKeyFormat), "error", syncErr)
		return syncErr
	}

	if err := p.SetDay(year, month, day, DayStatus{State: DayDone}); err != nil {
		return err
	}
	if err := b.persistLocked(ctx, p); err != nil {
		return err
	}
	b.log.Debug("backfill day complete", "day", dayStart.Format(dayKeyFormat))
	return nil
}

// syncDay collects and uploads one day's batches and session files.
func (b *Backfill) syncDay(ctx context.Context, categories []string, start, end time.Time) error {
	types := normalize.TypesForCategories(categories)

	pass, err := b.coll.CollectSamples(ctx, types, start, end)
	if err != nil {
		return err
	}
	// A partially queried day marked done would lose the failed types
	// forever, so surface it as the day's error and let retry re-run it.
	if pass.Stats.QueryFailures > 0 {
		return fmt.Errorf("%d of %d type queries failed (%v)",
			pass.Stats.QueryFailures, pass.Stats.TypesQueried, pass.Stats.FailedTypes)
	}

	batches := pass.Batches
	if slices.Contains(categories, "workouts") {
		wpass, err := b.coll.CollectWorkouts(ctx, start, end)
		if err != nil {
			return err
		}
		if wpass.Stats.QueryFailures > 0 {
			return errors.New("workout query failed")
		}
		batches = append(batches, wpass.Batches...)
	}

	for _, batch := range batches {
		if err := b.uploader.Upload(ctx, batch.Path, batch.Payload); err != nil {
			return err
		}
	}
	return nil
}

// RetryFailed resets every errored day-cell to pending in bulk; done and
// pending cells are untouched. The updated grid is persisted before return.
func (b *Backfill) RetryFailed(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok, err := b.loadLocked(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotDiscovered
	}
	if n := p.RetryFailed(); n > 0 {
		b.log.Info("failed days reset for retry", "days", n)
	}
	return b.persistLocked(ctx, p)
}

// Reset discards the entire grid. Used when the enabled categories change
// materially; the next Discover rebuilds from scratch.
func (b *Backfill) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.settings.Delete(ctx, progressKey); err != nil {
		return fmt.Errorf("resetting backfill progress: %w", err)
	}
	return nil
}

// Run discovers (or resumes) the grid and advances every runnable day in
// chronological order. Days that fail are recorded and skipped — RetryFailed
// makes them runnable again. A settings-store failure ([ErrStateUnavailable])
// aborts the run. Returns when no runnable days remain or ctx is cancelled.
func (b *Backfill) Run(ctx context.Context, categories []string) error {
	p, err := b.Discover(ctx, categories)
	if err != nil {
		return err
	}

	counts := p.Counts()
	b.log.Info("backfill starting",
		"pending", counts[DayPending], "syncing", counts[DaySyncing],
		"done", counts[DayDone], "errors", counts[DayError])

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, ok, err := b.Load(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotDiscovered
		}
		year, month, day, ok := p.NextRunnable()
		if !ok {
			break
		}
		if err := b.Advance(ctx, categories, year, month, day); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			// A day whose error could not be recorded would be picked up
			// again immediately; without durable progress the run must stop.
			if errors.Is(err, ErrStateUnavailable) {
				return err
			}
			// Recorded on the day-cell; keep going with the rest.
			continue
		}
	}

	counts, err = b.finalCounts(ctx)
	if err != nil {
		return err
	}
	b.log.Info("backfill finished",
		"done", counts[DayDone], "errors", counts[DayError])
	if counts[DayError] > 0 {
		return fmt.Errorf("backfill finished with %d failed days; run retry-failed to retry them", counts[DayError])
	}
	return nil
}

func (b *Backfill) finalCounts(ctx context.Context) (map[DayState]int, error) {
	p, ok, err := b.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[DayState]int{}, nil
	}
	return p.Counts(), nil
}
