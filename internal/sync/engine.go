package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	stdsync "sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"healthrelay/internal/normalize"
)

const (
	otelScope      = "healthrelay/sync"
	spanPass       = "sync.pass"
	metricSamples  = "healthrelay.sync.samples.collected"
	metricBatches  = "healthrelay.sync.batches.uploaded"
	metricSessions = "healthrelay.sync.sessions.uploaded"
	metricErrors   = "healthrelay.sync.errors"
)

// ErrNoCategories signals that the user has every data category disabled.
// Distinct from [source.ErrUnavailable]: there is nothing to sync, not a
// broken device store.
var ErrNoCategories = errors.New("no data categories enabled")

// EngineConfig holds the options for NewEngine.
type EngineConfig struct {
	Collector   *Collector
	Uploader    Uploader
	Checkpoints *Checkpoints

	// Categories returns the enabled category IDs. Called fresh at the
	// start of every pass so toggles take effect without a restart.
	Categories func() []string

	// Lookback is the window queried when a stream has never synced.
	Lookback time.Duration

	// PollInterval drives the daemon loop unless Schedule is set.
	PollInterval time.Duration

	// Schedule is an optional cron expression overriding PollInterval.
	Schedule string

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Engine runs incremental sync passes: collect, upload, and commit the
// stream watermark after each confirmed delivery. Create one with
// [NewEngine]; run a single pass with [Engine.SyncOnce] or the daemon loop
// with [Engine.Run].
type Engine struct {
	collector    *Collector
	uploader     Uploader
	checkpoints  *Checkpoints
	categories   func() []string
	lookback     time.Duration
	pollInterval time.Duration
	schedule     string
	now          func() time.Time
	log          *slog.Logger

	// mu guarantees a single pass in flight: the checkpoint read of pass
	// N+1 always observes the commit of pass N.
	mu stdsync.Mutex

	// OTel instruments — always non-nil (no-op when telemetry is disabled).
	tracer      trace.Tracer
	cntSamples  metric.Int64Counter
	cntBatches  metric.Int64Counter
	cntSessions metric.Int64Counter
	cntErrors   metric.Int64Counter
}

// NewEngine creates an Engine from cfg.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	meter := otel.Meter(otelScope)
	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			cfg.Logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	return &Engine{
		collector:    cfg.Collector,
		uploader:     cfg.Uploader,
		checkpoints:  cfg.Checkpoints,
		categories:   cfg.Categories,
		lookback:     cfg.Lookback,
		pollInterval: cfg.PollInterval,
		schedule:     cfg.Schedule,
		now:          cfg.Now,
		log:          cfg.Logger,

		tracer:      otel.Tracer(otelScope),
		cntSamples:  mustCounter(metricSamples, "Number of samples collected during sync"),
		cntBatches:  mustCounter(metricBatches, "Number of day batches uploaded"),
		cntSessions: mustCounter(metricSessions, "Number of workout sessions uploaded"),
		cntErrors:   mustCounter(metricErrors, "Number of errors encountered during sync"),
	}
}

// SyncOnce performs a single incremental pass over both streams: the
// day-bucketed sample stream and the per-session workout stream, each with
// its own checkpoint. Aggregate stats are returned even when a stream fails.
func (e *Engine) SyncOnce(ctx context.Context) (Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, span := e.tracer.Start(ctx, spanPass)
	defer span.End()

	var stats Stats

	categories := e.categories()
	if len(categories) == 0 {
		span.RecordError(ErrNoCategories)
		return stats, ErrNoCategories
	}

	now := e.now()
	var firstErr error

	if err := e.runStream(ctx, StreamSamples, categories, now, &stats); err != nil {
		firstErr = err
	}
	if slices.Contains(categories, "workouts") {
		if err := e.runStream(ctx, StreamWorkouts, categories, now, &stats); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if stats.SamplesCollected > 0 {
		e.cntSamples.Add(ctx, int64(stats.SamplesCollected))
	}
	if stats.Uploaded > 0 {
		e.cntBatches.Add(ctx, int64(stats.Uploaded))
	}
	if stats.Sessions > 0 {
		e.cntSessions.Add(ctx, int64(stats.Sessions))
	}
	if n := stats.QueryFailures + stats.UploadFailures; n > 0 {
		e.cntErrors.Add(ctx, int64(n))
	}
	span.SetAttributes(
		attribute.Int("sync.types_queried", stats.TypesQueried),
		attribute.Int("sync.types_with_data", stats.TypesWithData),
		attribute.Int("sync.samples_collected", stats.SamplesCollected),
		attribute.Int("sync.uploaded", stats.Uploaded),
		attribute.Int("sync.query_failures", stats.QueryFailures),
	)
	if firstErr != nil {
		span.RecordError(firstErr)
	}

	e.log.Info("incremental pass complete",
		"types_queried", stats.TypesQueried,
		"types_with_data", stats.TypesWithData,
		"samples", stats.SamplesCollected,
		"sessions", stats.Sessions,
		"uploaded", stats.Uploaded,
		"query_failures", stats.QueryFailures,
		"upload_failures", stats.UploadFailures,
	)
	return stats, firstErr
}

// runStream executes one stream's pass: load watermark, collect, then upload
// batches in watermark order, committing after each confirmed delivery. A
// crash between upload and commit redoes that batch next pass — the paths
// are per-pass unique, so redelivery is harmless (at-least-once).
func (e *Engine) runStream(ctx context.Context, stream string, categories []string, now time.Time, stats *Stats) error {
	since, ok, err := e.checkpoints.Watermark(ctx, stream)
	if err != nil {
		// Without the true watermark the pass cannot proceed safely.
		return fmt.Errorf("stream %s: %w", stream, err)
	}
	if !ok {
		since = now.Add(-e.lookback)
	}

	var pass *Pass
	switch stream {
	case StreamWorkouts:
		pass, err = e.collector.CollectWorkouts(ctx, since, now)
	default:
		pass, err = e.collector.CollectSamples(ctx, normalize.TypesForCategories(categories), since, now)
	}
	if err != nil {
		return fmt.Errorf("stream %s: %w", stream, err)
	}

	// Oldest watermark first, so a mid-loop failure never leaves the
	// checkpoint ahead of an undelivered batch.
	slices.SortFunc(pass.Batches, func(a, b Batch) int {
		return a.WatermarkCandidate.Compare(b.WatermarkCandidate)
	})

	// Zone overrides can place an old sample in a batch with a late
	// candidate, so a commit must never pass the oldest sample still
	// undelivered. minAfter[i] is that floor across batches i..n.
	minAfter := make([]time.Time, len(pass.Batches)+1)
	for i := len(pass.Batches) - 1; i >= 0; i-- {
		m := pass.Batches[i].EarliestSample
		if next := minAfter[i+1]; !next.IsZero() && (m.IsZero() || next.Before(m)) {
			m = next
		}
		minAfter[i] = m
	}

	for i, batch := range pass.Batches {
		if err := e.uploader.Upload(ctx, batch.Path, batch.Payload); err != nil {
			pass.Stats.UploadFailures++
			stats.merge(pass.Stats)
			return fmt.Errorf("stream %s: %w", stream, err)
		}
		pass.Stats.Uploaded++
		mark := batch.WatermarkCandidate
		if next := minAfter[i+1]; !next.IsZero() && next.Before(mark) {
			mark = next
		}
		if !mark.IsZero() {
			if err := e.checkpoints.Commit(ctx, stream, mark); err != nil {
				stats.merge(pass.Stats)
				return fmt.Errorf("stream %s: %w", stream, err)
			}
		}
		e.log.Debug("batch delivered", "stream", stream, "path", batch.Path,
			"samples", batch.SampleCount, "pass", pass.ID)
	}

	stats.merge(pass.Stats)
	return nil
}

// Run starts the daemon loop: an immediate pass, then either the cron
// schedule or the fixed poll interval. It blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if _, err := e.SyncOnce(ctx); err != nil {
		e.log.Error("initial pass failed", "error", err)
	}

	if e.schedule != "" {
		return e.runCron(ctx)
	}

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("sync engine shutting down")
			return ctx.Err()
		case <-ticker.C:
			if _, err := e.SyncOnce(ctx); err != nil {
				e.log.Error("pass failed", "error", err)
			}
		}
	}
}

// runCron drives passes from a cron expression instead of a fixed interval.
func (e *Engine) runCron(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(e.schedule, func() {
		if _, err := e.SyncOnce(ctx); err != nil {
			e.log.Error("scheduled pass failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", e.schedule, err)
	}
	c.Start()
	defer c.Stop()

	<-ctx.Done()
	e.log.Info("sync engine shutting down")
	return ctx.Err()
}
