package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"healthrelay/internal/model"
	"healthrelay/internal/normalize"
	"healthrelay/internal/source"
)

// Stream keys. Each stream is checkpointed independently because the workout
// stream's granularity (one file per session) differs from the day-bucketed
// sample stream.
const (
	StreamSamples  = "samples"
	StreamWorkouts = "workouts"
)

// workoutTypeID is the device identifier for workout session containers.
const workoutTypeID = "HKWorkoutTypeIdentifier"

// Stats aggregates what happened during a pass. Failures below the pass
// level (a broken source type, a dropped record) land here instead of
// aborting the pass.
type Stats struct {
	TypesQueried     int
	TypesWithData    int
	SamplesCollected int
	Sessions         int
	QueryFailures    int
	FailedTypes      []string
	Uploaded         int
	UploadFailures   int
}

// merge folds other into s.
func (s *Stats) merge(other Stats) {
	s.TypesQueried += other.TypesQueried
	s.TypesWithData += other.TypesWithData
	s.SamplesCollected += other.SamplesCollected
	s.Sessions += other.Sessions
	s.QueryFailures += other.QueryFailures
	s.FailedTypes = append(s.FailedTypes, other.FailedTypes...)
	s.Uploaded += other.Uploaded
	s.UploadFailures += other.UploadFailures
}

// Batch is one file destined for the backend: a day-bucketed sample document
// or a standalone session document. WatermarkCandidate becomes the stream's
// new checkpoint once the batch is confirmed delivered; EarliestSample is the
// oldest instant the batch still carries, which caps commits for batches
// delivered before it (zone overrides can put an old sample in a late batch).
type Batch struct {
	StreamKey          string
	Day                string // YYYY-MM-DD in the batch's resolved zone
	Path               string
	Payload            []byte
	WatermarkCandidate time.Time
	EarliestSample     time.Time
	SampleCount        int
}

// Pass is the output of one collection run: every batch to deliver plus
// aggregate stats. The pass ID ties log lines and spans together.
type Pass struct {
	ID       string
	SyncedAt time.Time
	Batches  []Batch
	Stats    Stats
}

// Collector builds upload batches for a time window. It is stateless between
// calls — checkpoints and progress live with the callers that own them.
type Collector struct {
	src    DataSource
	prefix string
	device model.DeviceInfo
	local  *time.Location
	log    *slog.Logger
}

// NewCollector creates a Collector writing under the given stream prefix.
// local is the device-local zone used when a sample carries no zone of its
// own; nil means the process-local zone.
func NewCollector(src DataSource, prefix string, device model.DeviceInfo, local *time.Location, logger *slog.Logger) *Collector {
	return &Collector{src: src, prefix: prefix, device: device, local: local, log: logger}
}

// CollectSamples runs the query→normalize→bucket→batch pipeline for the
// sample stream over [since, until). A single type's query failure is
// recorded in stats and the remaining types still run; only total source
// unavailability aborts the pass.
func (c *Collector) CollectSamples(ctx context.Context, types []string, since, until time.Time) (*Pass, error) {
	pass := &Pass{ID: uuid.NewString(), SyncedAt: until}

	var samples []model.Sample
	for _, typeID := range types {
		if typeID == workoutTypeID {
			continue // sessions belong to the workout stream
		}
		pass.Stats.TypesQueried++

		unit := normalize.PreferredUnit(normalize.ResolveTypeName(typeID))
		recs, err := c.src.QueryRecords(ctx, typeID, unit, since, until)
		if errors.Is(err, source.ErrUnavailable) {
			return nil, fmt.Errorf("querying %s: %w", typeID, err)
		}
		if err != nil {
			c.log.Warn("type query failed, continuing with remaining types",
				"type", typeID, "pass", pass.ID, "error", err)
			pass.Stats.QueryFailures++
			pass.Stats.FailedTypes = append(pass.Stats.FailedTypes, typeID)
			continue
		}
		if len(recs) > 0 {
			pass.Stats.TypesWithData++
		}
		for _, rec := range recs {
			if s, ok := normalize.Sample(rec); ok {
				samples = append(samples, *s)
			}
		}
	}
	pass.Stats.SamplesCollected = len(samples)

	buckets := BucketByDay(samples, c.local)
	days := make([]string, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Strings(days)

	for _, day := range days {
		doc := model.DayDocument{
			DeviceInfo: c.device,
			Samples:    buckets[day],
			SyncedAt:   model.TS(pass.SyncedAt),
		}
		payload, err := json.Marshal(doc)
		if err != nil {
			c.log.Error("encoding day batch failed, skipping day", "day", day, "error", err)
			continue
		}
		pass.Batches = append(pass.Batches, Batch{
			StreamKey:          StreamSamples,
			Day:                day,
			Path:               c.batchPath(day, pass.SyncedAt),
			Payload:            payload,
			WatermarkCandidate: watermarkCandidate(buckets[day]),
			EarliestSample:     earliestSample(buckets[day]),
			SampleCount:        len(buckets[day]),
		})
	}
	return pass, nil
}

// CollectWorkouts builds one standalone file per workout session in
// [since, until). The workout stream has a single source type, so a query
// failure is recorded in stats like any per-type failure.
func (c *Collector) CollectWorkouts(ctx context.Context, since, until time.Time) (*Pass, error) {
	pass := &Pass{ID: uuid.NewString(), SyncedAt: until}
	pass.Stats.TypesQueried = 1

	recs, err := c.src.QueryRecords(ctx, workoutTypeID, "", since, until)
	if errors.Is(err, source.ErrUnavailable) {
		return nil, fmt.Errorf("querying workouts: %w", err)
	}
	if err != nil {
		c.log.Warn("workout query failed", "pass", pass.ID, "error", err)
		pass.Stats.QueryFailures++
		pass.Stats.FailedTypes = append(pass.Stats.FailedTypes, workoutTypeID)
		return pass, nil
	}
	if len(recs) > 0 {
		pass.Stats.TypesWithData = 1
	}

	for _, rec := range recs {
		sess, ok := normalize.Session(rec)
		if !ok {
			continue
		}
		if sess.UUID == "" {
			sess.UUID = uuid.NewString()
		}
		sess.SyncedAt = model.TS(pass.SyncedAt)
		sess.DeviceInfo = c.device

		payload, err := json.Marshal(sess)
		if err != nil {
			c.log.Error("encoding session failed, skipping", "session", sess.UUID, "error", err)
			continue
		}
		day := rec.Start.In(resolveZone(sess.Metadata, c.local)).Format(dayKeyFormat)
		end := rec.End
		if end.IsZero() {
			end = rec.Start
		}
		pass.Batches = append(pass.Batches, Batch{
			StreamKey:          StreamWorkouts,
			Day:                day,
			Path:               c.sessionPath(day, sess.UUID),
			Payload:            payload,
			WatermarkCandidate: end,
			EarliestSample:     end,
			SampleCount:        1,
		})
		pass.Stats.Sessions++
	}
	return pass, nil
}

// batchPath builds the deterministic day-batch path:
// <prefix>/<YYYY>/<MM>/<DD>/sample-<syncTimestamp>.json. The timestamp makes
// every pass's file unique, so redelivery never overwrites a prior batch.
func (c *Collector) batchPath(day string, syncedAt time.Time) string {
	return fmt.Sprintf("%s/%s/%s/%s/sample-%s.json",
		c.prefix, day[:4], day[5:7], day[8:10], pathTimestamp(syncedAt))
}

// sessionPath builds the per-session path:
// <prefix>/<YYYY>/<MM>/<DD>/workout-<sessionID>.json.
func (c *Collector) sessionPath(day, sessionID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/workout-%s.json",
		c.prefix, day[:4], day[5:7], day[8:10], sessionID)
}

// pathTimestamp renders an instant as an ISO-8601 string with ':' replaced
// by '-' so it is filesystem-safe.
func pathTimestamp(t time.Time) string {
	return strings.ReplaceAll(t.UTC().Format(time.RFC3339), ":", "-")
}

// watermarkCandidate returns the max end (or start when end is missing)
// across the batch's samples.
func watermarkCandidate(samples []model.Sample) time.Time {
	var max time.Time
	for _, s := range samples {
		t := s.End.Time
		if t.IsZero() {
			t = s.Start.Time
		}
		if t.After(max) {
			max = t
		}
	}
	return max
}

// earliestSample returns the min end (or start when end is missing) across
// the batch's samples.
func earliestSample(samples []model.Sample) time.Time {
	var min time.Time
	for _, s := range samples {
		t := s.End.Time
		if t.IsZero() {
			t = s.Start.Time
		}
		if min.IsZero() || t.Before(min) {
			min = t
		}
	}
	return min
}
