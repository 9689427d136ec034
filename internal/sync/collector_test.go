package sync

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"healthrelay/internal/model"
	"healthrelay/internal/source"
)

var (
	testLogger = slog.Default()
	testDevice = model.DeviceInfo{Model: "TestRig", Name: "test-host", SystemVersion: "1.0"}
)

const (
	heartRateType = "HKQuantityTypeIdentifierHeartRate"
	stepCountType = "HKQuantityTypeIdentifierStepCount"
)

func heartRateRecord(start time.Time, bpm float64) source.Record {
	return source.Record{
		Kind:       source.KindQuantity,
		TypeID:     heartRateType,
		Start:      start,
		End:        start.Add(time.Minute),
		Value:      bpm,
		Unit:       "count/min",
		SourceName: "com.apple.health",
	}
}

func workoutRecord(start time.Time, id string) source.Record {
	return source.Record{
		Kind:       source.KindWorkout,
		TypeID:     workoutTypeID,
		Start:      start,
		End:        start.Add(30 * time.Minute),
		SourceName: "com.apple.health",
		Workout: &source.WorkoutDetail{
			SessionID:    id,
			ActivityCode: 37,
			Stats:        []source.WorkoutStat{{Name: "distance", Value: 5.1, Unit: "km"}},
		},
	}
}

func testCollector(src DataSource) *Collector {
	return NewCollector(src, "health", testDevice, time.UTC, testLogger)
}

func TestCollectSamples_RoundTrip(t *testing.T) {
	day := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	src := newMockSource()
	src.add(
		heartRateRecord(day.Add(8*time.Hour), 62),
		heartRateRecord(day.Add(9*time.Hour), 71),
	)

	pass, err := testCollector(src).CollectSamples(context.Background(),
		[]string{heartRateType}, day, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("CollectSamples: %v", err)
	}
	if len(pass.Batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(pass.Batches))
	}
	batch := pass.Batches[0]
	if batch.Day != "2026-06-15" {
		t.Errorf("Day = %q, want 2026-06-15", batch.Day)
	}

	var doc model.DayDocument
	if err := json.Unmarshal(batch.Payload, &doc); err != nil {
		t.Fatalf("payload does not decode: %v", err)
	}
	if len(doc.Samples) != 2 {
		t.Fatalf("decoded samples = %d, want 2", len(doc.Samples))
	}
	if doc.DeviceInfo != testDevice {
		t.Errorf("DeviceInfo = %+v, want %+v", doc.DeviceInfo, testDevice)
	}
	first := doc.Samples[0]
	if first.Type != "heart-rate" {
		t.Errorf("Type = %q, want heart-rate", first.Type)
	}
	if v, ok := first.Value.IsNumber(); !ok || v != 62 {
		t.Errorf("Value = %v, want 62", v)
	}
	if !first.Start.Equal(day.Add(8 * time.Hour)) {
		t.Errorf("Start = %v, want %v", first.Start.Time, day.Add(8*time.Hour))
	}
}

func TestCollectSamples_PathFormat(t *testing.T) {
	day := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	src := newMockSource()
	src.add(heartRateRecord(day.Add(time.Hour), 60))

	until := time.Date(2026, 6, 16, 10, 30, 0, 0, time.UTC)
	pass, err := testCollector(src).CollectSamples(context.Background(),
		[]string{heartRateType}, day, until)
	if err != nil {
		t.Fatalf("CollectSamples: %v", err)
	}

	want := "health/2026/06/15/sample-2026-06-16T10-30-00Z.json"
	if got := pass.Batches[0].Path; got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
	if strings.Contains(pass.Batches[0].Path, ":") {
		t.Errorf("path %q contains ':'", pass.Batches[0].Path)
	}
}

func TestCollectSamples_PerTypeFailureIsolated(t *testing.T) {
	day := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	src := newMockSource()
	src.add(heartRateRecord(day.Add(time.Hour), 60))
	src.failOn(stepCountType, errors.New("query timed out"))

	pass, err := testCollector(src).CollectSamples(context.Background(),
		[]string{stepCountType, heartRateType}, day, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("CollectSamples aborted on a single failed type: %v", err)
	}
	if pass.Stats.QueryFailures != 1 {
		t.Errorf("QueryFailures = %d, want 1", pass.Stats.QueryFailures)
	}
	if len(pass.Stats.FailedTypes) != 1 || pass.Stats.FailedTypes[0] != stepCountType {
		t.Errorf("FailedTypes = %v, want [%s]", pass.Stats.FailedTypes, stepCountType)
	}
	if pass.Stats.SamplesCollected != 1 {
		t.Errorf("SamplesCollected = %d, want 1 (healthy type must still run)", pass.Stats.SamplesCollected)
	}
}

func TestCollectSamples_UnavailableAborts(t *testing.T) {
	src := newMockSource()
	src.down = true

	_, err := testCollector(src).CollectSamples(context.Background(),
		[]string{heartRateType}, time.Now().Add(-time.Hour), time.Now())
	if !errors.Is(err, source.ErrUnavailable) {
		t.Errorf("err = %v, want source.ErrUnavailable", err)
	}
}

func TestCollectSamples_SkipsWorkoutType(t *testing.T) {
	day := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	src := newMockSource()
	src.add(workoutRecord(day.Add(7*time.Hour), "w1"))

	pass, err := testCollector(src).CollectSamples(context.Background(),
		[]string{workoutTypeID}, day, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("CollectSamples: %v", err)
	}
	if pass.Stats.TypesQueried != 0 {
		t.Errorf("TypesQueried = %d, want 0 (workout container belongs to the workout stream)", pass.Stats.TypesQueried)
	}
	if len(pass.Batches) != 0 {
		t.Errorf("batches = %d, want 0", len(pass.Batches))
	}
}

func TestCollectSamples_WatermarkCandidateIsMaxEnd(t *testing.T) {
	day := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	src := newMockSource()
	src.add(
		heartRateRecord(day.Add(8*time.Hour), 60),
		heartRateRecord(day.Add(22*time.Hour), 65),
	)

	pass, err := testCollector(src).CollectSamples(context.Background(),
		[]string{heartRateType}, day, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("CollectSamples: %v", err)
	}
	want := day.Add(22*time.Hour + time.Minute) // latest record's end
	if got := pass.Batches[0].WatermarkCandidate; !got.Equal(want) {
		t.Errorf("WatermarkCandidate = %v, want %v", got, want)
	}
}

func TestCollectWorkouts_SessionFile(t *testing.T) {
	day := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	src := newMockSource()
	src.add(workoutRecord(day.Add(7*time.Hour), "sess-42"))

	pass, err := testCollector(src).CollectWorkouts(context.Background(), day, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("CollectWorkouts: %v", err)
	}
	if len(pass.Batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(pass.Batches))
	}
	batch := pass.Batches[0]
	if batch.StreamKey != StreamWorkouts {
		t.Errorf("StreamKey = %q, want %q", batch.StreamKey, StreamWorkouts)
	}
	if want := "health/2026/06/15/workout-sess-42.json"; batch.Path != want {
		t.Errorf("Path = %q, want %q", batch.Path, want)
	}

	var sess model.Session
	if err := json.Unmarshal(batch.Payload, &sess); err != nil {
		t.Fatalf("payload does not decode: %v", err)
	}
	if sess.UUID != "sess-42" {
		t.Errorf("UUID = %q, want sess-42", sess.UUID)
	}
	if sess.ActivityType != "running" {
		t.Errorf("ActivityType = %q, want running", sess.ActivityType)
	}
	if sess.DeviceInfo != testDevice {
		t.Errorf("DeviceInfo = %+v, want %+v", sess.DeviceInfo, testDevice)
	}
}

func TestCollectWorkouts_MissingSessionIDGetsOne(t *testing.T) {
	day := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	src := newMockSource()
	src.add(workoutRecord(day.Add(7*time.Hour), ""))

	pass, err := testCollector(src).CollectWorkouts(context.Background(), day, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("CollectWorkouts: %v", err)
	}
	var sess model.Session
	if err := json.Unmarshal(pass.Batches[0].Payload, &sess); err != nil {
		t.Fatalf("payload does not decode: %v", err)
	}
	if sess.UUID == "" {
		t.Error("UUID empty; sessions without an ID must be assigned one")
	}
}

func TestCollectWorkouts_QueryFailureRecorded(t *testing.T) {
	src := newMockSource()
	src.failOn(workoutTypeID, errors.New("query timed out"))

	pass, err := testCollector(src).CollectWorkouts(context.Background(),
		time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("CollectWorkouts: %v", err)
	}
	if pass.Stats.QueryFailures != 1 {
		t.Errorf("QueryFailures = %d, want 1", pass.Stats.QueryFailures)
	}
}
