package sync

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCheckpoints_WatermarkMissing(t *testing.T) {
	cp := NewCheckpoints(newMockSettings())

	_, ok, err := cp.Watermark(context.Background(), StreamSamples)
	if err != nil {
		t.Fatalf("Watermark: %v", err)
	}
	if ok {
		t.Error("ok = true for a stream that never synced")
	}
}

func TestCheckpoints_CommitThenRead(t *testing.T) {
	cp := NewCheckpoints(newMockSettings())
	ctx := context.Background()
	mark := time.Date(2026, 4, 1, 12, 0, 0, 500_000_000, time.UTC)

	if err := cp.Commit(ctx, StreamSamples, mark); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got, ok, err := cp.Watermark(ctx, StreamSamples)
	if err != nil || !ok {
		t.Fatalf("Watermark = %v, %v, %v", got, ok, err)
	}
	if !got.Equal(mark) {
		t.Errorf("Watermark = %v, want %v (fractional seconds must survive)", got, mark)
	}
}

func TestCheckpoints_MonotonicNeverRegresses(t *testing.T) {
	cp := NewCheckpoints(newMockSettings())
	ctx := context.Background()

	later := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	if err := cp.Commit(ctx, StreamSamples, later); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	// Redelivery of an older batch commits an older candidate; a no-op.
	if err := cp.Commit(ctx, StreamSamples, earlier); err != nil {
		t.Fatalf("Commit(earlier): %v", err)
	}
	if err := cp.Commit(ctx, StreamSamples, later); err != nil {
		t.Fatalf("Commit(equal): %v", err)
	}

	got, _, err := cp.Watermark(ctx, StreamSamples)
	if err != nil {
		t.Fatalf("Watermark: %v", err)
	}
	if !got.Equal(later) {
		t.Errorf("Watermark = %v, want %v after older commits", got, later)
	}
}

func TestCheckpoints_StreamsIndependent(t *testing.T) {
	cp := NewCheckpoints(newMockSettings())
	ctx := context.Background()

	sampleMark := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	workoutMark := sampleMark.Add(48 * time.Hour)

	if err := cp.Commit(ctx, StreamSamples, sampleMark); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := cp.Commit(ctx, StreamWorkouts, workoutMark); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, _, _ := cp.Watermark(ctx, StreamSamples)
	if !got.Equal(sampleMark) {
		t.Errorf("samples watermark = %v, want %v", got, sampleMark)
	}
	got, _, _ = cp.Watermark(ctx, StreamWorkouts)
	if !got.Equal(workoutMark) {
		t.Errorf("workouts watermark = %v, want %v", got, workoutMark)
	}
}

func TestCheckpoints_Clear(t *testing.T) {
	cp := NewCheckpoints(newMockSettings())
	ctx := context.Background()

	if err := cp.Commit(ctx, StreamSamples, time.Now()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := cp.Clear(ctx, StreamSamples); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	_, ok, err := cp.Watermark(ctx, StreamSamples)
	if err != nil {
		t.Fatalf("Watermark: %v", err)
	}
	if ok {
		t.Error("watermark still present after Clear")
	}
}

func TestCheckpoints_CorruptValueSurfaces(t *testing.T) {
	settings := newMockSettings()
	settings.values[checkpointKeyPrefix+StreamSamples] = "not a timestamp"
	cp := NewCheckpoints(settings)

	_, _, err := cp.Watermark(context.Background(), StreamSamples)
	if err == nil {
		t.Error("Watermark returned nil error for a corrupt stored value")
	}
}

func TestCheckpoints_StoreErrorSurfaces(t *testing.T) {
	settings := newMockSettings()
	settings.getErr = errors.New("db locked")
	cp := NewCheckpoints(settings)

	_, _, err := cp.Watermark(context.Background(), StreamSamples)
	if err == nil {
		t.Error("Watermark swallowed the store error")
	}
}
