package source

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Simulated is a deterministic in-memory data store that fabricates plausible
// records for any queried window. It stands in for the real device store in
// tests and local smoke runs; seeding makes output reproducible.
type Simulated struct {
	earliest time.Time
	rng      *rand.Rand
}

// NewSimulated creates a simulated store whose history starts at earliest.
func NewSimulated(earliest time.Time, seed int64) *Simulated {
	return &Simulated{
		earliest: earliest,
		rng:      rand.New(rand.NewSource(seed)), //nolint:gosec // simulation only
	}
}

// EarliestRecordDate reports the start of the simulated history.
func (s *Simulated) EarliestRecordDate(_ context.Context, _ []string) (time.Time, bool, error) {
	return s.earliest, true, nil
}

// QueryRecords fabricates one record per hour of the window for the given
// type. Category types get cycling codes, quantity types a value in a
// type-appropriate range, and workout types one session per day.
func (s *Simulated) QueryRecords(_ context.Context, typeID, unit string, start, end time.Time) ([]Record, error) {
	if end.Before(s.earliest) || !start.Before(end) {
		return nil, nil
	}
	if start.Before(s.earliest) {
		start = s.earliest
	}

	if strings.Contains(typeID, "WorkoutType") {
		return s.workouts(start, end), nil
	}

	isCategory := strings.Contains(typeID, "CategoryType")
	var recs []Record
	for t := start.Truncate(time.Hour); t.Before(end); t = t.Add(time.Hour) {
		if t.Before(start) {
			continue
		}
		rec := Record{
			TypeID:     typeID,
			Start:      t,
			End:        t.Add(time.Minute),
			SourceName: "com.simulated.health",
			DeviceName: "Simulated Device",
		}
		if isCategory {
			rec.Kind = KindCategory
			rec.Code = int64(s.rng.Intn(6))
		} else {
			rec.Kind = KindQuantity
			rec.Value = 40 + s.rng.Float64()*100
			rec.Unit = unit
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// workouts fabricates one running session per calendar day of the window.
func (s *Simulated) workouts(start, end time.Time) []Record {
	var recs []Record
	for t := start.Truncate(24 * time.Hour); t.Before(end); t = t.Add(24 * time.Hour) {
		begin := t.Add(7 * time.Hour)
		if begin.Before(start) || !begin.Before(end) {
			continue
		}
		recs = append(recs, Record{
			Kind:       KindWorkout,
			TypeID:     "HKWorkoutTypeIdentifier",
			Start:      begin,
			End:        begin.Add(45 * time.Minute),
			SourceName: "com.simulated.health",
			DeviceName: "Simulated Device",
			Workout: &WorkoutDetail{
				SessionID:    uuid.NewString(),
				ActivityCode: 37, // running
				Stats: []WorkoutStat{
					{Name: "active_energy", Value: 300 + s.rng.Float64()*200, Unit: "kcal"},
					{Name: "distance", Value: 4000 + s.rng.Float64()*4000, Unit: "m"},
				},
			},
		})
	}
	return recs
}
