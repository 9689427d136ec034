// Package source defines the raw record shapes returned by the on-device
// health data store. The store itself is an external capability; this package
// carries only its data contract plus a simulated implementation used by
// tests and local smoke runs.
package source

import (
	"errors"
	"time"
)

// ErrUnavailable signals that the device data store cannot be reached at all
// (e.g. permissions revoked). Distinct from a query returning zero records.
var ErrUnavailable = errors.New("health data source unavailable")

// Kind discriminates the raw record variants.
type Kind int

const (
	// KindQuantity is a continuous numeric measurement (heart rate, steps).
	KindQuantity Kind = iota
	// KindCategory is a discrete enumerated event (sleep stage, stand hour).
	KindCategory
	// KindWorkout is a session container; its payload is encoded into a
	// standalone per-session file, not the day-batch stream.
	KindWorkout
)

// Record is one raw sample as handed over by the device data store.
// Quantity values are expressed in the unit requested at query time.
type Record struct {
	Kind   Kind
	TypeID string // raw device type identifier, e.g. "HKQuantityTypeIdentifierHeartRate"

	Start time.Time
	End   time.Time

	Value float64 // quantity records
	Unit  string  // unit Value is expressed in
	Code  int64   // category records

	SourceName string // originating app/device bundle name
	DeviceName string
	Metadata   map[string]any

	Workout *WorkoutDetail // non-nil only for KindWorkout
}

// WorkoutDetail carries the session-specific payload of a workout record.
type WorkoutDetail struct {
	SessionID    string
	ActivityCode int64
	Stats        []WorkoutStat
	Route        []RoutePoint // nil when the session has no associated route
}

// WorkoutStat is one aggregated session statistic in its source unit.
type WorkoutStat struct {
	Name  string
	Value float64
	Unit  string
}

// RoutePoint is one high-resolution location fix of a workout route.
type RoutePoint struct {
	Time      time.Time
	Lat       float64
	Lon       float64
	Alt       float64
	HAcc      float64
	VAcc      float64
	Speed     float64
	SpeedAcc  float64
	Course    float64
	CourseAcc float64
}
