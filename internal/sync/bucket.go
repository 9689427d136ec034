package sync

import (
	"sort"
	"time"

	"healthrelay/internal/model"
)

// metadataTimeZoneKey is the metadata field carrying the IANA zone the sample
// was recorded in. When present and valid it overrides the device-local zone,
// so the bucket reflects the subject's local day.
const metadataTimeZoneKey = "HKMetadataKeyTimeZone"

// dayKeyFormat is the calendar-day bucket key layout.
const dayKeyFormat = "2006-01-02"

// BucketByDay groups samples into calendar-day buckets keyed YYYY-MM-DD.
// Each sample's day is computed from its start instant in its resolved zone:
// the metadata zone when present and valid, else local. Within a bucket,
// samples are in deterministic order: start, then end, then source.
func BucketByDay(samples []model.Sample, local *time.Location) map[string][]model.Sample {
	buckets := make(map[string][]model.Sample)
	for _, s := range samples {
		key := s.Start.In(resolveZone(s.Metadata, local)).Format(dayKeyFormat)
		buckets[key] = append(buckets[key], s)
	}
	for _, b := range buckets {
		sortSamples(b)
	}
	return buckets
}

// resolveZone picks the zone a sample's calendar day is computed in.
func resolveZone(md model.Metadata, local *time.Location) *time.Location {
	if name, ok := md[metadataTimeZoneKey].(string); ok {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if local != nil {
		return local
	}
	return time.Local
}

// sortSamples orders samples by start, tie-broken by end, then source, so
// serialized output is reproducible regardless of query order.
func sortSamples(samples []model.Sample) {
	sort.SliceStable(samples, func(i, j int) bool {
		a, b := samples[i], samples[j]
		if !a.Start.Equal(b.Start.Time) {
			return a.Start.Before(b.Start.Time)
		}
		if !a.End.Equal(b.End.Time) {
			return a.End.Before(b.End.Time)
		}
		return a.Source < b.Source
	})
}
