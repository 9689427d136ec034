package normalize

import (
	"healthrelay/internal/model"
	"healthrelay/internal/source"
)

// Sample converts a raw quantity or category record into a normalized sample.
// It returns (nil, false) for workout containers — those are encoded by
// [Session] into standalone per-session files — and for record shapes it does
// not recognize. A record that cannot be normalized is skipped, never fatal.
func Sample(rec source.Record) (*model.Sample, bool) {
	typeName := ResolveTypeName(rec.TypeID)

	s := &model.Sample{
		Type:     typeName,
		Start:    model.TS(rec.Start),
		End:      model.TS(rec.End),
		Source:   rec.SourceName,
		Device:   rec.DeviceName,
		Metadata: Metadata(rec.Metadata),
	}
	if rec.End.IsZero() {
		s.End = s.Start
	}

	switch rec.Kind {
	case source.KindQuantity:
		s.Value = model.Number(rec.Value)
		s.Unit = rec.Unit
		if s.Unit == "" {
			s.Unit = PreferredUnit(typeName)
		}
	case source.KindCategory:
		s.Value = model.Category(CategoryValueName(typeName, rec.Code))
	default:
		return nil, false
	}

	if err := s.Validate(); err != nil {
		return nil, false
	}
	return s, true
}

// Session converts a raw workout record into a session document. SyncedAt and
// DeviceInfo are filled in by the caller when the file is built. Returns
// (nil, false) for records that are not workout containers.
func Session(rec source.Record) (*model.Session, bool) {
	if rec.Kind != source.KindWorkout || rec.Workout == nil {
		return nil, false
	}
	w := rec.Workout

	sess := &model.Session{
		UUID:         w.SessionID,
		ActivityType: ActivityName(w.ActivityCode),
		Start:        model.TS(rec.Start),
		End:          model.TS(rec.End),
		DurationS:    rec.End.Sub(rec.Start).Seconds(),
		Source:       rec.SourceName,
		Device:       rec.DeviceName,
		Stats:        make(map[string]model.Stat, len(w.Stats)),
		Metadata:     Metadata(rec.Metadata),
	}
	for _, st := range w.Stats {
		sess.Stats[st.Name] = model.Stat{Value: st.Value, Unit: st.Unit}
	}
	for _, p := range w.Route {
		sess.Route = append(sess.Route, model.RoutePoint{
			T:         model.TS(p.Time),
			Lat:       p.Lat,
			Lon:       p.Lon,
			Alt:       p.Alt,
			HAcc:      p.HAcc,
			VAcc:      p.VAcc,
			Speed:     p.Speed,
			SpeedAcc:  p.SpeedAcc,
			Course:    p.Course,
			CourseAcc: p.CourseAcc,
		})
	}
	return sess, true
}

// Metadata filters raw metadata down to JSON-primitive values, resolving
// known enumerated integer fields to readable labels. Values that are neither
// primitive nor resolvable are dropped; opaque composite types are never
// serialized.
func Metadata(raw map[string]any) model.Metadata {
	if len(raw) == 0 {
		return nil
	}
	out := make(model.Metadata, len(raw))
	for key, val := range raw {
		switch v := val.(type) {
		case string:
			out[key] = v
		case bool:
			out[key] = v
		case float64:
			out[key] = v
		case float32:
			out[key] = float64(v)
		case int:
			out[key] = resolveMetadataInt(key, int64(v))
		case int64:
			out[key] = resolveMetadataInt(key, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// resolveMetadataInt maps an enumerated integer metadata value to its label
// when a table exists for the key, else passes the integer through.
func resolveMetadataInt(key string, v int64) any {
	if names, ok := metadataValueNames[key]; ok {
		if label, ok := names[v]; ok {
			return label
		}
	}
	return v
}
