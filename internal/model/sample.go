// Package model defines the normalized sample and session types shared by the
// normalizer, the sync engine, and the upload batch builder.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp wraps time.Time with canonical ISO-8601 JSON encoding: UTC,
// RFC 3339 with fractional seconds where the source carries them. Parsing
// then re-encoding a canonical value reproduces it byte for byte.
type Timestamp struct {
	time.Time
}

// TS converts a time.Time to a Timestamp.
func TS(t time.Time) Timestamp {
	return Timestamp{t}
}

// MarshalJSON encodes the timestamp as a UTC RFC 3339 string.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON parses an RFC 3339 string.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a JSON string: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// valueKind discriminates the Value union.
type valueKind int

const (
	valueNone valueKind = iota
	valueNumber
	valueCategory
)

// Value is the sample value union: a numeric measurement, a categorical
// label, or null for container-only records. The zero Value encodes as
// JSON null.
type Value struct {
	kind valueKind
	num  float64
	str  string
}

// Number returns a numeric Value.
func Number(v float64) Value {
	return Value{kind: valueNumber, num: v}
}

// Category returns a categorical Value carrying a resolved label.
func Category(label string) Value {
	return Value{kind: valueCategory, str: label}
}

// IsNumber reports whether the value is numeric, returning the number.
func (v Value) IsNumber() (float64, bool) {
	return v.num, v.kind == valueNumber
}

// IsCategory reports whether the value is categorical, returning the label.
func (v Value) IsCategory() (string, bool) {
	return v.str, v.kind == valueCategory
}

// MarshalJSON encodes the value as a number, a string, or null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case valueNumber:
		return json.Marshal(v.num)
	case valueCategory:
		return json.Marshal(v.str)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a number, a string, or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value{}
		return nil
	}
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*v = Number(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("sample value must be a number, string, or null: %w", err)
	}
	*v = Category(s)
	return nil
}

// Metadata holds open-ended per-sample attributes. The normalizer only
// admits JSON-primitive values and resolved enum labels, so encoding never
// fails. Map keys serialize in sorted order.
type Metadata map[string]any

// Sample is one normalized atomic observation. Struct fields are declared in
// the alphabetical order of their JSON keys so encoded objects have sorted
// keys without a custom marshaler.
type Sample struct {
	Device   string    `json:"device,omitempty"`
	End      Timestamp `json:"end"`
	Metadata Metadata  `json:"metadata,omitempty"`
	Source   string    `json:"source"`
	Start    Timestamp `json:"start"`
	Type     string    `json:"type"`
	Unit     string    `json:"unit,omitempty"`
	Value    Value     `json:"value"`
}

// Validate checks the start <= end invariant.
func (s *Sample) Validate() error {
	if s.End.Before(s.Start.Time) {
		return fmt.Errorf("sample %q: end %s before start %s", s.Type, s.End.Time, s.Start.Time)
	}
	return nil
}

// DeviceInfo describes the device the sync pass ran on. Included in every
// day-batch envelope and session file.
type DeviceInfo struct {
	Model         string `json:"model"`
	Name          string `json:"name"`
	SystemVersion string `json:"system_version"`
}

// DayDocument is the day-batch file envelope. Fields are in alphabetical
// JSON-key order (sorted-keys contract for the envelope).
type DayDocument struct {
	DeviceInfo DeviceInfo `json:"device_info"`
	Samples    []Sample   `json:"samples"`
	SyncedAt   Timestamp  `json:"synced_at"`
}
