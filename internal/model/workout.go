package model

// Stat is one aggregated numeric statistic of a workout session, tagged with
// its unit (e.g. {"value": 412.5, "unit": "kcal"}).
type Stat struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// RoutePoint is one raw, unaggregated location fix of a session route.
type RoutePoint struct {
	T         Timestamp `json:"t"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Alt       float64   `json:"alt"`
	HAcc      float64   `json:"h_acc"`
	VAcc      float64   `json:"v_acc"`
	Speed     float64   `json:"speed"`
	SpeedAcc  float64   `json:"speed_acc"`
	Course    float64   `json:"course"`
	CourseAcc float64   `json:"course_acc"`
}

// Session is one workout session, serialized to its own standalone file.
// Route is omitted from the JSON entirely when the session has no route;
// a session without location data must not carry a "route": null key.
type Session struct {
	UUID         string          `json:"uuid"`
	ActivityType string          `json:"activity_type"`
	Start        Timestamp       `json:"start"`
	End          Timestamp       `json:"end"`
	DurationS    float64         `json:"duration_s"`
	Source       string          `json:"source"`
	Device       string          `json:"device,omitempty"`
	SyncedAt     Timestamp       `json:"synced_at"`
	DeviceInfo   DeviceInfo      `json:"device_info"`
	Stats        map[string]Stat `json:"stats"`
	Metadata     Metadata        `json:"metadata,omitempty"`
	Route        []RoutePoint    `json:"route,omitempty"`
}
