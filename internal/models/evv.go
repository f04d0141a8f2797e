package models

// EVVStatus classifies a reported location against the client's geofence
type EVVStatus string

const (
	EVVStatusCompliant           EVVStatus = "COMPLIANT"
	EVVStatusOutOfRange          EVVStatus = "OUT_OF_RANGE"
	EVVStatusLocationUnavailable EVVStatus = "LOCATION_UNAVAILABLE"
)

// EVVSource identifies where the punch came from
type EVVSource string

const (
	EVVSourceMobile EVVSource = "mobile"
	EVVSourceWeb    EVVSource = "web"
)

// ReportedLocation is the raw location payload sent by the carer's device
type ReportedLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// Valid checks the coordinate and accuracy ranges. A malformed payload is
// rejected outright; it is not downgraded to "no location provided".
func (l *ReportedLocation) Valid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 &&
		l.Longitude >= -180 && l.Longitude <= 180 &&
		l.Accuracy >= 0
}

// EVVLocationEvidence is the immutable audit snapshot of one verified punch.
// It is serialized to JSON and stored opaquely on the shift row; it is never
// mutated after creation.
type EVVLocationEvidence struct {
	Latitude           *float64  `json:"latitude"`
	Longitude          *float64  `json:"longitude"`
	Accuracy           *float64  `json:"accuracy"`
	DistanceFromTarget *float64  `json:"distance_from_target"` // nil when target unknown
	GeofenceRadiusM    int       `json:"geofence_radius_m"`
	Status             EVVStatus `json:"status"`
	IsWithinGeofence   *bool     `json:"is_within_geofence"` // nil = unknown, distinct from violation
	Source             EVVSource `json:"source"`
	CapturedAt         int64     `json:"captured_at"` // server timestamp
}
