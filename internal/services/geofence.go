package services

import (
	"math"

	"carelink-backend/internal/models"
)

// DefaultGeofenceRadiusM is used when the client has no per-client override
// and the company has no configured default. A configured radius of zero is
// treated the same way, not as "unrestricted".
const DefaultGeofenceRadiusM = 500

// GeofenceTarget is the client's home location plus the resolved radius
type GeofenceTarget struct {
	Latitude  float64
	Longitude float64
	RadiusM   int
}

// GeofenceResult classifies a reported position against a target geofence
type GeofenceResult struct {
	DistanceMeters   *float64
	IsWithinGeofence *bool // nil when either coordinate pair is unknown
	Status           models.EVVStatus
	RadiusM          int
}

// haversineMeters calculates the great-circle distance between two GPS
// coordinates in meters
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusM = 6371000.0

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

// ResolveGeofenceRadius picks the effective radius: client override first,
// then the company default, then the hard-coded constant. Zero and negative
// values fall through to the next level.
func ResolveGeofenceRadius(clientOverride *int, companyDefault *int) int {
	if clientOverride != nil && *clientOverride > 0 {
		return *clientOverride
	}
	if companyDefault != nil && *companyDefault > 0 {
		return *companyDefault
	}
	return DefaultGeofenceRadiusM
}

// ValidateGeofence classifies a reported location against a target geofence.
// Pure and deterministic, no I/O. Either side may be absent: the result is
// then LOCATION_UNAVAILABLE with IsWithinGeofence = nil, which callers must
// keep distinct from an actual violation.
func ValidateGeofence(reported *models.ReportedLocation, target *GeofenceTarget) GeofenceResult {
	if reported == nil || target == nil {
		radius := DefaultGeofenceRadiusM
		if target != nil {
			radius = target.RadiusM
		}
		return GeofenceResult{
			Status:  models.EVVStatusLocationUnavailable,
			RadiusM: radius,
		}
	}

	distance := haversineMeters(reported.Latitude, reported.Longitude, target.Latitude, target.Longitude)
	within := distance <= float64(target.RadiusM)

	status := models.EVVStatusCompliant
	if !within {
		status = models.EVVStatusOutOfRange
	}

	return GeofenceResult{
		DistanceMeters:   &distance,
		IsWithinGeofence: &within,
		Status:           status,
		RadiusM:          target.RadiusM,
	}
}
