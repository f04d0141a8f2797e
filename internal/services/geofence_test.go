package services

import (
	"testing"

	"carelink-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1 degree of latitude is ~111.19km, so 0.0044 degrees is ~489m and
// 0.0054 degrees is ~600m. Both well clear of the 500m boundary.
const (
	degFor489m = 0.0044
	degFor600m = 0.0054
)

func TestValidateGeofence_Compliant(t *testing.T) {
	reported := &models.ReportedLocation{Latitude: degFor489m, Longitude: 0, Accuracy: 10}
	target := &GeofenceTarget{Latitude: 0, Longitude: 0, RadiusM: 500}

	result := ValidateGeofence(reported, target)

	assert.Equal(t, models.EVVStatusCompliant, result.Status)
	require.NotNil(t, result.IsWithinGeofence)
	assert.True(t, *result.IsWithinGeofence)
	require.NotNil(t, result.DistanceMeters)
	assert.InDelta(t, 489, *result.DistanceMeters, 2)
	assert.Equal(t, 500, result.RadiusM)
}

func TestValidateGeofence_OutOfRange(t *testing.T) {
	reported := &models.ReportedLocation{Latitude: degFor600m, Longitude: 0, Accuracy: 10}
	target := &GeofenceTarget{Latitude: 0, Longitude: 0, RadiusM: 500}

	result := ValidateGeofence(reported, target)

	assert.Equal(t, models.EVVStatusOutOfRange, result.Status)
	require.NotNil(t, result.IsWithinGeofence)
	assert.False(t, *result.IsWithinGeofence)
	require.NotNil(t, result.DistanceMeters)
	assert.InDelta(t, 600, *result.DistanceMeters, 2)
}

func TestValidateGeofence_ExactBoundaryIsCompliant(t *testing.T) {
	// Distance equal to the radius counts as inside
	reported := &models.ReportedLocation{Latitude: 0, Longitude: 0, Accuracy: 5}
	target := &GeofenceTarget{Latitude: 0, Longitude: 0, RadiusM: 500}

	result := ValidateGeofence(reported, target)

	assert.Equal(t, models.EVVStatusCompliant, result.Status)
	assert.Equal(t, 0.0, *result.DistanceMeters)
}

func TestValidateGeofence_NoReportedLocation(t *testing.T) {
	target := &GeofenceTarget{Latitude: 37.33, Longitude: -121.89, RadiusM: 500}

	result := ValidateGeofence(nil, target)

	assert.Equal(t, models.EVVStatusLocationUnavailable, result.Status)
	assert.Nil(t, result.IsWithinGeofence, "unknown must not be conflated with a violation")
	assert.Nil(t, result.DistanceMeters)
	assert.Equal(t, 500, result.RadiusM)
}

func TestValidateGeofence_NoTarget(t *testing.T) {
	reported := &models.ReportedLocation{Latitude: 37.33, Longitude: -121.89, Accuracy: 10}

	result := ValidateGeofence(reported, nil)

	assert.Equal(t, models.EVVStatusLocationUnavailable, result.Status)
	assert.Nil(t, result.IsWithinGeofence)
	assert.Nil(t, result.DistanceMeters)
	assert.Equal(t, DefaultGeofenceRadiusM, result.RadiusM)
}

func TestResolveGeofenceRadius(t *testing.T) {
	override := 250
	companyDefault := 400
	zero := 0
	negative := -50

	tests := []struct {
		name     string
		override *int
		company  *int
		want     int
	}{
		{"client override wins", &override, &companyDefault, 250},
		{"company default when no override", nil, &companyDefault, 400},
		{"constant when nothing configured", nil, nil, DefaultGeofenceRadiusM},
		{"zero override falls through", &zero, &companyDefault, 400},
		{"zero everywhere falls to constant", &zero, &zero, DefaultGeofenceRadiusM},
		{"negative override falls through", &negative, nil, DefaultGeofenceRadiusM},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveGeofenceRadius(tt.override, tt.company))
		})
	}
}

func TestHaversineMeters_KnownDistance(t *testing.T) {
	// Two points in downtown San Jose roughly 1.45km apart
	distance := haversineMeters(37.3382, -121.8863, 37.3327, -121.9012)
	assert.InDelta(t, 1450, distance, 100)
}

func TestRecordLocationEvidence_WithLocation(t *testing.T) {
	reported := &models.ReportedLocation{Latitude: 37.33, Longitude: -121.89, Accuracy: 12}
	target := &GeofenceTarget{Latitude: 37.33, Longitude: -121.89, RadiusM: 500}
	result := ValidateGeofence(reported, target)

	evidence := RecordLocationEvidence(reported, result, models.EVVSourceMobile)

	require.NotNil(t, evidence.Latitude)
	assert.Equal(t, 37.33, *evidence.Latitude)
	require.NotNil(t, evidence.Accuracy)
	assert.Equal(t, 12.0, *evidence.Accuracy)
	assert.Equal(t, models.EVVStatusCompliant, evidence.Status)
	assert.Equal(t, models.EVVSourceMobile, evidence.Source)
	assert.NotZero(t, evidence.CapturedAt)
}

func TestRecordLocationEvidence_WithoutLocation(t *testing.T) {
	result := ValidateGeofence(nil, &GeofenceTarget{Latitude: 1, Longitude: 1, RadiusM: 300})

	evidence := RecordLocationEvidence(nil, result, models.EVVSourceWeb)

	assert.Nil(t, evidence.Latitude)
	assert.Nil(t, evidence.Longitude)
	assert.Nil(t, evidence.IsWithinGeofence)
	assert.Equal(t, models.EVVStatusLocationUnavailable, evidence.Status)
	assert.Equal(t, 300, evidence.GeofenceRadiusM)
}

func TestEVVMessage(t *testing.T) {
	within := true
	distance := 123.4
	compliant := GeofenceResult{Status: models.EVVStatusCompliant, DistanceMeters: &distance, IsWithinGeofence: &within, RadiusM: 500}
	assert.Contains(t, EVVMessage(compliant), "Location verified")

	unavailable := GeofenceResult{Status: models.EVVStatusLocationUnavailable, RadiusM: 500}
	assert.Equal(t, "Location could not be verified", EVVMessage(unavailable))
}
