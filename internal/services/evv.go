package services

import (
	"encoding/json"
	"fmt"
	"time"

	"carelink-backend/internal/models"
)

// RecordLocationEvidence snapshots the validator output plus the raw reported
// coordinates into an immutable evidence record, stamped with the server
// clock. Persisting the snapshot is the caller's job.
func RecordLocationEvidence(reported *models.ReportedLocation, result GeofenceResult, source models.EVVSource) models.EVVLocationEvidence {
	evidence := models.EVVLocationEvidence{
		DistanceFromTarget: result.DistanceMeters,
		GeofenceRadiusM:    result.RadiusM,
		Status:             result.Status,
		IsWithinGeofence:   result.IsWithinGeofence,
		Source:             source,
		CapturedAt:         time.Now().Unix(),
	}

	if reported != nil {
		evidence.Latitude = &reported.Latitude
		evidence.Longitude = &reported.Longitude
		evidence.Accuracy = &reported.Accuracy
	}

	return evidence
}

// SerializeEvidence encodes the evidence snapshot for opaque storage on the
// shift row. The stored blob is for audit only; API responses use the
// structured EVV block instead.
func SerializeEvidence(evidence models.EVVLocationEvidence) (string, error) {
	data, err := json.Marshal(evidence)
	if err != nil {
		return "", fmt.Errorf("failed to serialize EVV evidence: %w", err)
	}
	return string(data), nil
}

// EVVMessage builds the human-readable summary returned in the check-out
// response
func EVVMessage(result GeofenceResult) string {
	switch result.Status {
	case models.EVVStatusCompliant:
		return fmt.Sprintf("Location verified: %.0fm from client home (within %dm geofence)", *result.DistanceMeters, result.RadiusM)
	case models.EVVStatusOutOfRange:
		return fmt.Sprintf("Location outside geofence: %.0fm from client home (limit %dm)", *result.DistanceMeters, result.RadiusM)
	default:
		return "Location could not be verified"
	}
}
