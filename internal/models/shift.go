package models

import (
	"database/sql"
	"time"
)

// ShiftStatus represents the current status of a care shift
type ShiftStatus string

const (
	ShiftStatusScheduled  ShiftStatus = "scheduled"   // Created by scheduler, not started
	ShiftStatusInProgress ShiftStatus = "in_progress" // Carer checked in
	ShiftStatusCompleted  ShiftStatus = "completed"   // Carer checked out
	ShiftStatusCancelled  ShiftStatus = "cancelled"   // Cancelled by admin
)

// Shift represents a scheduled care visit between a carer and a client.
// actual_end is set if and only if status = completed.
type Shift struct {
	ID               string      `json:"id" db:"id"`
	CompanyID        string      `json:"company_id" db:"company_id"`
	ClientID         string      `json:"client_id" db:"client_id"`
	CarerID          string      `json:"carer_id" db:"carer_id"`
	ScheduledStart   int64       `json:"scheduled_start" db:"scheduled_start"`
	ScheduledEnd     int64       `json:"scheduled_end" db:"scheduled_end"`
	ActualStart      *int64      `json:"actual_start" db:"actual_start"`
	ActualEnd        *int64      `json:"actual_end" db:"actual_end"`
	Status           ShiftStatus `json:"status" db:"status"`
	CheckInLocation  *string     `json:"check_in_location" db:"check_in_location"`   // serialized EVV evidence snapshot
	CheckOutLocation *string     `json:"check_out_location" db:"check_out_location"` // serialized EVV evidence snapshot
	ReviewRequired   bool        `json:"review_required" db:"review_required"`
	ReviewReason     *string     `json:"review_reason" db:"review_reason"`
	CreatedAt        int64       `json:"created_at" db:"created_at"`
	UpdatedAt        int64       `json:"updated_at" db:"updated_at"`
}

// ScheduledHours returns the planned duration in fractional hours
func (s *Shift) ScheduledHours() float64 {
	if s.ScheduledEnd <= s.ScheduledStart {
		return 0
	}
	return float64(s.ScheduledEnd-s.ScheduledStart) / 3600.0
}

// TotalHoursWorked computes the billable duration of the shift in fractional
// hours. Actual punch times win when the check-in punch exists; otherwise the
// scheduled duration is used as the fallback. One actual endpoint and one
// scheduled endpoint are never mixed.
func (s *Shift) TotalHoursWorked(checkOutTime int64) float64 {
	if s.ActualStart != nil {
		worked := float64(checkOutTime-*s.ActualStart) / 3600.0
		if worked < 0 {
			return 0
		}
		return worked
	}
	return s.ScheduledHours()
}

// ShiftCheckOutResponse is the payload returned to the carer on check-out
type ShiftCheckOutResponse struct {
	Shift      *Shift           `json:"shift"`
	Attendance *ShiftAttendance `json:"attendance"`
	EVV        EVVResponseBlock `json:"evv"`
}

// EVVResponseBlock is the structured EVV summary returned to the caller.
// Always present, even when no location was reported.
type EVVResponseBlock struct {
	Status           EVVStatus `json:"status"`
	IsWithinGeofence *bool     `json:"is_within_geofence"` // nil means "unknown", not "violation"
	DistanceMeters   *float64  `json:"distance_meters"`
	Message          string    `json:"message"`
}

// ToNullInt64 converts a pointer to int64 to sql.NullInt64
func ToNullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

// FromNullInt64 converts sql.NullInt64 to pointer to int64
func FromNullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}

// ToNullString converts a pointer to string to sql.NullString
func ToNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *s, Valid: true}
}

// FromNullString converts sql.NullString to pointer to string
func FromNullString(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	return &n.String
}

// UTCMidnight truncates a unix timestamp to the start of its UTC calendar day
func UTCMidnight(ts int64) int64 {
	t := time.Unix(ts, 0).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix()
}
