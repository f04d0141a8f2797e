package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTotalHoursWorked_ActualPunchesWin(t *testing.T) {
	start := int64(1_760_000_000)
	actualStart := start + 600 // checked in 10 minutes late
	shift := Shift{
		ScheduledStart: start,
		ScheduledEnd:   start + 8*3600,
		ActualStart:    &actualStart,
	}

	// 7.5 hours between the actual punches, not the scheduled 8
	checkOut := actualStart + int64(7.5*3600)
	assert.InDelta(t, 7.5, shift.TotalHoursWorked(checkOut), 1e-9)
}

func TestTotalHoursWorked_FallsBackToScheduledDuration(t *testing.T) {
	start := int64(1_760_000_000)
	shift := Shift{
		ScheduledStart: start,
		ScheduledEnd:   start + 6*3600,
	}

	// No check-in punch: scheduled duration, never a mixed calculation
	assert.InDelta(t, 6.0, shift.TotalHoursWorked(start+9*3600), 1e-9)
}

func TestTotalHoursWorked_NegativeClampsToZero(t *testing.T) {
	start := int64(1_760_000_000)
	actualStart := start
	shift := Shift{
		ScheduledStart: start,
		ScheduledEnd:   start + 8*3600,
		ActualStart:    &actualStart,
	}

	assert.Zero(t, shift.TotalHoursWorked(start-3600))
}

func TestScheduledHours_InvertedWindowIsZero(t *testing.T) {
	shift := Shift{ScheduledStart: 2000, ScheduledEnd: 1000}
	assert.Zero(t, shift.ScheduledHours())
}

func TestUTCMidnight(t *testing.T) {
	ts := time.Date(2026, 3, 10, 23, 45, 12, 0, time.UTC).Unix()
	want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC).Unix()
	assert.Equal(t, want, UTCMidnight(ts))

	// One second past midnight belongs to the new day
	assert.Equal(t, want+86400, UTCMidnight(want+86401))
}

func TestShiftAttendance_HoursWorked(t *testing.T) {
	checkOut := int64(1_760_000_000 + 4*3600)
	a := ShiftAttendance{CheckInTime: 1_760_000_000, CheckOutTime: &checkOut}
	assert.InDelta(t, 4.0, a.HoursWorked(), 1e-9)

	open := ShiftAttendance{CheckInTime: 1_760_000_000}
	assert.Zero(t, open.HoursWorked())
	assert.True(t, open.IsOpen())

	early := int64(1_760_000_000 - 60)
	skewed := ShiftAttendance{CheckInTime: 1_760_000_000, CheckOutTime: &early}
	assert.Zero(t, skewed.HoursWorked())
}
