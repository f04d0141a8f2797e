package models

// ShiftAttendance is one check-in/check-out pair for a shift on a single UTC
// calendar day. A shift that runs past midnight (or is re-punched) owns
// multiple rows, at most one of which is open at any time.
type ShiftAttendance struct {
	ID             int    `json:"id" db:"id"`
	ShiftID        string `json:"shift_id" db:"shift_id"`
	AttendanceDate int64  `json:"attendance_date" db:"attendance_date"` // UTC midnight
	CheckInTime    int64  `json:"check_in_time" db:"check_in_time"`
	CheckOutTime   *int64 `json:"check_out_time" db:"check_out_time"`
	CreatedAt      int64  `json:"created_at" db:"created_at"`
}

// IsOpen reports whether the row has a check-in without a matching check-out
func (a *ShiftAttendance) IsOpen() bool {
	return a.CheckOutTime == nil
}

// HoursWorked returns the fractional hours between the punches. A check-out
// earlier than the check-in (clock skew, manual correction) clamps to zero.
func (a *ShiftAttendance) HoursWorked() float64 {
	if a.CheckOutTime == nil {
		return 0
	}
	seconds := *a.CheckOutTime - a.CheckInTime
	if seconds < 0 {
		return 0
	}
	return float64(seconds) / 3600.0
}
