package services

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"carelink-backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// AttendanceState is the reconciliation state of a shift's day ledger
type AttendanceState string

const (
	AttendanceNoRecord AttendanceState = "NO_ATTENDANCE"
	AttendanceOpen     AttendanceState = "OPEN"
	AttendanceClosed   AttendanceState = "CLOSED"
)

// AttendanceReconciler maintains the per-shift, per-calendar-day
// check-in/check-out ledger. A shift that crosses midnight or is re-punched
// owns several rows; the reconciler guarantees at most one of them is open.
type AttendanceReconciler struct {
	db *sqlx.DB
}

// NewAttendanceReconciler creates a new attendance reconciler
func NewAttendanceReconciler(db *sqlx.DB) *AttendanceReconciler {
	return &AttendanceReconciler{db: db}
}

// CloseOutResult reports what the reconciler did for a check-out event
type CloseOutResult struct {
	Attendance       *models.ShiftAttendance
	HoursWorkedToday float64
	State            AttendanceState // state the ledger was in before close-out
}

// OpenToday creates today's attendance row for a check-in. If the row already
// exists (duplicate check-in retry) the existing row is returned untouched.
func (ar *AttendanceReconciler) OpenToday(shiftID string, checkInTime int64) (*models.ShiftAttendance, error) {
	today := models.UTCMidnight(checkInTime)

	var existing models.ShiftAttendance
	err := ar.db.Get(&existing,
		`SELECT * FROM shift_attendance WHERE shift_id = $1 AND attendance_date = $2`,
		shiftID, today,
	)
	if err == nil {
		log.Printf("⚠️  Attendance row already exists for shift %s on %s, reusing", shiftID, formatDay(today))
		return &existing, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to look up attendance: %w", err)
	}

	var created models.ShiftAttendance
	err = ar.db.Get(&created,
		`INSERT INTO shift_attendance (shift_id, attendance_date, check_in_time, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING *`,
		shiftID, today, checkInTime, time.Now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create attendance row: %w", err)
	}

	return &created, nil
}

// CloseOut closes the shift's attendance ledger for a check-out at
// checkOutTime. Three cases:
//
//   - today's row is OPEN: close it and report the hours between the punches
//   - today's row is already CLOSED (duplicate check-out retry): no-op,
//     zero hours — retries must never corrupt the ledger
//   - no row for today (shift spanning days without a fresh punch): fall back
//     to the most recent row across all dates; close it if still open. No new
//     row is created.
//
// A check-out earlier than the check-in clamps to zero hours and is logged,
// never raised as a blocking error.
func (ar *AttendanceReconciler) CloseOut(shiftID string, checkOutTime int64) (*CloseOutResult, error) {
	today := models.UTCMidnight(checkOutTime)

	var attendance models.ShiftAttendance
	err := ar.db.Get(&attendance,
		`SELECT * FROM shift_attendance WHERE shift_id = $1 AND attendance_date = $2`,
		shiftID, today,
	)

	if err == sql.ErrNoRows {
		// Shift crossed midnight without a fresh check-in. Use the most
		// recent row as the reference instead of failing.
		err = ar.db.Get(&attendance,
			`SELECT * FROM shift_attendance WHERE shift_id = $1 ORDER BY attendance_date DESC LIMIT 1`,
			shiftID,
		)
		if err == sql.ErrNoRows {
			log.Printf("⚠️  No attendance rows at all for shift %s at check-out", shiftID)
			return &CloseOutResult{State: AttendanceNoRecord}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to find latest attendance row: %w", err)
		}
		log.Printf("⚠️  No attendance row for shift %s on %s, falling back to %s",
			shiftID, formatDay(today), formatDay(attendance.AttendanceDate))
	} else if err != nil {
		return nil, fmt.Errorf("failed to look up attendance: %w", err)
	}

	if !attendance.IsOpen() {
		// Duplicate check-out call. Tolerate it without touching the ledger.
		log.Printf("⚠️  Attendance for shift %s on %s already closed, ignoring duplicate check-out",
			shiftID, formatDay(attendance.AttendanceDate))
		return &CloseOutResult{
			Attendance:       &attendance,
			HoursWorkedToday: 0,
			State:            AttendanceClosed,
		}, nil
	}

	hours := float64(checkOutTime-attendance.CheckInTime) / 3600.0
	if hours < 0 {
		log.Printf("⚠️  Check-out before check-in for shift %s (in=%d, out=%d), clamping hours to 0",
			shiftID, attendance.CheckInTime, checkOutTime)
		hours = 0
	}

	_, err = ar.db.Exec(
		`UPDATE shift_attendance SET check_out_time = $1 WHERE id = $2`,
		checkOutTime, attendance.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to close attendance row: %w", err)
	}

	attendance.CheckOutTime = &checkOutTime

	return &CloseOutResult{
		Attendance:       &attendance,
		HoursWorkedToday: hours,
		State:            AttendanceOpen,
	}, nil
}

func formatDay(midnight int64) string {
	return time.Unix(midnight, 0).UTC().Format("2006-01-02")
}
