package services

import (
	"testing"
	"time"

	"carelink-backend/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupReconciler(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, *AttendanceReconciler) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db := sqlx.NewDb(mockDB, "sqlmock")
	return db, mock, NewAttendanceReconciler(db)
}

func attendanceColumns() []string {
	return []string{"id", "shift_id", "attendance_date", "check_in_time", "check_out_time", "created_at"}
}

// mustDay builds a UTC timestamp inside a known calendar day
func mustDay(t *testing.T, day string, hour int) int64 {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", day)
	require.NoError(t, err)
	return parsed.Add(time.Duration(hour) * time.Hour).Unix()
}

func TestOpenToday_CreatesRow(t *testing.T) {
	db, mock, reconciler := setupReconciler(t)
	defer db.Close()

	checkIn := mustDay(t, "2026-03-10", 9)
	today := models.UTCMidnight(checkIn)

	mock.ExpectQuery(`SELECT \* FROM shift_attendance WHERE shift_id = \$1 AND attendance_date = \$2`).
		WithArgs("shift-1", today).
		WillReturnRows(sqlmock.NewRows(attendanceColumns()))

	mock.ExpectQuery(`INSERT INTO shift_attendance`).
		WithArgs("shift-1", today, checkIn, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(attendanceColumns()).
			AddRow(1, "shift-1", today, checkIn, nil, checkIn))

	attendance, err := reconciler.OpenToday("shift-1", checkIn)

	require.NoError(t, err)
	assert.Equal(t, "shift-1", attendance.ShiftID)
	assert.Equal(t, today, attendance.AttendanceDate)
	assert.True(t, attendance.IsOpen())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenToday_ReusesExistingRow(t *testing.T) {
	db, mock, reconciler := setupReconciler(t)
	defer db.Close()

	checkIn := mustDay(t, "2026-03-10", 9)
	today := models.UTCMidnight(checkIn)

	mock.ExpectQuery(`SELECT \* FROM shift_attendance WHERE shift_id = \$1 AND attendance_date = \$2`).
		WithArgs("shift-1", today).
		WillReturnRows(sqlmock.NewRows(attendanceColumns()).
			AddRow(7, "shift-1", today, checkIn-600, nil, checkIn-600))

	attendance, err := reconciler.OpenToday("shift-1", checkIn)

	require.NoError(t, err)
	assert.Equal(t, 7, attendance.ID)
	assert.Equal(t, checkIn-600, attendance.CheckInTime, "duplicate check-in must not move the original punch")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseOut_ClosesOpenRow(t *testing.T) {
	db, mock, reconciler := setupReconciler(t)
	defer db.Close()

	checkIn := mustDay(t, "2026-03-10", 9)
	checkOut := mustDay(t, "2026-03-10", 17) // 8 hours later
	today := models.UTCMidnight(checkOut)

	mock.ExpectQuery(`SELECT \* FROM shift_attendance WHERE shift_id = \$1 AND attendance_date = \$2`).
		WithArgs("shift-1", today).
		WillReturnRows(sqlmock.NewRows(attendanceColumns()).
			AddRow(1, "shift-1", today, checkIn, nil, checkIn))

	mock.ExpectExec(`UPDATE shift_attendance SET check_out_time`).
		WithArgs(checkOut, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := reconciler.CloseOut("shift-1", checkOut)

	require.NoError(t, err)
	assert.Equal(t, AttendanceOpen, result.State)
	assert.InDelta(t, 8.0, result.HoursWorkedToday, 1e-9)
	require.NotNil(t, result.Attendance)
	require.NotNil(t, result.Attendance.CheckOutTime)
	assert.Equal(t, checkOut, *result.Attendance.CheckOutTime)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseOut_DuplicateCheckOutIsNoOp(t *testing.T) {
	db, mock, reconciler := setupReconciler(t)
	defer db.Close()

	checkIn := mustDay(t, "2026-03-10", 9)
	firstOut := mustDay(t, "2026-03-10", 17)
	retryOut := mustDay(t, "2026-03-10", 18)
	today := models.UTCMidnight(retryOut)

	mock.ExpectQuery(`SELECT \* FROM shift_attendance WHERE shift_id = \$1 AND attendance_date = \$2`).
		WithArgs("shift-1", today).
		WillReturnRows(sqlmock.NewRows(attendanceColumns()).
			AddRow(1, "shift-1", today, checkIn, firstOut, checkIn))

	result, err := reconciler.CloseOut("shift-1", retryOut)

	require.NoError(t, err)
	assert.Equal(t, AttendanceClosed, result.State)
	assert.Zero(t, result.HoursWorkedToday)
	require.NotNil(t, result.Attendance.CheckOutTime)
	assert.Equal(t, firstOut, *result.Attendance.CheckOutTime, "retry must not move the recorded check-out")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseOut_MidnightSpanFallsBackToLatestRow(t *testing.T) {
	db, mock, reconciler := setupReconciler(t)
	defer db.Close()

	// Checked in the evening of the 10th, checking out at 02:00 on the 11th
	// without a fresh punch for the new day
	checkIn := mustDay(t, "2026-03-10", 22)
	checkOut := mustDay(t, "2026-03-11", 2)
	today := models.UTCMidnight(checkOut)
	yesterday := models.UTCMidnight(checkIn)

	mock.ExpectQuery(`SELECT \* FROM shift_attendance WHERE shift_id = \$1 AND attendance_date = \$2`).
		WithArgs("shift-1", today).
		WillReturnRows(sqlmock.NewRows(attendanceColumns()))

	mock.ExpectQuery(`SELECT \* FROM shift_attendance WHERE shift_id = \$1 ORDER BY attendance_date DESC LIMIT 1`).
		WithArgs("shift-1").
		WillReturnRows(sqlmock.NewRows(attendanceColumns()).
			AddRow(1, "shift-1", yesterday, checkIn, nil, checkIn))

	mock.ExpectExec(`UPDATE shift_attendance SET check_out_time`).
		WithArgs(checkOut, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := reconciler.CloseOut("shift-1", checkOut)

	require.NoError(t, err)
	assert.Equal(t, AttendanceOpen, result.State)
	assert.InDelta(t, 4.0, result.HoursWorkedToday, 1e-9)
	assert.Equal(t, yesterday, result.Attendance.AttendanceDate, "no new row is created for the new day")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseOut_NoRowsAtAll(t *testing.T) {
	db, mock, reconciler := setupReconciler(t)
	defer db.Close()

	checkOut := mustDay(t, "2026-03-10", 17)
	today := models.UTCMidnight(checkOut)

	mock.ExpectQuery(`SELECT \* FROM shift_attendance WHERE shift_id = \$1 AND attendance_date = \$2`).
		WithArgs("shift-1", today).
		WillReturnRows(sqlmock.NewRows(attendanceColumns()))

	mock.ExpectQuery(`SELECT \* FROM shift_attendance WHERE shift_id = \$1 ORDER BY attendance_date DESC LIMIT 1`).
		WithArgs("shift-1").
		WillReturnRows(sqlmock.NewRows(attendanceColumns()))

	result, err := reconciler.CloseOut("shift-1", checkOut)

	require.NoError(t, err)
	assert.Equal(t, AttendanceNoRecord, result.State)
	assert.Nil(t, result.Attendance)
	assert.Zero(t, result.HoursWorkedToday)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseOut_CheckOutBeforeCheckInClampsToZero(t *testing.T) {
	db, mock, reconciler := setupReconciler(t)
	defer db.Close()

	checkIn := mustDay(t, "2026-03-10", 9)
	checkOut := mustDay(t, "2026-03-10", 8) // clock skew: out before in
	today := models.UTCMidnight(checkOut)

	mock.ExpectQuery(`SELECT \* FROM shift_attendance WHERE shift_id = \$1 AND attendance_date = \$2`).
		WithArgs("shift-1", today).
		WillReturnRows(sqlmock.NewRows(attendanceColumns()).
			AddRow(1, "shift-1", today, checkIn, nil, checkIn))

	mock.ExpectExec(`UPDATE shift_attendance SET check_out_time`).
		WithArgs(checkOut, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := reconciler.CloseOut("shift-1", checkOut)

	require.NoError(t, err)
	assert.Zero(t, result.HoursWorkedToday, "negative durations clamp to zero, never error")
	assert.Equal(t, AttendanceOpen, result.State)

	assert.NoError(t, mock.ExpectationsWereMet())
}
