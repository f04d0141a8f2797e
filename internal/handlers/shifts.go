package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"carelink-backend/internal/middleware"
	"carelink-backend/internal/models"
	"carelink-backend/internal/services"
	"carelink-backend/internal/websocket"
	"carelink-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
)

// punchRequest is the body for POST /api/carer/shifts/{id}/check-in and
// check-out. Location is optional: a missing location is tolerated (recorded
// as LOCATION_UNAVAILABLE), a malformed one is rejected.
type punchRequest struct {
	Location *models.ReportedLocation `json:"location"`
	Source   models.EVVSource         `json:"source"`
}

func (r *punchRequest) source() models.EVVSource {
	if r.Source == models.EVVSourceWeb {
		return models.EVVSourceWeb
	}
	return models.EVVSourceMobile
}

// GetCurrentShift returns the carer's shift for right now: an in-progress
// shift first, otherwise the next scheduled one for today
func GetCurrentShift(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var shift models.Shift
		query := `SELECT * FROM shifts
				  WHERE carer_id = $1 AND company_id = $2
				  AND status IN ('in_progress', 'scheduled')
				  ORDER BY
				    CASE status
				      WHEN 'in_progress' THEN 1
				      WHEN 'scheduled' THEN 2
				    END ASC,
				    scheduled_start ASC
				  LIMIT 1`

		err := db.Get(&shift, query, userClaims.UserID, userClaims.CompanyID)
		if err == sql.ErrNoRows {
			utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
				"success": true,
				"data":    nil,
			})
			return
		}
		if err != nil {
			log.Printf("❌ Error getting current shift: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Database error")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    shift,
		})
	}
}

// CheckInShift transitions a shift to in_progress and opens today's
// attendance row, recording location evidence for the check-in punch
func CheckInShift(db *sqlx.DB, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("📥 REQUEST: POST /api/carer/shifts/{id}/check-in")

		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		shiftID := chi.URLParam(r, "id")

		var req punchRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}
		}
		if req.Location != nil && !req.Location.Valid() {
			utils.RespondError(w, http.StatusBadRequest, "Invalid location payload")
			return
		}

		shift, errStatus, errMsg := loadShiftForPunch(db, shiftID, userClaims)
		if errStatus != 0 {
			utils.RespondError(w, errStatus, errMsg)
			return
		}

		// A fresh punch on a shift already in progress is legitimate: a
		// multi-day shift gets one attendance row per day.
		if shift.Status != models.ShiftStatusScheduled && shift.Status != models.ShiftStatusInProgress {
			utils.RespondError(w, http.StatusConflict,
				fmt.Sprintf("Shift cannot be checked in from status '%s'", shift.Status))
			return
		}

		now := time.Now().Unix()

		evidence, result := buildEvidence(db, shift, req.Location, req.source())
		serialized, err := services.SerializeEvidence(evidence)
		if err != nil {
			log.Printf("⚠️  Failed to serialize check-in evidence: %v", err)
			serialized = "{}"
		}

		_, err = db.Exec(
			`UPDATE shifts
			 SET status = 'in_progress',
			     actual_start = COALESCE(actual_start, $1),
			     check_in_location = $2,
			     updated_at = $1
			 WHERE id = $3`,
			now, serialized, shift.ID,
		)
		if err != nil {
			log.Printf("❌ Error checking in shift: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to check in")
			return
		}

		reconciler := services.NewAttendanceReconciler(db)
		attendance, err := reconciler.OpenToday(shift.ID, now)
		if err != nil {
			log.Printf("❌ Error opening attendance: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to record attendance")
			return
		}

		writeAuditLog(db, userClaims, "shift.check_in", "shift", shift.ID,
			fmt.Sprintf("evv_status=%s", evidence.Status))

		db.Get(shift, `SELECT * FROM shifts WHERE id = $1`, shift.ID)

		hub.BroadcastToUser(userClaims.UserID, map[string]interface{}{
			"type": "shift_update",
			"data": shift,
		})
		hub.BroadcastToRole("admin", map[string]interface{}{
			"type": "carer_shift_change",
			"data": map[string]interface{}{
				"carer_id": shift.CarerID,
				"status":   shift.Status,
				"shift_id": shift.ID,
			},
		})

		log.Printf("✅ Checked in: shift %s (%s)", shift.ID, evidence.Status)

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"shift":      shift,
				"attendance": attendance,
				"evv": models.EVVResponseBlock{
					Status:           result.Status,
					IsWithinGeofence: result.IsWithinGeofence,
					DistanceMeters:   result.DistanceMeters,
					Message:          services.EVVMessage(result),
				},
			},
		})
	}
}

// CheckOutShift completes a shift: validates the carer's location against the
// client geofence, closes today's attendance, deducts authorization units and
// fires compliance notifications. Once the shift row is marked completed, the
// remaining steps are best-effort and can no longer fail the request.
func CheckOutShift(db *sqlx.DB, hub *websocket.Hub, notifier *services.ComplianceNotifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("📥 REQUEST: POST /api/carer/shifts/{id}/check-out")

		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		shiftID := chi.URLParam(r, "id")

		var req punchRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}
		}
		if req.Location != nil && !req.Location.Valid() {
			utils.RespondError(w, http.StatusBadRequest, "Invalid location payload")
			return
		}

		shift, errStatus, errMsg := loadShiftForPunch(db, shiftID, userClaims)
		if errStatus != 0 {
			utils.RespondError(w, errStatus, errMsg)
			return
		}

		if shift.Status != models.ShiftStatusInProgress {
			utils.RespondError(w, http.StatusConflict,
				fmt.Sprintf("Shift cannot be checked out from status '%s'", shift.Status))
			return
		}

		now := time.Now().Unix()

		// Geofence validation + immutable evidence snapshot
		evidence, result := buildEvidence(db, shift, req.Location, req.source())
		serialized, err := services.SerializeEvidence(evidence)
		if err != nil {
			log.Printf("⚠️  Failed to serialize check-out evidence: %v", err)
			serialized = "{}"
		}

		// Persist completion. The status guard in the WHERE clause closes the
		// race between two concurrent check-out calls: exactly one wins.
		updated, err := db.Exec(
			`UPDATE shifts
			 SET status = 'completed',
			     actual_end = $1,
			     check_out_location = $2,
			     updated_at = $1
			 WHERE id = $3 AND status = 'in_progress'`,
			now, serialized, shift.ID,
		)
		if err != nil {
			log.Printf("❌ Error completing shift: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to complete shift")
			return
		}
		if rows, _ := updated.RowsAffected(); rows == 0 {
			utils.RespondError(w, http.StatusConflict, "Shift is no longer in progress")
			return
		}

		// ── Point of no return: the shift is completed. Everything below is
		// best-effort; failures are logged, flagged for review if relevant,
		// and never surfaced as a request failure. ──

		reconciler := services.NewAttendanceReconciler(db)
		closeOut, err := reconciler.CloseOut(shift.ID, now)
		if err != nil {
			log.Printf("⚠️  Attendance close-out failed for shift %s: %v", shift.ID, err)
			closeOut = &services.CloseOutResult{State: services.AttendanceNoRecord}
		}

		totalHours := shift.TotalHoursWorked(now)

		ledger := services.NewAuthorizationLedger(db)
		deduction, err := ledger.Deduct(shift.CompanyID, shift.ClientID, totalHours, shift.ID)
		if err != nil {
			log.Printf("⚠️  Authorization deduction failed for shift %s: %v", shift.ID, err)
			flagShiftForReview(db, shift.ID, "deduction failed: "+err.Error())
		} else if deduction.Clamped {
			flagShiftForReview(db, shift.ID, "authorization exhausted during deduction")
		} else if !deduction.Success && !deduction.AlreadyDeducted {
			flagShiftForReview(db, shift.ID, "no active authorization at check-out")
		}

		writeAuditLog(db, userClaims, "shift.check_out", "shift", shift.ID,
			fmt.Sprintf("evv_status=%s hours=%.2f", evidence.Status, totalHours))

		// Reload the completed shift for the response and broadcasts
		db.Get(shift, `SELECT * FROM shifts WHERE id = $1`, shift.ID)

		hub.BroadcastToUser(userClaims.UserID, map[string]interface{}{
			"type": "shift_update",
			"data": shift,
		})
		hub.BroadcastToRole("admin", map[string]interface{}{
			"type": "carer_shift_change",
			"data": map[string]interface{}{
				"carer_id": shift.CarerID,
				"status":   shift.Status,
				"shift_id": shift.ID,
			},
		})

		dispatchComplianceEvents(db, notifier, shift, userClaims, now, totalHours, result)

		log.Printf("🏁 Shift completed: %s (%.2fh, evv=%s)", shift.ID, totalHours, evidence.Status)

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data": models.ShiftCheckOutResponse{
				Shift:      shift,
				Attendance: closeOut.Attendance,
				EVV: models.EVVResponseBlock{
					Status:           result.Status,
					IsWithinGeofence: result.IsWithinGeofence,
					DistanceMeters:   result.DistanceMeters,
					Message:          services.EVVMessage(result),
				},
			},
		})
	}
}

// loadShiftForPunch fetches the shift and applies the shared punch guards:
// company scope and assigned-carer ownership. Returns (nil, status, message)
// on rejection; no mutation has happened yet at that point.
func loadShiftForPunch(db *sqlx.DB, shiftID string, claims middleware.UserClaims) (*models.Shift, int, string) {
	var shift models.Shift
	err := db.Get(&shift,
		`SELECT * FROM shifts WHERE id = $1 AND company_id = $2`,
		shiftID, claims.CompanyID,
	)
	if err == sql.ErrNoRows {
		return nil, http.StatusNotFound, "Shift not found"
	}
	if err != nil {
		log.Printf("❌ Error loading shift %s: %v", shiftID, err)
		return nil, http.StatusInternalServerError, "Database error"
	}

	if shift.CarerID != claims.UserID {
		return nil, http.StatusForbidden, "Shift is assigned to a different carer"
	}

	return &shift, 0, ""
}

// buildEvidence resolves the client's geofence target and settings, runs the
// validator and snapshots the evidence. A client without home coordinates
// yields LOCATION_UNAVAILABLE rather than an error.
func buildEvidence(db *sqlx.DB, shift *models.Shift, reported *models.ReportedLocation, source models.EVVSource) (models.EVVLocationEvidence, services.GeofenceResult) {
	var client models.Client
	err := db.Get(&client, `SELECT * FROM clients WHERE id = $1`, shift.ClientID)
	if err != nil {
		log.Printf("⚠️  Failed to load client %s for geofence: %v", shift.ClientID, err)
	}

	settings := loadCompanySettings(db, shift.CompanyID)
	radius := services.ResolveGeofenceRadius(client.GeofenceRadiusM, defaultRadiusOf(settings))

	var target *services.GeofenceTarget
	if err == nil && client.HasHomeLocation() {
		target = &services.GeofenceTarget{
			Latitude:  *client.Latitude,
			Longitude: *client.Longitude,
			RadiusM:   radius,
		}
	}

	result := services.ValidateGeofence(reported, target)
	evidence := services.RecordLocationEvidence(reported, result, source)
	return evidence, result
}

// dispatchComplianceEvents assembles the shift facts and hands them to the
// notifier's detached dispatcher. Purely fire-and-forget.
func dispatchComplianceEvents(db *sqlx.DB, notifier *services.ComplianceNotifier, shift *models.Shift, claims middleware.UserClaims, checkOutTime int64, totalHours float64, result services.GeofenceResult) {
	if notifier == nil {
		return
	}

	var client models.Client
	if err := db.Get(&client, `SELECT * FROM clients WHERE id = $1`, shift.ClientID); err != nil {
		log.Printf("⚠️  Failed to load client for notifications: %v", err)
		client.Name = "the client"
	}

	var carerName string
	if err := db.Get(&carerName, `SELECT name FROM users WHERE id = $1`, shift.CarerID); err != nil {
		carerName = "Carer"
	}

	facts := services.ShiftFacts{
		Shift:          shift,
		ClientName:     client.Name,
		CarerName:      carerName,
		SponsorUserID:  client.SponsorUserID,
		CheckOutTime:   checkOutTime,
		ActualHours:    totalHours,
		CheckOutEVV:    result.Status,
		DistanceMeters: result.DistanceMeters,
		Thresholds:     services.ResolveThresholds(loadCompanySettings(db, shift.CompanyID)),
	}

	notifier.DispatchAsync(notifier.Evaluate(facts))
}

// loadCompanySettings returns the company's settings row, or nil when the
// company has never configured any (defaults apply)
func loadCompanySettings(db *sqlx.DB, companyID string) *models.CompanySettings {
	var settings models.CompanySettings
	err := db.Get(&settings, `SELECT * FROM company_settings WHERE company_id = $1`, companyID)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("⚠️  Failed to load company settings: %v", err)
		}
		return nil
	}
	return &settings
}

func defaultRadiusOf(settings *models.CompanySettings) *int {
	if settings == nil {
		return nil
	}
	return settings.DefaultGeofenceRadiusM
}

// flagShiftForReview marks the shift for manual billing review. Soft path:
// errors are logged only.
func flagShiftForReview(db *sqlx.DB, shiftID, reason string) {
	_, err := db.Exec(
		`UPDATE shifts SET review_required = TRUE, review_reason = $1, updated_at = $2 WHERE id = $3`,
		reason, time.Now().Unix(), shiftID,
	)
	if err != nil {
		log.Printf("⚠️  Failed to flag shift %s for review: %v", shiftID, err)
	} else {
		log.Printf("⚠️  Shift %s flagged for billing review: %s", shiftID, reason)
	}
}

// writeAuditLog appends an audit row. Best-effort: an audit failure never
// fails the operation that produced it.
func writeAuditLog(db *sqlx.DB, claims middleware.UserClaims, action, entityType, entityID, detail string) {
	_, err := db.Exec(
		`INSERT INTO audit_log (company_id, actor_id, action, entity_type, entity_id, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		claims.CompanyID, claims.UserID, action, entityType, entityID, detail, time.Now().Unix(),
	)
	if err != nil {
		log.Printf("⚠️  Failed to write audit log (%s %s): %v", action, entityID, err)
	}
}

// GetShiftHistory returns the carer's completed and cancelled shifts,
// newest first
func GetShiftHistory(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		shifts := []models.Shift{}
		err := db.Select(&shifts,
			`SELECT * FROM shifts
			 WHERE carer_id = $1 AND company_id = $2
			 AND status IN ('completed', 'cancelled')
			 ORDER BY scheduled_start DESC
			 LIMIT 50`,
			userClaims.UserID, userClaims.CompanyID,
		)
		if err != nil {
			log.Printf("❌ Error fetching shift history: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Database error")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    shifts,
		})
	}
}

// GetShiftAttendance returns the day-by-day attendance ledger for one shift
func GetShiftAttendance(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		shiftID := chi.URLParam(r, "id")

		var shift models.Shift
		err := db.Get(&shift, `SELECT * FROM shifts WHERE id = $1 AND company_id = $2`, shiftID, userClaims.CompanyID)
		if err == sql.ErrNoRows {
			utils.RespondError(w, http.StatusNotFound, "Shift not found")
			return
		}
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Database error")
			return
		}

		// Carers can only see their own shifts; admins see everything
		if userClaims.Role != "admin" && shift.CarerID != userClaims.UserID {
			utils.RespondError(w, http.StatusForbidden, "Shift is assigned to a different carer")
			return
		}

		attendance := []models.ShiftAttendance{}
		err = db.Select(&attendance,
			`SELECT * FROM shift_attendance WHERE shift_id = $1 ORDER BY attendance_date ASC`,
			shiftID,
		)
		if err != nil {
			log.Printf("❌ Error fetching attendance: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Database error")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    attendance,
		})
	}
}

// RegisterFCMToken registers or updates a device token for push notifications
func RegisterFCMToken(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req struct {
			Token      string `json:"token"`
			DeviceType string `json:"device_type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Token == "" || (req.DeviceType != "ios" && req.DeviceType != "android") {
			utils.RespondError(w, http.StatusBadRequest, "token and device_type (ios|android) are required")
			return
		}

		now := time.Now().Unix()
		_, err := db.Exec(
			`INSERT INTO fcm_tokens (user_id, token, device_type, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $4)
			 ON CONFLICT (token) DO UPDATE SET user_id = $1, device_type = $3, updated_at = $4`,
			userClaims.UserID, req.Token, req.DeviceType, now,
		)
		if err != nil {
			log.Printf("❌ Error registering FCM token: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to register token")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}
