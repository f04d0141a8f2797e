package handlers

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"carelink-backend/internal/middleware"
	"carelink-backend/internal/models"
	"carelink-backend/internal/websocket"
	"carelink-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ScheduleShift creates a scheduled care visit for a carer/client pair
func ScheduleShift(db *sqlx.DB, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req struct {
			ClientID       string `json:"client_id"`
			CarerID        string `json:"carer_id"`
			ScheduledStart int64  `json:"scheduled_start"`
			ScheduledEnd   int64  `json:"scheduled_end"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.ClientID == "" || req.CarerID == "" || req.ScheduledEnd <= req.ScheduledStart {
			utils.RespondError(w, http.StatusBadRequest, "client_id, carer_id and a valid schedule window are required")
			return
		}

		// Both parties must belong to the admin's company
		var carerOK bool
		err := db.Get(&carerOK,
			`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND company_id = $2 AND role = 'carer')`,
			req.CarerID, userClaims.CompanyID,
		)
		if err != nil || !carerOK {
			utils.RespondError(w, http.StatusNotFound, "Carer not found")
			return
		}

		var clientOK bool
		err = db.Get(&clientOK,
			`SELECT EXISTS(SELECT 1 FROM clients WHERE id = $1 AND company_id = $2)`,
			req.ClientID, userClaims.CompanyID,
		)
		if err != nil || !clientOK {
			utils.RespondError(w, http.StatusNotFound, "Client not found")
			return
		}

		now := time.Now().Unix()
		shift := models.Shift{
			ID:             uuid.New().String(),
			CompanyID:      userClaims.CompanyID,
			ClientID:       req.ClientID,
			CarerID:        req.CarerID,
			ScheduledStart: req.ScheduledStart,
			ScheduledEnd:   req.ScheduledEnd,
			Status:         models.ShiftStatusScheduled,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		_, err = db.Exec(
			`INSERT INTO shifts (id, company_id, client_id, carer_id, scheduled_start, scheduled_end, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			shift.ID, shift.CompanyID, shift.ClientID, shift.CarerID,
			shift.ScheduledStart, shift.ScheduledEnd, shift.Status, now, now,
		)
		if err != nil {
			log.Printf("❌ Error scheduling shift: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to schedule shift")
			return
		}

		writeAuditLog(db, userClaims, "shift.schedule", "shift", shift.ID, "")

		hub.BroadcastToUser(shift.CarerID, map[string]interface{}{
			"type": "shift_assigned",
			"data": shift,
		})

		log.Printf("✅ Shift scheduled: %s (carer %s, client %s)", shift.ID, shift.CarerID, shift.ClientID)

		utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"data":    shift,
		})
	}
}

// CancelShift cancels a scheduled or in-progress shift. Completed shifts
// cannot be cancelled; their attendance and deductions are already final.
func CancelShift(db *sqlx.DB, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		shiftID := chi.URLParam(r, "id")

		var shift models.Shift
		err := db.Get(&shift,
			`SELECT * FROM shifts WHERE id = $1 AND company_id = $2`,
			shiftID, userClaims.CompanyID,
		)
		if err == sql.ErrNoRows {
			utils.RespondError(w, http.StatusNotFound, "Shift not found")
			return
		}
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Database error")
			return
		}

		if shift.Status != models.ShiftStatusScheduled && shift.Status != models.ShiftStatusInProgress {
			utils.RespondError(w, http.StatusConflict,
				"Only scheduled or in-progress shifts can be cancelled")
			return
		}

		_, err = db.Exec(
			`UPDATE shifts SET status = 'cancelled', updated_at = $1 WHERE id = $2`,
			time.Now().Unix(), shiftID,
		)
		if err != nil {
			log.Printf("❌ Error cancelling shift: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to cancel shift")
			return
		}

		writeAuditLog(db, userClaims, "shift.cancel", "shift", shiftID, "")

		hub.BroadcastToUser(shift.CarerID, map[string]interface{}{
			"type": "shift_cancelled",
			"data": map[string]interface{}{"shift_id": shiftID},
		})

		log.Printf("✅ Shift cancelled: %s", shiftID)

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}

// GetCompanyShifts lists the company's shifts, optionally filtered by status
func GetCompanyShifts(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		status := r.URL.Query().Get("status")

		shifts := []models.Shift{}
		var err error
		if status != "" {
			err = db.Select(&shifts,
				`SELECT * FROM shifts WHERE company_id = $1 AND status = $2 ORDER BY scheduled_start DESC LIMIT 200`,
				userClaims.CompanyID, status,
			)
		} else {
			err = db.Select(&shifts,
				`SELECT * FROM shifts WHERE company_id = $1 ORDER BY scheduled_start DESC LIMIT 200`,
				userClaims.CompanyID,
			)
		}
		if err != nil {
			log.Printf("❌ Error fetching shifts: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Database error")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    shifts,
		})
	}
}
