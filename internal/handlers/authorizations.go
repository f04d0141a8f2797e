package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"carelink-backend/internal/middleware"
	"carelink-backend/internal/models"
	"carelink-backend/internal/services"
	"carelink-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CreateAuthorization creates a service-unit budget for a client
func CreateAuthorization(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req struct {
			ClientID    string  `json:"client_id"`
			TotalUnits  float64 `json:"total_units"`
			WindowStart int64   `json:"window_start"`
			WindowEnd   int64   `json:"window_end"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.ClientID == "" || req.TotalUnits <= 0 || req.WindowEnd <= req.WindowStart {
			utils.RespondError(w, http.StatusBadRequest, "client_id, positive total_units and a valid window are required")
			return
		}

		// Client must belong to the admin's company
		var clientExists bool
		err := db.Get(&clientExists,
			`SELECT EXISTS(SELECT 1 FROM clients WHERE id = $1 AND company_id = $2)`,
			req.ClientID, userClaims.CompanyID,
		)
		if err != nil || !clientExists {
			utils.RespondError(w, http.StatusNotFound, "Client not found")
			return
		}

		now := time.Now().Unix()
		auth := models.Authorization{
			ID:             uuid.New().String(),
			CompanyID:      userClaims.CompanyID,
			ClientID:       req.ClientID,
			TotalUnits:     req.TotalUnits,
			RemainingUnits: req.TotalUnits,
			WindowStart:    req.WindowStart,
			WindowEnd:      req.WindowEnd,
			Status:         models.AuthorizationStatusActive,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		_, err = db.Exec(
			`INSERT INTO authorizations (id, company_id, client_id, total_units, remaining_units, window_start, window_end, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			auth.ID, auth.CompanyID, auth.ClientID, auth.TotalUnits, auth.RemainingUnits,
			auth.WindowStart, auth.WindowEnd, auth.Status, now, now,
		)
		if err != nil {
			log.Printf("❌ Error creating authorization: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to create authorization")
			return
		}

		writeAuditLog(db, userClaims, "authorization.create", "authorization", auth.ID, "")
		log.Printf("✅ Authorization created: %s (%.2f units for client %s)", auth.ID, auth.TotalUnits, auth.ClientID)

		utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"data":    auth,
		})
	}
}

// GetClientAuthorizations lists a client's authorizations with their
// deduction history
func GetClientAuthorizations(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		clientID := chi.URLParam(r, "id")

		var clientExists bool
		err := db.Get(&clientExists,
			`SELECT EXISTS(SELECT 1 FROM clients WHERE id = $1 AND company_id = $2)`,
			clientID, userClaims.CompanyID,
		)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Database error")
			return
		}
		if !clientExists {
			utils.RespondError(w, http.StatusNotFound, "Client not found")
			return
		}

		auths := []models.Authorization{}
		err = db.Select(&auths,
			`SELECT * FROM authorizations WHERE client_id = $1 ORDER BY window_end ASC`,
			clientID,
		)
		if err != nil {
			log.Printf("❌ Error fetching authorizations: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Database error")
			return
		}

		deductions := []models.DeductionRecord{}
		err = db.Select(&deductions,
			`SELECT ad.* FROM authorization_deductions ad
			 JOIN authorizations a ON a.id = ad.authorization_id
			 WHERE a.client_id = $1
			 ORDER BY ad.created_at DESC`,
			clientID,
		)
		if err != nil {
			log.Printf("⚠️  Error fetching deduction history: %v", err)
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"authorizations": auths,
				"deductions":     deductions,
			},
		})
	}
}

// ExpireAuthorizations sweeps ACTIVE authorizations whose window has lapsed
func ExpireAuthorizations(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		ledger := services.NewAuthorizationLedger(db)
		expired, err := ledger.ExpireLapsedAuthorizations()
		if err != nil {
			log.Printf("❌ Error expiring authorizations: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to expire authorizations")
			return
		}

		writeAuditLog(db, userClaims, "authorization.expire_sweep", "authorization", "*", "")

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"expired": expired},
		})
	}
}

// GetBillingReviewQueue lists completed shifts flagged for manual billing
// review (exhausted or missing authorizations, failed deductions)
func GetBillingReviewQueue(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		shifts := []models.Shift{}
		err := db.Select(&shifts,
			`SELECT * FROM shifts
			 WHERE company_id = $1 AND review_required = TRUE
			 ORDER BY updated_at DESC`,
			userClaims.CompanyID,
		)
		if err != nil {
			log.Printf("❌ Error fetching review queue: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Database error")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    shifts,
		})
	}
}
