package handlers

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"carelink-backend/internal/middleware"
	"carelink-backend/internal/models"
	"carelink-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// GetClients lists the company's care recipients
func GetClients(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		clients := []models.Client{}
		err := db.Select(&clients,
			`SELECT * FROM clients WHERE company_id = $1 ORDER BY name ASC`,
			userClaims.CompanyID,
		)
		if err != nil {
			log.Printf("❌ Error fetching clients: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Database error")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    clients,
		})
	}
}

type clientRequest struct {
	Name            string   `json:"name"`
	Address         string   `json:"address"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	GeofenceRadiusM *int     `json:"geofence_radius_m"`
	SponsorUserID   *string  `json:"sponsor_user_id"`
}

func (r *clientRequest) valid() (string, bool) {
	if r.Name == "" || r.Address == "" {
		return "name and address are required", false
	}
	// Home coordinates are optional (EVV degrades to LOCATION_UNAVAILABLE),
	// but a half-specified pair is a mistake, not a preference.
	if (r.Latitude == nil) != (r.Longitude == nil) {
		return "latitude and longitude must be provided together", false
	}
	if r.Latitude != nil {
		if *r.Latitude < -90 || *r.Latitude > 90 || *r.Longitude < -180 || *r.Longitude > 180 {
			return "latitude/longitude out of range", false
		}
	}
	if r.GeofenceRadiusM != nil && *r.GeofenceRadiusM < 0 {
		return "geofence_radius_m must not be negative", false
	}
	return "", true
}

// CreateClient creates a care recipient with an optional geofence override
func CreateClient(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req clientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if msg, ok := req.valid(); !ok {
			utils.RespondError(w, http.StatusBadRequest, msg)
			return
		}

		now := time.Now().Unix()
		client := models.Client{
			ID:              uuid.New().String(),
			CompanyID:       userClaims.CompanyID,
			Name:            req.Name,
			Address:         req.Address,
			Latitude:        req.Latitude,
			Longitude:       req.Longitude,
			GeofenceRadiusM: req.GeofenceRadiusM,
			SponsorUserID:   req.SponsorUserID,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		_, err := db.Exec(
			`INSERT INTO clients (id, company_id, name, address, latitude, longitude, geofence_radius_m, sponsor_user_id, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			client.ID, client.CompanyID, client.Name, client.Address,
			client.Latitude, client.Longitude, client.GeofenceRadiusM, client.SponsorUserID,
			now, now,
		)
		if err != nil {
			log.Printf("❌ Error creating client: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to create client")
			return
		}

		log.Printf("✅ Client created: %s", client.Name)

		utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"data":    client,
		})
	}
}

// UpdateClient updates a care recipient's details and geofence settings
func UpdateClient(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		clientID := chi.URLParam(r, "id")

		var existing models.Client
		err := db.Get(&existing,
			`SELECT * FROM clients WHERE id = $1 AND company_id = $2`,
			clientID, userClaims.CompanyID,
		)
		if err == sql.ErrNoRows {
			utils.RespondError(w, http.StatusNotFound, "Client not found")
			return
		}
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Database error")
			return
		}

		var req clientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if msg, ok := req.valid(); !ok {
			utils.RespondError(w, http.StatusBadRequest, msg)
			return
		}

		_, err = db.Exec(
			`UPDATE clients
			 SET name = $1, address = $2, latitude = $3, longitude = $4,
			     geofence_radius_m = $5, sponsor_user_id = $6, updated_at = $7
			 WHERE id = $8`,
			req.Name, req.Address, req.Latitude, req.Longitude,
			req.GeofenceRadiusM, req.SponsorUserID, time.Now().Unix(), clientID,
		)
		if err != nil {
			log.Printf("❌ Error updating client: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to update client")
			return
		}

		db.Get(&existing, `SELECT * FROM clients WHERE id = $1`, clientID)

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    existing,
		})
	}
}
