package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"carelink-backend/internal/middleware"
	"carelink-backend/internal/models"
	"carelink-backend/pkg/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// CreateUser creates a carer or admin account in the admin's company
func CreateUser(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			Name     string `json:"name"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if req.Email == "" || req.Password == "" || req.Name == "" {
			utils.RespondError(w, http.StatusBadRequest, "email, password and name are required")
			return
		}
		if req.Role != "carer" && req.Role != "admin" {
			utils.RespondError(w, http.StatusBadRequest, "role must be 'carer' or 'admin'")
			return
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "Failed to hash password")
			return
		}

		now := time.Now().Unix()
		user := models.User{
			ID:        uuid.New().String(),
			Email:     req.Email,
			Name:      req.Name,
			Role:      req.Role,
			CompanyID: userClaims.CompanyID,
			CreatedAt: now,
			UpdatedAt: now,
		}

		_, err = db.Exec(
			`INSERT INTO users (id, email, password, name, role, company_id, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			user.ID, user.Email, string(hashed), user.Name, user.Role, user.CompanyID, now, now,
		)
		if err != nil {
			log.Printf("❌ Error creating user: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Failed to create user (email may already exist)")
			return
		}

		log.Printf("✅ User created: %s (%s)", user.Email, user.Role)

		utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"data":    user.ToUserResponse(),
		})
	}
}

// GetCarers lists the company's carer accounts
func GetCarers(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var users []models.User
		err := db.Select(&users,
			`SELECT * FROM users WHERE company_id = $1 AND role = 'carer' ORDER BY name ASC`,
			userClaims.CompanyID,
		)
		if err != nil {
			log.Printf("❌ Error fetching carers: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Database error")
			return
		}

		responses := make([]models.UserResponse, 0, len(users))
		for i := range users {
			responses = append(responses, users[i].ToUserResponse())
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    responses,
		})
	}
}
