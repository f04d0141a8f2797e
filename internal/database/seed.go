package database

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

const seedCompanyID = "brightpath-care"

// SeedUsers creates the demo company accounts if the users table is empty
func SeedUsers(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM users"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Users already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding users...")

	users := []struct {
		Email    string
		Password string
		Name     string
		Role     string
	}{
		{"supervisor@brightpath.example", "supervisor123", "Dana Whitfield", "admin"},
		{"maria.santos@brightpath.example", "carer123", "Maria Santos", "carer"},
		{"james.okafor@brightpath.example", "carer123", "James Okafor", "carer"},
		{"lena.virtanen@brightpath.example", "carer123", "Lena Virtanen", "carer"},
	}

	now := time.Now().Unix()
	for _, u := range users {
		hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		_, err = db.Exec(
			`INSERT INTO users (id, email, password, name, role, company_id, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.New().String(), u.Email, string(hashed), u.Name, u.Role, seedCompanyID, now, now,
		)
		if err != nil {
			return err
		}
	}

	log.Printf("✓ Seeded %d users", len(users))
	return nil
}

// SeedClients creates demo clients with home coordinates and active
// authorizations if the clients table is empty
func SeedClients(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM clients"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Clients already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding clients and authorizations...")

	clients := []struct {
		Name      string
		Address   string
		Latitude  float64
		Longitude float64
		RadiusM   *int
		Units     float64
	}{
		{"Harold Jennings", "42 Maple Grove, San Jose, CA 95112", 37.3382, -121.8863, nil, 120},
		{"Edith Palmer", "118 Crestview Dr, San Jose, CA 95110", 37.3329, -121.8952, intPtr(250), 80},
		{"Sam Delgado", "77 Willow Ct, San Jose, CA 95113", 37.3311, -121.8840, nil, 160},
	}

	now := time.Now().Unix()
	windowStart := now - 7*24*3600
	windowEnd := now + 83*24*3600 // 90-day authorization window

	for _, c := range clients {
		clientID := uuid.New().String()
		_, err := db.Exec(
			`INSERT INTO clients (id, company_id, name, address, latitude, longitude, geofence_radius_m, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			clientID, seedCompanyID, c.Name, c.Address, c.Latitude, c.Longitude, c.RadiusM, now, now,
		)
		if err != nil {
			return err
		}

		_, err = db.Exec(
			`INSERT INTO authorizations (id, company_id, client_id, total_units, remaining_units, window_start, window_end, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $4, $5, $6, 'active', $7, $7)`,
			uuid.New().String(), seedCompanyID, clientID, c.Units, windowStart, windowEnd, now,
		)
		if err != nil {
			return err
		}
	}

	// Company-wide defaults: 400m geofence unless the client overrides it
	_, err := db.Exec(
		`INSERT INTO company_settings (company_id, default_geofence_radius_m, early_checkout_threshold_min, overtime_threshold_min, updated_at)
		 VALUES ($1, 400, 30, 15, $2)
		 ON CONFLICT (company_id) DO NOTHING`,
		seedCompanyID, now,
	)
	if err != nil {
		return err
	}

	log.Printf("✓ Seeded %d clients with authorizations", len(clients))
	return nil
}

func intPtr(i int) *int {
	return &i
}
