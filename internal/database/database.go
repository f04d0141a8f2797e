package database

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func Connect(dbURL string) (*sqlx.DB, error) {
	log.Println("🔄 Connecting to database...")
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ Database connection established")
	return db, nil
}

func Migrate(db *sqlx.DB) error {
	migrations := []string{
		// Create users table
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL CHECK(role IN ('carer', 'admin')),
			company_id TEXT NOT NULL,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		// Create clients table (care recipients)
		`CREATE TABLE IF NOT EXISTS clients (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			name TEXT NOT NULL,
			address TEXT NOT NULL,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			geofence_radius_m INT,
			sponsor_user_id TEXT,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (sponsor_user_id) REFERENCES users(id) ON DELETE SET NULL
		)`,

		// Create shifts table
		`CREATE TABLE IF NOT EXISTS shifts (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			client_id TEXT NOT NULL,
			carer_id TEXT NOT NULL,
			scheduled_start BIGINT NOT NULL,
			scheduled_end BIGINT NOT NULL,
			actual_start BIGINT,
			actual_end BIGINT,
			status TEXT NOT NULL DEFAULT 'scheduled' CHECK(status IN ('scheduled', 'in_progress', 'completed', 'cancelled')),
			check_in_location TEXT,
			check_out_location TEXT,
			review_required BOOLEAN NOT NULL DEFAULT FALSE,
			review_reason TEXT,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (client_id) REFERENCES clients(id) ON DELETE CASCADE,
			FOREIGN KEY (carer_id) REFERENCES users(id) ON DELETE CASCADE,
			CHECK (scheduled_end > scheduled_start),
			CHECK ((status = 'completed') = (actual_end IS NOT NULL))
		)`,

		// Create shift_attendance table: one check-in/out pair per shift per
		// UTC calendar day
		`CREATE TABLE IF NOT EXISTS shift_attendance (
			id SERIAL PRIMARY KEY,
			shift_id TEXT NOT NULL,
			attendance_date BIGINT NOT NULL,
			check_in_time BIGINT NOT NULL,
			check_out_time BIGINT,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (shift_id) REFERENCES shifts(id) ON DELETE CASCADE,
			UNIQUE (shift_id, attendance_date)
		)`,

		// Create authorizations table (finite service-unit budgets)
		`CREATE TABLE IF NOT EXISTS authorizations (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			client_id TEXT NOT NULL,
			total_units NUMERIC(8,2) NOT NULL,
			remaining_units NUMERIC(8,2) NOT NULL,
			window_start BIGINT NOT NULL,
			window_end BIGINT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'exhausted', 'expired')),
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (client_id) REFERENCES clients(id) ON DELETE CASCADE,
			CHECK (remaining_units >= 0),
			CHECK (remaining_units <= total_units),
			CHECK (window_end > window_start)
		)`,

		// Create authorization_deductions table. The UNIQUE shift_id is the
		// idempotency guarantee for retried check-outs.
		`CREATE TABLE IF NOT EXISTS authorization_deductions (
			id TEXT PRIMARY KEY,
			shift_id TEXT NOT NULL UNIQUE,
			authorization_id TEXT NOT NULL,
			units_deducted NUMERIC(8,2) NOT NULL,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (shift_id) REFERENCES shifts(id) ON DELETE CASCADE,
			FOREIGN KEY (authorization_id) REFERENCES authorizations(id) ON DELETE CASCADE
		)`,

		// Create audit_log table (append-only)
		`CREATE TABLE IF NOT EXISTS audit_log (
			id SERIAL PRIMARY KEY,
			company_id TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			detail TEXT,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		// Create company_settings table (per-company operational defaults)
		`CREATE TABLE IF NOT EXISTS company_settings (
			company_id TEXT PRIMARY KEY,
			default_geofence_radius_m INT,
			early_checkout_threshold_min INT,
			overtime_threshold_min INT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		// Create FCM tokens table
		`CREATE TABLE IF NOT EXISTS fcm_tokens (
			id SERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			token TEXT NOT NULL UNIQUE,
			device_type TEXT NOT NULL CHECK(device_type IN ('ios', 'android')),
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,

		// Create indexes
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
		`CREATE INDEX IF NOT EXISTS idx_users_company_role ON users(company_id, role)`,
		`CREATE INDEX IF NOT EXISTS idx_clients_company_id ON clients(company_id)`,
		`CREATE INDEX IF NOT EXISTS idx_shifts_carer_id ON shifts(carer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_shifts_client_id ON shifts(client_id)`,
		`CREATE INDEX IF NOT EXISTS idx_shifts_status ON shifts(status)`,
		`CREATE INDEX IF NOT EXISTS idx_shifts_company_status ON shifts(company_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_shifts_scheduled_start ON shifts(scheduled_start)`,
		`CREATE INDEX IF NOT EXISTS idx_shifts_review_required ON shifts(company_id) WHERE review_required`,
		`CREATE INDEX IF NOT EXISTS idx_shift_attendance_shift_id ON shift_attendance(shift_id)`,
		`CREATE INDEX IF NOT EXISTS idx_shift_attendance_shift_date ON shift_attendance(shift_id, attendance_date DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_authorizations_client ON authorizations(company_id, client_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_authorizations_window ON authorizations(window_start, window_end)`,
		`CREATE INDEX IF NOT EXISTS idx_authorization_deductions_auth ON authorization_deductions(authorization_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_entity ON audit_log(entity_type, entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_company_created ON audit_log(company_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_fcm_tokens_user_id ON fcm_tokens(user_id)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	log.Println("✓ Database migrations completed")
	return nil
}
