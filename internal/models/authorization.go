package models

// AuthorizationStatus represents the lifecycle of a service authorization
type AuthorizationStatus string

const (
	AuthorizationStatusActive    AuthorizationStatus = "active"
	AuthorizationStatusExhausted AuthorizationStatus = "exhausted"
	AuthorizationStatusExpired   AuthorizationStatus = "expired"
)

// Authorization is a finite, time-boxed budget of billable service units
// (1 unit = 1 hour) approved for a client. remaining_units is mutated only
// through the ledger's atomic deduction; 0 <= remaining_units <= total_units.
type Authorization struct {
	ID             string              `json:"id" db:"id"`
	CompanyID      string              `json:"company_id" db:"company_id"`
	ClientID       string              `json:"client_id" db:"client_id"`
	TotalUnits     float64             `json:"total_units" db:"total_units"`
	RemainingUnits float64             `json:"remaining_units" db:"remaining_units"`
	WindowStart    int64               `json:"window_start" db:"window_start"`
	WindowEnd      int64               `json:"window_end" db:"window_end"`
	Status         AuthorizationStatus `json:"status" db:"status"`
	CreatedAt      int64               `json:"created_at" db:"created_at"`
	UpdatedAt      int64               `json:"updated_at" db:"updated_at"`
}

// DeductionRecord links a completed shift to the authorization deduction it
// caused. shift_id is UNIQUE: it doubles as the idempotency key, so a retried
// check-out can never deduct twice.
type DeductionRecord struct {
	ID              string  `json:"id" db:"id"`
	ShiftID         string  `json:"shift_id" db:"shift_id"`
	AuthorizationID string  `json:"authorization_id" db:"authorization_id"`
	UnitsDeducted   float64 `json:"units_deducted" db:"units_deducted"`
	CreatedAt       int64   `json:"created_at" db:"created_at"`
}

// DeductionResult is what the ledger reports back to the orchestrator
type DeductionResult struct {
	Success         bool    `json:"success"`
	AlreadyDeducted bool    `json:"already_deducted"`
	AuthorizationID string  `json:"authorization_id,omitempty"`
	UnitsDeducted   float64 `json:"units_deducted,omitempty"`
	RemainingUnits  float64 `json:"remaining_units,omitempty"`
	Clamped         bool    `json:"clamped,omitempty"` // balance floor hit, shift flagged for review
}
