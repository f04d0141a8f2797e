package services

import (
	"database/sql"
	"fmt"
	"log"
	"math"
	"time"

	"carelink-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// DefaultUnitPrecision is the billing unit granularity: hours are rounded to
// the nearest quarter unit before deduction. This is billing-visible policy;
// change it only together with the payer contract.
const DefaultUnitPrecision = 0.25

// AuthorizationLedger maintains the remaining-unit balance per client
// authorization and deducts consumed hours exactly once per completed shift.
type AuthorizationLedger struct {
	db        *sqlx.DB
	precision float64
}

// NewAuthorizationLedger creates a ledger with the default unit precision
func NewAuthorizationLedger(db *sqlx.DB) *AuthorizationLedger {
	return &AuthorizationLedger{db: db, precision: DefaultUnitPrecision}
}

// RoundUnits rounds fractional hours to the ledger's precision, half away
// from zero. 4.3h -> 4.25, 4.38h -> 4.5.
func (al *AuthorizationLedger) RoundUnits(hours float64) float64 {
	if hours <= 0 {
		return 0
	}
	steps := math.Round(hours / al.precision)
	return steps * al.precision
}

// Deduct consumes hoursWorked units from the client's soonest-expiring ACTIVE
// authorization whose window contains today. The deduction and its
// DeductionRecord commit atomically; shift_id's UNIQUE constraint makes the
// whole operation idempotent under concurrent retries.
//
// Missing or exhausted coverage is a soft outcome, not an error: the caller
// gets Success=false and the shift still completes.
func (al *AuthorizationLedger) Deduct(companyID, clientID string, hoursWorked float64, shiftID string) (*models.DeductionResult, error) {
	// Fast path for retried check-outs: if the shift already has a deduction
	// record, nothing to do. The unique constraint below still guards the
	// race where two retries pass this check simultaneously.
	var exists bool
	err := al.db.Get(&exists,
		`SELECT EXISTS(SELECT 1 FROM authorization_deductions WHERE shift_id = $1)`,
		shiftID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to check deduction record: %w", err)
	}
	if exists {
		log.Printf("⚠️  Shift %s already has a deduction record, skipping", shiftID)
		return &models.DeductionResult{Success: false, AlreadyDeducted: true}, nil
	}

	units := al.RoundUnits(hoursWorked)
	now := time.Now().Unix()

	tx, err := al.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin deduction transaction: %w", err)
	}
	defer tx.Rollback()

	// Soonest-expiring first, so near-expiry budget is not left unused.
	// FOR UPDATE serializes concurrent check-outs against the same balance.
	var auth models.Authorization
	err = tx.Get(&auth,
		`SELECT * FROM authorizations
		 WHERE company_id = $1 AND client_id = $2
		 AND status = 'active'
		 AND window_start <= $3 AND window_end >= $3
		 ORDER BY window_end ASC
		 LIMIT 1
		 FOR UPDATE`,
		companyID, clientID, now,
	)
	if err == sql.ErrNoRows {
		log.Printf("⚠️  No active authorization for client %s, shift %s flagged for billing review", clientID, shiftID)
		return &models.DeductionResult{Success: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select authorization: %w", err)
	}

	// Never let the balance go negative: clamp to what is left and mark the
	// authorization exhausted. The shortfall goes to manual billing review.
	deducted := units
	clamped := false
	if deducted > auth.RemainingUnits {
		deducted = auth.RemainingUnits
		clamped = true
	}

	// The UNIQUE(shift_id) insert is the idempotency gate: a concurrent retry
	// that lost the race hits the conflict and deducts nothing.
	result, err := tx.Exec(
		`INSERT INTO authorization_deductions (id, shift_id, authorization_id, units_deducted, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (shift_id) DO NOTHING`,
		uuid.New().String(), shiftID, auth.ID, deducted, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert deduction record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read deduction insert result: %w", err)
	}
	if rows == 0 {
		log.Printf("⚠️  Concurrent deduction already recorded for shift %s, skipping", shiftID)
		return &models.DeductionResult{Success: false, AlreadyDeducted: true}, nil
	}

	remaining := auth.RemainingUnits - deducted
	status := models.AuthorizationStatusActive
	if remaining <= 0 {
		remaining = 0
		status = models.AuthorizationStatusExhausted
	}

	_, err = tx.Exec(
		`UPDATE authorizations SET remaining_units = $1, status = $2, updated_at = $3 WHERE id = $4`,
		remaining, status, now, auth.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update authorization balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit deduction: %w", err)
	}

	if clamped {
		log.Printf("⚠️  Authorization %s exhausted: needed %.2f units, had %.2f (shift %s)",
			auth.ID, units, auth.RemainingUnits, shiftID)
	} else {
		log.Printf("✅ Deducted %.2f units from authorization %s (%.2f remaining)", deducted, auth.ID, remaining)
	}

	return &models.DeductionResult{
		Success:         true,
		AuthorizationID: auth.ID,
		UnitsDeducted:   deducted,
		RemainingUnits:  remaining,
		Clamped:         clamped,
	}, nil
}

// ExpireLapsedAuthorizations marks ACTIVE authorizations whose window has
// ended as EXPIRED. Run at startup and from the admin surface.
func (al *AuthorizationLedger) ExpireLapsedAuthorizations() (int64, error) {
	now := time.Now().Unix()
	result, err := al.db.Exec(
		`UPDATE authorizations SET status = 'expired', updated_at = $1
		 WHERE status = 'active' AND window_end < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire authorizations: %w", err)
	}
	expired, _ := result.RowsAffected()
	if expired > 0 {
		log.Printf("✅ Marked %d authorization(s) as expired", expired)
	}
	return expired, nil
}
