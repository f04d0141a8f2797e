package models

// NotificationEventType enumerates the compliance signals raised at check-out
type NotificationEventType string

const (
	NotificationEarlyCheckOut        NotificationEventType = "EARLY_CHECK_OUT"
	NotificationOvertimeAlert        NotificationEventType = "OVERTIME_ALERT"
	NotificationGeofenceViolation    NotificationEventType = "EVV_GEOFENCE_VIOLATION"
	NotificationShiftCompleted       NotificationEventType = "SHIFT_COMPLETED"
	NotificationCheckOutConfirmation NotificationEventType = "CHECK_OUT_CONFIRMATION"
)

// NotificationAudience addresses an event either at every user holding a role
// or at one specific user. Exactly one of Role/UserID is set.
type NotificationAudience struct {
	Role   string `json:"role,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

// NotificationEvent is an outbound compliance signal. Dispatch is
// fire-and-forget: a delivery failure never touches shift or ledger state.
type NotificationEvent struct {
	EventType     NotificationEventType  `json:"event_type"`
	CompanyID     string                 `json:"company_id"`
	Audiences     []NotificationAudience `json:"audiences"`
	Title         string                 `json:"title"`
	Body          string                 `json:"body"`
	Payload       map[string]string      `json:"payload"`
	RelatedEntity string                 `json:"related_entity"` // shift ID
}

// AuditLogEntry is an append-only operational audit record
type AuditLogEntry struct {
	ID         int    `json:"id" db:"id"`
	CompanyID  string `json:"company_id" db:"company_id"`
	ActorID    string `json:"actor_id" db:"actor_id"`
	Action     string `json:"action" db:"action"`
	EntityType string `json:"entity_type" db:"entity_type"`
	EntityID   string `json:"entity_id" db:"entity_id"`
	Detail     string `json:"detail" db:"detail"`
	CreatedAt  int64  `json:"created_at" db:"created_at"`
}

// FCMToken represents a Firebase Cloud Messaging token for a user
type FCMToken struct {
	ID         int    `json:"id" db:"id"`
	UserID     string `json:"user_id" db:"user_id"`
	Token      string `json:"token" db:"token"`
	DeviceType string `json:"device_type" db:"device_type"` // "ios" or "android"
	CreatedAt  int64  `json:"created_at" db:"created_at"`
	UpdatedAt  int64  `json:"updated_at" db:"updated_at"`
}
