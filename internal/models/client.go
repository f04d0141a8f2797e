package models

// Client represents a care recipient. Latitude/longitude anchor the EVV
// geofence; geofence_radius_m is the per-client override (NULL falls back to
// the company default, then the hard-coded constant).
type Client struct {
	ID              string   `json:"id" db:"id"`
	CompanyID       string   `json:"company_id" db:"company_id"`
	Name            string   `json:"name" db:"name"`
	Address         string   `json:"address" db:"address"`
	Latitude        *float64 `json:"latitude" db:"latitude"`
	Longitude       *float64 `json:"longitude" db:"longitude"`
	GeofenceRadiusM *int     `json:"geofence_radius_m" db:"geofence_radius_m"`
	SponsorUserID   *string  `json:"sponsor_user_id" db:"sponsor_user_id"`
	CreatedAt       int64    `json:"created_at" db:"created_at"`
	UpdatedAt       int64    `json:"updated_at" db:"updated_at"`
}

// HasHomeLocation reports whether the client has geofence target coordinates
func (c *Client) HasHomeLocation() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// CompanySettings holds per-company operational defaults. All columns are
// nullable; NULL means "use the hard-coded default".
type CompanySettings struct {
	CompanyID                 string `json:"company_id" db:"company_id"`
	DefaultGeofenceRadiusM    *int   `json:"default_geofence_radius_m" db:"default_geofence_radius_m"`
	EarlyCheckoutThresholdMin *int   `json:"early_checkout_threshold_min" db:"early_checkout_threshold_min"`
	OvertimeThresholdMin      *int   `json:"overtime_threshold_min" db:"overtime_threshold_min"`
	UpdatedAt                 int64  `json:"updated_at" db:"updated_at"`
}
