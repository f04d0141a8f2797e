package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"carelink-backend/internal/models"
)

// Default compliance thresholds. Real values come from company_settings;
// these apply when the company has not configured its own.
const (
	DefaultEarlyCheckoutThresholdMin = 30
	DefaultOvertimeThresholdMin      = 15
)

// dispatchTimeout bounds every background notification dispatch
const dispatchTimeout = 10 * time.Second

// ComplianceThresholds are the per-company rule thresholds in minutes
type ComplianceThresholds struct {
	EarlyCheckoutMin int
	OvertimeMin      int
}

// ResolveThresholds applies the company settings row over the defaults
func ResolveThresholds(settings *models.CompanySettings) ComplianceThresholds {
	t := ComplianceThresholds{
		EarlyCheckoutMin: DefaultEarlyCheckoutThresholdMin,
		OvertimeMin:      DefaultOvertimeThresholdMin,
	}
	if settings == nil {
		return t
	}
	if settings.EarlyCheckoutThresholdMin != nil && *settings.EarlyCheckoutThresholdMin > 0 {
		t.EarlyCheckoutMin = *settings.EarlyCheckoutThresholdMin
	}
	if settings.OvertimeThresholdMin != nil && *settings.OvertimeThresholdMin > 0 {
		t.OvertimeMin = *settings.OvertimeThresholdMin
	}
	return t
}

// ShiftFacts is everything the compliance rules need about a completed shift
type ShiftFacts struct {
	Shift          *models.Shift
	ClientName     string
	CarerName      string
	SponsorUserID  *string
	CheckOutTime   int64
	ActualHours    float64
	CheckOutEVV    models.EVVStatus
	DistanceMeters *float64
	Thresholds     ComplianceThresholds
}

// NotificationTransport delivers a single event to its audiences. The core
// does not know about push/SMS/websocket specifics behind this contract.
type NotificationTransport interface {
	Name() string
	Send(ctx context.Context, event models.NotificationEvent) error
}

// ComplianceNotifier evaluates completed-shift facts against the compliance
// rules and dispatches the resulting events. Dispatch is fire-and-forget:
// nothing here may block or fail the check-out response.
type ComplianceNotifier struct {
	transports []NotificationTransport
}

// NewComplianceNotifier creates a notifier over the given transports
func NewComplianceNotifier(transports ...NotificationTransport) *ComplianceNotifier {
	return &ComplianceNotifier{transports: transports}
}

// Evaluate runs every compliance rule independently and returns the events to
// dispatch. Multiple rules may fire for one shift.
func (cn *ComplianceNotifier) Evaluate(facts ShiftFacts) []models.NotificationEvent {
	events := make([]models.NotificationEvent, 0, 4)
	shift := facts.Shift
	supervisors := []models.NotificationAudience{{Role: "admin"}}

	// Early check-out: left >= threshold minutes before scheduled end
	minutesEarly := (shift.ScheduledEnd - facts.CheckOutTime) / 60
	if minutesEarly >= int64(facts.Thresholds.EarlyCheckoutMin) {
		events = append(events, models.NotificationEvent{
			EventType: models.NotificationEarlyCheckOut,
			Audiences: supervisors,
			Title:     "Early Check-Out",
			Body:      fmt.Sprintf("%s checked out %d minutes before the scheduled end of %s's visit.", facts.CarerName, minutesEarly, facts.ClientName),
			Payload: map[string]string{
				"shift_id":      shift.ID,
				"minutes_early": fmt.Sprintf("%d", minutesEarly),
			},
			RelatedEntity: shift.ID,
		})
	}

	// Overtime: worked >= threshold minutes over the scheduled duration
	overtimeMinutes := int64(math.Round((facts.ActualHours - shift.ScheduledHours()) * 60))
	if overtimeMinutes >= int64(facts.Thresholds.OvertimeMin) {
		events = append(events, models.NotificationEvent{
			EventType: models.NotificationOvertimeAlert,
			Audiences: supervisors,
			Title:     "Overtime Alert",
			Body:      fmt.Sprintf("%s worked %d minutes over the scheduled duration for %s.", facts.CarerName, overtimeMinutes, facts.ClientName),
			Payload: map[string]string{
				"shift_id":         shift.ID,
				"overtime_minutes": fmt.Sprintf("%d", overtimeMinutes),
			},
			RelatedEntity: shift.ID,
		})
	}

	// Geofence violation at check-out. LOCATION_UNAVAILABLE does not fire:
	// unknown is not a violation.
	if facts.CheckOutEVV == models.EVVStatusOutOfRange {
		payload := map[string]string{"shift_id": shift.ID}
		body := fmt.Sprintf("%s checked out of %s's visit outside the client geofence.", facts.CarerName, facts.ClientName)
		if facts.DistanceMeters != nil {
			payload["distance_meters"] = fmt.Sprintf("%.0f", *facts.DistanceMeters)
			body = fmt.Sprintf("%s checked out %.0fm from %s's home, outside the geofence.", facts.CarerName, *facts.DistanceMeters, facts.ClientName)
		}
		events = append(events, models.NotificationEvent{
			EventType:     models.NotificationGeofenceViolation,
			Audiences:     supervisors,
			Title:         "EVV Geofence Violation",
			Body:          body,
			Payload:       payload,
			RelatedEntity: shift.ID,
		})
	}

	// Informational events always fire
	events = append(events, models.NotificationEvent{
		EventType:     models.NotificationShiftCompleted,
		Audiences:     supervisors,
		Title:         "Shift Completed",
		Body:          fmt.Sprintf("%s completed the visit for %s (%.2f hours).", facts.CarerName, facts.ClientName, facts.ActualHours),
		Payload:       map[string]string{"shift_id": shift.ID, "hours": fmt.Sprintf("%.2f", facts.ActualHours)},
		RelatedEntity: shift.ID,
	})

	confirmAudiences := []models.NotificationAudience{{UserID: shift.CarerID}}
	if facts.SponsorUserID != nil {
		confirmAudiences = append(confirmAudiences, models.NotificationAudience{UserID: *facts.SponsorUserID})
	}
	events = append(events, models.NotificationEvent{
		EventType:     models.NotificationCheckOutConfirmation,
		Audiences:     confirmAudiences,
		Title:         "Check-Out Confirmed",
		Body:          fmt.Sprintf("Visit for %s is complete. Check-out recorded at %s.", facts.ClientName, time.Unix(facts.CheckOutTime, 0).UTC().Format("15:04 MST")),
		Payload:       map[string]string{"shift_id": shift.ID},
		RelatedEntity: shift.ID,
	})

	for i := range events {
		events[i].CompanyID = shift.CompanyID
	}

	return events
}

// DispatchAsync delivers the events from a detached goroutine with its own
// bounded deadline. It is deliberately decoupled from the request context so
// a carer disconnecting after check-out cannot cancel delivery.
func (cn *ComplianceNotifier) DispatchAsync(events []models.NotificationEvent) {
	if len(events) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		cn.dispatch(ctx, events)
	}()
}

// dispatch delivers each event over each transport. Failures are logged and
// isolated: one broken transport or one failed event never stops the rest.
func (cn *ComplianceNotifier) dispatch(ctx context.Context, events []models.NotificationEvent) {
	for _, event := range events {
		for _, transport := range cn.transports {
			if err := transport.Send(ctx, event); err != nil {
				log.Printf("⚠️  Notification dispatch failed (%s, %s): %v", transport.Name(), event.EventType, err)
			}
		}
	}
}
