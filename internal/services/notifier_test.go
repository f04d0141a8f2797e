package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"carelink-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTransport captures every event it is asked to deliver
type recordingTransport struct {
	mu     sync.Mutex
	events []models.NotificationEvent
}

func (rt *recordingTransport) Name() string { return "recording" }

func (rt *recordingTransport) Send(_ context.Context, event models.NotificationEvent) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.events = append(rt.events, event)
	return nil
}

// failingTransport always errors
type failingTransport struct{}

func (ft *failingTransport) Name() string { return "failing" }

func (ft *failingTransport) Send(_ context.Context, _ models.NotificationEvent) error {
	return errors.New("delivery backend unreachable")
}

func baseFacts() ShiftFacts {
	start := int64(1_760_000_000)
	actualStart := start
	shift := &models.Shift{
		ID:             "shift-1",
		CompanyID:      "company-1",
		ClientID:       "client-1",
		CarerID:        "carer-1",
		ScheduledStart: start,
		ScheduledEnd:   start + 8*3600,
		ActualStart:    &actualStart,
		Status:         models.ShiftStatusCompleted,
	}
	return ShiftFacts{
		Shift:        shift,
		ClientName:   "Margaret H.",
		CarerName:    "Dana R.",
		CheckOutTime: shift.ScheduledEnd,
		ActualHours:  8.0,
		CheckOutEVV:  models.EVVStatusCompliant,
		Thresholds:   ResolveThresholds(nil),
	}
}

func eventTypes(events []models.NotificationEvent) []models.NotificationEventType {
	types := make([]models.NotificationEventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.EventType)
	}
	return types
}

func TestEvaluate_OnTimeCompliantShift(t *testing.T) {
	cn := NewComplianceNotifier()
	events := cn.Evaluate(baseFacts())

	// Only the informational events fire
	types := eventTypes(events)
	assert.Equal(t, []models.NotificationEventType{
		models.NotificationShiftCompleted,
		models.NotificationCheckOutConfirmation,
	}, types)

	for _, e := range events {
		assert.Equal(t, "company-1", e.CompanyID)
		assert.Equal(t, "shift-1", e.RelatedEntity)
	}
}

func TestEvaluate_EarlyCheckOut(t *testing.T) {
	cn := NewComplianceNotifier()
	facts := baseFacts()
	facts.CheckOutTime = facts.Shift.ScheduledEnd - 35*60 // 35 minutes early
	facts.ActualHours = 7.4

	events := cn.Evaluate(facts)

	assert.Contains(t, eventTypes(events), models.NotificationEarlyCheckOut)

	var early models.NotificationEvent
	for _, e := range events {
		if e.EventType == models.NotificationEarlyCheckOut {
			early = e
		}
	}
	assert.Equal(t, "35", early.Payload["minutes_early"])
	require.Len(t, early.Audiences, 1)
	assert.Equal(t, "admin", early.Audiences[0].Role)
}

func TestEvaluate_EarlyCheckOutBelowThresholdDoesNotFire(t *testing.T) {
	cn := NewComplianceNotifier()
	facts := baseFacts()
	facts.CheckOutTime = facts.Shift.ScheduledEnd - 29*60 // just inside the 30 minute threshold
	facts.ActualHours = 7.5

	events := cn.Evaluate(facts)

	assert.NotContains(t, eventTypes(events), models.NotificationEarlyCheckOut)
}

func TestEvaluate_Overtime(t *testing.T) {
	cn := NewComplianceNotifier()
	facts := baseFacts()
	facts.CheckOutTime = facts.Shift.ScheduledEnd + 18*60
	facts.ActualHours = 8.3 // 18 minutes over the scheduled 8 hours

	events := cn.Evaluate(facts)

	assert.Contains(t, eventTypes(events), models.NotificationOvertimeAlert)

	var overtime models.NotificationEvent
	for _, e := range events {
		if e.EventType == models.NotificationOvertimeAlert {
			overtime = e
		}
	}
	assert.Equal(t, "18", overtime.Payload["overtime_minutes"])
}

func TestEvaluate_OvertimeBelowThresholdDoesNotFire(t *testing.T) {
	cn := NewComplianceNotifier()
	facts := baseFacts()
	facts.ActualHours = 8.2 // 12 minutes over, threshold is 15

	events := cn.Evaluate(facts)

	assert.NotContains(t, eventTypes(events), models.NotificationOvertimeAlert)
}

func TestEvaluate_GeofenceViolation(t *testing.T) {
	cn := NewComplianceNotifier()
	facts := baseFacts()
	distance := 742.0
	facts.CheckOutEVV = models.EVVStatusOutOfRange
	facts.DistanceMeters = &distance

	events := cn.Evaluate(facts)

	assert.Contains(t, eventTypes(events), models.NotificationGeofenceViolation)

	var violation models.NotificationEvent
	for _, e := range events {
		if e.EventType == models.NotificationGeofenceViolation {
			violation = e
		}
	}
	assert.Equal(t, "742", violation.Payload["distance_meters"])
}

func TestEvaluate_LocationUnavailableIsNotAViolation(t *testing.T) {
	cn := NewComplianceNotifier()
	facts := baseFacts()
	facts.CheckOutEVV = models.EVVStatusLocationUnavailable

	events := cn.Evaluate(facts)

	assert.NotContains(t, eventTypes(events), models.NotificationGeofenceViolation)
}

func TestEvaluate_ConfirmationIncludesSponsor(t *testing.T) {
	cn := NewComplianceNotifier()
	facts := baseFacts()
	sponsor := "sponsor-1"
	facts.SponsorUserID = &sponsor

	events := cn.Evaluate(facts)

	var confirmation models.NotificationEvent
	for _, e := range events {
		if e.EventType == models.NotificationCheckOutConfirmation {
			confirmation = e
		}
	}
	require.Len(t, confirmation.Audiences, 2)
	assert.Equal(t, "carer-1", confirmation.Audiences[0].UserID)
	assert.Equal(t, "sponsor-1", confirmation.Audiences[1].UserID)
}

func TestResolveThresholds(t *testing.T) {
	defaults := ResolveThresholds(nil)
	assert.Equal(t, DefaultEarlyCheckoutThresholdMin, defaults.EarlyCheckoutMin)
	assert.Equal(t, DefaultOvertimeThresholdMin, defaults.OvertimeMin)

	early := 45
	overtime := 20
	configured := ResolveThresholds(&models.CompanySettings{
		EarlyCheckoutThresholdMin: &early,
		OvertimeThresholdMin:      &overtime,
	})
	assert.Equal(t, 45, configured.EarlyCheckoutMin)
	assert.Equal(t, 20, configured.OvertimeMin)

	zero := 0
	zeroed := ResolveThresholds(&models.CompanySettings{
		EarlyCheckoutThresholdMin: &zero,
	})
	assert.Equal(t, DefaultEarlyCheckoutThresholdMin, zeroed.EarlyCheckoutMin, "zero falls back to the default")
}

func TestDispatch_TransportFailureDoesNotStopDelivery(t *testing.T) {
	recorder := &recordingTransport{}
	cn := NewComplianceNotifier(&failingTransport{}, recorder)

	events := cn.Evaluate(baseFacts())
	cn.dispatch(context.Background(), events)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Len(t, recorder.events, len(events), "the healthy transport must receive every event despite the broken one")
}
