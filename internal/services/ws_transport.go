package services

import (
	"context"

	"carelink-backend/internal/models"
)

// Broadcaster is the slice of the websocket hub the notifier needs
type Broadcaster interface {
	BroadcastToUser(userID string, data interface{})
	BroadcastToRole(role string, data interface{})
}

// WebSocketTransport pushes compliance events to connected dashboard and
// mobile clients through the hub
type WebSocketTransport struct {
	hub Broadcaster
}

// NewWebSocketTransport creates a websocket notification transport
func NewWebSocketTransport(hub Broadcaster) *WebSocketTransport {
	return &WebSocketTransport{hub: hub}
}

// Name identifies this transport in dispatch logs
func (t *WebSocketTransport) Name() string {
	return "websocket"
}

// Send broadcasts the event to every audience. Disconnected clients are
// simply skipped; the hub never blocks.
func (t *WebSocketTransport) Send(ctx context.Context, event models.NotificationEvent) error {
	payload := map[string]interface{}{
		"type": "notification",
		"data": event,
	}
	for _, audience := range event.Audiences {
		if audience.Role != "" {
			t.hub.BroadcastToRole(audience.Role, payload)
		} else if audience.UserID != "" {
			t.hub.BroadcastToUser(audience.UserID, payload)
		}
	}
	return nil
}
