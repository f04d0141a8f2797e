package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"

	"carelink-backend/internal/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/jmoiron/sqlx"
	"google.golang.org/api/option"
)

// FCMService delivers compliance notifications as Firebase Cloud Messaging
// pushes. It implements NotificationTransport; audience roles and user IDs
// are resolved to registered device tokens at send time.
type FCMService struct {
	client *messaging.Client
	db     *sqlx.DB
}

// NewFCMService creates a new FCM service instance from a credentials file
func NewFCMService(credentialsFile string, db *sqlx.DB) (*FCMService, error) {
	ctx := context.Background()

	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &FCMService{client: client, db: db}, nil
}

// NewFCMServiceFromBase64 creates a new FCM service instance from
// base64-encoded credentials. Useful for cloud deployments (Railway, Fly.io,
// Render) where you can't upload files easily.
func NewFCMServiceFromBase64(credentialsBase64 string, db *sqlx.DB) (*FCMService, error) {
	ctx := context.Background()

	credentialsJSON, err := base64.StdEncoding.DecodeString(credentialsBase64)
	if err != nil {
		return nil, fmt.Errorf("error decoding base64 credentials: %w", err)
	}

	opt := option.WithCredentialsJSON(credentialsJSON)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &FCMService{client: client, db: db}, nil
}

// Name identifies this transport in dispatch logs
func (s *FCMService) Name() string {
	return "fcm"
}

// Send resolves the event's audiences to device tokens and pushes to all of
// them in one multicast
func (s *FCMService) Send(ctx context.Context, event models.NotificationEvent) error {
	tokens, err := s.resolveTokens(event)
	if err != nil {
		return fmt.Errorf("error resolving audience tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	data := map[string]string{
		"type":           string(event.EventType),
		"related_entity": event.RelatedEntity,
	}
	for k, v := range event.Payload {
		data[k] = v
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: event.Title,
			Body:  event.Body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					ContentAvailable: true,
					Sound:            "default",
				},
			},
		},
	}

	response, err := s.client.SendEachForMulticast(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending multicast message: %w", err)
	}

	log.Printf("✅ FCM %s sent: %d success, %d failures", event.EventType, response.SuccessCount, response.FailureCount)
	return nil
}

// resolveTokens collects device tokens for every audience of the event.
// Role audiences are scoped to the event's company.
func (s *FCMService) resolveTokens(event models.NotificationEvent) ([]string, error) {
	seen := make(map[string]bool)
	tokens := make([]string, 0, 4)

	for _, audience := range event.Audiences {
		var audienceTokens []string
		var err error

		if audience.Role != "" {
			err = s.db.Select(&audienceTokens,
				`SELECT ft.token FROM fcm_tokens ft
				 JOIN users u ON u.id = ft.user_id
				 WHERE u.role = $1 AND u.company_id = $2`,
				audience.Role, event.CompanyID,
			)
		} else if audience.UserID != "" {
			err = s.db.Select(&audienceTokens,
				`SELECT token FROM fcm_tokens WHERE user_id = $1`,
				audience.UserID,
			)
		}
		if err != nil {
			return nil, err
		}

		for _, token := range audienceTokens {
			if !seen[token] {
				seen[token] = true
				tokens = append(tokens, token)
			}
		}
	}

	return tokens, nil
}
