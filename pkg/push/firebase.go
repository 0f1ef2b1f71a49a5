package push

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"nutritrack-signaling/pkg/logger"
)

// FirebaseConfig contains configuration for the Firebase provider
type FirebaseConfig struct {
	ProjectID       string
	CredentialsPath string // service account JSON, supports Docker secrets
}

// FirebaseProvider implements Provider using Firebase Cloud Messaging.
// It reaches Android, iOS (via the APNs bridge) and Web clients.
type FirebaseProvider struct {
	client    *messaging.Client
	projectID string
}

// NewFirebaseProvider initializes the Firebase Admin SDK from a credentials file
func NewFirebaseProvider(ctx context.Context, cfg *FirebaseConfig) (*FirebaseProvider, error) {
	if cfg == nil || cfg.CredentialsPath == "" {
		return nil, fmt.Errorf("firebase credentials path is required")
	}

	credentials, err := os.ReadFile(cfg.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read firebase credentials: %w", err)
	}

	projectID := cfg.ProjectID
	if projectID == "" {
		var creds struct {
			ProjectID string `json:"project_id"`
		}
		if err := json.Unmarshal(credentials, &creds); err != nil {
			return nil, fmt.Errorf("failed to parse firebase credentials: %w", err)
		}
		projectID = creds.ProjectID
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, option.WithCredentialsJSON(credentials))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	logger.Info("Firebase provider initialized", zap.String("project_id", projectID))

	return &FirebaseProvider{client: client, projectID: projectID}, nil
}

// Send implements Provider for FCM
func (f *FirebaseProvider) Send(ctx context.Context, notification *Notification, tokens []string) (*SendResult, error) {
	if len(tokens) == 0 {
		return &SendResult{}, nil
	}

	messages := make([]*messaging.Message, len(tokens))
	for i, token := range tokens {
		messages[i] = buildFirebaseMessage(notification, token)
	}

	response, err := f.client.SendEach(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to send firebase messages: %w", err)
	}

	result := &SendResult{
		SuccessCount: response.SuccessCount,
		FailureCount: response.FailureCount,
	}

	for i, resp := range response.Responses {
		if resp.Success || resp.Error == nil {
			continue
		}
		result.Errors = append(result.Errors, resp.Error)
		logger.Warn("FCM send failed for token",
			zap.String("token_prefix", maskPushToken(tokens[i])),
			zap.Error(resp.Error))

		if messaging.IsUnregistered(resp.Error) || messaging.IsInvalidArgument(resp.Error) {
			result.InvalidTokens = append(result.InvalidTokens, tokens[i])
		}
	}

	return result, nil
}

func buildFirebaseMessage(notification *Notification, token string) *messaging.Message {
	data := make(map[string]string, len(notification.Data)+2)
	for k, v := range notification.Data {
		data[k] = v
	}
	data["title"] = notification.Title
	data["body"] = notification.Body

	androidNotification := &messaging.AndroidNotification{
		Title:             notification.Title,
		Body:              notification.Body,
		Sound:             notification.Sound,
		ClickAction:       notification.ClickAction,
		ChannelID:         notification.Category,
		NotificationCount: notification.Badge,
	}

	android := &messaging.AndroidConfig{
		Notification: androidNotification,
		Data:         data,
	}
	if notification.Priority == "high" {
		android.Priority = "high"
	} else {
		android.Priority = "normal"
	}

	aps := &messaging.Aps{
		Alert: &messaging.ApsAlert{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Badge:    notification.Badge,
		Sound:    notification.Sound,
		Category: notification.Category,
	}

	return &messaging.Message{
		Data:    data,
		Android: android,
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{Aps: aps},
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: notification.Title,
				Body:  notification.Body,
				Icon:  "/icon-192x192.png",
			},
			Data: data,
		},
		Token: token,
	}
}
