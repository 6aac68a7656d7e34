package fcm

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	pkglogger "github.com/guvercin/messaging-backend/pkg/logger"
)

// Client wraps the Firebase Cloud Messaging client
type Client struct {
	messaging *messaging.Client
}

// NewClient initializes the Firebase app from a service-account
// credentials file and returns an FCM client.
func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	mc, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize fcm messaging: %w", err)
	}

	pkglogger.GetLogger().Info().Msg("FCM client initialized")

	return &Client{messaging: mc}, nil
}

// Send submits a notification-only push (title, no body) to one device
// token and returns the FCM message receipt id.
func (c *Client) Send(ctx context.Context, title, token string) (string, error) {
	msg := &messaging.Message{
		Notification: &messaging.Notification{
			Title: title,
		},
		Token: token,
	}

	receipt, err := c.messaging.Send(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("fcm send: %w", err)
	}
	return receipt, nil
}
