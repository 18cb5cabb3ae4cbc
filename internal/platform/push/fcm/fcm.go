// Package fcm delivers pushes through Firebase Cloud Messaging.
package fcm

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/rescue/rescue/internal/platform/push"
)

// Sender is the subset of *messaging.Client used here.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Provider implements push.Provider on top of FCM.
type Provider struct {
	client Sender
}

// New builds a Provider from a service-account credentials file. It is meant
// to be called once per process.
func New(ctx context.Context, credentialsFile, projectID string) (*Provider, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase messaging: %w", err)
	}
	return NewWithClient(client), nil
}

func NewWithClient(client Sender) *Provider {
	return &Provider{client: client}
}

func (p *Provider) Send(ctx context.Context, msg push.Message) (string, error) {
	id, err := p.client.Send(ctx, buildMessage(msg))
	if err != nil {
		return "", classify(err)
	}
	return id, nil
}

// buildMessage shapes a high-priority alert with the default sound on both
// platforms and a badge of 1 on iOS.
func buildMessage(msg push.Message) *messaging.Message {
	badge := 1
	return &messaging.Message{
		Token: msg.Token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:     "default",
				ChannelID: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
					Badge: &badge,
				},
			},
		},
	}
}

func classify(err error) error {
	switch {
	case messaging.IsUnregistered(err), messaging.IsSenderIDMismatch(err), errorutils.IsInvalidArgument(err):
		return push.Permanent(fmt.Errorf("fcm: %w", err))
	case messaging.IsQuotaExceeded(err), messaging.IsUnavailable(err), messaging.IsInternal(err),
		errorutils.IsDeadlineExceeded(err):
		return push.Transient(fmt.Errorf("fcm: %w", err))
	default:
		return fmt.Errorf("fcm: %w", err)
	}
}
