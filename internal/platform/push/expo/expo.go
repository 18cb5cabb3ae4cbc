// Package expo delivers pushes through the Expo push service.
package expo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rescue/rescue/internal/platform/push"
)

const DefaultBaseURL = "https://exp.host/--/api/v2"

type pushRequest struct {
	To        string            `json:"to"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	Sound     string            `json:"sound"`
	Priority  string            `json:"priority"`
	ChannelID string            `json:"channelId"`
	Badge     int               `json:"badge"`
}

type ticket struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Message string `json:"message"`
	Details struct {
		Error string `json:"error"`
	} `json:"details"`
}

type pushResponse struct {
	Data   ticket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Provider implements push.Provider against the Expo HTTP API.
type Provider struct {
	httpClient *resty.Client
}

// New creates an Expo provider. accessToken may be empty when the project
// does not enforce push security.
func New(baseURL, accessToken string) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(1 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if accessToken != "" {
		client.SetAuthToken(accessToken)
	}
	return &Provider{httpClient: client}
}

func (p *Provider) Send(ctx context.Context, msg push.Message) (string, error) {
	var out pushResponse
	resp, err := p.httpClient.R().
		SetContext(ctx).
		SetBody(pushRequest{
			To:        msg.Token,
			Title:     msg.Title,
			Body:      msg.Body,
			Data:      msg.Data,
			Sound:     "default",
			Priority:  "high",
			ChannelID: "default",
			Badge:     1,
		}).
		SetResult(&out).
		SetError(&out).
		Post("/push/send")
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", push.Transient(fmt.Errorf("expo: %w", err))
		}
		return "", fmt.Errorf("expo: %w", err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusTooManyRequests || code >= 500:
		return "", push.Transient(fmt.Errorf("expo: http %d", code))
	case code >= 400:
		msg := resp.Status()
		if len(out.Errors) > 0 {
			msg = out.Errors[0].Code + ": " + out.Errors[0].Message
		}
		return "", fmt.Errorf("expo: %s", msg)
	}

	if out.Data.Status == "ok" {
		return out.Data.ID, nil
	}
	return "", classifyTicket(out.Data)
}

func classifyTicket(t ticket) error {
	err := fmt.Errorf("expo: %s (%s)", t.Message, t.Details.Error)
	switch t.Details.Error {
	case "DeviceNotRegistered", "InvalidCredentials", "MismatchSenderId":
		return push.Permanent(err)
	case "MessageRateExceeded":
		return push.Transient(err)
	default:
		return err
	}
}
