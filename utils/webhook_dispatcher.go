package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

// WebhookDispatcher posts rendered reminders to a tenant-configured gateway
// (SMS/WhatsApp bridge, internal bus). An alternative to SMTP transport.
type WebhookDispatcher struct {
	URL     string
	Token   string
	Timeout time.Duration
	Client  *fasthttp.Client
	Logger  logrus.FieldLogger
}

func NewWebhookDispatcher(url, token string, logger logrus.FieldLogger) *WebhookDispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &WebhookDispatcher{
		URL:     url,
		Token:   token,
		Timeout: 15 * time.Second,
		Client:  &fasthttp.Client{},
		Logger:  logger,
	}
}

type webhookPayload struct {
	DispatchID string            `json:"dispatch_id"`
	Subject    string            `json:"subject"`
	Content    string            `json:"content"`
	Recipient  string            `json:"recipient"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Send posts the reminder and returns the dispatch ID. The ID is generated
// before the call so a retried delivery carries the same idempotency key.
func (wd *WebhookDispatcher) Send(ctx context.Context, d Dispatch) (string, error) {
	dispatchID := uuid.New().String()

	body, err := json.Marshal(webhookPayload{
		DispatchID: dispatchID,
		Subject:    d.Subject,
		Content:    d.Content,
		Recipient:  d.Recipient,
		Metadata:   d.Metadata,
	})
	if err != nil {
		return "", err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(wd.URL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Idempotency-Key", dispatchID)
	if wd.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wd.Token)
	}
	req.SetBody(body)

	deadline := time.Now().Add(wd.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := wd.Client.DoDeadline(req, resp, deadline); err != nil {
		return "", fmt.Errorf("gateway post: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return "", fmt.Errorf("gateway returned status %d", resp.StatusCode())
	}

	wd.Logger.WithFields(logrus.Fields{
		"dispatch_id": dispatchID,
		"recipient":   d.Recipient,
		"status":      resp.StatusCode(),
	}).Info("reminder posted to gateway")

	return dispatchID, nil
}
