package utils

import (
	"context"
	"fmt"

	"github.com/badoux/checkmail"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// SMTPConfig carries the outbound mailbox settings for one company.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// ReminderMailer is the production SMTP Dispatcher.
type ReminderMailer struct {
	Config SMTPConfig
	Logger logrus.FieldLogger
}

func NewReminderMailer(cfg SMTPConfig, logger logrus.FieldLogger) *ReminderMailer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ReminderMailer{Config: cfg, Logger: logger}
}

// Send delivers one rendered reminder over SMTP and returns the dispatch ID.
// The metadata rides along as headers so replies and bounces can be matched
// back to the execution.
func (rm *ReminderMailer) Send(ctx context.Context, d Dispatch) (string, error) {
	if err := checkmail.ValidateFormat(d.Recipient); err != nil {
		return "", fmt.Errorf("invalid recipient %q: %w", d.Recipient, err)
	}

	dispatchID := uuid.New().String()

	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", rm.Config.FromName, rm.Config.FromEmail))
	m.SetHeader("To", d.Recipient)
	m.SetHeader("Subject", d.Subject)
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@tahseel>", dispatchID))
	for key, value := range d.Metadata {
		m.SetHeader("X-Tahseel-"+key, value)
	}
	m.SetBody("text/html", d.Content)

	dialer := gomail.NewDialer(rm.Config.Host, rm.Config.Port, rm.Config.Username, rm.Config.Password)

	done := make(chan error, 1)
	go func() { done <- dialer.DialAndSend(m) }()
	select {
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("smtp send: %w", err)
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}

	rm.Logger.WithFields(logrus.Fields{
		"dispatch_id": dispatchID,
		"recipient":   d.Recipient,
	}).Info("reminder email sent")

	return dispatchID, nil
}
