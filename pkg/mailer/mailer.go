// Package mailer sends transactional email.
package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// Message is a single outbound email. It is also the JSON body of queued
// email jobs.
type Message struct {
	To        string `json:"to"`
	ToName    string `json:"to_name,omitempty"`
	Subject   string `json:"subject"`
	PlainText string `json:"plain_text"`
	HTML      string `json:"html"`
}

// Validate rejects messages that no provider would accept.
func (m Message) Validate() error {
	if m.To == "" {
		return errors.New("message has no recipient")
	}
	if m.Subject == "" {
		return errors.New("message has no subject")
	}
	return nil
}

// DecodeMessage parses a queued email job.
func DecodeMessage(body []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to decode email message: %w", err)
	}
	return msg, msg.Validate()
}

// LogMailer only logs messages. It stands in when no provider is configured.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	slog.InfoContext(ctx, "email not sent, no provider configured", "to", msg.To, "subject", msg.Subject)
	return nil
}
