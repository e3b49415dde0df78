package services

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"authsimple/internal/models"
	"authsimple/internal/security"
	"authsimple/pkg/mailer"
)

// EmailSender delivers a single message.
type EmailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

const sendTimeout = 30 * time.Second

var verificationTemplate = template.Must(template.New("verify").Parse(`<html>
<body>
  <p>Hello, {{.Username}}!</p>
  <p><a href="{{.Link}}">Follow this link to confirm your registration</a></p>
</body>
</html>`))

// EmailService builds and dispatches verification emails.
type EmailService struct {
	sender  EmailSender
	codec   *security.TokenCodec
	baseURL string
}

// NewEmailService creates a new EmailService. baseURL is the public root
// the verification link points at.
func NewEmailService(sender EmailSender, codec *security.TokenCodec, baseURL string) *EmailService {
	return &EmailService{
		sender:  sender,
		codec:   codec,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// VerificationMessage builds the message for user, embedding a signed
// token that carries the user's email.
func (s *EmailService) VerificationMessage(user *models.User) (mailer.Message, error) {
	token, err := s.codec.IssueVerification(user.Username, user.Email)
	if err != nil {
		return mailer.Message{}, err
	}
	link := s.baseURL + "/auth/verify-email?token=" + url.QueryEscape(token)

	var html strings.Builder
	if err := verificationTemplate.Execute(&html, map[string]string{
		"Username": user.Username,
		"Link":     link,
	}); err != nil {
		return mailer.Message{}, fmt.Errorf("failed to render verification email: %w", err)
	}

	return mailer.Message{
		To:        user.Email,
		ToName:    user.Name,
		Subject:   "Confirm your registration",
		PlainText: fmt.Sprintf("Hello, %s! Confirm your registration: %s", user.Username, link),
		HTML:      html.String(),
	}, nil
}

// SendVerification builds and sends the verification message.
func (s *EmailService) SendVerification(ctx context.Context, user *models.User) error {
	msg, err := s.VerificationMessage(user)
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, msg)
}

// SendVerificationAsync sends in the background. Failures are logged and
// not retried.
func (s *EmailService) SendVerificationAsync(user models.User) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := s.SendVerification(ctx, &user); err != nil {
			slog.Error("failed to send verification email", "user_id", user.ID, "email", user.Email, "error", err)
		}
	}()
}
