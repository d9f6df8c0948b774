package services

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/username/smartledger/backend/src/config"
	"github.com/username/smartledger/backend/src/logger"
)

// NewEmailService returns the email sender selected by configuration.
// Unknown or unconfigured providers fall back to a mock that only logs, so
// ledger invites never block on missing email credentials.
func NewEmailService(cfg *config.AppConfig) EmailService {
	switch cfg.EmailServiceProvider {
	case "mailgun":
		logger.L.Info("Using Mailgun email service", "domain", cfg.MailgunDomain)
		return &MailgunEmailService{
			mg:          mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunPrivateAPIKey),
			senderEmail: cfg.SenderEmail,
			senderName:  cfg.SenderName,
			frontendURL: cfg.FrontendBaseURL,
		}
	default:
		logger.L.Warn("No email service provider configured, using mock email service", "provider", cfg.EmailServiceProvider)
		return &MockEmailService{}
	}
}

type MailgunEmailService struct {
	mg          mailgun.Mailgun
	senderEmail string
	senderName  string
	frontendURL string
}

func (s *MailgunEmailService) SendLedgerInvite(toEmail, username, ledgerName, inviteCode string) error {
	from := fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail)
	subject := fmt.Sprintf("You created the shared ledger %q", ledgerName)

	joinLink := fmt.Sprintf("%s/ledgers/join?code=%s", s.frontendURL, inviteCode)

	plainTextBody := fmt.Sprintf(`Hi %s,

Your shared ledger %q is ready. Share this invite code with the people
you want to split expenses with:

    %s

They can join at:
%s

Thanks,
The SmartLedger Team`, username, ledgerName, inviteCode, joinLink)

	htmlBody := fmt.Sprintf(`
	<html>
		<body style="font-family: Arial, sans-serif; line-height: 1.6;">
			<p>Hi %s,</p>
			<p>Your shared ledger <strong>%s</strong> is ready. Share this invite code with the people you want to split expenses with:</p>
			<p style="font-size: 1.4em; letter-spacing: 0.2em; font-weight: bold;">%s</p>
			<p>They can join at <a href="%s" target="_blank" style="color: #1a73e8;">%s</a></p>
			<p>Thanks,<br>The SmartLedger Team</p>
		</body>
	</html>`, username, ledgerName, inviteCode, joinLink, joinLink)

	message := s.mg.NewMessage(from, subject, plainTextBody, toEmail)
	message.SetHtml(htmlBody)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*20)
	defer cancel()
	resp, id, err := s.mg.Send(ctx, message)
	if err != nil {
		logger.L.Error("Failed to send ledger invite email via Mailgun", "error", err, "to", toEmail, "mailgunResp", resp, "mailgunId", id)
		return fmt.Errorf("mailgun send failed: %w", err)
	}
	logger.L.Info("Ledger invite email sent via Mailgun", "to", toEmail, "id", id)
	return nil
}

// MockEmailService logs invites instead of sending them. Used in development
// and tests.
type MockEmailService struct{}

func (s *MockEmailService) SendLedgerInvite(toEmail, username, ledgerName, inviteCode string) error {
	logger.L.Info("MOCK EMAIL: ledger invite",
		"to", toEmail,
		"username", username,
		"ledgerName", ledgerName,
		"inviteCode", inviteCode,
	)
	return nil
}
