package delivery

import (
	"context"
	"fmt"
	"html"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	memberModels "unionvote/internal/member/models"
	"unionvote/internal/verification/models"
)

// EmailClient is the subset of *sendgrid.Client used here.
type EmailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// EmailSender delivers codes through SendGrid.
type EmailSender struct {
	client  EmailClient
	from    *mail.Email
	sandbox bool
	org     string
}

func NewEmailSender(apiKey, fromAddress, fromName string, sandbox bool) *EmailSender {
	return NewEmailSenderWithClient(sendgrid.NewSendClient(apiKey), fromAddress, fromName, sandbox)
}

func NewEmailSenderWithClient(client EmailClient, fromAddress, fromName string, sandbox bool) *EmailSender {
	return &EmailSender{
		client:  client,
		from:    mail.NewEmail(fromName, fromAddress),
		sandbox: sandbox,
		org:     fromName,
	}
}

func (s *EmailSender) Deliver(ctx context.Context, contact memberModels.Contact, code string, purpose models.Purpose) error {
	to := mail.NewEmail("", contact.Address)
	subject := s.org + " - Verification Code"
	plain := messageBody(code, purpose)
	htmlContent := fmt.Sprintf("<p>%s</p><p style=\"font-size:24px;letter-spacing:4px\"><strong>%s</strong></p>",
		html.EscapeString("Use the following code to continue. It expires in 5 minutes."), html.EscapeString(code))

	message := mail.NewSingleEmail(s.from, subject, to, plain, htmlContent)
	if s.sandbox {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		message.MailSettings = ms
	}

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("send email via sendgrid: %w", err)
	}
	if resp != nil && resp.StatusCode >= 300 {
		return fmt.Errorf("%w: sendgrid status %d", ErrDeliveryFailed, resp.StatusCode)
	}
	return nil
}
