// Package notify delivers a plain-text copy of the daily report by email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/ossterm/marketbot/pkg/logging"
)

const defaultFromName = "Market Bot"

// EmailSender sends one message.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

type EmailMessage struct {
	To      string
	Subject string
	Body    string
}

// Config selects the provider. SendGrid wins when both are configured.
type Config struct {
	SendGridAPIKey string
	FromEmail      string
	SESFromEmail   string
	FromName       string
}

// NewEmailSender returns nil when no provider is configured.
func NewEmailSender(cfg Config, ses SESAPI, logger *logging.Logger) EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	switch {
	case cfg.SendGridAPIKey != "" && cfg.FromEmail != "":
		return &SendGridSender{
			client: sendgrid.NewSendClient(cfg.SendGridAPIKey),
			from:   mail.NewEmail(cfg.FromName, cfg.FromEmail),
			logger: logger,
		}
	case ses != nil && cfg.SESFromEmail != "":
		return &SESSender{
			client: ses,
			from:   fmt.Sprintf("%s <%s>", cfg.FromName, cfg.SESFromEmail),
			logger: logger,
		}
	default:
		return nil
	}
}

type sendGridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender sends through the SendGrid v3 API.
type SendGridSender struct {
	client sendGridAPI
	from   *mail.Email
	logger *logging.Logger
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if err := validate(msg); err != nil {
		return err
	}
	message := mail.NewSingleEmail(s.from, msg.Subject, mail.NewEmail("", msg.To), msg.Body, htmlBody(msg.Body))
	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("notify: sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		s.logger.Error("sendgrid rejected report email", "status", resp.StatusCode, "body", resp.Body)
		return fmt.Errorf("notify: sendgrid returned status %d", resp.StatusCode)
	}
	s.logger.Info("report email sent", "provider", "sendgrid", "to", msg.To)
	return nil
}

// SESAPI is the subset of the SES v2 client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends through Amazon SES.
type SESSender struct {
	client SESAPI
	from   string
	logger *logging.Logger
}

func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	if err := validate(msg); err != nil {
		return err
	}
	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: utf8(msg.Subject),
				Body: &types.Body{
					Text: utf8(msg.Body),
					Html: utf8(htmlBody(msg.Body)),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("notify: ses send: %w", err)
	}
	s.logger.Info("report email sent", "provider", "ses", "to", msg.To, "message_id", aws.ToString(out.MessageId))
	return nil
}

func utf8(s string) *types.Content {
	return &types.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}

func validate(msg EmailMessage) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("notify: recipient required")
	}
	return nil
}

// htmlBody keeps the report's line breaks in mail clients that prefer HTML.
func htmlBody(text string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\n", "<br>\n")
	return "<div style=\"font-family:sans-serif\">" + r.Replace(text) + "</div>"
}

var (
	_ EmailSender = (*SendGridSender)(nil)
	_ EmailSender = (*SESSender)(nil)
)
