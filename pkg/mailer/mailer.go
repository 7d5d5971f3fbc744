package mailer

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/noah-isme/school-site-api/pkg/config"
)

// Attachment carries inline file content for an outbound message.
type Attachment struct {
	Filename string
	MimeType string
	Content  []byte
}

// Message is a single outbound email.
type Message struct {
	ToName      string
	ToAddress   string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Mailer delivers email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New selects a mailer implementation from configuration.
func New(cfg config.MailerConfig, logger *zap.Logger) Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Provider == "sendgrid" && cfg.SendgridKey != "" {
		return &sendgridMailer{cfg: cfg, logger: logger}
	}
	return &consoleMailer{logger: logger}
}

type sendgridMailer struct {
	cfg    config.MailerConfig
	logger *zap.Logger
}

func (m *sendgridMailer) Send(ctx context.Context, msg Message) error {
	if msg.ToAddress == "" {
		return fmt.Errorf("recipient address required")
	}

	from := sgmail.NewEmail(m.cfg.FromName, m.cfg.FromAddress)
	to := sgmail.NewEmail(msg.ToName, msg.ToAddress)
	text := msg.Text
	if text == "" {
		text = " "
	}
	message := sgmail.NewSingleEmail(from, msg.Subject, to, text, msg.HTML)

	for _, att := range msg.Attachments {
		attachment := sgmail.NewAttachment()
		attachment.SetFilename(att.Filename)
		attachment.SetType(att.MimeType)
		attachment.SetContent(base64.StdEncoding.EncodeToString(att.Content))
		attachment.SetDisposition("attachment")
		message.AddAttachment(attachment)
	}

	req := sendgrid.GetRequest(m.cfg.SendgridKey, "/v3/mail/send", "https://api.sendgrid.com")
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(message)

	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid responded %d: %s", resp.StatusCode, resp.Body)
	}

	m.logger.Debug("email sent",
		zap.String("to", msg.ToAddress),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// consoleMailer logs messages instead of delivering them. Default outside
// production so the dispatch path stays exercisable without credentials.
type consoleMailer struct {
	logger *zap.Logger
}

func (m *consoleMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("email (console)",
		zap.String("to", msg.ToAddress),
		zap.String("subject", msg.Subject),
		zap.Int("attachments", len(msg.Attachments)),
	)
	return nil
}
