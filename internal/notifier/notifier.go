package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
)

// Notifier delivers out-of-band messages to requesters and operators.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Config holds SMTP delivery settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// SMTPNotifier sends email via SMTP using go-mail.
type SMTPNotifier struct {
	cfg Config
}

// NewSMTPNotifier creates a new SMTP notifier.
func NewSMTPNotifier(cfg Config) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}
	return &SMTPNotifier{cfg: cfg}, nil
}

// Send delivers a plain text email.
func (n *SMTPNotifier) Send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()

	if n.cfg.FromName != "" {
		if err := msg.FromFormat(n.cfg.FromName, n.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(n.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("setting to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(n.cfg.Port),
	}
	if n.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Implicit TLS for 465, STARTTLS otherwise
		if n.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if n.cfg.Username != "" && n.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password),
		)
	}

	client, err := mail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

// VerificationEmail composes the subject and body for the verification
// message sent on intake.
func VerificationEmail(baseURL, token string) (string, string) {
	verifyURL := fmt.Sprintf("%s/api/v1/optout/verify?token=%s", strings.TrimSuffix(baseURL, "/"), token)
	subject := "Confirm your obituary removal request"
	body := fmt.Sprintf(
		"We received a request to remove an obituary listing.\n\n"+
			"To confirm this request, open the link below within 48 hours:\n\n%s\n\n"+
			"If you did not submit this request, you can ignore this message.\n",
		verifyURL,
	)
	return subject, body
}

// IntakeSummaryEmail composes the administrator's heads-up for a newly
// accepted removal request. It deliberately carries no verification token.
func IntakeSummaryEmail(subjectID, subjectName, relationship string) (string, string) {
	subject := fmt.Sprintf("New obituary removal request: %s", subjectID)
	body := fmt.Sprintf(
		"A removal request was submitted for listing %s (%s).\n\n"+
			"Stated relationship: %s.\n\n"+
			"The request is pending email verification and will appear in the\n"+
			"review queue.\n",
		subjectID, subjectName, relationship,
	)
	return subject, body
}

// ReviewDigestEmail composes the periodic operator digest for the review
// queue.
func ReviewDigestEmail(pending int64) (string, string) {
	subject := fmt.Sprintf("Suppression review queue: %d awaiting review", pending)
	body := fmt.Sprintf(
		"There are currently %d suppression records awaiting operator review.\n\n"+
			"Visit the admin review queue to triage them.\n",
		pending,
	)
	return subject, body
}
