// Package notify delivers alert emails with the PDF report attached.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/wneessen/go-mail"

	"github.com/rafabd1/climatesense/pkg/logger"
)

// ErrNotConfigured is returned when host, credentials or recipients are missing.
var ErrNotConfigured = errors.New("email is not configured")

const typePDF mail.ContentType = "application/pdf"

// Message is one alert email. Attachment is a path to the PDF report.
type Message struct {
	Subject    string
	HTMLBody   string
	Attachment string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	Host       string
	Port       int
	User       string
	Password   string
	Recipients []string
	Timeout    time.Duration
	// TLSConfig overrides the default client TLS settings.
	TLSConfig *tls.Config
}

func (c Config) configured() bool {
	return c.Host != "" && c.User != "" && c.Password != "" && len(c.Recipients) > 0
}

// Mailer sends over SMTP with implicit TLS (SMTPS).
type Mailer struct {
	cfg Config
	now func() time.Time
}

var _ Sender = (*Mailer)(nil)

func NewMailer(cfg Config) *Mailer {
	if cfg.Port == 0 {
		cfg.Port = 465
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	recipients := cfg.Recipients[:0:0]
	for _, r := range cfg.Recipients {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	cfg.Recipients = recipients
	return &Mailer{cfg: cfg, now: time.Now}
}

func (m *Mailer) Send(ctx context.Context, msg Message) error {
	log := logger.FromContext(ctx)
	if !m.cfg.configured() {
		return ErrNotConfigured
	}

	attachment, err := os.ReadFile(msg.Attachment)
	if err != nil {
		return errors.Wrapf(err, "read attachment %s", msg.Attachment)
	}
	email, err := BuildMessage(m.cfg.User, m.cfg.Recipients, msg, filepath.Base(msg.Attachment), attachment, m.now())
	if err != nil {
		return err
	}

	if err := m.deliver(ctx, email); err != nil {
		return err
	}
	log.Info("Alert email sent", "recipients", strings.Join(m.cfg.Recipients, ","), "subject", msg.Subject)
	return nil
}

func (m *Mailer) deliver(ctx context.Context, email *mail.Msg) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	tlsConfig := m.cfg.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}
	}
	client, err := mail.NewClient(m.cfg.Host,
		mail.WithSSL(),
		mail.WithPort(m.cfg.Port),
		mail.WithTLSConfig(tlsConfig),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.User),
		mail.WithPassword(m.cfg.Password),
		mail.WithTimeout(m.cfg.Timeout),
	)
	if err != nil {
		return errors.Wrap(err, "create smtp client")
	}
	if err := client.DialAndSendWithContext(ctx, email); err != nil {
		return errors.Wrapf(err, "send via %s:%d", m.cfg.Host, m.cfg.Port)
	}
	return nil
}

// BuildMessage assembles the alert with the body and one PDF attachment.
// Bodies that do not look like HTML are sent as plain text.
func BuildMessage(from string, to []string, msg Message, filename string, attachment []byte, date time.Time) (*mail.Msg, error) {
	email := mail.NewMsg()
	if err := email.From(from); err != nil {
		return nil, errors.Wrapf(err, "invalid sender %q", from)
	}
	if err := email.To(to...); err != nil {
		return nil, errors.Wrap(err, "invalid recipients")
	}
	email.Subject(msg.Subject)
	email.SetDateWithValue(date)

	bodyType := mail.TypeTextPlain
	if looksLikeHTML(msg.HTMLBody) {
		bodyType = mail.TypeTextHTML
	}
	email.SetBodyString(bodyType, msg.HTMLBody)

	if attachment != nil {
		if err := email.AttachReader(filename, bytes.NewReader(attachment), mail.WithFileContentType(typePDF)); err != nil {
			return nil, errors.Wrapf(err, "attach %s", filename)
		}
	}
	return email, nil
}

func looksLikeHTML(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(s, "<") && strings.Contains(s, "</")
}
