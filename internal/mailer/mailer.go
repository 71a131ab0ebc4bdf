// Package mailer renders notification emails and sends them over SMTP.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// ErrNotConfigured is returned by Send when no SMTP host is set.
var ErrNotConfigured = errors.New("smtp not configured")

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	FromName string
	FromAddr string
	SiteURL  string
}

// Message is one notification email.
type Message struct {
	To            string
	RecipientName string
	Subject       string
	Body          string
	Details       map[string]string
	// Path is appended to SiteURL for the call-to-action link, e.g. /events/<id>.
	Path string
}

type detail struct {
	Label string
	Value string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends notification emails.
type Mailer struct {
	cfg    Config
	tmpl   *template.Template
	send   sendFunc
	logger *zap.Logger
}

// New parses the embedded templates and returns a mailer.
func New(cfg Config, logger *zap.Logger) (*Mailer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tmpl, err := template.ParseFS(templateFS, "templates/notification.html")
	if err != nil {
		return nil, fmt.Errorf("parse email template: %w", err)
	}
	if cfg.Port == "" {
		cfg.Port = "587"
	}
	if cfg.FromAddr == "" {
		cfg.FromAddr = cfg.Username
	}
	return &Mailer{cfg: cfg, tmpl: tmpl, send: smtp.SendMail, logger: logger}, nil
}

// Enabled reports whether an SMTP host is configured.
func (m *Mailer) Enabled() bool { return m.cfg.Host != "" }

// Render builds the full MIME message for msg.
func (m *Mailer) Render(msg Message) ([]byte, error) {
	data := struct {
		Subject       string
		RecipientName string
		Body          string
		Details       []detail
		ActionURL     string
	}{
		Subject:       msg.Subject,
		RecipientName: msg.RecipientName,
		Body:          msg.Body,
		Details:       details(msg.Details),
	}
	if m.cfg.SiteURL != "" && msg.Path != "" {
		data.ActionURL = strings.TrimRight(m.cfg.SiteURL, "/") + msg.Path
	}
	var html bytes.Buffer
	if err := m.tmpl.ExecuteTemplate(&html, "notification.html", data); err != nil {
		return nil, fmt.Errorf("render email: %w", err)
	}

	from := m.cfg.FromAddr
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", m.cfg.FromName), m.cfg.FromAddr)
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.Write(html.Bytes())
	return b.Bytes(), nil
}

// Send renders and delivers msg.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if !m.Enabled() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := m.Render(msg)
	if err != nil {
		return err
	}
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)
	if err := m.send(addr, auth, m.cfg.FromAddr, []string{msg.To}, body); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	m.logger.Debug("email sent", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

var labels = map[string]string{
	"event_title":   "Event",
	"meeting_title": "Meeting",
	"date":          "Date",
	"time":          "Time",
	"venue":         "Venue",
	"meeting_link":  "Link",
	"role":          "Role",
}

func details(in map[string]string) []detail {
	keys := make([]string, 0, len(in))
	for k, v := range in {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]detail, 0, len(keys))
	for _, k := range keys {
		label, ok := labels[k]
		if !ok {
			label = strings.ReplaceAll(k, "_", " ")
		}
		out = append(out, detail{Label: label, Value: in[k]})
	}
	return out
}
