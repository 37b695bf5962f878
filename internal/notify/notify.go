// Package notify delivers out-of-band alerts for motion triggers.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"text/template"
	"time"

	"go.uber.org/zap"
)

// Event is the payload handed to every notifier.
type Event struct {
	Pixels int       `json:"changed_pixels"`
	When   time.Time `json:"detected_at"`
	Host   string    `json:"host,omitempty"`
}

// Notifier delivers a single motion event.
type Notifier interface {
	Send(ctx context.Context, ev Event) error
}

// --- email ---

var emailTmpl = template.Must(template.New("motion").Parse(
	"Subject: Motion detected\r\n" +
		"From: {{.From}}\r\n" +
		"To: {{.To}}\r\n" +
		"\r\n" +
		"Motion detected at {{.When}} ({{.Pixels}} changed pixels).\r\n"))

// EmailConfig holds SMTP delivery settings.
type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// EmailNotifier sends plain-text alerts over SMTP.
type EmailNotifier struct {
	log *zap.Logger
	cfg EmailConfig
}

func NewEmailNotifier(log *zap.Logger, cfg EmailConfig) *EmailNotifier {
	return &EmailNotifier{log: log.Named("notify.email"), cfg: cfg}
}

func (n *EmailNotifier) Send(_ context.Context, ev Event) error {
	var body bytes.Buffer
	err := emailTmpl.Execute(&body, struct {
		From, To, When string
		Pixels         int
	}{
		From:   n.cfg.From,
		To:     n.cfg.To,
		When:   ev.When.Format(time.RFC1123),
		Pixels: ev.Pixels,
	})
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, n.cfg.From, []string{n.cfg.To}, body.Bytes()); err != nil {
		return fmt.Errorf("send email via %s: %w", addr, err)
	}
	n.log.Info("motion email sent", zap.String("to", n.cfg.To))
	return nil
}

// --- webhook ---

// WebhookNotifier POSTs the event as JSON to a configured URL.
type WebhookNotifier struct {
	log    *zap.Logger
	url    string
	client *http.Client
}

func NewWebhookNotifier(log *zap.Logger, url string) *WebhookNotifier {
	return &WebhookNotifier{
		log:    log.Named("notify.webhook"),
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *WebhookNotifier) Send(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	n.log.Info("motion webhook delivered", zap.Int("status", resp.StatusCode))
	return nil
}

// --- fan-out ---

// Multi delivers to every configured notifier, returning the first error
// after attempting all of them.
type Multi struct {
	log      *zap.Logger
	backends []Notifier
}

func NewMulti(log *zap.Logger, backends ...Notifier) *Multi {
	return &Multi{log: log.Named("notify"), backends: backends}
}

// Empty reports whether no backends are configured.
func (m *Multi) Empty() bool { return len(m.backends) == 0 }

func (m *Multi) Send(ctx context.Context, ev Event) error {
	var first error
	for _, b := range m.backends {
		if err := b.Send(ctx, ev); err != nil {
			m.log.Warn("notification delivery failed", zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// NotifyMotion adapts Multi to the motion engine's notifier contract.
func (m *Multi) NotifyMotion(ctx context.Context, pixels int, when time.Time) error {
	if m.Empty() {
		return nil
	}
	return m.Send(ctx, Event{Pixels: pixels, When: when})
}
