// Package email sends reminders through a transactional email API (Resend or SendGrid).
package email

import (
	"context"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"greendrake/dunning/internal/channels"
	"greendrake/dunning/internal/config"
	"greendrake/dunning/internal/logger"
	"greendrake/dunning/internal/messages"
	"greendrake/dunning/internal/metrics"
)

// ResendEnvelope is the POST /emails body for Resend.
type ResendEnvelope struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    string   `json:"html"`
}

// SendGridEnvelope is the POST /v3/mail/send body for SendGrid.
type SendGridEnvelope struct {
	Personalizations []SendGridPersonalization `json:"personalizations"`
	From             SendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []SendGridContent         `json:"content"`
}

type SendGridPersonalization struct {
	To []SendGridAddress `json:"to"`
}

type SendGridAddress struct {
	Email string `json:"email"`
}

type SendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// sender implements channels.Sender.
type sender struct {
	cfg        *config.Config
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewSender creates an email sender for the configured provider.
func NewSender(cfg *config.Config) channels.Sender {
	return NewSenderWithClient(cfg, &http.Client{})
}

// NewSenderWithClient is NewSender with a caller-supplied HTTP client.
func NewSenderWithClient(cfg *config.Config, client *http.Client) channels.Sender {
	limit := rate.Inf
	if cfg.EmailRatePerSecond > 0 {
		limit = rate.Limit(cfg.EmailRatePerSecond)
	}
	return &sender{
		cfg:        cfg,
		httpClient: client,
		limiter:    rate.NewLimiter(limit, 1),
		log:        logger.Component("email"),
	}
}

// Send delivers one reminder to a single address.
func (s *sender) Send(ctx context.Context, recipient string, msg messages.ReminderData) channels.Result {
	if s.cfg.EmailProvider == config.EmailProviderDisabled {
		s.log.Debug().Str("invoice_number", msg.InvoiceNumber).Msg("Email provider disabled, skipping send")
		return channels.Ok()
	}
	res := s.send(ctx, recipient, msg)
	metrics.ProviderRequestsTotal.WithLabelValues(s.cfg.EmailProvider, metrics.ProviderOutcome(res.OK, res.Retry)).Inc()
	return res
}

func (s *sender) send(ctx context.Context, recipient string, msg messages.ReminderData) channels.Result {
	if s.cfg.EmailProvider == "" || s.cfg.EmailAPIKey == "" || s.cfg.EmailFrom == "" {
		return channels.Permanent(0, "email not configured: provider, api key and from address are required")
	}
	if strings.TrimSpace(recipient) == "" {
		return channels.Permanent(0, "email recipient is empty")
	}

	subject := messages.Subject(msg)
	text := messages.GenerateReminderMessage(msg)
	htmlBody := RenderHTML(text)

	var url string
	var payload any
	switch s.cfg.EmailProvider {
	case config.EmailProviderResend:
		url = s.cfg.ResendAPIURL
		payload = ResendEnvelope{
			From:    s.cfg.EmailFrom,
			To:      []string{recipient},
			Subject: subject,
			Text:    text,
			HTML:    htmlBody,
		}
	case config.EmailProviderSendGrid:
		url = s.cfg.SendGridAPIURL
		payload = SendGridEnvelope{
			Personalizations: []SendGridPersonalization{{To: []SendGridAddress{{Email: recipient}}}},
			From:             SendGridAddress{Email: s.cfg.EmailFrom},
			Subject:          subject,
			Content: []SendGridContent{
				{Type: "text/plain", Value: text},
				{Type: "text/html", Value: htmlBody},
			},
		}
	default:
		return channels.Permanent(0, "unknown email provider %q", s.cfg.EmailProvider)
	}

	timeout := s.cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return channels.TransportFailure(err)
	}

	resp, err := channels.PostJSON(ctx, s.httpClient, url, s.cfg.EmailAPIKey, payload)
	if err != nil {
		s.log.Warn().Err(err).Str("provider", s.cfg.EmailProvider).Str("invoice_number", msg.InvoiceNumber).Msg("Email request failed")
		return channels.TransportFailure(err)
	}
	return classify(resp)
}

func classify(resp *channels.Response) channels.Result {
	switch {
	case channels.IsSuccess(resp.StatusCode):
		return channels.Ok()
	case resp.StatusCode >= 500:
		return channels.Retryable(resp.StatusCode, "email status %d: %s", resp.StatusCode, string(resp.Body))
	default:
		return channels.Permanent(resp.StatusCode, "%s", string(resp.Body))
	}
}

// RenderHTML turns the plain-text reminder into minimal HTML: blank lines become
// <br>, every other line is escaped and wrapped in <p>.
func RenderHTML(text string) string {
	lines := strings.Split(text, "\n")
	var b strings.Builder
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			b.WriteString("<br>")
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>")
	}
	return b.String()
}
