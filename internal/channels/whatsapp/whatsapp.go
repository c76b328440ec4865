// Package whatsapp sends reminders through the WhatsApp Cloud API.
package whatsapp

import (
	"context"
	"fmt"
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

const providerName = "whatsapp"

// TextMessage is a free-form message, only deliverable inside a customer
// service window. Used in dev mode.
type TextMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             TextBody `json:"text"`
}

type TextBody struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

// TemplateMessage references a pre-approved template by name.
type TemplateMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Template         TemplateBody `json:"template"`
}

type TemplateBody struct {
	Name       string              `json:"name"`
	Language   TemplateLanguage    `json:"language"`
	Components []TemplateComponent `json:"components"`
}

type TemplateLanguage struct {
	Code string `json:"code"`
}

type TemplateComponent struct {
	Type       string              `json:"type"`
	Parameters []TemplateParameter `json:"parameters"`
}

type TemplateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewTextMessage builds a dev-mode text payload.
func NewTextMessage(to, body string) TextMessage {
	return TextMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             TextBody{Body: body},
	}
}

// NewTemplateMessage builds a template payload with positional body parameters.
func NewTemplateMessage(to, name, lang string, params []string) TemplateMessage {
	parameters := make([]TemplateParameter, 0, len(params))
	for _, p := range params {
		parameters = append(parameters, TemplateParameter{Type: "text", Text: p})
	}
	return TemplateMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template: TemplateBody{
			Name:     name,
			Language: TemplateLanguage{Code: lang},
			Components: []TemplateComponent{
				{Type: "body", Parameters: parameters},
			},
		},
	}
}

// sender implements channels.Sender.
type sender struct {
	cfg        *config.Config
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewSender creates a WhatsApp sender. Missing credentials are reported per call
// as permanent failures.
func NewSender(cfg *config.Config) channels.Sender {
	return NewSenderWithClient(cfg, &http.Client{})
}

// NewSenderWithClient is NewSender with a caller-supplied HTTP client.
func NewSenderWithClient(cfg *config.Config, client *http.Client) channels.Sender {
	limit := rate.Inf
	if cfg.WhatsAppRatePerSecond > 0 {
		limit = rate.Limit(cfg.WhatsAppRatePerSecond)
	}
	return &sender{
		cfg:        cfg,
		httpClient: client,
		limiter:    rate.NewLimiter(limit, 1),
		log:        logger.Component("whatsapp"),
	}
}

// Send delivers one reminder. recipient is an E.164 number (leading + optional).
func (s *sender) Send(ctx context.Context, recipient string, msg messages.ReminderData) channels.Result {
	res := s.send(ctx, recipient, msg)
	metrics.ProviderRequestsTotal.WithLabelValues(providerName, metrics.ProviderOutcome(res.OK, res.Retry)).Inc()
	return res
}

func (s *sender) send(ctx context.Context, recipient string, msg messages.ReminderData) channels.Result {
	if s.cfg.WhatsAppAccessToken == "" || s.cfg.WhatsAppBusinessPhoneID == "" {
		return channels.Permanent(0, "whatsapp not configured: access token and business phone id are required")
	}
	to := strings.TrimPrefix(recipient, "+")
	if to == "" {
		return channels.Permanent(0, "whatsapp recipient is empty")
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

	var payload any
	if s.cfg.WhatsAppDevMode {
		payload = NewTextMessage(to, messages.GenerateReminderMessage(msg))
	} else {
		payload = NewTemplateMessage(to,
			messages.TemplateNameForDaysOverdue(msg.DaysOverdue),
			s.cfg.WhatsAppTemplateLang,
			messages.BuildTemplateParams(msg))
	}

	url := fmt.Sprintf("%s/%s/messages", strings.TrimRight(s.cfg.WhatsAppAPIBaseURL, "/"), s.cfg.WhatsAppBusinessPhoneID)
	resp, err := channels.PostJSON(ctx, s.httpClient, url, s.cfg.WhatsAppAccessToken, payload)
	if err != nil {
		s.log.Warn().Err(err).Str("invoice_number", msg.InvoiceNumber).Msg("WhatsApp request failed")
		return channels.TransportFailure(err)
	}
	return classify(resp)
}

// classify maps a Graph API response to a channel result. 470 and 471 are
// WhatsApp's re-engagement and spam rate limits.
func classify(resp *channels.Response) channels.Result {
	switch {
	case channels.IsSuccess(resp.StatusCode):
		return channels.Ok()
	case resp.StatusCode == 470 || resp.StatusCode == 471 || resp.StatusCode >= 500:
		return channels.Retryable(resp.StatusCode, "whatsapp status %d: %s", resp.StatusCode, string(resp.Body))
	default:
		return channels.Permanent(resp.StatusCode, "%s", string(resp.Body))
	}
}
