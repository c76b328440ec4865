// Package mock provides a Redis-backed channel sink used when MOCK_SERVICES is on.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"greendrake/dunning/internal/channels"
	"greendrake/dunning/internal/logger"
	"greendrake/dunning/internal/messages"
)

// DefaultTTL is how long a mocked reminder stays readable in Redis.
const DefaultTTL = 15 * time.Minute

// StoredReminder is the JSON document written per mocked send.
type StoredReminder struct {
	Channel       string   `json:"channel"`
	To            string   `json:"to"`
	InvoiceNumber string   `json:"invoice_number"`
	Subject       string   `json:"subject"`
	Template      string   `json:"template"`
	Params        []string `json:"params"`
	Body          string   `json:"body"`
	SentAt        string   `json:"sent_at"`
}

// RedisSink implements channels.Sender by storing reminders in Redis instead of
// calling a provider.
type RedisSink struct {
	client  *redis.Client
	channel string
	ttl     time.Duration
	log     zerolog.Logger
}

// NewRedisSink creates a sink for one channel name ("whatsapp" or "email").
func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	return &RedisSink{
		client:  client,
		channel: channel,
		ttl:     DefaultTTL,
		log:     logger.Component("mock_sink"),
	}
}

// Key returns the Redis key a reminder for recipient is stored under.
func Key(channel, recipient string) string {
	return fmt.Sprintf("mockreminder:%s:%s", channel, recipient)
}

// Send stores the rendered reminder and always reports success unless Redis fails.
func (s *RedisSink) Send(ctx context.Context, recipient string, msg messages.ReminderData) channels.Result {
	doc := StoredReminder{
		Channel:       s.channel,
		To:            recipient,
		InvoiceNumber: msg.InvoiceNumber,
		Subject:       messages.Subject(msg),
		Template:      messages.TemplateNameForDaysOverdue(msg.DaysOverdue),
		Params:        messages.BuildTemplateParams(msg),
		Body:          messages.GenerateReminderMessage(msg),
		SentAt:        time.Now().UTC().Format(time.RFC3339Nano),
	}

	jsonData, err := json.Marshal(doc)
	if err != nil {
		return channels.Permanent(0, "failed to marshal mock reminder: %v", err)
	}

	key := Key(s.channel, recipient)
	if err := s.client.Set(ctx, key, jsonData, s.ttl).Err(); err != nil {
		return channels.Retryable(0, "failed to store mock reminder in Redis key '%s': %v", key, err)
	}

	s.log.Info().Str("key", key).Dur("ttl", s.ttl).Str("invoice_number", msg.InvoiceNumber).Msg("Mock reminder stored in Redis")
	return channels.Ok()
}
