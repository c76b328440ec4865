package mock

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greendrake/dunning/internal/messages"
	"greendrake/dunning/internal/models"
)

func TestRedisSink_StoresReminder(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sink := NewRedisSink(client, "whatsapp")
	res := sink.Send(context.Background(), "+31612345678", messages.ReminderData{
		CustomerName:  "Jan",
		InvoiceNumber: "F-010",
		AmountCents:   5000,
		DueAt:         time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		DaysOverdue:   3,
		Severity:      models.SeverityGentle,
		OrgName:       "Bakker BV",
		Locale:        "nl",
	})
	require.True(t, res.OK)

	key := Key("whatsapp", "+31612345678")
	assert.Equal(t, "mockreminder:whatsapp:+31612345678", key)
	raw, err := mr.Get(key)
	require.NoError(t, err)

	var doc StoredReminder
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Equal(t, "F-010", doc.InvoiceNumber)
	assert.Equal(t, messages.TemplateGentle, doc.Template)
	assert.Contains(t, doc.Body, "Beste Jan,")
	assert.Equal(t, DefaultTTL, mr.TTL(key))
}

func TestRedisSink_RedisDownIsRetryable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	res := NewRedisSink(client, "email").Send(context.Background(), "a@b.nl", messages.ReminderData{InvoiceNumber: "F-011"})
	assert.False(t, res.OK)
	assert.True(t, res.Retry)
}
