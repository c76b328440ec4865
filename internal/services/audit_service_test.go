package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greendrake/dunning/internal/db"
	"greendrake/dunning/internal/models"
	"greendrake/dunning/internal/utils"
)

func TestAuditService_RecordAndList(t *testing.T) {
	database := utils.SetupTestDB(t, "testdb_dunning_audit", db.DunningEventsCollection)
	svc := NewAuditService(database)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	first := &models.DunningEvent{
		InvoiceID: "inv-1",
		Channel:   models.ChannelSystem,
		EventType: models.EventManualFollowUp,
		Result:    models.ResultSkipped,
		CreatedAt: base,
	}
	delivered := base.Add(time.Minute)
	second := &models.DunningEvent{
		InvoiceID:    "inv-1",
		Channel:      models.ChannelWhatsApp,
		EventType:    models.EventReminderSent,
		Result:       models.ResultSent,
		TemplateUsed: "whatsapp_gentle",
		CreatedAt:    delivered,
		DeliveredAt:  &delivered,
	}
	require.NoError(t, svc.Record(ctx, first))
	require.NoError(t, svc.Record(ctx, second))
	require.NoError(t, svc.Record(ctx, &models.DunningEvent{InvoiceID: "inv-2", Result: models.ResultError}))
	assert.NotEmpty(t, first.ID)

	events, err := svc.ListByInvoice(ctx, "inv-1", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.ResultSent, events[0].Result)
	assert.Equal(t, "whatsapp_gentle", events[0].TemplateUsed)
	require.NotNil(t, events[0].DeliveredAt)
	assert.Nil(t, events[1].DeliveredAt)
}
