package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greendrake/dunning/internal/config"
	"greendrake/dunning/internal/db"
	"greendrake/dunning/internal/models"
	"greendrake/dunning/internal/utils"
)

func TestContactInfoFor(t *testing.T) {
	info := ContactInfoFor(models.Organization{
		Base:                   models.Base{ID: "org-1"},
		Name:                   "  ",
		WhatsAppBusinessNumber: "not a phone",
		ControlNumber:          "020-1234567",
	}, "Uw vakman")

	assert.Equal(t, "org-1", info.ID)
	assert.Equal(t, "Uw vakman", info.Name)
	assert.Equal(t, "+31201234567", info.Phone)

	info = ContactInfoFor(models.Organization{
		Base:                   models.Base{ID: "org-2"},
		Name:                   "Bakker BV",
		WhatsAppBusinessNumber: "+31612345678",
		ControlNumber:          "020-1234567",
	}, "Uw vakman")
	assert.Equal(t, "Bakker BV", info.Name)
	assert.Equal(t, "+31612345678", info.Phone)
}

func TestOrgService_GetContactInfo(t *testing.T) {
	database := utils.SetupTestDB(t, "testdb_dunning_orgs", db.OrganizationsCollection)
	ctx := context.Background()
	_, err := database.Collection(db.OrganizationsCollection).InsertOne(ctx, models.Organization{
		Base:                   models.Base{ID: "org-1"},
		Name:                   "Bakker BV",
		WhatsAppBusinessNumber: "0612345678",
	})
	require.NoError(t, err)

	svc := NewOrgService(database, &config.Config{DunningDefaultBusinessName: "Uw vakman"})
	infos, err := svc.GetContactInfo(ctx, []string{"org-1", "org-unknown"})
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "Bakker BV", infos["org-1"].Name)
	assert.Equal(t, "+31612345678", infos["org-1"].Phone)
	assert.Equal(t, "Uw vakman", infos["org-unknown"].Name)

	infos, err = svc.GetContactInfo(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, infos)
}
